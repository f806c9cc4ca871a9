package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nao1215/sitediff/internal/config"
	"github.com/nao1215/sitediff/internal/model"
	"github.com/nao1215/sitediff/internal/report"
)

// imageDirs are the output sub-directories served under /images.
var imageDirs = map[string]bool{
	config.OriginalDirName:   true,
	config.CompareDirName:    true,
	config.DifferenceDirName: true,
}

// loadReport reads report.json on every request so a finished compare
// run shows up without a restart.
func (s *Server) loadReport() (*model.Report, error) {
	rep, err := model.LoadReport(s.layout.ReportJSON())
	if err != nil {
		return nil, err
	}
	rep.Site = s.site
	rep.Website = s.website
	rep.CompareDomain = s.compareDomain
	return rep, nil
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.loadReport()
	if err != nil {
		s.respondWithReportError(w, err)
		return
	}

	var buf bytes.Buffer
	if _, err := report.NewHTMLWriter(&buf, report.WithLinkedImages("/images/")).Write(rep); err != nil {
		s.logger.Error("failed to render report", "error", err)
		s.respondWithError(w, http.StatusInternalServerError, "could not render report")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleReportJSON(w http.ResponseWriter, r *http.Request) {
	rep, err := s.loadReport()
	if err != nil {
		s.respondWithReportError(w, err)
		return
	}

	var buf bytes.Buffer
	if _, err := report.NewJSONWriter(&buf, report.WithPrettyPrint()).Write(rep); err != nil {
		s.respondWithError(w, http.StatusInternalServerError, "could not encode report")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	dir := chi.URLParam(r, "dir")
	file := chi.URLParam(r, "file")

	if !imageDirs[dir] || !strings.HasSuffix(file, model.ImageExt) ||
		strings.ContainsAny(file, `/\`) || strings.Contains(file, "..") {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filepath.Join(s.layout.Root, dir, file))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Helper Functions ---

func (s *Server) respondWithReportError(w http.ResponseWriter, err error) {
	if errors.Is(err, model.ErrReportNotFound) {
		s.respondWithError(w, http.StatusNotFound, "no report yet: run compare first")
		return
	}
	s.logger.Error("failed to load report", "error", err)
	s.respondWithError(w, http.StatusInternalServerError, "could not load report")
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		code = http.StatusInternalServerError
		response = []byte(`{"error":"could not encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
