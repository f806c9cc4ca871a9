package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/sitediff/internal/config"
	"github.com/nao1215/sitediff/internal/database"
	"github.com/nao1215/sitediff/internal/model"
	"github.com/nao1215/sitediff/internal/report"
	"github.com/spf13/cobra"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [site]",
		Short: "Show the recorded captures and last comparison of a site",
		Long: `Status reads the run ledger, a SQLite database that capture, compare
and run update, and shows what is known about a site:
- The website and compare domain
- How many pages the baseline and the candidate hold, and when they were taken
- The results of the last comparison

The site is the name of its configuration file (shop for shop.yaml) or the
website host when no file was used.

Examples:
  # Status of the site of .sitediff.yaml
  sitediff status

  # Status of a named site
  sitediff status shop

  # List all recorded sites
  sitediff status --list`,
		Args: cobra.MaximumNArgs(1),
		RunE: runStatusCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitediff.yaml in current or home directory)")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the run ledger")
	cmd.Flags().BoolP("list", "l", false, "List all recorded sites")
	cmd.Flags().BoolP("all", "a", false, "Include identical pages in the results")

	return cmd
}

// runStatusCmd executes the status command.
func runStatusCmd(cmd *cobra.Command, args []string) error {
	list, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	showAll, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	// Resolve the site before opening the database.
	var site string
	if !list {
		if site, err = statusSite(cmd, args); err != nil {
			return err
		}
	}

	setupLogger(cmd)
	out := cmd.OutOrStdout()

	if _, err := os.Stat(filepath.Join(dbDir, database.FileName)); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(out, "No runs recorded yet.")
		fmt.Fprintln(out, "\nUse 'sitediff capture' to capture a website.")
		return nil
	}

	db, err := database.Open(dbDir, database.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if list {
		return listSites(ctx, out, db)
	}
	return showStatus(ctx, out, db, site, showAll)
}

// statusSite returns the site named by the argument or by the configuration.
func statusSite(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return "", err
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return "", err
	}
	if cfg.ConfigFilePath == "" {
		return "", errors.New("site is required (pass a site name or use --list to see recorded sites)")
	}
	return cfg.SiteName(), nil
}

// listSites prints every site of the ledger.
func listSites(ctx context.Context, out io.Writer, db *database.CaptureDB) error {
	sites, err := db.ListSites(ctx)
	if err != nil {
		return err
	}

	if len(sites) == 0 {
		fmt.Fprintln(out, "No sites recorded yet.")
		return nil
	}

	fmt.Fprintf(out, "Recorded sites (%d):\n\n", len(sites))
	for _, site := range sites {
		fmt.Fprintf(out, "  • %s\n", site)
	}
	fmt.Fprintln(out, "\nUse 'sitediff status <site>' to see the details of a site.")
	return nil
}

// showStatus prints the captures and the last comparison of site.
func showStatus(ctx context.Context, out io.Writer, db *database.CaptureDB, site string, showAll bool) error {
	rec, err := db.GetSite(ctx, site)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no runs recorded for %q (use --list to see recorded sites)", site)
	}

	baseline, err := db.ListCaptures(ctx, site, model.GenerationBaseline)
	if err != nil {
		return err
	}
	candidate, err := db.ListCaptures(ctx, site, model.GenerationCandidate)
	if err != nil {
		return err
	}
	results, comparedAt, err := db.LatestDiffResults(ctx, site)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Site:           %s\n", rec.Name)
	fmt.Fprintf(out, "Website:        %s\n", rec.Website)
	if rec.CompareDomain != "" {
		fmt.Fprintf(out, "Compare domain: %s\n", rec.CompareDomain)
	}
	fmt.Fprintf(out, "Updated:        %s\n\n", formatTime(rec.UpdatedAt))

	fmt.Fprintf(out, "Baseline:       %s\n", describeCaptures(baseline))
	fmt.Fprintf(out, "Candidate:      %s\n", describeCaptures(candidate))
	if same := identicalCaptures(baseline, candidate); same > 0 {
		fmt.Fprintf(out, "Byte-identical: %d page(s)\n", same)
	}
	fmt.Fprintln(out)

	if len(results) == 0 {
		fmt.Fprintln(out, "No comparison recorded yet.")
		return nil
	}

	rep := &model.Report{
		Site:          rec.Name,
		Website:       rec.Website,
		CompareDomain: rec.CompareDomain,
		GeneratedAt:   comparedAt,
		Results:       results,
	}
	_, err = report.NewSimpleWriter(out, report.WithShowEmpty(showAll)).Write(rep)
	return err
}

// describeCaptures summarizes one generation of captures.
func describeCaptures(captures []model.CaptureArtifact) string {
	if len(captures) == 0 {
		return "none"
	}
	var last time.Time
	for _, c := range captures {
		if c.CapturedAt.After(last) {
			last = c.CapturedAt
		}
	}
	return fmt.Sprintf("%d page(s), last captured %s", len(captures), formatTime(last))
}

// identicalCaptures counts candidate captures with the fingerprint of
// the baseline capture of the same URL.
func identicalCaptures(baseline, candidate []model.CaptureArtifact) int {
	fingerprints := make(map[string]string, len(baseline))
	for _, c := range baseline {
		fingerprints[c.URL] = c.Fingerprint
	}
	n := 0
	for _, c := range candidate {
		if fp, ok := fingerprints[c.URL]; ok && fp != "" && fp == c.Fingerprint {
			n++
		}
	}
	return n
}

// formatTime formats a ledger timestamp in local time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
