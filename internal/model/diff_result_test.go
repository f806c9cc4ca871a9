package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func scored(url string, percent float64) DiffResult {
	return NewScoredResult(url, percent, "original/x.png", "compare/x.png", "difference/diff_x.png")
}

// TestNewScoredResult tests that the diff image path is kept only for
// results above zero.
func TestNewScoredResult(t *testing.T) {
	t.Parallel()

	zero := scored("https://example.com/", 0)
	if zero.HasDiffImage() {
		t.Errorf("expected no diff image for zero difference, got %q", zero.DiffImagePath)
	}

	changed := scored("https://example.com/", 0.5)
	if !changed.HasDiffImage() {
		t.Error("expected diff image for non-zero difference")
	}
	if changed.Failed() {
		t.Error("scored result reported as failed")
	}
}

// TestNewFailedResult tests failed result construction.
func TestNewFailedResult(t *testing.T) {
	t.Parallel()

	r := NewFailedResult("https://example.com/x", errors.New("navigation timeout"))
	if !r.Failed() {
		t.Fatal("expected failed result")
	}
	if r.Error != "navigation timeout" {
		t.Errorf("got error %q", r.Error)
	}
	if r.Percent() != 0 {
		t.Errorf("expected zero percent, got %v", r.Percent())
	}
}

// TestDiffResultMarshalJSON tests the two report.json entry shapes.
func TestDiffResultMarshalJSON(t *testing.T) {
	t.Parallel()

	t.Run("scored with diff image", func(t *testing.T) {
		t.Parallel()
		data, err := json.Marshal(scored("https://example.com/a", 2.5))
		if err != nil {
			t.Fatal(err)
		}
		got := string(data)
		for _, want := range []string{`"url":"https://example.com/a"`, `"diff":2.5`, `"diffImagePath":"difference/diff_x.png"`} {
			if !strings.Contains(got, want) {
				t.Errorf("expected %s in %s", want, got)
			}
		}
		if strings.Contains(got, `"error"`) {
			t.Errorf("scored entry must not carry error: %s", got)
		}
	})

	t.Run("scored without diff image", func(t *testing.T) {
		t.Parallel()
		data, err := json.Marshal(scored("https://example.com/a", 0))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), `"diffImagePath":null`) {
			t.Errorf("expected null diffImagePath in %s", data)
		}
	})

	t.Run("failed", func(t *testing.T) {
		t.Parallel()
		data, err := json.Marshal(NewFailedResult("https://example.com/a", errors.New("boom")))
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != `{"url":"https://example.com/a","error":"boom"}` {
			t.Errorf("unexpected failed entry: %s", data)
		}
	})
}

// TestDiffResultUnmarshalJSON tests reading both shapes back.
func TestDiffResultUnmarshalJSON(t *testing.T) {
	t.Parallel()

	input := `[
		{"url":"https://example.com/a","diff":3,"originalImagePath":"o","newImagePath":"n","diffImagePath":"d"},
		{"url":"https://example.com/b","diff":0,"originalImagePath":"o","newImagePath":"n","diffImagePath":null},
		{"url":"https://example.com/c","error":"timeout"}
	]`

	var results []DiffResult
	if err := json.Unmarshal([]byte(input), &results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Percent() != 3 || results[0].DiffImagePath != "d" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if results[1].Failed() || results[1].HasDiffImage() {
		t.Errorf("unexpected second result: %+v", results[1])
	}
	if !results[2].Failed() || results[2].Error != "timeout" {
		t.Errorf("unexpected third result: %+v", results[2])
	}
}

// TestSortResults tests descending order with failed entries last.
func TestSortResults(t *testing.T) {
	t.Parallel()

	results := []DiffResult{
		NewFailedResult("fail-1", errors.New("x")),
		scored("low", 0.1),
		scored("tie-1", 5),
		NewFailedResult("fail-2", errors.New("y")),
		scored("high", 50),
		scored("tie-2", 5),
		scored("zero", 0),
	}

	SortResults(results)

	expected := []string{"high", "tie-1", "tie-2", "low", "zero", "fail-1", "fail-2"}
	for i, want := range expected {
		if results[i].URL != want {
			t.Errorf("position %d: got %q, expected %q", i, results[i].URL, want)
		}
	}
}
