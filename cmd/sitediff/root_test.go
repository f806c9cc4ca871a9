package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "sitediff" {
			t.Errorf("expected use 'sitediff', got %q", cmd.Use)
		}
	})

	t.Run("has descriptions", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" || cmd.Long == "" {
			t.Error("expected non-empty short and long description")
		}
	})

	t.Run("has version", func(t *testing.T) {
		t.Parallel()
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has verbose flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.PersistentFlags().Lookup("verbose")
		if flag == nil {
			t.Fatal("expected verbose flag")
		}
		if flag.Shorthand != "v" {
			t.Errorf("expected shorthand 'v', got %q", flag.Shorthand)
		}
		if flag.DefValue != "false" {
			t.Errorf("expected default 'false', got %q", flag.DefValue)
		}
	})

	t.Run("has log-json flag", func(t *testing.T) {
		t.Parallel()
		if cmd.PersistentFlags().Lookup("log-json") == nil {
			t.Fatal("expected log-json flag")
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		want := []string{"init", "capture", "compare", "report", "run", "serve", "status", "version"}
		have := make(map[string]bool)
		for _, sub := range cmd.Commands() {
			have[sub.Name()] = true
		}
		for _, name := range want {
			if !have[name] {
				t.Errorf("expected %s subcommand", name)
			}
		}
	})

	t.Run("silences usage and errors", func(t *testing.T) {
		t.Parallel()
		if !cmd.SilenceUsage || !cmd.SilenceErrors {
			t.Error("expected usage and errors to be silenced")
		}
	})
}

// TestCommonFlags tests that the site commands share their flags.
func TestCommonFlags(t *testing.T) {
	t.Parallel()

	common := []string{"config", "output-dir", "width", "height", "mobile", "timeout", "metrics-file", "no-db"}
	cmds := []*cobra.Command{NewCaptureCmd(), NewCompareCmd(), NewReportCmd(), NewRunCmd()}

	for _, cmd := range cmds {
		t.Run(cmd.Name(), func(t *testing.T) {
			t.Parallel()
			for _, name := range common {
				if cmd.Flags().Lookup(name) == nil {
					t.Errorf("expected --%s flag", name)
				}
			}
			if f := cmd.Flags().Lookup("config"); f != nil && f.Shorthand != "c" {
				t.Errorf("expected config shorthand 'c', got %q", f.Shorthand)
			}
			if f := cmd.Flags().Lookup("timeout"); f != nil && f.Shorthand != "t" {
				t.Errorf("expected timeout shorthand 't', got %q", f.Shorthand)
			}
		})
	}

	for _, cmd := range []*cobra.Command{NewCaptureCmd(), NewCompareCmd(), NewRunCmd()} {
		if cmd.Flags().Lookup("no-preflight") == nil {
			t.Errorf("%s: expected --no-preflight flag", cmd.Name())
		}
	}
}

// TestSetupLogger tests the text and JSON log output.
func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantJSON bool
	}{
		{name: "text", args: []string{"-v"}, wantJSON: false},
		{name: "json", args: []string{"-v", "--log-json"}, wantJSON: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := NewRootCmd()
			var stderr bytes.Buffer
			root.SetErr(&stderr)
			if err := root.ParseFlags(tt.args); err != nil {
				t.Fatalf("failed to parse flags: %v", err)
			}

			logger := setupLogger(root)
			logger.Debug("hello", "password", "hunter2")

			out := stderr.String()
			if strings.HasPrefix(out, "{") != tt.wantJSON {
				t.Errorf("unexpected log format: %q", out)
			}
			if strings.Contains(out, "hunter2") {
				t.Errorf("expected password to be redacted, got %q", out)
			}
		})
	}
}
