package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/sitediff/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/sitediff.yaml
var configTemplate embed.FS

// configTemplatePath is the path of the template inside configTemplate.
const configTemplatePath = "templates/sitediff.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sitediff configuration file",
		Long: `Init writes a commented .sitediff.yaml to the current directory.

The generated file documents every option:
- The website to crawl and the crawl limits
- Viewport size or mobile emulation
- The compare domain, credentials and selectors to remove

The file name becomes the run name, so several sites can be kept side by
side as shop.yaml, blog.yaml and so on.

Examples:
  # Create .sitediff.yaml in the current directory
  sitediff init

  # Create a named configuration
  sitediff init -o shop.yaml

  # Overwrite an existing file
  sitediff init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(configTemplatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// May hold credentials once edited.
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to set:")
	fmt.Fprintln(out, "  - The website to capture")
	fmt.Fprintln(out, "  - Crawl limits and URL patterns to ignore")
	fmt.Fprintln(out, "  - The domain to compare against")
	fmt.Fprintf(out, "\nOutput will be written to %s\n", config.OutputDirPrefix+config.NameFromPath(outputPath))

	return nil
}
