package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/keel/internal/config"
)

// AddConfigCommand adds the config command group.
func AddConfigCommand(root *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect keel configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Display effective configuration",
		Long: `Display the effective configuration after layering defaults,
~/.keel/config.yaml, <repo>/.keel/config.yaml and KEEL_* environment variables.

Examples:
  keel config show
  keel config show --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.jsonOutput() {
				return writeJSON(a.out, a.cfg)
			}
			return showConfigYAML(a.out, a.cfg, a.configSources())
		},
	})
	root.AddCommand(cmd)
}

// configSources lists the config files that exist for this invocation.
func (a *app) configSources() []string {
	var sources []string
	if path, err := config.GlobalConfigPath(); err == nil && fileExists(path) {
		sources = append(sources, path)
	}
	if a.repoPath != "" {
		if path := config.ProjectConfigPath(a.repoPath); fileExists(path) {
			sources = append(sources, path)
		}
	}
	return sources
}

func showConfigYAML(w io.Writer, cfg *config.Config, sources []string) error {
	styles := newOutputStyles()

	_, _ = fmt.Fprintln(w, styles.header.Render("Effective keel configuration"))
	if len(sources) == 0 {
		_, _ = fmt.Fprintln(w, styles.dim.Render("# sources: defaults only"))
	} else {
		_, _ = fmt.Fprintln(w, styles.dim.Render("# sources: defaults, "+strings.Join(sources, ", ")))
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
