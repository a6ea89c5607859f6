package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	appconfig "github.com/layerforge/layerforge/internal/adapters/outbound/config"
	"github.com/layerforge/layerforge/internal/domain"
)

func newInitCmd() *cobra.Command {
	var (
		provider string
		model    string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Generate a " + appconfig.FileName + " configuration file",
		Long:  "Create a " + appconfig.FileName + " with the default model, scan, sandbox and log settings.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			absPath, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			dest := filepath.Join(absPath, appconfig.FileName)

			if !force {
				if _, err := os.Stat(dest); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", appconfig.FileName)
				}
			}

			if !slices.Contains(domain.ValidProviders, provider) || provider == "scripted" {
				return fmt.Errorf("unknown provider %q (valid: gemini, ollama)", provider)
			}

			content, err := generateConfig(provider, model)
			if err != nil {
				return err
			}

			if err := os.WriteFile(dest, []byte(content), 0644); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", appconfig.FileName)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "gemini", "Model provider (gemini, ollama)")
	cmd.Flags().StringVar(&model, "model-name", "", "Model name (default depends on provider)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing "+appconfig.FileName)

	return cmd
}

var defaultModelNames = map[string]string{
	"gemini": "gemini-2.5-flash",
	"ollama": "qwen2.5-coder:7b",
}

func generateConfig(provider, model string) (string, error) {
	cfg := domain.DefaultConfig()
	cfg.Model.Provider = provider
	cfg.Model.Name = model
	if cfg.Model.Name == "" {
		cfg.Model.Name = defaultModelNames[provider]
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}

	var b strings.Builder
	b.WriteString("# layerforge configuration\n")
	b.WriteString("# Keys left out keep their defaults.\n\n")
	b.Write(data)
	b.WriteString(`
# scan:
#   exclude_paths:
#     - generated
#     - third_party
`)
	return b.String(), nil
}
