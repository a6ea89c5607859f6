package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	appconfig "github.com/layerforge/layerforge/internal/adapters/outbound/config"
	"github.com/layerforge/layerforge/internal/domain"
)

// featureFlags describe the requested feature.
type featureFlags struct {
	keyword     string
	description string
	route       string
	specFile    string
}

func (f *featureFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.keyword, "keyword", "k", "", "Short feature name, e.g. \"order refund\" (required)")
	cmd.Flags().StringVar(&f.description, "desc", "", "What the feature does")
	cmd.Flags().StringVar(&f.route, "route", "", "Feature route, e.g. \"POST /orders/{id}/refund\"")
	cmd.Flags().StringVar(&f.specFile, "spec", "", "Parameter spec YAML (request, response, validation, external_call)")
	_ = cmd.MarkFlagRequired("keyword")
}

// request builds the FeatureRequest. A relative spec path is resolved against
// the working directory.
func (f *featureFlags) request(projectPath string) (domain.FeatureRequest, error) {
	req := domain.FeatureRequest{
		ProjectPath: projectPath,
		Keyword:     f.keyword,
		Description: f.description,
		Route:       f.route,
	}
	if f.specFile != "" {
		path, err := filepath.Abs(f.specFile)
		if err != nil {
			return req, fmt.Errorf("resolving spec: %w", err)
		}
		if req.Parameters, err = appconfig.LoadParameterSpec(path); err != nil {
			return req, err
		}
	}
	return req, nil
}
