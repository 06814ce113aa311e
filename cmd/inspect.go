package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/conneroisu/assetpack/internal/assembler"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the assembled configuration",
	Long: `Print the configuration that build or serve would run, with every plugin
tagged by its kind. View discovery runs exactly as it does for a build.

Examples:
  assetpack inspect                              # Development variant as YAML
  assetpack inspect --env production --format json`,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().String("env", "", "build environment (production selects the production variant)")
	inspectCmd.Flags().StringP("format", "f", "yaml", "output format (yaml, json)")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")

	doc := assembler.Assemble(cfg.Env, assemblerOptions(cfg)).Document()

	out := cmd.OutOrStdout()
	switch format {
	case "yaml":
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err := encoder.Encode(doc); err != nil {
			return fmt.Errorf("encoding configuration: %w", err)
		}
		return encoder.Close()
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(doc)
	default:
		return fmt.Errorf("unsupported format: %s (supported: yaml, json)", format)
	}
}
