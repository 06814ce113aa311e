package cmd

import (
	"fmt"

	"github.com/conneroisu/assetpack/internal/assembler"
	"github.com/conneroisu/assetpack/internal/bundle"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Assemble the configuration and build once",
	Long: `Assemble the bundle configuration for the selected environment and run a
single build into the build directory. The output directory is cleaned first.

Only --env production selects the production variant: hashed file names,
minified scripts and styles, extracted and purified CSS, a vendor bundle and
a manifest. Any other value builds the development variant.

Examples:
  assetpack build                    # Development build
  assetpack build --env production   # Production build`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().String("env", "", "build environment (production selects the production variant)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	frag := assembler.Assemble(cfg.Env, assemblerOptions(cfg))
	builder := bundle.New(frag,
		bundle.WithLogger(logger),
		bundle.WithSassBinary(cfg.Styles.SassBinary),
	)
	defer builder.Close()

	variant := "development"
	if assembler.IsProduction(cfg.Env) {
		variant = "production"
	}
	logger.Info(ctx, "Building", "variant", variant, "output", frag.Output.Path)

	res, err := builder.Build(ctx)
	printResult(cmd.OutOrStdout(), res)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	if len(res.Errors) > 0 {
		logger.Warn(ctx, nil, "Build finished with errors", "errors", len(res.Errors))
	}
	return nil
}
