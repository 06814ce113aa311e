package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/conneroisu/assetpack/internal/assembler"
	"github.com/conneroisu/assetpack/internal/bundle"
	"github.com/conneroisu/assetpack/internal/devserver"
	"github.com/conneroisu/assetpack/internal/logging"
	"github.com/conneroisu/assetpack/internal/watcher"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Build in watch mode and serve with live reload",
	Long: `Build the development variant, rebuild on every change and serve the build
directory with live reload. A proxy in front of the dev server listens on the
proxy port.

Adding, removing or renaming a view re-runs view discovery and restarts the
build, since the page list is part of the configuration.

Examples:
  assetpack serve
  ASSETPACK_SERVER_PORT=4000 assetpack serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if assembler.IsProduction(cfg.Env) {
		logger.Warn(cmd.Context(), nil, "Serving the development variant", "env", cfg.Env)
		cfg.Env = ""
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := assemblerOptions(cfg)
	frag := assembler.Assemble(cfg.Env, opts)

	server, err := devserver.New(frag, logger)
	if err != nil {
		return err
	}
	proxy, err := devserver.NewProxy(frag, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() { errCh <- server.Start(ctx) }()
	if proxy != nil {
		go func() { errCh <- proxy.Start(ctx) }()
	}

	restart := make(chan struct{}, 1)
	views, err := watchViews(ctx, opts.Views, logger, restart)
	if err != nil {
		return err
	}
	defer views.Stop()

	out := cmd.OutOrStdout()
	for {
		builder := bundle.New(frag,
			bundle.WithLogger(logger),
			bundle.WithSassBinary(cfg.Styles.SassBinary),
		)
		watchCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			done <- builder.Watch(watchCtx, func(res *bundle.Result, err error) {
				printResult(out, res)
				if err != nil {
					logger.Error(ctx, err, "Build failed")
				}
				server.Notify(res, err)
			})
		}()

		var next error
		restarting := false
		select {
		case <-ctx.Done():
		case next = <-errCh:
		case next = <-done:
			done = nil
		case <-restart:
			restarting = true
		}

		cancel()
		if done != nil {
			if err := <-done; err != nil && next == nil {
				next = err
			}
		}
		if err := builder.Close(); err != nil {
			logger.Warn(ctx, err, "Failed to stop sass compiler")
		}

		if !restarting || next != nil {
			if next != nil {
				return fmt.Errorf("serve: %w", next)
			}
			return nil
		}

		logger.Info(ctx, "Views changed, reassembling configuration")
		frag = assembler.Assemble(cfg.Env, opts)
	}
}

// watchViews signals restart whenever a view is added, removed or renamed.
// Content edits are left to the bundler's own watch.
func watchViews(ctx context.Context, dir string, logger logging.Logger, restart chan<- struct{}) (*watcher.FileWatcher, error) {
	fw, err := watcher.NewFileWatcher(300*time.Millisecond, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	fw.AddFilter(watcher.ViewFilter)
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		if !watcher.Structural(events) {
			return nil
		}
		select {
		case restart <- struct{}{}:
		default:
		}
		return nil
	})

	if err := fw.AddRecursive(dir); err != nil {
		logger.Warn(ctx, err, "Not watching views", "dir", dir)
	}
	if err := fw.Start(ctx); err != nil {
		fw.Stop()
		return nil, err
	}
	return fw, nil
}
