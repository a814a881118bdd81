package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/texsynth/internal/batch"
	"github.com/Faultbox/texsynth/internal/config"
	"github.com/Faultbox/texsynth/internal/logger"
	"github.com/Faultbox/texsynth/internal/metrics"
	"github.com/Faultbox/texsynth/internal/session"
	"github.com/Faultbox/texsynth/internal/storage/cachestore"
)

var (
	overrides  config.Overrides
	batchStyle string

	rootCmd = &cobra.Command{
		Use:   "texgen",
		Short: "Texture 3D meshes with a diffusion model from multiple viewpoints",
		Long: `texgen renders a mesh from a set of candidate viewpoints, asks an
image model to paint each selected view and projects the result back into
the mesh's UV texture.`,
		SilenceUsage: true,
	}

	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Texture a single mesh",
		Args:  cobra.NoArgs,
		RunE:  runGenerate,
	}

	batchCmd = &cobra.Command{
		Use:   "batch [root]",
		Short: "Texture every mesh directory under root",
		Long: `Each sub-directory of root is one mesh and must contain a config.yaml
with at least the mesh path and prompt. Directories without one are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: runBatch,
	}
)

func init() {
	overrides.Bind(rootCmd.PersistentFlags())
	batchCmd.Flags().StringVar(&batchStyle, "style", "", "Style prompt prefixed to every mesh prompt")

	rootCmd.AddCommand(generateCmd, batchCmd)
}

// env is the process-wide setup shared by all commands.
type env struct {
	cfg   *config.Config
	store *cachestore.Store
	stop  func()
}

func setup(cmd *cobra.Command) (context.Context, *env, error) {
	cfg, err := config.Load(overrides)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	e := &env{cfg: cfg}
	e.stop = func() {
		cancel()
		if e.store != nil {
			if err := e.store.Close(); err != nil {
				logger.Warn("closing similarity cache", zap.Error(err))
			}
		}
		logger.Sync()
	}

	if cfg.Cache.Dir != "" {
		if e.store, err = cachestore.Open(cfg.Cache.Dir); err != nil {
			e.stop()
			return nil, nil, fmt.Errorf("opening similarity cache: %w", err)
		}
	}
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}
	return ctx, e, nil
}

func (e *env) options() session.Options {
	var opts session.Options
	if e.store != nil {
		opts.Store = e.store
	}
	return opts
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.stop()

	logger.Info("=== texgen generate ===", logger.Mesh(e.cfg.Mesh.Path))
	logger.Sugar.Debugf("Config: %+v", e.cfg)

	s, err := session.New(e.cfg, e.options())
	if err != nil {
		return err
	}
	res, err := s.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Textured %s in %d steps (%.1f%% coverage), outputs in %s\n",
		e.cfg.Mesh.Path, res.Steps, res.Coverage*100, res.OutputDir)
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	// Per-mesh files own the mesh, output and prompt; the global flags
	// for them do not apply.
	overrides.Mesh, overrides.Output = "", ""
	if batchStyle == "" {
		batchStyle = overrides.Prompt
	}
	overrides.Prompt = ""

	ctx, e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.stop()

	r := &batch.Runner{Base: e.cfg, Style: batchStyle, Options: e.options()}
	report, err := r.Run(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Processed %d, skipped %d, failed %d\n",
		len(report.Processed), len(report.Skipped), len(report.Failed))
	for _, f := range report.Failed {
		fmt.Fprintf(out, "  %s: %v\n", f.Dir, f.Err)
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d meshes failed", len(report.Failed))
	}
	return nil
}
