// Package batch textures every mesh directory under a root directory.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/texsynth/internal/config"
	"github.com/Faultbox/texsynth/internal/logger"
	"github.com/Faultbox/texsynth/internal/metrics"
	"github.com/Faultbox/texsynth/internal/session"
)

// ConfigFile is the per-mesh configuration each mesh directory must hold.
const ConfigFile = "config.yaml"

// Failure records a mesh whose session returned an error.
type Failure struct {
	Dir string
	Err error
}

// Report lists the outcome of every mesh directory.
type Report struct {
	Processed []string
	Skipped   []string
	Failed    []Failure
}

// Runner runs one session per mesh directory, sequentially.
type Runner struct {
	// Base is the config per-mesh files are layered over. Nil uses defaults.
	Base *config.Config
	// Style is prefixed to every mesh prompt when set.
	Style string
	// Options are shared by all sessions.
	Options session.Options
}

// Run processes the sub-directories of root in lexical order. Missing
// config files skip the mesh; session failures are recorded and the batch
// moves on. Only an unreadable root or a cancelled context stop the batch.
func (r *Runner) Run(ctx context.Context, root string) (*Report, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading batch root: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)

	logger.Info("starting batch", zap.String("root", root), zap.Int("meshes", len(dirs)), zap.String("style", r.Style))
	report := &Report{}
	for _, name := range dirs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		dir := filepath.Join(root, name)

		cfgPath := filepath.Join(dir, ConfigFile)
		if _, err := os.Stat(cfgPath); err != nil {
			logger.Warn("config file missing, skipping mesh", zap.String("path", cfgPath))
			report.Skipped = append(report.Skipped, dir)
			metrics.BatchMeshes.WithLabelValues("skipped").Inc()
			continue
		}

		if err := r.runMesh(ctx, dir, cfgPath); err != nil {
			if errors.Is(err, context.Canceled) {
				return report, err
			}
			logger.Error("mesh failed", zap.String("dir", dir), zap.Error(err))
			report.Failed = append(report.Failed, Failure{Dir: dir, Err: err})
			metrics.BatchMeshes.WithLabelValues("failed").Inc()
			continue
		}
		report.Processed = append(report.Processed, dir)
		metrics.BatchMeshes.WithLabelValues("processed").Inc()
	}

	logger.Info("batch finished",
		zap.Int("processed", len(report.Processed)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}

func (r *Runner) runMesh(ctx context.Context, dir, cfgPath string) error {
	base := r.Base
	if base == nil {
		base = config.Default()
	}
	cfg, err := config.LoadFileOver(base, cfgPath)
	if err != nil {
		return err
	}
	cfg.Mesh.Path = resolve(dir, cfg.Mesh.Path)
	cfg.Output.Dir = resolve(dir, cfg.Output.Dir)
	cfg.Diffusion.Prompt = StylePrompt(r.Style, cfg.Diffusion.Prompt)

	s, err := session.New(cfg, r.Options)
	if err != nil {
		return err
	}
	_, err = s.Run(ctx)
	return err
}

// StylePrompt prefixes prompt with style.
func StylePrompt(style, prompt string) string {
	style = strings.TrimSpace(style)
	if style == "" {
		return prompt
	}
	return style + " " + prompt
}

// resolve makes relative paths relative to the mesh directory.
func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
