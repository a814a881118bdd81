// Package metrics exposes texturing session metrics for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Faultbox/texsynth/internal/logger"
)

var (
	StepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "texsynth_steps_total",
		Help: "Session steps by outcome",
	}, []string{"outcome"})

	RendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "texsynth_renders_total",
		Help: "Rasterized views by purpose",
	}, []string{"purpose"})

	TexelsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "texsynth_backprojected_texels_total",
		Help: "Atlas texels written by backprojection",
	})

	ViewHeat = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "texsynth_view_heat",
		Help:    "Heat of selected views",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
	})

	GenerateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "texsynth_generate_duration_seconds",
		Help:    "Time spent in the image generator",
		Buckets: []float64{0.01, 0.1, 1, 5, 15, 30, 60, 120},
	}, []string{"provider"})

	Coverage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "texsynth_coverage_ratio",
		Help: "Fraction of reachable texels already textured",
	}, []string{"session"})

	BatchMeshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "texsynth_batch_meshes_total",
		Help: "Batch meshes by result",
	}, []string{"result"})
)

// Step outcomes.
const (
	OutcomeGenerated = "generated"
	OutcomeSkipped   = "skipped"
	OutcomeSaturated = "saturated"
)

// Render purposes.
const (
	PurposeCache       = "cache"
	PurposeScore       = "score"
	PurposeView        = "view"
	PurposeBackproject = "backproject"
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
