// Package watcher revalidates a spec tree on an interval and emits
// metrics and history records for each run.
package watcher

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bucketlint/bucketlint/config"
	"github.com/bucketlint/bucketlint/history"
	"github.com/bucketlint/bucketlint/render"
	"github.com/bucketlint/bucketlint/telemetry"
	"github.com/bucketlint/bucketlint/types"
	"github.com/bucketlint/bucketlint/validator"
)

// Config holds watcher configuration
type Config struct {
	SpecDir     string
	PolicyDir   string
	Params      types.Params
	Interval    time.Duration
	HistoryPath string
}

// Watcher drives the continuous validation loop
type Watcher struct {
	cfg       Config
	validator *validator.Validator
	store     *history.Store
	logger    *telemetry.Logger
	startTime time.Time
	runCount  atomic.Int64
}

// New creates a watcher. History recording is enabled only when a
// history path is configured.
func New(cfg Config) (*Watcher, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}

	if err := telemetry.InitMetrics(); err != nil {
		return nil, err
	}

	var opts []validator.Option
	if cfg.PolicyDir != "" {
		opts = append(opts, validator.WithPolicyDir(cfg.PolicyDir))
	}

	w := &Watcher{
		cfg:       cfg,
		validator: validator.New(cfg.SpecDir, opts...),
		logger:    telemetry.NewLogger("watcher"),
		startTime: time.Now(),
	}

	if cfg.HistoryPath != "" {
		store, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return nil, err
		}
		w.store = store
	}

	return w, nil
}

// Close releases the history store, if any
func (w *Watcher) Close() error {
	if w.store == nil {
		return nil
	}
	return w.store.Close()
}

// Start runs an immediate validation pass, then revalidates on the
// configured interval until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.WithContext(ctx).Info().
		Str("spec_dir", w.cfg.SpecDir).
		Dur("interval", w.cfg.Interval).
		Msg("watch loop starting")

	w.runOnce(ctx)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.WithContext(ctx).Info().Msg("watch loop stopping")
			return nil
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context) {
	ctx, span := telemetry.Tracer.Start(ctx, "watch.run")
	defer span.End()

	start := time.Now()
	report := w.validator.Run(ctx, w.cfg.Params)
	duration := time.Since(start)

	w.runCount.Add(1)

	status := runStatus(report.OK())
	telemetry.RunsCompleted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	telemetry.RunDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("status", status)),
	)

	bySeverity := make(map[types.Severity]int64)
	for _, violation := range report.Violations {
		bySeverity[violation.Severity]++
	}
	for severity, count := range bySeverity {
		telemetry.ViolationsFound.Add(ctx, count,
			metric.WithAttributes(attribute.String("severity", string(severity))),
		)
	}
	w.recordGraphSize(ctx)

	if w.store != nil {
		if err := w.store.Record(ctx, history.FromReport(report, duration)); err != nil {
			w.logger.WithContext(ctx).Error().
				Err(err).
				Msg("failed to record run history")
		}
	}
}

// recordGraphSize renders the tree to report the current bucket count.
// Render failures are expected while the tree is broken; the violation
// report already covers them.
func (w *Watcher) recordGraphSize(ctx context.Context) {
	tree, err := config.LoadTree(w.cfg.SpecDir)
	if err != nil {
		return
	}
	graph, err := render.Render(tree.Composition(w.cfg.Params))
	if err != nil {
		return
	}
	telemetry.BucketsRendered.Record(ctx, int64(graph.Len()))
}

func runStatus(ok bool) string {
	if ok {
		return "pass"
	}
	return "fail"
}

// RunCount returns the number of validation runs executed
func (w *Watcher) RunCount() int64 {
	return w.runCount.Load()
}

// HealthStatus reports watcher liveness
type HealthStatus struct {
	Status string `json:"status"`
	Uptime int64  `json:"uptime_seconds"`
	Runs   int64  `json:"runs"`
}

// Health returns the watcher's health status
func (w *Watcher) Health() HealthStatus {
	return HealthStatus{
		Status: "healthy",
		Uptime: int64(time.Since(w.startTime).Seconds()),
		Runs:   w.runCount.Load(),
	}
}
