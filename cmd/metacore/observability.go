package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"metacore/internal/config"
	"metacore/internal/core"
	"metacore/internal/notify"
)

// observability holds the recorders installed on the service for one
// invocation and the files they write to.
type observability struct {
	metrics  core.MetricsRecorder
	tracer   *core.JSONTraceTracer
	notifier notify.Multi

	flush func() error
	files []io.Closer
}

func openObservability(cfg config.Config, log *zap.Logger) (*observability, error) {
	o := &observability{notifier: notify.Multi{notify.NewLogger(log)}}

	switch cfg.Metrics.Exporter {
	case config.MetricsPrometheus:
		reg := prometheus.NewRegistry()
		rec, err := core.NewPrometheusMetricsRecorder(reg)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		o.metrics = rec
		if path := cfg.Metrics.Path; path != "" {
			o.flush = func() error { return prometheus.WriteToTextfile(path, reg) }
		}
	case config.MetricsExpvar:
		rec := core.NewExpvarMetricsRecorder("")
		o.metrics = rec
		if path := cfg.Metrics.Path; path != "" {
			o.flush = func() error { return writeJSONFile(path, rec.Snapshot()) }
		}
	}

	if cfg.Trace.Path != "" {
		f, err := appendFile(cfg.Trace.Path)
		if err != nil {
			return nil, fmt.Errorf("trace: %w", err)
		}
		o.files = append(o.files, f)
		o.tracer = core.NewJSONTracer(f)
	}
	if cfg.Notify.JSONL != "" {
		f, err := appendFile(cfg.Notify.JSONL)
		if err != nil {
			_ = o.Close()
			return nil, fmt.Errorf("notify: %w", err)
		}
		o.files = append(o.files, f)
		o.notifier = append(o.notifier, notify.NewJSONLines(f))
	}
	return o, nil
}

// options returns the service options for the configured recorders.
func (o *observability) options() []core.ServiceOption {
	opts := []core.ServiceOption{core.WithNotifier(o.notifier)}
	if o.metrics != nil {
		opts = append(opts, core.WithMetricsRecorder(o.metrics))
	}
	if o.tracer != nil {
		opts = append(opts, core.WithTracer(o.tracer))
	}
	return opts
}

// Close writes the metrics snapshot and closes the sink files.
func (o *observability) Close() error {
	var errs []error
	if o.flush != nil {
		if err := o.flush(); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	for _, f := range o.files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

func appendFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //nolint:gosec // path is chosen by the operator
}

func writeJSONFile(path string, v map[string]core.OperationStats) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o640)
}
