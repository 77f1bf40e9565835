package core

import (
	"context"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

var expvarSeq atomic.Uint64

// OperationStats aggregates the observations of one operation.
type OperationStats struct {
	Calls   int64   `json:"calls"`
	Errors  int64   `json:"errors"`
	TotalMS float64 `json:"total_ms"`
	MaxMS   float64 `json:"max_ms"`
}

// MeanMS is the average latency, zero before the first call.
func (s OperationStats) MeanMS() float64 {
	if s.Calls == 0 {
		return 0
	}
	return s.TotalMS / float64(s.Calls)
}

// ExpvarMetricsRecorder publishes per-operation stats through expvar for
// deployments without a metrics backend.
type ExpvarMetricsRecorder struct {
	name string
	mu   sync.Mutex
	ops  map[string]OperationStats
}

// NewExpvarMetricsRecorder publishes a recorder under name, generating a
// unique one when name is empty.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("metacore_operations_%d", expvarSeq.Add(1))
	}
	rec := &ExpvarMetricsRecorder{name: name, ops: make(map[string]OperationStats)}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Snapshot copies the stats keyed by operation.
func (r *ExpvarMetricsRecorder) Snapshot() map[string]OperationStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]OperationStats, len(r.ops))
	for op, s := range r.ops {
		out[op] = s
	}
	return out
}

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.ops[operation]
	s.Calls++
	if !success {
		s.Errors++
	}
	s.TotalMS += ms
	s.MaxMS = max(s.MaxMS, ms)
	r.ops[operation] = s
}

// JSONTraceEntry is one finished span.
type JSONTraceEntry struct {
	Operation  string    `json:"operation"`
	Actor      string    `json:"actor,omitempty"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// DefaultTraceRetention bounds the spans a JSONTraceTracer keeps in memory.
const DefaultTraceRetention = 1024

// JSONTraceTracer writes finished spans as JSON lines and retains the most
// recent ones.
type JSONTraceTracer struct {
	mu      sync.Mutex
	keep    int
	entries []JSONTraceEntry
	enc     *json.Encoder
	now     func() time.Time
}

// NewJSONTracer builds a tracer writing to w; a nil writer only retains spans.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{keep: DefaultTraceRetention, now: func() time.Time { return time.Now().UTC() }}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Retain changes how many spans are kept; n < 1 keeps none.
func (t *JSONTraceTracer) Retain(n int) *JSONTraceTracer {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keep = max(n, 0)
	t.trim()
	return t
}

func (t *JSONTraceTracer) trim() {
	if over := len(t.entries) - t.keep; over > 0 {
		t.entries = append(t.entries[:0], t.entries[over:]...)
	}
}

// Entries returns the retained spans, oldest first.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]JSONTraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{
		tracer: t,
		entry: JSONTraceEntry{
			Operation: operation,
			Actor:     ActorFromContext(ctx),
			StartedAt: t.now(),
		},
	}
}

type jsonTraceSpan struct {
	tracer *JSONTraceTracer
	entry  JSONTraceEntry
}

func (s *jsonTraceSpan) End(err error) {
	e := s.entry
	e.EndedAt = s.tracer.now()
	e.DurationMS = float64(e.EndedAt.Sub(e.StartedAt)) / float64(time.Millisecond)
	e.Status = string(AuditStatusSuccess)
	if err != nil {
		e.Status = string(AuditStatusError)
		e.Error = err.Error()
	}

	t := s.tracer
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
	t.trim()
	if t.enc != nil {
		_ = t.enc.Encode(e)
	}
}
