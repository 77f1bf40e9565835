// Package notify delivers table notifications emitted by the core service.
package notify

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"metacore/pkg/domain"
)

// Logger writes each notification as a structured log entry.
type Logger struct {
	log *zap.Logger
}

var _ domain.Notifier = (*Logger)(nil)

// NewLogger returns a notifier logging through l; nil discards entries.
func NewLogger(l *zap.Logger) *Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &Logger{log: l.Named("notify")}
}

// Notify implements domain.Notifier.
func (n *Logger) Notify(_ context.Context, note domain.Notification) error {
	fields := []zap.Field{
		zap.String("kind", string(note.Kind)),
		zap.String("table_id", note.TableID),
	}
	if note.Actor != "" {
		fields = append(fields, zap.String("actor", note.Actor))
	}
	keys := make([]string, 0, len(note.Data))
	for k := range note.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, zap.Any(k, note.Data[k]))
	}
	n.log.Info(note.Message, fields...)
	return nil
}

// JSONLines writes one JSON document per notification.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

var _ domain.Notifier = (*JSONLines)(nil)

// NewJSONLines returns a notifier encoding to w.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

// Notify implements domain.Notifier.
func (n *JSONLines) Notify(_ context.Context, note domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.enc.Encode(note)
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu    sync.Mutex
	notes []domain.Notification
}

var _ domain.Notifier = (*Recorder)(nil)

// Notify implements domain.Notifier.
func (r *Recorder) Notify(_ context.Context, note domain.Notification) error {
	r.mu.Lock()
	r.notes = append(r.notes, note)
	r.mu.Unlock()
	return nil
}

// Notifications returns a copy of the recorded notifications.
func (r *Recorder) Notifications() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Notification, len(r.notes))
	copy(out, r.notes)
	return out
}

// Multi fans a notification out to every notifier, joining their errors.
type Multi []domain.Notifier

// Notify implements domain.Notifier.
func (m Multi) Notify(ctx context.Context, note domain.Notification) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
