package core

import (
	"context"
	"time"

	"metacore/internal/blob"
	"metacore/pkg/domain"
)

// Logger is the structured logging surface used by the service. Implementations
// receive alternating key/value pairs after the message.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// AuditStatus captures the outcome of an audited operation.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one service operation for compliance trails.
type AuditEntry struct {
	Operation string
	Entity    domain.EntityType
	Action    domain.Action
	EntityID  string
	Actor     string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// MetricsRecorder observes operation latency and outcome.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// TraceSpan is closed once per started operation.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock. A nil ClockFunc reports system UTC time.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

// Authorizer resolves the permission table used for access checks.
type Authorizer interface {
	Permissions(ctx context.Context, view domain.TransactionView) domain.PermissionTable
}

// storeAuthorizer reads grants persisted alongside the tables.
type storeAuthorizer struct{}

func (storeAuthorizer) Permissions(_ context.Context, view domain.TransactionView) domain.PermissionTable {
	return view.Permissions()
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, domain.Notification) error { return nil }

type serviceOptions struct {
	logger        Logger
	clock         Clock
	audit         AuditRecorder
	metrics       MetricsRecorder
	tracer        Tracer
	notifier      domain.Notifier
	authorizer    Authorizer
	blobs         blob.Store
	importWorkers int
}

const defaultImportWorkers = 4

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		logger:        noopLogger{},
		clock:         ClockFunc(nil),
		audit:         noopAuditRecorder{},
		metrics:       noopMetricsRecorder{},
		tracer:        noopTracer{},
		notifier:      noopNotifier{},
		authorizer:    storeAuthorizer{},
		importWorkers: defaultImportWorkers,
	}
}

// ServiceOption customises a Service.
type ServiceOption func(*serviceOptions)

// WithLogger sets the service logger. Nil values are ignored.
func WithLogger(l Logger) ServiceOption {
	return func(o *serviceOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the clock used for audit timestamps and durations.
func WithClock(c Clock) ServiceOption {
	return func(o *serviceOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithAuditRecorder installs an audit sink.
func WithAuditRecorder(r AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if r != nil {
			o.audit = r
		}
	}
}

// WithMetricsRecorder installs a metrics sink.
func WithMetricsRecorder(r MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if r != nil {
			o.metrics = r
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(t Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithNotifier installs the notifier invoked after successful imports,
// pool syncs and value replacements.
func WithNotifier(n domain.Notifier) ServiceOption {
	return func(o *serviceOptions) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithAuthorizer replaces the permission source used for access checks.
func WithAuthorizer(a Authorizer) ServiceOption {
	return func(o *serviceOptions) {
		if a != nil {
			o.authorizer = a
		}
	}
}

// WithBlobStore sets the store used for source uploads and exports.
func WithBlobStore(b blob.Store) ServiceOption {
	return func(o *serviceOptions) {
		if b != nil {
			o.blobs = b
		}
	}
}

// WithImportWorkers bounds the number of columns encoded concurrently during
// an import. Values below one are ignored.
func WithImportWorkers(n int) ServiceOption {
	return func(o *serviceOptions) {
		if n > 0 {
			o.importWorkers = n
		}
	}
}

type operationMeta struct {
	entity domain.EntityType
	action domain.Action
}

var operationCatalog = map[string]operationMeta{
	"create_table":      {domain.EntityTable, domain.ActionCreate},
	"delete_table":      {domain.EntityTable, domain.ActionDelete},
	"import_table":      {domain.EntityTable, domain.ActionUpdate},
	"add_column":        {domain.EntityColumn, domain.ActionCreate},
	"remove_column":     {domain.EntityColumn, domain.ActionDelete},
	"set_column_hidden": {domain.EntityColumn, domain.ActionUpdate},
	"replace_value":     {domain.EntityColumn, domain.ActionUpdate},
	"synchronize_pools": {domain.EntityPool, domain.ActionUpdate},
	"grant_permission":  {domain.EntityPermission, domain.ActionCreate},
	"revoke_permission": {domain.EntityPermission, domain.ActionDelete},
	"export_table":      {domain.EntityTable, domain.ActionUpdate},
	"import_from_blob":  {domain.EntityTable, domain.ActionUpdate},
	"upload_source":     {domain.EntityTable, domain.ActionUpdate},
}

// startOperation opens a trace span and returns a completion func that
// records audit, metrics and logs for the operation.
func (s *Service) startOperation(ctx context.Context, op string) (context.Context, func(entityID string, err error)) {
	started := s.opts.clock.Now()
	ctx, span := s.opts.tracer.Start(ctx, op)
	return ctx, func(entityID string, err error) {
		duration := s.opts.clock.Now().Sub(started)
		span.End(err)
		s.opts.metrics.Observe(ctx, op, err == nil, duration)
		if err != nil {
			s.recordAuditError(ctx, op, entityID, duration, err)
			s.opts.logger.Error("operation failed", "operation", op, "entity_id", entityID, "error", err)
			return
		}
		s.recordAuditSuccess(ctx, op, entityID, duration)
		s.opts.logger.Debug("operation completed", "operation", op, "entity_id", entityID, "duration", duration)
	}
}

func (s *Service) recordAuditSuccess(ctx context.Context, op, entityID string, duration time.Duration) {
	s.recordAudit(ctx, op, entityID, duration, AuditStatusSuccess, nil)
}

func (s *Service) recordAuditError(ctx context.Context, op, entityID string, duration time.Duration, err error) {
	s.recordAudit(ctx, op, entityID, duration, AuditStatusError, err)
}

func (s *Service) recordAudit(ctx context.Context, op, entityID string, duration time.Duration, status AuditStatus, err error) {
	meta, ok := operationCatalog[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Actor:     ActorFromContext(ctx),
		Status:    status,
		Duration:  duration,
		Timestamp: s.opts.clock.Now(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	s.opts.audit.Record(ctx, entry)
}
