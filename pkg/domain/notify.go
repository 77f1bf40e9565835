package domain

import "context"

// NotificationKind classifies table events surfaced to users.
type NotificationKind string

const (
	NotifyImportCompleted NotificationKind = "import_completed"
	NotifyPoolsSynced     NotificationKind = "pools_synced"
	NotifyValueReplaced   NotificationKind = "value_replaced"
)

// Notification is an event emitted after a successful mutation.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	TableID string           `json:"table_id"`
	Actor   string           `json:"actor,omitempty"`
	Message string           `json:"message"`
	Data    map[string]any   `json:"data,omitempty"`
}

// Notifier receives notifications; delivery is the implementation's concern.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
