// Package blob is the entry point for blob storage. Callers depend on the
// Store interface exported here; only this package imports the backend
// adapters.
package blob

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"metacore/internal/blob/core"
	fsstore "metacore/internal/infra/blob/fs"
	memstore "metacore/internal/infra/blob/memory"
	s3store "metacore/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
	// S3Config configures the S3 backend.
	S3Config = s3store.Config
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrNotFound    = core.ErrNotFound
	ErrExists      = core.ErrExists
)

// Config selects and configures a backend.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open builds the configured backend. An empty driver selects the filesystem.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

// NewFilesystem returns a filesystem-backed store rooted at root.
func NewFilesystem(root string) (Store, error) {
	return fsstore.New(root)
}

// NewMemory returns an in-memory store.
func NewMemory() Store { return memstore.New() }

// NewS3 returns an S3-backed store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return s3store.New(ctx, cfg)
}

// SourceKey is where an uploaded source file for a table is kept.
func SourceKey(tableID, filename string) string {
	return path.Join("sources", tableID, path.Base(strings.ReplaceAll(filename, "\\", "/")))
}

// ExportKey names a table export; the timestamp keeps create-only Puts unique.
func ExportKey(tableID string, at time.Time, ext string) string {
	return path.Join("exports", tableID, at.UTC().Format("20060102T150405.000000000Z")+ext)
}
