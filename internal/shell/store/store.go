package store

import (
	"context"
	"time"

	"github.com/artpar/servekit/internal/core/deploy"
)

// =============================================================================
// Definition Records
// =============================================================================

// Definition lifecycle states.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Record is a persisted deployment definition. The config is stored in its
// wire encoding and decoded on every read. The opaque constructor payload is
// stored as raw bytes so the store never needs the sealing passphrase; the
// OpaqueSealed flag records whether those bytes are encrypted.
type Record struct {
	ID           string
	BaseID       string // ID of the definition this one was derived from, empty for roots
	Status       string
	Config       *deploy.Config
	Opaque       []byte
	OpaqueSealed bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Name returns the deployment name carried by the record's config.
func (r *Record) Name() string {
	if r.Config == nil {
		return ""
	}
	return r.Config.Name()
}

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for deployment definitions.
type Store interface {
	// Definition operations. Definitions are immutable once created; deriving
	// a new revision means creating a new row with BaseID pointing at the old
	// one. The config must carry a deployment name, and that name must be
	// unique among active definitions.
	CreateDefinition(ctx context.Context, record *Record) error
	GetDefinition(ctx context.Context, id string) (*Record, error)
	GetDefinitionByName(ctx context.Context, name string) (*Record, error)
	ListDefinitions(ctx context.Context, opts ListOptions) ([]*Record, error)

	// ArchiveDefinition releases a definition's name for reuse. Archiving an
	// already archived definition is a no-op.
	ArchiveDefinition(ctx context.Context, id string) error

	// DeleteDefinition permanently removes a definition. Definitions that
	// serve as the base of other definitions cannot be deleted.
	DeleteDefinition(ctx context.Context, id string) error

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
