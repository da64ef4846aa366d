package document

import (
	"context"
	"time"
)

// TemplateRepository is the administrative store of template definitions
type TemplateRepository interface {
	// FindByID returns shared.ErrNotFound when the id is unknown
	FindByID(ctx context.Context, id string) (*TemplateDefinition, error)
	FindAll(ctx context.Context) ([]TemplateDefinition, error)
	Save(ctx context.Context, t *TemplateDefinition) error
	SetStatus(ctx context.Context, id string, status TemplateStatus) error
}

// ArtifactRepository stores artifact metadata. Deleted handles are kept as
// tombstones so Create rejects them with shared.ErrAlreadyExists.
type ArtifactRepository interface {
	Create(ctx context.Context, a *Artifact) error
	// FindByHandle returns shared.ErrNotFound for unknown or deleted handles
	FindByHandle(ctx context.Context, handle string) (*Artifact, error)
	// FindByOwner returns the owner's artifacts not yet expired at now, newest first
	FindByOwner(ctx context.Context, ownerID string, now time.Time) ([]Artifact, error)
	// FindExpired returns up to limit artifacts whose expiry is at or before now
	FindExpired(ctx context.Context, now time.Time, limit int) ([]Artifact, error)
	IncrementDownloadCount(ctx context.Context, handle string) error
	Delete(ctx context.Context, handle string) error
}

// BlobStore is the raw byte storage underneath artifacts
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns shared.ErrNotFound when the key does not exist
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete succeeds when the key does not exist
	Delete(ctx context.Context, key string) error
}
