package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/domain/shared"
)

// InMemoryArtifactRepository implements document.ArtifactRepository in
// process memory. Deleted handles are remembered so they are never reused.
type InMemoryArtifactRepository struct {
	mu         sync.RWMutex
	artifacts  map[string]document.Artifact
	tombstones map[string]struct{}
}

// NewInMemoryArtifactRepository creates an empty repository
func NewInMemoryArtifactRepository() *InMemoryArtifactRepository {
	return &InMemoryArtifactRepository{
		artifacts:  make(map[string]document.Artifact),
		tombstones: make(map[string]struct{}),
	}
}

// Create stores new metadata
func (r *InMemoryArtifactRepository) Create(_ context.Context, a *document.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.artifacts[a.Handle]; ok {
		return shared.ErrAlreadyExists
	}
	if _, ok := r.tombstones[a.Handle]; ok {
		return shared.ErrAlreadyExists
	}
	r.artifacts[a.Handle] = *a
	return nil
}

// FindByHandle returns a copy of the metadata
func (r *InMemoryArtifactRepository) FindByHandle(_ context.Context, handle string) (*document.Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.artifacts[handle]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &a, nil
}

// FindByOwner lists the owner's unexpired artifacts, newest first
func (r *InMemoryArtifactRepository) FindByOwner(_ context.Context, ownerID string, now time.Time) ([]document.Artifact, error) {
	r.mu.RLock()
	var out []document.Artifact
	for _, a := range r.artifacts {
		if a.OwnerID == ownerID && !a.IsExpired(now) {
			out = append(out, a)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Handle < out[j].Handle
	})
	return out, nil
}

// FindExpired returns up to limit expired artifacts, oldest expiry first
func (r *InMemoryArtifactRepository) FindExpired(_ context.Context, now time.Time, limit int) ([]document.Artifact, error) {
	r.mu.RLock()
	var out []document.Artifact
	for _, a := range r.artifacts {
		if a.IsExpired(now) {
			out = append(out, a)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		}
		return out[i].Handle < out[j].Handle
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// IncrementDownloadCount adds one download
func (r *InMemoryArtifactRepository) IncrementDownloadCount(_ context.Context, handle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.artifacts[handle]
	if !ok {
		return shared.ErrNotFound
	}
	a.DownloadCount++
	r.artifacts[handle] = a
	return nil
}

// Delete removes the metadata and tombstones the handle
func (r *InMemoryArtifactRepository) Delete(_ context.Context, handle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.artifacts[handle]; !ok {
		return shared.ErrNotFound
	}
	delete(r.artifacts, handle)
	r.tombstones[handle] = struct{}{}
	return nil
}

// Count returns the number of live artifacts
func (r *InMemoryArtifactRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.artifacts)
}

// Ensure InMemoryArtifactRepository implements document.ArtifactRepository
var _ document.ArtifactRepository = (*InMemoryArtifactRepository)(nil)
