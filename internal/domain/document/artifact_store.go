package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docgen/backend/internal/domain/shared"
)

const (
	defaultArtifactTTL = 30 * 24 * time.Hour
	maxHandleAttempts  = 3
)

// ArtifactStoreConfig bounds artifact lifetimes
type ArtifactStoreConfig struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration
}

// ArtifactStore persists rendered bytes under unguessable handles and
// enforces ownership and expiry on every read and delete.
type ArtifactStore struct {
	repo      ArtifactRepository
	blobs     BlobStore
	config    ArtifactStoreConfig
	newHandle func() (string, error)
	now       func() time.Time
}

// ArtifactStoreOption configures an ArtifactStore
type ArtifactStoreOption func(*ArtifactStore)

// WithClock sets the time source
func WithClock(now func() time.Time) ArtifactStoreOption {
	return func(s *ArtifactStore) {
		s.now = now
	}
}

// WithHandleGenerator replaces the handle generator
func WithHandleGenerator(gen func() (string, error)) ArtifactStoreOption {
	return func(s *ArtifactStore) {
		s.newHandle = gen
	}
}

// NewArtifactStore creates a new ArtifactStore
func NewArtifactStore(repo ArtifactRepository, blobs BlobStore, config ArtifactStoreConfig, opts ...ArtifactStoreOption) *ArtifactStore {
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = defaultArtifactTTL
	}
	if config.MaxTTL < config.DefaultTTL {
		config.MaxTTL = config.DefaultTTL
	}
	s := &ArtifactStore{
		repo:      repo,
		blobs:     blobs,
		config:    config,
		newHandle: NewHandle,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PutArtifactInput describes bytes to persist
type PutArtifactInput struct {
	OwnerID    string
	TemplateID string
	Format     Format
	Data       []byte
	TTL        time.Duration
}

// Put stores bytes and their metadata and returns the new artifact. A zero
// TTL uses the default; TTLs beyond the maximum are clamped.
func (s *ArtifactStore) Put(ctx context.Context, in PutArtifactInput) (*Artifact, error) {
	if in.OwnerID == "" {
		return nil, fmt.Errorf("%w: artifact owner is required", shared.ErrInvalidInput)
	}
	ttl := in.TTL
	if ttl <= 0 {
		ttl = s.config.DefaultTTL
	}
	if ttl > s.config.MaxTTL {
		ttl = s.config.MaxTTL
	}
	now := s.now().UTC()

	for attempt := 1; ; attempt++ {
		handle, err := s.newHandle()
		if err != nil {
			return nil, NewStorageError("generate handle", err)
		}
		a := &Artifact{
			Handle:      handle,
			OwnerID:     in.OwnerID,
			TemplateID:  in.TemplateID,
			Format:      in.Format,
			BytesRef:    fmt.Sprintf("%s/%s.%s", now.Format("2006/01"), handle, in.Format.Extension()),
			ContentType: in.Format.ContentType(),
			SizeBytes:   int64(len(in.Data)),
			CreatedAt:   now,
			ExpiresAt:   now.Add(ttl),
		}
		if err := s.blobs.Put(ctx, a.BytesRef, in.Data, a.ContentType); err != nil {
			return nil, NewStorageError("write bytes", err)
		}
		err = s.repo.Create(ctx, a)
		if err == nil {
			return a, nil
		}
		// Metadata failed: the bytes must not outlive it.
		_ = s.blobs.Delete(context.WithoutCancel(ctx), a.BytesRef)
		if errors.Is(err, shared.ErrAlreadyExists) && attempt < maxHandleAttempts {
			continue
		}
		return nil, NewStorageError("write metadata", err)
	}
}

// Get returns the artifact and its bytes. Ownership is checked before
// expiry so that other users learn nothing about an artifact's state.
func (s *ArtifactStore) Get(ctx context.Context, handle string, who Accessor) (*Artifact, []byte, error) {
	a, err := s.authorize(ctx, handle, who)
	if err != nil {
		return nil, nil, err
	}
	if a.IsExpired(s.now()) {
		return nil, nil, shared.ErrExpired
	}
	data, err := s.blobs.Get(ctx, a.BytesRef)
	if err != nil {
		return nil, nil, NewStorageError("read bytes", err)
	}
	// Download counting is best effort; a failed increment never blocks a read.
	if err := s.repo.IncrementDownloadCount(ctx, handle); err == nil {
		a.DownloadCount++
	}
	return a, data, nil
}

// Delete removes an artifact. Metadata goes first so the handle stops
// resolving even if removing the bytes fails.
func (s *ArtifactStore) Delete(ctx context.Context, handle string, who Accessor) error {
	a, err := s.authorize(ctx, handle, who)
	if err != nil {
		return err
	}
	return s.remove(ctx, a)
}

// ListByOwner returns the owner's live artifacts, newest first
func (s *ArtifactStore) ListByOwner(ctx context.Context, ownerID string) ([]Artifact, error) {
	list, err := s.repo.FindByOwner(ctx, ownerID, s.now())
	if err != nil {
		return nil, NewStorageError("list artifacts", err)
	}
	return list, nil
}

// SweepExpired deletes up to batch expired artifacts and returns how many
// were removed
func (s *ArtifactStore) SweepExpired(ctx context.Context, batch int) (int, error) {
	expired, err := s.repo.FindExpired(ctx, s.now(), batch)
	if err != nil {
		return 0, NewStorageError("find expired", err)
	}
	removed := 0
	var errs []error
	for i := range expired {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.remove(ctx, &expired[i]); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func (s *ArtifactStore) authorize(ctx context.Context, handle string, who Accessor) (*Artifact, error) {
	if handle == "" {
		return nil, shared.ErrNotFound
	}
	a, err := s.repo.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, NewStorageError("read metadata", err)
	}
	if !who.CanAccess(a) {
		return nil, shared.ErrForbidden
	}
	return a, nil
}

func (s *ArtifactStore) remove(ctx context.Context, a *Artifact) error {
	if err := s.repo.Delete(ctx, a.Handle); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.ErrNotFound
		}
		return NewStorageError("delete metadata", err)
	}
	if err := s.blobs.Delete(ctx, a.BytesRef); err != nil {
		return NewStorageError("delete bytes", err)
	}
	return nil
}
