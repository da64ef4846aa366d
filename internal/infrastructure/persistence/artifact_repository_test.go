package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/domain/shared"
)

var artifactEpoch = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func newArtifact(handle, owner string, created time.Time, ttl time.Duration) *document.Artifact {
	return &document.Artifact{
		Handle:      handle,
		OwnerID:     owner,
		TemplateID:  "invoice-basic",
		Format:      document.FormatPDF,
		BytesRef:    "2024/05/" + handle + ".pdf",
		ContentType: "application/pdf",
		SizeBytes:   1024,
		CreatedAt:   created,
		ExpiresAt:   created.Add(ttl),
	}
}

func TestGormArtifactRepository_CreateAndFind(t *testing.T) {
	repo := NewGormArtifactRepository(newSQLiteDB(t))
	ctx := context.Background()

	a := newArtifact("h1", "alice", artifactEpoch, time.Hour)
	require.NoError(t, repo.Create(ctx, a))

	got, err := repo.FindByHandle(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, a.OwnerID, got.OwnerID)
	assert.Equal(t, a.Format, got.Format)
	assert.Equal(t, a.BytesRef, got.BytesRef)
	assert.Equal(t, a.SizeBytes, got.SizeBytes)
	assert.True(t, a.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, a.ExpiresAt.Equal(got.ExpiresAt))

	_, err = repo.FindByHandle(ctx, "nope")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	assert.ErrorIs(t, repo.Create(ctx, a), shared.ErrAlreadyExists)
}

func TestGormArtifactRepository_DeleteLeavesTombstone(t *testing.T) {
	repo := NewGormArtifactRepository(newSQLiteDB(t))
	ctx := context.Background()

	a := newArtifact("h1", "alice", artifactEpoch, time.Hour)
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Delete(ctx, "h1"))

	_, err := repo.FindByHandle(ctx, "h1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "h1"), shared.ErrNotFound)
	assert.ErrorIs(t, repo.Create(ctx, a), shared.ErrAlreadyExists, "a deleted handle is never reissued")
	assert.ErrorIs(t, repo.IncrementDownloadCount(ctx, "h1"), shared.ErrNotFound)
}

func TestGormArtifactRepository_FindByOwner(t *testing.T) {
	repo := NewGormArtifactRepository(newSQLiteDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newArtifact("old", "alice", artifactEpoch, 24*time.Hour)))
	require.NoError(t, repo.Create(ctx, newArtifact("new", "alice", artifactEpoch.Add(time.Hour), 24*time.Hour)))
	require.NoError(t, repo.Create(ctx, newArtifact("gone", "alice", artifactEpoch, time.Minute)))
	require.NoError(t, repo.Create(ctx, newArtifact("bob", "bob", artifactEpoch, 24*time.Hour)))

	list, err := repo.FindByOwner(ctx, "alice", artifactEpoch.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].Handle)
	assert.Equal(t, "old", list[1].Handle)
}

func TestGormArtifactRepository_FindExpired(t *testing.T) {
	repo := NewGormArtifactRepository(newSQLiteDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newArtifact("a", "alice", artifactEpoch, time.Minute)))
	require.NoError(t, repo.Create(ctx, newArtifact("b", "alice", artifactEpoch, 2*time.Minute)))
	require.NoError(t, repo.Create(ctx, newArtifact("c", "alice", artifactEpoch, time.Hour)))

	now := artifactEpoch.Add(2 * time.Minute)
	expired, err := repo.FindExpired(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 2, "expiry is inclusive")
	assert.Equal(t, "a", expired[0].Handle)
	assert.Equal(t, "b", expired[1].Handle)

	limited, err := repo.FindExpired(ctx, now, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGormArtifactRepository_IncrementDownloadCount(t *testing.T) {
	repo := NewGormArtifactRepository(newSQLiteDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newArtifact("h1", "alice", artifactEpoch, time.Hour)))
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.IncrementDownloadCount(ctx, "h1"))
	}
	got, err := repo.FindByHandle(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.DownloadCount)
}

func TestGormArtifactRepository_WithArtifactStore(t *testing.T) {
	repo := NewGormArtifactRepository(newSQLiteDB(t))
	blobs := newMapBlobs()
	now := artifactEpoch
	store := document.NewArtifactStore(repo, blobs, document.ArtifactStoreConfig{DefaultTTL: time.Hour},
		document.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	a, err := store.Put(ctx, document.PutArtifactInput{OwnerID: "alice", TemplateID: "qr-code", Format: document.FormatPNG, Data: []byte("png")})
	require.NoError(t, err)

	_, data, err := store.Get(ctx, a.Handle, document.Accessor{UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	_, _, err = store.Get(ctx, a.Handle, document.Accessor{UserID: "mallory"})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	now = now.Add(time.Hour)
	_, _, err = store.Get(ctx, a.Handle, document.Accessor{UserID: "alice"})
	assert.ErrorIs(t, err, shared.ErrExpired)

	removed, err := store.SweepExpired(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Empty(t, blobs.data)
	_, _, err = store.Get(ctx, a.Handle, document.Accessor{UserID: "alice"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

type mapBlobs struct {
	data map[string][]byte
}

func newMapBlobs() *mapBlobs {
	return &mapBlobs{data: map[string][]byte{}}
}

func (b *mapBlobs) Put(_ context.Context, key string, data []byte, _ string) error {
	b.data[key] = data
	return nil
}

func (b *mapBlobs) Get(_ context.Context, key string) ([]byte, error) {
	d, ok := b.data[key]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return d, nil
}

func (b *mapBlobs) Delete(_ context.Context, key string) error {
	delete(b.data, key)
	return nil
}
