package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/domain/shared"
	"github.com/docgen/backend/internal/infrastructure/persistence/models"
)

// GormArtifactRepository implements document.ArtifactRepository using GORM.
// The database must be opened with TranslateError so duplicate handles
// surface as gorm.ErrDuplicatedKey.
type GormArtifactRepository struct {
	db *gorm.DB
}

// NewGormArtifactRepository creates a new GormArtifactRepository
func NewGormArtifactRepository(db *gorm.DB) *GormArtifactRepository {
	return &GormArtifactRepository{db: db}
}

// Create inserts artifact metadata. A handle that exists, even as a
// tombstone, is rejected with shared.ErrAlreadyExists.
func (r *GormArtifactRepository) Create(ctx context.Context, a *document.Artifact) error {
	err := r.db.WithContext(ctx).Create(models.ArtifactModelFromDomain(a)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.ErrAlreadyExists
	}
	return err
}

// FindByHandle finds live artifact metadata by handle
func (r *GormArtifactRepository) FindByHandle(ctx context.Context, handle string) (*document.Artifact, error) {
	var model models.ArtifactModel
	if err := r.db.WithContext(ctx).Where("handle = ?", handle).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOwner lists the owner's unexpired artifacts, newest first
func (r *GormArtifactRepository) FindByOwner(ctx context.Context, ownerID string, now time.Time) ([]document.Artifact, error) {
	var rows []models.ArtifactModel
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND expires_at > ?", ownerID, now.UTC()).
		Order("created_at DESC").
		Order("handle").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toArtifacts(rows), nil
}

// FindExpired returns up to limit expired artifacts, oldest expiry first
func (r *GormArtifactRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]document.Artifact, error) {
	var rows []models.ArtifactModel
	err := r.db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Order("expires_at").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toArtifacts(rows), nil
}

// IncrementDownloadCount adds one download in a single UPDATE
func (r *GormArtifactRepository) IncrementDownloadCount(ctx context.Context, handle string) error {
	result := r.db.WithContext(ctx).
		Model(&models.ArtifactModel{}).
		Where("handle = ?", handle).
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete tombstones the artifact
func (r *GormArtifactRepository) Delete(ctx context.Context, handle string) error {
	result := r.db.WithContext(ctx).Where("handle = ?", handle).Delete(&models.ArtifactModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func toArtifacts(rows []models.ArtifactModel) []document.Artifact {
	out := make([]document.Artifact, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormArtifactRepository implements document.ArtifactRepository
var _ document.ArtifactRepository = (*GormArtifactRepository)(nil)
