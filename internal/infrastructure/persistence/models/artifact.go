package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/docgen/backend/internal/domain/document"
)

// ArtifactModel is the GORM model for the artifacts table. Deleted rows stay
// behind as soft-deleted tombstones so their handles are never issued again.
type ArtifactModel struct {
	Handle        string         `gorm:"type:varchar(64);primaryKey"`
	OwnerID       string         `gorm:"type:varchar(128);not null;index:idx_artifacts_owner,priority:1"`
	TemplateID    string         `gorm:"type:varchar(64);not null"`
	Format        string         `gorm:"type:varchar(10);not null"`
	BytesRef      string         `gorm:"type:varchar(255);not null"`
	ContentType   string         `gorm:"type:varchar(100);not null"`
	SizeBytes     int64          `gorm:"not null"`
	DownloadCount int64          `gorm:"not null;default:0"`
	CreatedAt     time.Time      `gorm:"not null;index:idx_artifacts_owner,priority:2"`
	ExpiresAt     time.Time      `gorm:"not null;index"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for ArtifactModel
func (ArtifactModel) TableName() string {
	return "artifacts"
}

// ToDomain converts ArtifactModel to a domain Artifact
func (m *ArtifactModel) ToDomain() *document.Artifact {
	return &document.Artifact{
		Handle:        m.Handle,
		OwnerID:       m.OwnerID,
		TemplateID:    m.TemplateID,
		Format:        document.Format(m.Format),
		BytesRef:      m.BytesRef,
		ContentType:   m.ContentType,
		SizeBytes:     m.SizeBytes,
		DownloadCount: m.DownloadCount,
		CreatedAt:     m.CreatedAt.UTC(),
		ExpiresAt:     m.ExpiresAt.UTC(),
	}
}

// ArtifactModelFromDomain creates an ArtifactModel from a domain Artifact
func ArtifactModelFromDomain(a *document.Artifact) *ArtifactModel {
	return &ArtifactModel{
		Handle:        a.Handle,
		OwnerID:       a.OwnerID,
		TemplateID:    a.TemplateID,
		Format:        string(a.Format),
		BytesRef:      a.BytesRef,
		ContentType:   a.ContentType,
		SizeBytes:     a.SizeBytes,
		DownloadCount: a.DownloadCount,
		CreatedAt:     a.CreatedAt,
		ExpiresAt:     a.ExpiresAt,
	}
}
