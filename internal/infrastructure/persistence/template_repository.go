package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/domain/shared"
	"github.com/docgen/backend/internal/infrastructure/persistence/models"
)

// GormTemplateRepository implements document.TemplateRepository using GORM
type GormTemplateRepository struct {
	db *gorm.DB
}

// NewGormTemplateRepository creates a new GormTemplateRepository
func NewGormTemplateRepository(db *gorm.DB) *GormTemplateRepository {
	return &GormTemplateRepository{db: db}
}

// FindByID finds a template definition by id
func (r *GormTemplateRepository) FindByID(ctx context.Context, id string) (*document.TemplateDefinition, error) {
	var model models.TemplateModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindAll returns every stored definition ordered by id. Rows that cannot be
// decoded are skipped with their error joined into the result so callers can
// still use the rest.
func (r *GormTemplateRepository) FindAll(ctx context.Context) ([]document.TemplateDefinition, error) {
	var rows []models.TemplateModel
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	defs := make([]document.TemplateDefinition, 0, len(rows))
	var errs []error
	for i := range rows {
		def, err := rows[i].ToDomain()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defs = append(defs, *def)
	}
	return defs, errors.Join(errs...)
}

// Save inserts or replaces a definition
func (r *GormTemplateRepository) Save(ctx context.Context, t *document.TemplateDefinition) error {
	model, err := models.TemplateModelFromDomain(t)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	model.CreatedAt = now
	model.UpdatedAt = now
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "category", "premium", "status", "version", "definition", "updated_at"}),
		}).
		Create(model).Error
}

// SetStatus activates or deactivates a template
func (r *GormTemplateRepository) SetStatus(ctx context.Context, id string, status document.TemplateStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: invalid template status %q", shared.ErrInvalidInput, status)
	}
	result := r.db.WithContext(ctx).
		Model(&models.TemplateModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormTemplateRepository implements document.TemplateRepository
var _ document.TemplateRepository = (*GormTemplateRepository)(nil)
