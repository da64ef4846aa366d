package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/docgen/backend/internal/domain/document"
)

// TemplateModel is the GORM model for the templates table. The full
// definition is kept as JSON; the indexed columns mirror the parts that are
// queried or changed on their own.
type TemplateModel struct {
	ID         string    `gorm:"type:varchar(64);primaryKey"`
	Name       string    `gorm:"type:varchar(200);not null"`
	Category   string    `gorm:"type:varchar(20);not null;index"`
	Premium    bool      `gorm:"not null;default:false"`
	Status     string    `gorm:"type:varchar(20);not null;default:'active'"`
	Version    int       `gorm:"not null;default:1"`
	Definition string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for TemplateModel
func (TemplateModel) TableName() string {
	return "templates"
}

// ToDomain decodes the stored definition. Status and version come from
// their columns.
func (m *TemplateModel) ToDomain() (*document.TemplateDefinition, error) {
	var def document.TemplateDefinition
	if err := json.Unmarshal([]byte(m.Definition), &def); err != nil {
		return nil, fmt.Errorf("decode template %s: %w", m.ID, err)
	}
	def.ID = m.ID
	def.Status = document.TemplateStatus(m.Status)
	def.Version = m.Version
	return &def, nil
}

// TemplateModelFromDomain creates a TemplateModel from a definition
func TemplateModelFromDomain(def *document.TemplateDefinition) (*TemplateModel, error) {
	body, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("encode template %s: %w", def.ID, err)
	}
	status := def.Status
	if status == "" {
		status = document.TemplateStatusActive
	}
	version := def.Version
	if version <= 0 {
		version = 1
	}
	return &TemplateModel{
		ID:         def.ID,
		Name:       def.DisplayName(),
		Category:   string(def.Category),
		Premium:    def.Premium,
		Status:     string(status),
		Version:    version,
		Definition: string(body),
	}, nil
}
