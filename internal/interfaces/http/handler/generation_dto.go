package handler

import (
	"time"

	"github.com/docgen/backend/internal/application/generation"
	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/interfaces/http/dto"
)

// GenerateRequest is the body of POST /documents
type GenerateRequest struct {
	TemplateID string         `json:"template_id" binding:"required,max=100"`
	Format     string         `json:"format" binding:"required,max=10"`
	Fields     map[string]any `json:"fields"`
	// TTLSeconds overrides the artifact lifetime; the store caps it
	TTLSeconds int64 `json:"ttl_seconds" binding:"omitempty,min=1"`
}

func (r *GenerateRequest) toCommand() generation.GenerateRequest {
	return generation.GenerateRequest{
		TemplateID: r.TemplateID,
		Format:     document.Format(r.Format),
		Fields:     r.Fields,
		TTL:        time.Duration(r.TTLSeconds) * time.Second,
	}
}

// BatchRequest is the body of POST /documents/batch
type BatchRequest struct {
	TemplateID     string         `json:"template_id" binding:"required,max=100"`
	Format         string         `json:"format" binding:"required,max=10"`
	Fields         map[string]any `json:"fields"`
	RecipientField string         `json:"recipient_field" binding:"omitempty,max=100"`
	Recipients     []string       `json:"recipients" binding:"required,min=1,dive,max=200"`
	TTLSeconds     int64          `json:"ttl_seconds" binding:"omitempty,min=1"`
}

func (r *BatchRequest) toCommand() generation.BatchRequest {
	return generation.BatchRequest{
		TemplateID:     r.TemplateID,
		Format:         document.Format(r.Format),
		Fields:         r.Fields,
		RecipientField: r.RecipientField,
		Recipients:     r.Recipients,
		TTL:            time.Duration(r.TTLSeconds) * time.Second,
	}
}

// BatchItemResponse is one recipient's outcome. Failed items carry the
// same error body a single generation would have returned.
type BatchItemResponse struct {
	Recipient string                     `json:"recipient"`
	Status    int                        `json:"status"`
	Document  *generation.GenerateResult `json:"document,omitempty"`
	Error     *dto.ErrorInfo             `json:"error,omitempty"`
}

// BatchResponse summarizes a batch
type BatchResponse struct {
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Items     []BatchItemResponse `json:"items"`
}

// ListTemplatesQuery filters the catalogue
type ListTemplatesQuery struct {
	Category string `form:"category" binding:"omitempty,max=30"`
}
