package generation

import (
	"fmt"
	"time"

	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/domain/quota"
	"github.com/docgen/backend/internal/domain/shared"
)

// Requester is the trusted identity supplied by the auth layer
type Requester struct {
	UserID string
	Tier   quota.Tier
	Admin  bool
}

func (r Requester) validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: requester id is required", shared.ErrInvalidInput)
	}
	if r.Tier != "" && !r.Tier.IsValid() {
		return fmt.Errorf("%w: unknown tier %q", shared.ErrInvalidInput, r.Tier)
	}
	return nil
}

func (r Requester) tier() quota.Tier {
	if r.Tier == "" {
		return quota.TierFree
	}
	return r.Tier
}

func (r Requester) accessor() document.Accessor {
	return document.Accessor{UserID: r.UserID, Admin: r.Admin}
}

// GenerateRequest asks for one document
type GenerateRequest struct {
	TemplateID string
	Format     document.Format
	Fields     map[string]any
	// TTL overrides the artifact lifetime; zero uses the store default
	TTL time.Duration
}

// GenerateResult describes a stored artifact
type GenerateResult struct {
	Handle      string          `json:"handle"`
	TemplateID  string          `json:"template_id"`
	Format      document.Format `json:"format"`
	ContentType string          `json:"content_type"`
	SizeBytes   int64           `json:"size_bytes"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

func toResult(a *document.Artifact) *GenerateResult {
	return &GenerateResult{
		Handle:      a.Handle,
		TemplateID:  a.TemplateID,
		Format:      a.Format,
		ContentType: a.ContentType,
		SizeBytes:   a.SizeBytes,
		CreatedAt:   a.CreatedAt,
		ExpiresAt:   a.ExpiresAt,
	}
}

// BatchRequest asks for one certificate per recipient. Fields are shared by
// every certificate; the recipient name is written to RecipientField.
type BatchRequest struct {
	TemplateID     string
	Format         document.Format
	Fields         map[string]any
	RecipientField string
	Recipients     []string
	TTL            time.Duration
}

// BatchItem is the outcome of one recipient. Exactly one of Result and Err
// is set.
type BatchItem struct {
	Recipient string
	Result    *GenerateResult
	Err       error
}

// BatchResult lists outcomes in recipient order
type BatchResult struct {
	Items     []BatchItem
	Succeeded int
	Failed    int
}

// FetchResult is an artifact and its bytes
type FetchResult struct {
	Artifact *document.Artifact
	Data     []byte
}

// ArtifactSummary is a listing entry
type ArtifactSummary struct {
	Handle        string          `json:"handle"`
	TemplateID    string          `json:"template_id"`
	Format        document.Format `json:"format"`
	Filename      string          `json:"filename"`
	SizeBytes     int64           `json:"size_bytes"`
	DownloadCount int64           `json:"download_count"`
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

// TemplateSummary is a catalogue entry. Locked is set for premium templates
// the requester may not use.
type TemplateSummary struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Category    document.Category    `json:"category"`
	Formats     []document.Format    `json:"formats"`
	Fields      []document.FieldSpec `json:"fields"`
	Premium     bool                 `json:"premium"`
	Locked      bool                 `json:"locked"`
	Version     int                  `json:"version"`
}

// UsageSummary is the requester's quota state in the current period
type UsageSummary struct {
	UserID    string          `json:"user_id"`
	Tier      quota.Tier      `json:"tier"`
	PeriodKey quota.PeriodKey `json:"period"`
	Used      int64           `json:"used"`
	Limit     int64           `json:"limit"`
	Remaining int64           `json:"remaining"`
	Unlimited bool            `json:"unlimited"`
	ResetsAt  time.Time       `json:"resets_at"`
}
