package document

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

// HandleBytes is the entropy of an artifact handle
const HandleBytes = 32

// Artifact is a rendered document addressed by an opaque handle
type Artifact struct {
	Handle        string
	OwnerID       string
	TemplateID    string
	Format        Format
	BytesRef      string
	ContentType   string
	SizeBytes     int64
	DownloadCount int64
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// IsExpired returns true once now has reached ExpiresAt
func (a *Artifact) IsExpired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// OwnedBy returns true if userID owns the artifact
func (a *Artifact) OwnedBy(userID string) bool {
	return userID != "" && a.OwnerID == userID
}

// Filename returns the download filename for the artifact
func (a *Artifact) Filename() string {
	short := a.Handle
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s-%s.%s", a.TemplateID, short, a.Format.Extension())
}

// NewHandle returns a URL-safe handle carrying HandleBytes of randomness
func NewHandle() (string, error) {
	b := make([]byte, HandleBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate handle: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Accessor identifies who is reading or deleting an artifact
type Accessor struct {
	UserID string
	Admin  bool
}

// CanAccess reports whether the accessor may read or delete the artifact
func (a Accessor) CanAccess(artifact *Artifact) bool {
	return a.Admin || artifact.OwnedBy(a.UserID)
}
