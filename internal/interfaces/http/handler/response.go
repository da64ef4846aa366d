package handler

import "github.com/docgen/backend/internal/interfaces/http/dto"

// APIResponse is the typed shape of dto.Response, used by clients and tests
// to decode a known data payload
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}
