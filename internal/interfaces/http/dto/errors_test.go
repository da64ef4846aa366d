package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeUnknown, http.StatusInternalServerError},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeRender, http.StatusInternalServerError},
		{ErrCodeStorage, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusUnprocessableEntity},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeExpired, http.StatusGone},
		{ErrCodeAlreadyExists, http.StatusConflict},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeInvalidJSON, http.StatusBadRequest},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeCanceled, http.StatusRequestTimeout},
		{ErrCodeQuotaExceeded, http.StatusTooManyRequests},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"NOT_FOUND", ErrCodeNotFound},
		{"FORBIDDEN", ErrCodeForbidden},
		{"EXPIRED", ErrCodeExpired},
		{"QUOTA_EXCEEDED", ErrCodeQuotaExceeded},
		{"VALIDATION_FAILED", ErrCodeValidation},
		{"RENDER_FAILED", ErrCodeRender},
		{"STORAGE_FAILED", ErrCodeStorage},
		{"INVALID_INPUT", ErrCodeInvalidInput},
		// API codes pass through unchanged
		{ErrCodeNotFound, ErrCodeNotFound},
		{"CUSTOM_ERROR", "CUSTOM_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeErrorCode(tt.input))
		})
	}
}

func TestErrorCodesHaveStatus(t *testing.T) {
	for _, apiCode := range domainErrorCodes {
		_, ok := ErrorCodeHTTPStatus[apiCode]
		assert.True(t, ok, "%s should be in ErrorCodeHTTPStatus", apiCode)
	}
	for code := range ErrorCodeHTTPStatus {
		assert.Contains(t, code, "ERR_")
	}
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "recipientName", Reason: "missing"},
		{Field: "items[1].quantity", Reason: "out_of_range", Message: "must be at least 1"},
	}

	resp := NewValidationErrorResponse("Validation failed", "req-789", details)

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-789", resp.Error.RequestID)
	require.Len(t, resp.Error.Violations, 2)
	assert.Equal(t, "items[1].quantity", resp.Error.Violations[1].Field)
}

func TestErrorResponseJSON(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeRender, "Document generation failed", "req-test-123")
	resp.Error.Reference = "ref-1"

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, false, raw["success"])
	assert.NotContains(t, raw, "data")

	errObj := raw["error"].(map[string]any)
	assert.Equal(t, "ERR_RENDER", errObj["code"])
	assert.Equal(t, "req-test-123", errObj["request_id"])
	assert.Equal(t, "ref-1", errObj["reference"])
	assert.NotContains(t, errObj, "violations")
	assert.NotContains(t, errObj, "quota")
}

func TestNewListResponse(t *testing.T) {
	resp := NewListResponse([]string{"a", "b"}, 2)

	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(2), resp.Meta.Total)
}
