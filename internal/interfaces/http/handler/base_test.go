package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgen/backend/internal/application/generation"
	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/domain/quota"
	"github.com/docgen/backend/internal/domain/shared"
	"github.com/docgen/backend/internal/interfaces/http/dto"
	"github.com/docgen/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestGetRequestID(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*gin.Context)
		expectedID string
	}{
		{
			name:       "from context",
			setup:      func(c *gin.Context) { c.Set("request_id", "ctx-request-id") },
			expectedID: "ctx-request-id",
		},
		{
			name: "from header when context empty",
			setup: func(c *gin.Context) {
				c.Request.Header.Set(middleware.RequestIDHeader, "header-request-id")
			},
			expectedID: "header-request-id",
		},
		{
			name:       "empty when not set",
			setup:      func(c *gin.Context) {},
			expectedID: "",
		},
		{
			name: "context takes precedence over header",
			setup: func(c *gin.Context) {
				c.Set("request_id", "ctx-id")
				c.Request.Header.Set(middleware.RequestIDHeader, "header-id")
			},
			expectedID: "ctx-id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext()
			tt.setup(c)
			assert.Equal(t, tt.expectedID, getRequestID(c))
		})
	}
}

func TestBaseHandler_Responses(t *testing.T) {
	h := &BaseHandler{}

	t.Run("success", func(t *testing.T) {
		c, w := newTestContext()
		h.Success(c, gin.H{"handle": "abc"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true,"data":{"handle":"abc"}}`, w.Body.String())
	})

	t.Run("list carries total", func(t *testing.T) {
		c, w := newTestContext()
		h.SuccessList(c, []string{"a", "b"}, 2)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true,"data":["a","b"],"meta":{"total":2}}`, w.Body.String())
	})

	t.Run("created", func(t *testing.T) {
		c, w := newTestContext()
		h.Created(c, gin.H{"handle": "abc"})
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("no content", func(t *testing.T) {
		r := gin.New()
		r.DELETE("/x", func(c *gin.Context) { h.NoContent(c) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/x", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("bad request", func(t *testing.T) {
		c, w := newTestContext()
		c.Set("request_id", "req-9")
		h.BadRequest(c, "nope")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t,
			`{"success":false,"error":{"code":"ERR_BAD_REQUEST","message":"nope","request_id":"req-9"}}`,
			w.Body.String())
	})
}

func TestBaseHandler_Requester(t *testing.T) {
	h := &BaseHandler{}

	t.Run("missing", func(t *testing.T) {
		c, w := newTestContext()
		_, ok := h.requester(c)
		assert.False(t, ok)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("present", func(t *testing.T) {
		c, _ := newTestContext()
		c.Set(middleware.RequesterKey, generation.Requester{UserID: "alice", Tier: quota.TierPremium})
		who, ok := h.requester(c)
		require.True(t, ok)
		assert.Equal(t, "alice", who.UserID)
		assert.False(t, c.IsAborted())
	})
}

func TestBaseHandler_HandleError(t *testing.T) {
	renderCause := errors.New("chromedp: browser crashed at /tmp/xyz")

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
		check       func(t *testing.T, info *dto.ErrorInfo)
	}{
		{
			name:       "wrapped not found",
			err:        fmt.Errorf("template invoice-x: %w", shared.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   dto.ErrCodeNotFound,
		},
		{
			name:       "forbidden",
			err:        shared.ErrForbidden,
			wantStatus: http.StatusForbidden,
			wantCode:   dto.ErrCodeForbidden,
		},
		{
			name:       "expired",
			err:        shared.ErrExpired,
			wantStatus: http.StatusGone,
			wantCode:   dto.ErrCodeExpired,
		},
		{
			name:       "invalid input",
			err:        fmt.Errorf("%w: unsupported format %q", shared.ErrInvalidInput, "gif"),
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeInvalidInput,
		},
		{
			name:       "quota exceeded",
			err:        &quota.ExceededError{UserID: "alice", PeriodKey: "2024-05", Used: 5, Limit: 5},
			wantStatus: http.StatusTooManyRequests,
			wantCode:   dto.ErrCodeQuotaExceeded,
			check: func(t *testing.T, info *dto.ErrorInfo) {
				require.NotNil(t, info.Quota)
				assert.Equal(t, int64(5), info.Quota.Used)
			},
		},
		{
			name: "validation",
			err: document.NewValidationError(document.FieldViolation{
				Field: "email", Reason: document.ReasonInvalidFormat, Message: "not an email address",
			}),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   dto.ErrCodeValidation,
			check: func(t *testing.T, info *dto.ErrorInfo) {
				require.Len(t, info.Violations, 1)
				assert.Equal(t, dto.ValidationDetail{
					Field: "email", Reason: "invalid_format", Message: "not an email address",
				}, info.Violations[0])
			},
		},
		{
			name:        "render fault",
			err:         fmt.Errorf("generate: %w", &generation.FaultError{Kind: generation.FaultRender, Reference: "ref-1"}),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    dto.ErrCodeRender,
			wantMessage: "document generation failed (reference ref-1)",
			check: func(t *testing.T, info *dto.ErrorInfo) {
				assert.Equal(t, "ref-1", info.Reference)
			},
		},
		{
			name:        "bare render sentinel hides detail",
			err:         fmt.Errorf("%w: %w", shared.ErrRender, renderCause),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    dto.ErrCodeRender,
			wantMessage: shared.ErrRender.Message,
		},
		{
			name:       "cancelled",
			err:        fmt.Errorf("render: %w", context.Canceled),
			wantStatus: http.StatusRequestTimeout,
			wantCode:   dto.ErrCodeCanceled,
		},
		{
			name:        "unknown",
			err:         errors.New("boom"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    dto.ErrCodeInternal,
			wantMessage: "An unexpected error occurred",
		},
	}

	h := &BaseHandler{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext()
			c.Set("request_id", "req-42")

			h.HandleError(c, tt.err)

			require.Equal(t, tt.wantStatus, w.Code)
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, "req-42", resp.Error.RequestID)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, resp.Error.Message)
			}
			assert.NotContains(t, resp.Error.Message, "chromedp")
			if tt.check != nil {
				tt.check(t, resp.Error)
			}
			assert.Len(t, c.Errors, 1)
		})
	}
}

func TestBaseHandler_HandleErrorNil(t *testing.T) {
	c, w := newTestContext()
	(&BaseHandler{}).HandleError(c, nil)
	assert.Empty(t, w.Body.String())
	assert.Empty(t, c.Errors)
}
