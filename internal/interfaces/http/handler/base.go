package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docgen/backend/internal/application/generation"
	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/domain/quota"
	"github.com/docgen/backend/internal/domain/shared"
	"github.com/docgen/backend/internal/interfaces/http/dto"
	"github.com/docgen/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// requester returns the identity set by the requester middleware. A
// missing identity answers 401.
func (h *BaseHandler) requester(c *gin.Context) (generation.Requester, bool) {
	who, ok := middleware.GetRequester(c)
	if !ok {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
	}
	return who, ok
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessList sends a list with its item count
func (h *BaseHandler) SuccessList(c *gin.Context, data any, total int) {
	c.JSON(http.StatusOK, dto.NewListResponse(data, total))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// HandleError converts an orchestrator error into an HTTP response.
// Render and storage faults only expose their reference; the cause has
// already been logged under it.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	requestID := getRequestID(c)
	if resp, status, ok := errorResponse(err, requestID); ok {
		c.JSON(status, resp)
		return
	}

	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
	))
}

// errorResponse builds the body and status of a known error kind
func errorResponse(err error, requestID string) (dto.Response, int, bool) {
	var fault *generation.FaultError
	if errors.As(err, &fault) {
		code := dto.ErrCodeRender
		if fault.Kind == generation.FaultStorage {
			code = dto.ErrCodeStorage
		}
		resp := dto.NewErrorResponseWithRequestID(code, fault.Error(), requestID)
		resp.Error.Reference = fault.Reference
		return resp, http.StatusInternalServerError, true
	}

	var validation *document.ValidationError
	if errors.As(err, &validation) {
		details := make([]dto.ValidationDetail, len(validation.Violations))
		for i, v := range validation.Violations {
			details[i] = dto.ValidationDetail{Field: v.Field, Reason: string(v.Reason), Message: v.Message}
		}
		return dto.NewValidationErrorResponse("One or more fields are invalid", requestID, details),
			http.StatusUnprocessableEntity, true
	}

	var exceeded *quota.ExceededError
	if errors.As(err, &exceeded) {
		resp := dto.NewErrorResponseWithRequestID(dto.ErrCodeQuotaExceeded,
			"Document quota for this period has been used up", requestID)
		resp.Error.Quota = &dto.QuotaDetail{
			Used:   exceeded.Used,
			Limit:  exceeded.Limit,
			Period: string(exceeded.PeriodKey),
		}
		return resp, http.StatusTooManyRequests, true
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return dto.NewErrorResponseWithRequestID(dto.ErrCodeCanceled, "Request was cancelled", requestID),
			http.StatusRequestTimeout, true
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		// Render and storage sentinels without a fault carry no reference
		// and may wrap internal detail
		message := err.Error()
		if code == dto.ErrCodeRender || code == dto.ErrCodeStorage {
			message = domainErr.Message
		}
		return dto.NewErrorResponseWithRequestID(code, message, requestID), dto.GetHTTPStatus(code), true
	}
	return dto.Response{}, 0, false
}
