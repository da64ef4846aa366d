package handler

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/docgen/backend/internal/application/generation"
	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/interfaces/http/dto"
	"github.com/docgen/backend/internal/interfaces/http/router"
)

// GenerationService is the part of the orchestrator the HTTP layer drives
type GenerationService interface {
	Generate(ctx context.Context, who generation.Requester, req generation.GenerateRequest) (*generation.GenerateResult, error)
	GenerateBatch(ctx context.Context, who generation.Requester, req generation.BatchRequest) (*generation.BatchResult, error)
	Fetch(ctx context.Context, who generation.Requester, handle string) (*generation.FetchResult, error)
	Remove(ctx context.Context, who generation.Requester, handle string) error
	ListArtifacts(ctx context.Context, who generation.Requester) ([]generation.ArtifactSummary, error)
	ListTemplates(ctx context.Context, who generation.Requester, category document.Category) ([]generation.TemplateSummary, error)
	Usage(ctx context.Context, who generation.Requester) (*generation.UsageSummary, error)
}

// GenerationHandler serves document generation and artifact downloads
type GenerationHandler struct {
	BaseHandler
	svc GenerationService
}

// NewGenerationHandler creates a new GenerationHandler
func NewGenerationHandler(svc GenerationService) *GenerationHandler {
	return &GenerationHandler{svc: svc}
}

// RegisterRoutes mounts the document and template endpoints
func (h *GenerationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	documents := router.NewDomainGroup("documents", "/documents").
		POST("", h.Generate).
		POST("/batch", h.GenerateBatch).
		GET("", h.ListArtifacts).
		GET("/:handle", h.Download).
		DELETE("/:handle", h.Remove)
	documents.RegisterRoutes(rg)

	rg.GET("/templates", h.ListTemplates)
	rg.GET("/usage", h.Usage)
}

// Generate godoc
// @ID           generateDocument
// @Summary      Generate a document
// @Description  Validates the fields against the template, renders the document and stores it under a new handle
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        request body GenerateRequest true "Generation request"
// @Success      201 {object} APIResponse[generation.GenerateResult]
// @Failure      422 {object} dto.Response
// @Failure      429 {object} dto.Response
// @Router       /documents [post]
func (h *GenerationHandler) Generate(c *gin.Context) {
	who, ok := h.requester(c)
	if !ok {
		return
	}
	var req GenerateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.svc.Generate(c.Request.Context(), who, req.toCommand())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// GenerateBatch godoc
// @ID           generateDocumentBatch
// @Summary      Generate one certificate per recipient
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        request body BatchRequest true "Batch request"
// @Success      200 {object} APIResponse[BatchResponse]
// @Router       /documents/batch [post]
func (h *GenerationHandler) GenerateBatch(c *gin.Context) {
	who, ok := h.requester(c)
	if !ok {
		return
	}
	var req BatchRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.svc.GenerateBatch(c.Request.Context(), who, req.toCommand())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	requestID := getRequestID(c)
	resp := BatchResponse{
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Items:     make([]BatchItemResponse, len(result.Items)),
	}
	for i, item := range result.Items {
		out := BatchItemResponse{Recipient: item.Recipient, Status: http.StatusCreated, Document: item.Result}
		if item.Err != nil {
			body, status, known := errorResponse(item.Err, requestID)
			if !known {
				body = dto.NewErrorResponseWithRequestID(dto.ErrCodeInternal, "An unexpected error occurred", requestID)
				status = http.StatusInternalServerError
			}
			out.Status = status
			out.Error = body.Error
		}
		resp.Items[i] = out
	}
	h.Success(c, resp)
}

// ListArtifacts godoc
// @ID           listDocuments
// @Summary      List the requester's live documents
// @Tags         documents
// @Produce      json
// @Success      200 {object} APIResponse[[]generation.ArtifactSummary]
// @Router       /documents [get]
func (h *GenerationHandler) ListArtifacts(c *gin.Context) {
	who, ok := h.requester(c)
	if !ok {
		return
	}
	items, err := h.svc.ListArtifacts(c.Request.Context(), who)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, items, len(items))
}

// Download godoc
// @ID           downloadDocument
// @Summary      Download a generated document
// @Tags         documents
// @Produce      application/pdf
// @Param        handle path string true "Artifact handle"
// @Success      200 {file} binary
// @Failure      404 {object} dto.Response
// @Failure      410 {object} dto.Response
// @Router       /documents/{handle} [get]
func (h *GenerationHandler) Download(c *gin.Context) {
	who, ok := h.requester(c)
	if !ok {
		return
	}
	fetched, err := h.svc.Fetch(c.Request.Context(), who, c.Param("handle"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	a := fetched.Artifact
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename()}))
	c.Header("Cache-Control", "private, no-store")
	c.Data(http.StatusOK, a.ContentType, fetched.Data)
}

// Remove godoc
// @ID           deleteDocument
// @Summary      Delete a generated document
// @Tags         documents
// @Param        handle path string true "Artifact handle"
// @Success      204
// @Router       /documents/{handle} [delete]
func (h *GenerationHandler) Remove(c *gin.Context) {
	who, ok := h.requester(c)
	if !ok {
		return
	}
	if err := h.svc.Remove(c.Request.Context(), who, c.Param("handle")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ListTemplates godoc
// @ID           listTemplates
// @Summary      List the template catalogue
// @Tags         templates
// @Produce      json
// @Param        category query string false "Category filter"
// @Success      200 {object} APIResponse[[]generation.TemplateSummary]
// @Router       /templates [get]
func (h *GenerationHandler) ListTemplates(c *gin.Context) {
	who, ok := h.requester(c)
	if !ok {
		return
	}
	var query ListTemplatesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, err.Error())
		return
	}

	items, err := h.svc.ListTemplates(c.Request.Context(), who, document.Category(query.Category))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, items, len(items))
}

// Usage godoc
// @ID           getUsage
// @Summary      Quota usage in the current period
// @Tags         usage
// @Produce      json
// @Success      200 {object} APIResponse[generation.UsageSummary]
// @Router       /usage [get]
func (h *GenerationHandler) Usage(c *gin.Context) {
	who, ok := h.requester(c)
	if !ok {
		return
	}
	usage, err := h.svc.Usage(c.Request.Context(), who)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, usage)
}

// bindJSON decodes the body keeping numbers as json.Number, so decimal
// amounts reach the field validator exactly as sent, then applies the
// binding tags. It writes the error response itself.
func (h *GenerationHandler) bindJSON(c *gin.Context, obj any) bool {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	err := dec.Decode(obj)
	if err == nil {
		err = binding.Validator.ValidateStruct(obj)
	}
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	var invalid validator.ValidationErrors
	switch {
	case errors.As(err, &tooLarge):
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, "Request body too large")
	case errors.As(err, &invalid):
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, invalid.Error())
	default:
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Request body is not valid JSON")
	}
	return false
}
