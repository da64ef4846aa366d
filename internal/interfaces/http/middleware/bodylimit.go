package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docgen/backend/internal/interfaces/http/dto"
)

// BodyLimit returns a middleware that limits request body size
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			resp := dto.NewErrorResponseWithRequestID(dto.ErrCodeRequestTooLarge,
				"Request body exceeds maximum allowed size", getRequestID(c))
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, resp)
			return
		}

		// Chunked bodies have no declared length
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
