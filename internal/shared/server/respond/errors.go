package respond

import (
	"math"

	"github.com/gin-gonic/gin"

	"docinsight-backend/internal/shared/telemetry"
)

// Error sends a failure envelope and logs the outcome.
func Error(c *gin.Context, status int, message string, fieldErrors []FieldError) {
	fields := map[string]any{
		"status":     status,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if len(fieldErrors) > 0 {
		fields["field_errors"] = len(fieldErrors)
	}
	telemetry.Error("http.error", fields)

	c.AbortWithStatusJSON(status, Envelope{
		Success: false,
		Message: message,
		Errors:  fieldErrors,
	})
}

// Pagination is the page metadata block returned by list endpoints.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// NewPagination computes page metadata for a filtered total.
func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}
