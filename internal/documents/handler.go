package documents

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docinsight-backend/internal/shared/server/respond"
	"docinsight-backend/internal/shared/telemetry"
)

// AnalysisFinder resolves the analysis linked to a document. A nil result
// with nil error means no analysis exists yet.
type AnalysisFinder func(ctx context.Context, documentID string) (any, error)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc            *Service
	FindAnalysis   AnalysisFinder
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, findAnalysis AnalysisFinder, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 << 20
	}
	return &Handler{Svc: svc, FindAnalysis: findAnalysis, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents/upload", h.upload)
	rg.GET("/documents", h.list)
	rg.GET("/documents/stats", h.stats)
	rg.GET("/documents/:id", h.get)
	rg.GET("/documents/:id/text", h.text)
	rg.DELETE("/documents/:id", h.remove)
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	fileHeader, err := c.FormFile("document")
	if err != nil {
		// Some clients send the part under "file".
		fileHeader, err = c.FormFile("file")
	}
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "No file provided", []respond.FieldError{
			{Field: "document", Message: "a PDF file is required"},
		})
		return
	}

	if fileHeader.Size > h.MaxUploadBytes {
		respond.Error(c, http.StatusBadRequest, "File is too large", []respond.FieldError{
			{Field: "document", Message: "file exceeds the maximum upload size"},
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "Unable to read file", []respond.FieldError{
			{Field: "document", Message: "uploaded file could not be read"},
		})
		return
	}
	defer file.Close()

	declaredType := fileHeader.Header.Get("Content-Type")
	doc, err := h.Svc.Upload(c.Request.Context(), fileHeader.Filename, declaredType, file)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnsupportedType):
			respond.Error(c, http.StatusBadRequest, "Only PDF files are allowed", []respond.FieldError{
				{Field: "document", Message: "only application/pdf is accepted"},
			})
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "Invalid file name", []respond.FieldError{
				{Field: "document", Message: "file name is required and must be at most 255 characters"},
			})
		default:
			respond.Error(c, http.StatusInternalServerError, "Failed to upload document", nil)
		}
		return
	}

	c.Set("documentId", doc.ID)
	respond.Created(c, "Document uploaded successfully", gin.H{
		"id":       doc.ID,
		"document": toInfo(doc),
	})
}

func (h *Handler) list(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 10)
	status := strings.TrimSpace(c.Query("status"))

	if status != "" && !ValidStatus(status) {
		respond.Error(c, http.StatusBadRequest, "Invalid status filter", []respond.FieldError{
			{Field: "status", Message: "must be one of processing, completed, error"},
		})
		return
	}

	docs, total, err := h.Svc.List(c.Request.Context(), page, limit, status)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "Failed to list documents", nil)
		return
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	items := make([]DocumentItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toItem(doc, h.findAnalysis(c.Request.Context(), doc.ID)))
	}

	respond.OK(c, gin.H{
		"documents":  items,
		"pagination": respond.NewPagination(page, limit, total),
	})
}

func (h *Handler) get(c *gin.Context) {
	doc, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "Document not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "Failed to fetch document", nil)
		}
		return
	}

	c.Set("documentId", doc.ID)
	respond.OK(c, toItem(doc, h.findAnalysis(c.Request.Context(), doc.ID)))
}

func (h *Handler) text(c *gin.Context) {
	doc, err := h.Svc.Text(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "Document not found", nil)
		case errors.Is(err, ErrNotReady):
			respond.Error(c, http.StatusConflict, "Document text is not available yet", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "Failed to fetch document text", nil)
		}
		return
	}

	respond.OK(c, TextResponse{
		ID:            doc.ID,
		Name:          doc.Name,
		ExtractedText: doc.ExtractedText,
	})
}

func (h *Handler) remove(c *gin.Context) {
	err := h.Svc.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "Document not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "Failed to delete document", nil)
		}
		return
	}

	respond.Message(c, "Document deleted successfully")
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.Svc.Stats(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "Failed to compute stats", nil)
		return
	}

	respond.OK(c, StatsResponse{
		TotalDocuments:     stats.TotalDocuments,
		CompletedDocuments: stats.CompletedDocuments,
		DocumentsByStatus:  stats.ByStatus,
	})
}

// findAnalysis tolerates a nil finder and resolver failures; a list should
// not 500 because one linked analysis could not be loaded.
func (h *Handler) findAnalysis(ctx context.Context, documentID string) any {
	if h.FindAnalysis == nil {
		return nil
	}
	analysis, err := h.FindAnalysis(ctx, documentID)
	if err != nil {
		telemetry.Warn("document.analysis_lookup_failed", map[string]any{
			"documentId": documentID,
			"error":      err.Error(),
		})
		return nil
	}
	return analysis
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
