package analyses

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docinsight-backend/internal/documents"
	"docinsight-backend/internal/llm"
	"docinsight-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses/documents/:documentId", h.generate)
	rg.POST("/analyses", h.store)
	rg.GET("/analyses", h.list)
	rg.GET("/analyses/search", h.search)
	rg.GET("/analyses/stats", h.stats)
	rg.GET("/analyses/:id", h.get)
	rg.PUT("/analyses/:id", h.update)
	rg.DELETE("/analyses/:id", h.remove)
	rg.POST("/analyses/:id/tags", h.addTag)
}

func (h *Handler) generate(c *gin.Context) {
	documentID := c.Param("documentId")

	analysis, doc, created, err := h.Svc.GenerateForDocument(c.Request.Context(), documentID)
	if err != nil {
		switch {
		case errors.Is(err, documents.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "Document not found", nil)
		case errors.Is(err, documents.ErrNotReady):
			respond.Error(c, http.StatusConflict, "Document is not processed yet", nil)
		case errors.Is(err, ErrNoText):
			respond.Error(c, http.StatusBadRequest, "No text available for this document", nil)
		case errors.Is(err, ErrParseFailure):
			respond.Error(c, http.StatusInternalServerError, "Failed to process AI response", nil)
		case errors.Is(err, llm.ErrUnavailable):
			respond.Error(c, http.StatusServiceUnavailable, "AI provider unavailable", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "Failed to generate analysis", nil)
		}
		return
	}

	c.Set("analysisId", analysis.ID)
	payload := toGenerationResponse(analysis, &doc)
	if created {
		respond.Created(c, "Analysis generated successfully", payload)
		return
	}
	respond.OKMessage(c, "Analysis already exists", payload)
}

func (h *Handler) store(c *gin.Context) {
	var req analysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	analysis, err := h.Svc.Store(c.Request.Context(), req.toInput())
	if err != nil {
		h.writeError(c, err, "Failed to store analysis")
		return
	}

	c.Set("analysisId", analysis.ID)
	respond.Created(c, "Analysis stored successfully", toResult(analysis))
}

func (h *Handler) list(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 10)
	search := strings.TrimSpace(c.Query("search"))
	category := strings.TrimSpace(c.Query("category"))

	items, total, err := h.Svc.List(c.Request.Context(), page, limit, search, category)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "Failed to list analyses", nil)
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

	results := make([]AnalysisResult, 0, len(items))
	for _, a := range items {
		results = append(results, toResult(a))
	}

	respond.OK(c, gin.H{
		"analyses":   results,
		"pagination": respond.NewPagination(page, limit, total),
	})
}

func (h *Handler) search(c *gin.Context) {
	params := SearchParams{
		Query:    strings.TrimSpace(c.Query("q")),
		Category: strings.TrimSpace(c.Query("category")),
	}

	var fieldErrors []respond.FieldError
	bind := func(name string) *int {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			return nil
		}
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			fieldErrors = append(fieldErrors, respond.FieldError{Field: name, Message: "must be an integer"})
			return nil
		}
		return &parsed
	}
	params.ConfidenceMin = bind("confidence_min")
	params.ConfidenceMax = bind("confidence_max")
	params.MinWords = bind("min_words")
	params.MaxWords = bind("max_words")

	if len(fieldErrors) > 0 {
		respond.Error(c, http.StatusBadRequest, "Invalid search filters", fieldErrors)
		return
	}

	items, err := h.Svc.Search(c.Request.Context(), params)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "Failed to search analyses", nil)
		return
	}

	results := make([]AnalysisResult, 0, len(items))
	for _, a := range items {
		results = append(results, toResult(a))
	}

	respond.OK(c, gin.H{
		"analyses": results,
		"count":    len(results),
	})
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.Svc.Stats(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "Failed to compute stats", nil)
		return
	}

	respond.OK(c, StatsResponse{
		TotalAnalyses:          stats.TotalAnalyses,
		AverageConfidence:      stats.AverageConfidence,
		DistributionByCategory: stats.DistributionByCategory,
		RecentAnalyses:         stats.RecentAnalyses,
	})
}

func (h *Handler) get(c *gin.Context) {
	analysis, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Failed to fetch analysis")
		return
	}

	c.Set("analysisId", analysis.ID)
	respond.OK(c, toGenerationResponse(analysis, h.resolveDocument(c, analysis)))
}

func (h *Handler) update(c *gin.Context) {
	var req analysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	analysis, err := h.Svc.Update(c.Request.Context(), c.Param("id"), req.toInput())
	if err != nil {
		h.writeError(c, err, "Failed to update analysis")
		return
	}

	respond.OKMessage(c, "Analysis updated successfully", toResult(analysis))
}

func (h *Handler) remove(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err, "Failed to delete analysis")
		return
	}
	respond.Message(c, "Analysis deleted successfully")
}

func (h *Handler) addTag(c *gin.Context) {
	var req addTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	analysis, err := h.Svc.AddTag(c.Request.Context(), c.Param("id"), req.Tag)
	if err != nil {
		h.writeError(c, err, "Failed to add tag")
		return
	}

	respond.OKMessage(c, "Tag added successfully", toResult(analysis))
}

// writeError maps service errors shared by several handlers.
func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		fieldErrors := make([]respond.FieldError, 0, len(verr.Violations))
		for _, violation := range verr.Violations {
			fieldErrors = append(fieldErrors, respond.FieldError{Field: violation.Field, Message: violation.Message})
		}
		respond.Error(c, http.StatusBadRequest, "Invalid analysis data", fieldErrors)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "Analysis not found", nil)
	case errors.Is(err, ErrConflict):
		respond.Error(c, http.StatusConflict, "An analysis already exists for this document", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, fallback, nil)
	}
}

// resolveDocument fetches the owning document; a missing or failed lookup
// just omits the block.
func (h *Handler) resolveDocument(c *gin.Context, analysis Analysis) *documents.Document {
	if analysis.DocumentID == "" || h.Svc.Docs == nil {
		return nil
	}
	doc, err := h.Svc.Docs.GetByID(c.Request.Context(), analysis.DocumentID)
	if err != nil {
		return nil
	}
	return &doc
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
