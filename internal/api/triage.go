package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/themobileprof/telecare-be/internal/api/middleware"
	"github.com/themobileprof/telecare-be/internal/classifier"
	"github.com/themobileprof/telecare-be/internal/triage"
)

const maxPageSize = 100

// TriageHandler exposes the triage session over HTTP
type TriageHandler struct {
	service *triage.Service
	logger  *zap.Logger
}

// NewTriageHandler creates a new triage handler
func NewTriageHandler(service *triage.Service, logger *zap.Logger) *TriageHandler {
	return &TriageHandler{service: service, logger: logger}
}

type pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

func pageParams(c *gin.Context) (page, limit int) {
	page = queryInt(c, "page", 1)
	limit = min(queryInt(c, "limit", 10), maxPageSize)
	return page, limit
}

func requester(c *gin.Context) triage.Requester {
	return triage.Requester{UserID: middleware.GetUserID(c), Role: middleware.GetRole(c)}
}

func respondPage(c *gin.Context, p *triage.Page) {
	c.JSON(http.StatusOK, gin.H{
		"triages":    p.Triages,
		"pagination": pagination{Total: p.Total, Page: p.Page, Pages: p.Pages},
	})
}

// Submit assesses a symptom report
// POST /api/triage
func (h *TriageHandler) Submit(c *gin.Context) {
	var req triage.SubmitInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	t, err := h.service.Submit(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Triage assessment completed", "triage": t})
}

// Mine lists the caller's triages, newest first
// GET /api/triage/my-triages
func (h *TriageHandler) Mine(c *gin.Context) {
	page, limit := pageParams(c)
	p, err := h.service.ListMine(c.Request.Context(), middleware.GetUserID(c), page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondPage(c, p)
}

// All lists every triage with optional status and riskLevel filters
// GET /api/triage/all
func (h *TriageHandler) All(c *gin.Context) {
	var f triage.Filter
	var invalid []string

	if s := c.Query("status"); s != "" {
		f.Status = triage.Status(s)
		if !f.Status.Valid() {
			invalid = append(invalid, "status: must be pending, reviewed or completed")
		}
	}
	if r := c.Query("riskLevel"); r != "" {
		level, ok := classifier.ParseRiskLevel(r)
		if !ok {
			invalid = append(invalid, "riskLevel: must be low, medium, high or critical")
		}
		f.RiskLevel = level
	}
	if len(invalid) > 0 {
		respondError(c, h.logger, &triage.ValidationError{Fields: invalid})
		return
	}

	page, limit := pageParams(c)
	p, err := h.service.ListAll(c.Request.Context(), requester(c), f, page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondPage(c, p)
}

// Get returns one triage to its owner or to staff
// GET /api/triage/:id
func (h *TriageHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	t, err := h.service.Get(c.Request.Context(), id, requester(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"triage": t})
}

// Review records a doctor's review
// PUT /api/triage/:id/review
func (h *TriageHandler) Review(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var req triage.ReviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	t, err := h.service.Review(c.Request.Context(), id, middleware.GetUserID(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Triage reviewed", "triage": t})
}

// Stats returns triage counts
// GET /api/triage/stats
func (h *TriageHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
