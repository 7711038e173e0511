package handler

import (
	"net/http"
	"os"
	"strconv"

	"tillpoint/internal/apierror"
	"tillpoint/internal/dto"
	"tillpoint/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SessionHandler struct {
	svc   service.SessionService
	sales service.SalesService
}

func NewSessionHandler(svc service.SessionService, sales service.SalesService) *SessionHandler {
	return &SessionHandler{svc: svc, sales: sales}
}

// Open godoc
// @Summary Opens a new cash session on a register
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.OpenSessionRequest true "Opening data"
// @Success 201 {object} dto.SessionResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/sessions/open [post]
func (h *SessionHandler) Open(c *gin.Context) {
	var req dto.OpenSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	resp, err := h.svc.Open(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Current returns the open session for the actor's scope, or 204 when the
// scope has no open session — an expected state, not an error.
func (h *SessionHandler) Current(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	resp, err := h.svc.GetOpenSession(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	if resp == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Close godoc
// @Summary Reconciles and closes a cash session
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CloseSessionRequest true "Counted amount and confirmation"
// @Success 200 {object} dto.SessionResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/sessions/close [post]
func (h *SessionHandler) Close(c *gin.Context) {
	var req dto.CloseSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	resp, err := h.svc.Close(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ReconciliationPreview exposes expected amounts pre-close. Restricted to
// supervisor/admin so cashiers keep declaring blind.
func (h *SessionHandler) ReconciliationPreview(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid session id"))
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	resp, err := h.svc.ReconciliationPreview(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SalesSummary returns the per-payment-method totals attributed to a session.
func (h *SessionHandler) SalesSummary(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid session id"))
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	// The session lookup doubles as the scope check.
	if _, err := h.svc.Get(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	resp, err := h.sales.GetSessionSales(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History returns a paginated list of closed sessions for the actor's branch.
func (h *SessionHandler) History(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	sessions, total, err := h.svc.History(c.Request.Context(), actor, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sessions, "total": total, "page": page, "limit": limit})
}

// ReportPDF streams the closing-report PDF generated by the post-close worker.
func (h *SessionHandler) ReportPDF(reportPath func(sessionID string) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("invalid session id"))
			return
		}
		path := reportPath(id.String())
		if _, err := os.Stat(path); err != nil {
			c.JSON(http.StatusNotFound, apierror.New("report not generated yet"))
			return
		}
		c.FileAttachment(path, "session_"+id.String()+".pdf")
	}
}
