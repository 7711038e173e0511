package handler

import (
	"net/http"

	"tillpoint/internal/dto"
	"tillpoint/internal/service"

	"github.com/gin-gonic/gin"
)

type GuardHandler struct{ svc service.GuardService }

func NewGuardHandler(svc service.GuardService) *GuardHandler { return &GuardHandler{svc: svc} }

// CanEnter godoc
// @Summary Routing decision for entering a sale workflow
// @Tags guard
// @Produce json
// @Security BearerAuth
// @Param requirement query string true "require_open | require_closed"
// @Success 200 {object} dto.GuardDecision
// @Failure 422 {object} apierror.APIError
// @Router /v1/guard/can-enter [get]
func (h *GuardHandler) CanEnter(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	decision, err := h.svc.CanEnter(c.Request.Context(), actor, c.Query("requirement"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

// Registers lists the ACTIVE registers the actor may operate.
func (h *GuardHandler) Registers(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	regs, err := h.svc.OperableRegisters(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.RegisterResponse, 0, len(regs))
	for _, r := range regs {
		out = append(out, dto.RegisterResponse{
			RegisterID: r.ID.String(),
			Name:       r.Name,
			BranchID:   r.BranchID.String(),
			Status:     r.Status,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}
