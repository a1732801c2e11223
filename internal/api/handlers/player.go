package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/candidates-sim/internal/models"
	"github.com/stitts-dev/candidates-sim/pkg/utils"
)

type PlayerHandler struct {
	service SimulationService
}

func NewPlayerHandler(service SimulationService) *PlayerHandler {
	return &PlayerHandler{service: service}
}

// GetPlayers returns the stored pool, highest rated first
// GET /api/v1/players
func (h *PlayerHandler) GetPlayers(c *gin.Context) {
	players, err := h.service.Players(c.Request.Context())
	if err != nil {
		utils.SendInternalError(c, "Failed to fetch players")
		return
	}
	utils.SendSuccessWithMeta(c, players, &utils.Meta{Total: int64(len(players))})
}

// ReplacePlayers swaps the stored pool
// PUT /api/v1/players
func (h *PlayerHandler) ReplacePlayers(c *gin.Context) {
	var players []models.Player
	if err := c.ShouldBindJSON(&players); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	pool, err := h.service.ReplacePlayers(c.Request.Context(), players)
	if err != nil {
		sendServiceError(c, err, "Failed to save players")
		return
	}
	utils.SendSuccessWithMeta(c, pool, &utils.Meta{Total: int64(len(pool))})
}
