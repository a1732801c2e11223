package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stitts-dev/candidates-sim/internal/models"
	"github.com/stitts-dev/candidates-sim/internal/scenario"
	"github.com/stitts-dev/candidates-sim/internal/services"
	"github.com/stitts-dev/candidates-sim/internal/store"
	"github.com/stitts-dev/candidates-sim/internal/tournament"
	"github.com/stitts-dev/candidates-sim/pkg/utils"
)

const maxPerPage = 100

// SimulationService is what the handlers need from services.SimulationService.
type SimulationService interface {
	Run(ctx context.Context, req services.RunRequest) (*services.RunResult, error)
	SimulateSeason(ctx context.Context, req services.SeasonRequest) (*services.SeasonResult, error)
	GetRun(ctx context.Context, id uuid.UUID) (*store.SimulationRun, error)
	ListRuns(ctx context.Context, limit, offset int) ([]store.SimulationRun, int64, error)
	Scenarios() []services.ScenarioSummary
	Players(ctx context.Context) ([]models.Player, error)
	ReplacePlayers(ctx context.Context, players []models.Player) ([]models.Player, error)
}

type SimulationHandler struct {
	service SimulationService
}

func NewSimulationHandler(service SimulationService) *SimulationHandler {
	return &SimulationHandler{service: service}
}

// RunSimulation runs a Monte Carlo simulation of a qualification scenario.
// Clients that stream progress send their own run_id and subscribe to
// /ws/simulations/:id first.
// POST /api/v1/simulations
func (h *SimulationHandler) RunSimulation(c *gin.Context) {
	var req services.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	result, err := h.service.Run(c.Request.Context(), req)
	if err != nil {
		sendServiceError(c, err, "Simulation failed")
		return
	}
	c.Set("run_id", result.RunID.String())

	if result.Cached {
		utils.SendSuccess(c, result)
		return
	}
	utils.SendCreated(c, result)
}

// GetSimulation returns a stored run with its stats
// GET /api/v1/simulations/:id
func (h *SimulationHandler) GetSimulation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.SendValidationError(c, "Invalid run ID", err.Error())
		return
	}

	run, err := h.service.GetRun(c.Request.Context(), id)
	if err != nil {
		sendServiceError(c, err, "Failed to fetch simulation")
		return
	}
	utils.SendSuccess(c, run)
}

// ListSimulations returns recent runs without their stats
// GET /api/v1/simulations?page=1&perPage=20
func (h *SimulationHandler) ListSimulations(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("perPage", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > maxPerPage {
		perPage = 20
	}

	runs, total, err := h.service.ListRuns(c.Request.Context(), perPage, (page-1)*perPage)
	if err != nil {
		utils.SendInternalError(c, "Failed to fetch simulations")
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	meta := &utils.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
	utils.SendSuccessWithMeta(c, runs, meta)
}

// SimulateSeason plays a single season and returns its qualifiers
// POST /api/v1/seasons
func (h *SimulationHandler) SimulateSeason(c *gin.Context) {
	var req services.SeasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	result, err := h.service.SimulateSeason(c.Request.Context(), req)
	if err != nil {
		sendServiceError(c, err, "Season simulation failed")
		return
	}
	utils.SendSuccess(c, result)
}

// ListScenarios returns the built-in and configured scenarios
// GET /api/v1/scenarios
func (h *SimulationHandler) ListScenarios(c *gin.Context) {
	utils.SendSuccess(c, h.service.Scenarios())
}

// sendServiceError maps service errors onto the response envelope.
func sendServiceError(c *gin.Context, err error, message string) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, models.ErrInvalidConfig),
		errors.Is(err, tournament.ErrUnknownType),
		errors.Is(err, tournament.ErrInvalidParams):
		utils.SendValidationError(c, message, err.Error())
	case errors.Is(err, scenario.ErrNotFound), errors.Is(err, store.ErrNotFound):
		utils.SendNotFound(c, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		utils.SendError(c, http.StatusServiceUnavailable, utils.NewAppError(utils.ErrCodeInternal, message, err.Error()))
	default:
		utils.SendInternalError(c, message)
	}
}
