package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/candidates-sim/internal/api/handlers"
	"github.com/stitts-dev/candidates-sim/internal/api/middleware"
	"github.com/stitts-dev/candidates-sim/internal/services"
	"github.com/stitts-dev/candidates-sim/pkg/config"
)

// Dependencies are the services the router wires into handlers.
type Dependencies struct {
	Simulations  handlers.SimulationService
	Hub          *services.ProgressHub
	HealthChecks map[string]handlers.HealthCheck
	Logger       *logrus.Logger
}

// NewRouter builds the gin engine with middleware, health and websocket
// endpoints, and the /api/v1 routes.
func NewRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))

	healthHandler := handlers.NewHealthHandler(deps.HealthChecks)
	router.GET("/health", healthHandler.GetHealth)

	if deps.Hub != nil {
		router.GET("/ws/simulations/:id", deps.Hub.HandleWebSocket)
	}

	SetupRoutes(router.Group("/api/v1"), cfg, deps)
	return router
}

// SetupRoutes configures all API routes on the given router group
func SetupRoutes(group *gin.RouterGroup, cfg *config.Config, deps Dependencies) {
	simulationHandler := handlers.NewSimulationHandler(deps.Simulations)
	playerHandler := handlers.NewPlayerHandler(deps.Simulations)

	group.GET("/scenarios", simulationHandler.ListScenarios)
	group.GET("/players", playerHandler.GetPlayers)
	group.PUT("/players", playerHandler.ReplacePlayers)
	group.GET("/simulations", simulationHandler.ListSimulations)
	group.GET("/simulations/:id", simulationHandler.GetSimulation)

	// Only the endpoints that run simulations are rate limited
	limited := group.Group("")
	limited.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)))
	{
		limited.POST("/simulations", simulationHandler.RunSimulation)
		limited.POST("/seasons", simulationHandler.SimulateSeason)
	}
}
