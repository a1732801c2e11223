package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/stitts-dev/candidates-sim/internal/api/handlers"
	"github.com/stitts-dev/candidates-sim/internal/models"
	"github.com/stitts-dev/candidates-sim/internal/services"
	"github.com/stitts-dev/candidates-sim/internal/simulator"
	"github.com/stitts-dev/candidates-sim/internal/store"
	"github.com/stitts-dev/candidates-sim/pkg/config"
)

type stubService struct{}

func (stubService) Run(context.Context, services.RunRequest) (*services.RunResult, error) {
	return &services.RunResult{RunID: uuid.New(), Stats: &simulator.SimulationStats{}}, nil
}

func (stubService) SimulateSeason(context.Context, services.SeasonRequest) (*services.SeasonResult, error) {
	return &services.SeasonResult{}, nil
}

func (stubService) GetRun(_ context.Context, id uuid.UUID) (*store.SimulationRun, error) {
	return &store.SimulationRun{ID: id}, nil
}

func (stubService) ListRuns(context.Context, int, int) ([]store.SimulationRun, int64, error) {
	return []store.SimulationRun{}, 0, nil
}

func (stubService) Scenarios() []services.ScenarioSummary {
	return []services.ScenarioSummary{{Name: "current"}}
}

func (stubService) Players(context.Context) ([]models.Player, error) {
	return []models.Player{}, nil
}

func (stubService) ReplacePlayers(_ context.Context, p []models.Player) ([]models.Player, error) {
	return p, nil
}

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{RateLimitRPS: 0.001, RateLimitBurst: 1}
	return NewRouter(cfg, Dependencies{
		Simulations: stubService{},
		Hub:         services.NewProgressHub(logger),
		HealthChecks: map[string]handlers.HealthCheck{
			"database": func(context.Context) error { return nil },
		},
		Logger: logger,
	})
}

func request(r http.Handler, method, path, body string) int {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRoutes(t *testing.T) {
	r := testRouter()

	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/health", ""))
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/api/v1/scenarios", ""))
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/api/v1/players", ""))
	assert.Equal(t, http.StatusOK, request(r, http.MethodPut, "/api/v1/players", `[]`))
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/api/v1/simulations", ""))
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/api/v1/simulations/"+uuid.NewString(), ""))
	assert.Equal(t, http.StatusBadRequest, request(r, http.MethodGet, "/ws/simulations/nope", ""))
}

func TestSimulationEndpointsAreRateLimited(t *testing.T) {
	r := testRouter()

	assert.Equal(t, http.StatusCreated, request(r, http.MethodPost, "/api/v1/simulations", `{"preset":"current"}`))
	assert.Equal(t, http.StatusTooManyRequests, request(r, http.MethodPost, "/api/v1/simulations", `{"preset":"current"}`))

	// read endpoints are not limited
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/api/v1/scenarios", ""))
	}
}
