package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/stitts-dev/candidates-sim/internal/models"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// PlayerRecord is a rated player of the stored pool. ID is the federation id,
// not a surrogate key.
type PlayerRecord struct {
	ID          int       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Elo         float64   `gorm:"not null;index" json:"elo"`
	InitialRank int       `json:"initial_rank"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (PlayerRecord) TableName() string {
	return "players"
}

// Player converts the record to the simulation type.
func (r PlayerRecord) Player() models.Player {
	return models.Player{ID: r.ID, Name: r.Name, Elo: r.Elo, InitialRank: r.InitialRank}
}

func recordFromPlayer(p models.Player) PlayerRecord {
	return PlayerRecord{ID: p.ID, Name: p.Name, Elo: p.Elo, InitialRank: p.InitialRank}
}

// SimulationRun is one Monte Carlo run. Definition and Stats hold the
// scenario definition and the SimulationStats as JSON.
type SimulationRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Scenario    string         `gorm:"not null;index" json:"scenario"`
	Fingerprint string         `gorm:"index" json:"fingerprint"`
	Status      string         `gorm:"not null;index" json:"status"`
	Error       string         `json:"error,omitempty"`
	Seasons     int            `gorm:"not null" json:"seasons"`
	Seed        int64          `json:"seed"`
	PoolSize    int            `json:"pool_size"`
	Definition  datatypes.JSON `json:"definition"`
	Stats       datatypes.JSON `json:"stats,omitempty"`

	ValidSeasons        int     `json:"valid_seasons"`
	MeanAvgEloOriginal  float64 `json:"mean_avg_elo_original"`
	MeanAvgEloLive      float64 `json:"mean_avg_elo_live"`
	TopRatedCaptureRate float64 `json:"top_rated_capture_rate"`

	DurationMs  int64      `json:"duration_ms"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (SimulationRun) TableName() string {
	return "simulation_runs"
}

// BeforeCreate assigns a run id when the caller did not.
func (r *SimulationRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// AllModels lists every table the store migrates, in creation order.
func AllModels() []interface{} {
	return []interface{}{&PlayerRecord{}, &SimulationRun{}}
}
