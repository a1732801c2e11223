package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stitts-dev/candidates-sim/internal/models"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("record not found")

const playerBatchSize = 500

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates every table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}
	return nil
}

// DropAll drops every table in reverse creation order.
func (s *Store) DropAll() error {
	tables := AllModels()
	for i := len(tables) - 1; i >= 0; i-- {
		if err := s.db.Migrator().DropTable(tables[i]); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	return nil
}

// Players returns the stored pool, highest rated first.
func (s *Store) Players(ctx context.Context) ([]models.Player, error) {
	var records []PlayerRecord
	if err := s.db.WithContext(ctx).Order("elo DESC, id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}
	players := make([]models.Player, len(records))
	for i, r := range records {
		players[i] = r.Player()
	}
	return players, nil
}

// ReplacePlayers swaps the stored pool for players in one transaction.
func (s *Store) ReplacePlayers(ctx context.Context, players []models.Player) error {
	records := make([]PlayerRecord, len(players))
	for i, p := range players {
		records[i] = recordFromPlayer(p)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&PlayerRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear players: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(records, playerBatchSize).Error; err != nil {
			return fmt.Errorf("failed to save players: %w", err)
		}
		return nil
	})
}

func (s *Store) CreateRun(ctx context.Context, run *SimulationRun) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun stores the outcome of a run. A non-nil runErr marks it failed.
func (s *Store) CompleteRun(ctx context.Context, run *SimulationRun, runErr error) error {
	now := time.Now().UTC()
	run.CompletedAt = &now
	run.DurationMs = now.Sub(run.CreatedAt).Milliseconds()
	if runErr != nil {
		run.Status = RunStatusFailed
		run.Error = runErr.Error()
	} else {
		run.Status = RunStatusCompleted
	}
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("failed to update run %s: %w", run.ID, err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*SimulationRun, error) {
	var run SimulationRun
	err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return &run, nil
}

// ListRuns returns runs newest first without their stats payload, plus the
// total count.
func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]SimulationRun, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&SimulationRun{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	var runs []SimulationRun
	err := s.db.WithContext(ctx).
		Omit("stats").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&runs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, total, nil
}
