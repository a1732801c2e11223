package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/candidates-sim/internal/models"
	"github.com/stitts-dev/candidates-sim/internal/playerpool"
	"github.com/stitts-dev/candidates-sim/internal/store"
	"github.com/stitts-dev/candidates-sim/pkg/config"
	"github.com/stitts-dev/candidates-sim/pkg/database"
)

const (
	seedPoolSize = 150
	seedTopElo   = 2850.0
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate [up|down|seed [players.json|players.yaml]]")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	db, err := database.NewConnection(cfg.DatabaseDriver, cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	s := store.New(db.DB)
	command := os.Args[1]

	switch command {
	case "up":
		if err := s.AutoMigrate(); err != nil {
			logrus.Fatalf("Failed to run migrations: %v", err)
		}
		logrus.Info("Migrations completed successfully")

	case "down":
		if err := s.DropAll(); err != nil {
			logrus.Fatalf("Failed to drop tables: %v", err)
		}
		logrus.Info("Tables dropped successfully")

	case "seed":
		path := ""
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		if err := seedData(s, path); err != nil {
			logrus.Fatalf("Failed to seed data: %v", err)
		}
		logrus.Info("Data seeded successfully")

	default:
		log.Fatalf("Unknown command: %s", command)
	}
}

// seedData stores the pool in path, or a synthetic gradient pool.
func seedData(s *store.Store, path string) error {
	if err := s.AutoMigrate(); err != nil {
		return err
	}

	var players []models.Player
	if path != "" {
		loaded, err := playerpool.Load(path)
		if err != nil {
			return err
		}
		players = loaded
	} else {
		players = playerpool.Gradient(seedPoolSize, seedTopElo, playerpool.DefaultStep)
	}

	if err := s.ReplacePlayers(context.Background(), players); err != nil {
		return fmt.Errorf("failed to seed players: %w", err)
	}
	logrus.WithField("players", len(players)).Info("Seeded player pool")
	return nil
}
