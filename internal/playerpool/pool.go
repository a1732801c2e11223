package playerpool

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stitts-dev/candidates-sim/internal/models"
)

// DefaultStep is the rating gap between consecutive synthetic players.
const DefaultStep = 5.0

// ErrDuplicateID is returned when two players in a pool share an id.
var ErrDuplicateID = errors.New("duplicate player id")

// Load reads a player pool from a .json, .yaml or .yml file. Missing initial
// ranks are filled from the rating order.
func Load(path string) ([]models.Player, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read player pool %s: %w", path, err)
	}

	var players []models.Player
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &players)
	default:
		err = json.Unmarshal(data, &players)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse player pool %s: %w", path, err)
	}
	if err := Validate(players); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	fillRanks(players)
	return players, nil
}

// Validate checks that ids are unique.
func Validate(players []models.Player) error {
	seen := make(map[int]struct{}, len(players))
	for _, p := range players {
		if _, ok := seen[p.ID]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateID, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

func fillRanks(players []models.Player) {
	for _, p := range players {
		if p.InitialRank == 0 {
			models.AssignInitialRanks(players)
			return
		}
	}
}

// Gradient builds n synthetic players rated top, top-step, top-2*step, ...
// with ids and ranks 1..n.
func Gradient(n int, top, step float64) []models.Player {
	if n <= 0 {
		return []models.Player{}
	}
	if step <= 0 {
		step = DefaultStep
	}
	players := make([]models.Player, n)
	for i := range players {
		players[i] = models.Player{
			ID:          i + 1,
			Name:        fmt.Sprintf("Player %d", i+1),
			Elo:         top - float64(i)*step,
			InitialRank: i + 1,
		}
	}
	return players
}

// Augment deepens a pool of real players with synthetic ones rated below the
// weakest real player, step apart, down to targetMinElo. Synthetic ids start
// above the largest real id. Initial ranks are reassigned over the result.
func Augment(players []models.Player, targetMinElo, step float64) []models.Player {
	out := models.ClonePool(players)
	if out == nil {
		out = []models.Player{}
	}
	if len(out) == 0 {
		return out
	}
	if step <= 0 {
		step = DefaultStep
	}

	minElo, maxID := out[0].Elo, out[0].ID
	for _, p := range out[1:] {
		if p.Elo < minElo {
			minElo = p.Elo
		}
		if p.ID > maxID {
			maxID = p.ID
		}
	}

	for elo := minElo - step; elo >= targetMinElo; elo -= step {
		maxID++
		out = append(out, models.Player{
			ID:   maxID,
			Name: fmt.Sprintf("Synthetic %d", int(elo)),
			Elo:  elo,
		})
	}
	models.AssignInitialRanks(out)
	return out
}
