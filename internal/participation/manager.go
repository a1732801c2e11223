package participation

import (
	"math/rand"

	"github.com/stitts-dev/candidates-sim/internal/models"
	"github.com/stitts-dev/candidates-sim/internal/tournament"
)

// Manager tracks who plays and who may qualify during one season.
// It is not safe for concurrent use; create one per season.
type Manager struct {
	players   []*models.Player
	config    *models.QualificationConfig
	rng       *rand.Rand
	qualified map[int]struct{}
}

// NewManager returns a manager over the season's players. rng drives the
// withdrawal decisions of already-qualified players.
func NewManager(players []*models.Player, config *models.QualificationConfig, rng *rand.Rand) *Manager {
	return &Manager{
		players:   players,
		config:    config,
		rng:       rng,
		qualified: make(map[int]struct{}),
	}
}

// CanParticipate reports whether the player enters the slot's tournament.
func (m *Manager) CanParticipate(p *models.Player, slot models.TournamentSlot) bool {
	if slot.TournamentType == tournament.TypeRating {
		return false
	}
	cfg := m.config.PlayerConfigFor(p.ID)
	if cfg.Mode == models.ModeExcluded {
		return false
	}
	if cfg.Blocks(slot.TournamentType) {
		return false
	}
	if cfg.Mode == models.ModeRatingOnly {
		return false
	}
	if m.IsQualified(p.ID) && slot.QualifiedSkipProb > 0 {
		if m.rng.Float64() < slot.QualifiedSkipProb {
			return false
		}
	}
	return true
}

// IsEligible reports whether the player may take a qualification spot.
func (m *Manager) IsEligible(p *models.Player) bool {
	if m.IsQualified(p.ID) {
		return false
	}
	return m.EligibleByMode(p)
}

// EligibleByMode ignores the qualified set and only applies the player's mode.
func (m *Manager) EligibleByMode(p *models.Player) bool {
	switch m.config.PlayerConfigFor(p.ID).Mode {
	case models.ModeExcluded, models.ModePlaysNotEligible:
		return false
	}
	return true
}

// Participants returns the players entering the slot, in pool order.
func (m *Manager) Participants(slot models.TournamentSlot) []*models.Player {
	out := make([]*models.Player, 0, len(m.players))
	for _, p := range m.players {
		if m.CanParticipate(p, slot) {
			out = append(out, p)
		}
	}
	return out
}

// EligibleStandings filters standings down to players who may take a spot.
// With keepQualified set, already-qualified players stay in the list so
// allocation strategies can see them.
func (m *Manager) EligibleStandings(standings []*models.Player, keepQualified bool) []*models.Player {
	out := make([]*models.Player, 0, len(standings))
	for _, p := range standings {
		ok := m.IsEligible(p)
		if keepQualified {
			ok = m.EligibleByMode(p)
		}
		if ok {
			out = append(out, p)
		}
	}
	return out
}

// MarkQualified adds the players to the qualified set. Repeated ids are
// ignored.
func (m *Manager) MarkQualified(players ...*models.Player) {
	for _, p := range players {
		m.qualified[p.ID] = struct{}{}
	}
}

// IsQualified reports whether the player id already holds a spot.
func (m *Manager) IsQualified(id int) bool {
	_, ok := m.qualified[id]
	return ok
}

// Qualified returns the live qualified set. Callers must not modify it.
func (m *Manager) Qualified() map[int]struct{} {
	return m.qualified
}

// QualifiedIDs returns a copy of the qualified ids.
func (m *Manager) QualifiedIDs() []int {
	ids := make([]int, 0, len(m.qualified))
	for id := range m.qualified {
		ids = append(ids, id)
	}
	return ids
}
