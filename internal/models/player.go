package models

import "sort"

// Player is a rated competitor. Elo is the live rating and is mutated by
// rating-updating tournament formats during a season; InitialRank is fixed at
// season start and only used for reporting.
type Player struct {
	ID          int     `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Elo         float64 `json:"elo" yaml:"elo"`
	InitialRank int     `json:"initial_rank" yaml:"initial_rank"`
}

// ClonePool returns an independent copy of the pool. Each simulated season
// works on its own clone so rating changes never leak between seasons.
func ClonePool(players []Player) []Player {
	if players == nil {
		return nil
	}
	clone := make([]Player, len(players))
	copy(clone, players)
	return clone
}

// Pointers returns pointers into the given slice, preserving order.
func Pointers(players []Player) []*Player {
	ptrs := make([]*Player, len(players))
	for i := range players {
		ptrs[i] = &players[i]
	}
	return ptrs
}

// SortByElo sorts players by live rating, highest first. Ties keep their
// relative order.
func SortByElo(players []*Player) {
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Elo > players[j].Elo
	})
}

// AssignInitialRanks sets InitialRank from the current rating order (1 = best).
func AssignInitialRanks(players []Player) {
	ptrs := Pointers(players)
	SortByElo(ptrs)
	for i, p := range ptrs {
		p.InitialRank = i + 1
	}
}

// IDs returns the ids of the given players in order.
func IDs(players []*Player) []int {
	ids := make([]int, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	return ids
}
