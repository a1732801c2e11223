package scenario

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stitts-dev/candidates-sim/internal/allocation"
	"github.com/stitts-dev/candidates-sim/internal/models"
)

// ErrNotFound is returned for an unknown scenario or preset name.
var ErrNotFound = errors.New("scenario not found")

// SlotDefinition is the serialisable form of a TournamentSlot.
type SlotDefinition struct {
	TournamentType    string              `json:"tournament_type" yaml:"tournament_type"`
	MaxSpots          int                 `json:"max_spots" yaml:"max_spots"`
	Strategy          allocation.Strategy `json:"strategy" yaml:"strategy"`
	QualifiedSkipProb float64             `json:"qualified_skip_prob,omitempty" yaml:"qualified_skip_prob,omitempty"`
	Params            map[string]any      `json:"params,omitempty" yaml:"params,omitempty"`
}

// Definition describes a qualification scenario as read from YAML or JSON.
type Definition struct {
	Name                     string                      `json:"name" yaml:"name"`
	Description              string                      `json:"description,omitempty" yaml:"description,omitempty"`
	TargetCandidates         int                         `json:"target_candidates" yaml:"target_candidates"`
	StandingsDepth           *int                        `json:"standings_depth,omitempty" yaml:"standings_depth,omitempty"`
	KeepQualifiedInStandings bool                        `json:"keep_qualified_in_standings,omitempty" yaml:"keep_qualified_in_standings,omitempty"`
	Slots                    []SlotDefinition            `json:"slots" yaml:"slots"`
	PlayerConfigs            map[int]models.PlayerConfig `json:"player_configs,omitempty" yaml:"player_configs,omitempty"`
}

// Builder converts the definition into a Builder, checking every strategy.
func (d Definition) Builder() (Builder, error) {
	if len(d.Slots) == 0 {
		return Builder{}, fmt.Errorf("%w: scenario %q has no slots", models.ErrInvalidConfig, d.Name)
	}
	slots := make([]models.TournamentSlot, len(d.Slots))
	for i, s := range d.Slots {
		if err := s.Strategy.Validate(); err != nil {
			return Builder{}, fmt.Errorf("%w: slot %d (%s): %v", models.ErrInvalidConfig, i, s.TournamentType, err)
		}
		slots[i] = models.TournamentSlot{
			TournamentType:    s.TournamentType,
			MaxSpots:          s.MaxSpots,
			Strategy:          s.Strategy,
			QualifiedSkipProb: s.QualifiedSkipProb,
			Params:            s.Params,
		}
	}

	b := NewBuilder(slots).WithPlayerConfigs(d.PlayerConfigs).WithKeepQualifiedInStandings(d.KeepQualifiedInStandings)
	if d.TargetCandidates != 0 {
		b = b.WithTargetCandidates(d.TargetCandidates)
	}
	if d.StandingsDepth != nil {
		b = b.WithStandingsDepth(*d.StandingsDepth)
	}
	return b, nil
}

// Config builds and validates the QualificationConfig of the definition.
// Tournament types are checked later against a registry.
func (d Definition) Config() (*models.QualificationConfig, error) {
	b, err := d.Builder()
	if err != nil {
		return nil, err
	}
	cfg := b.Build()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a definition from YAML or JSON.
func Parse(data []byte) (Definition, error) {
	var d Definition
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &d); err != nil {
			return Definition{}, fmt.Errorf("failed to parse scenario: %w", err)
		}
		return d, nil
	}
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Definition{}, fmt.Errorf("failed to parse scenario: %w", err)
	}
	d.Slots = normaliseParams(d.Slots)
	return d, nil
}

// LoadFile reads a definition from disk. The file name (without extension)
// is used as the name when the document has none.
func LoadFile(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("failed to read scenario %s: %w", path, err)
	}
	d, err := Parse(data)
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", path, err)
	}
	if d.Name == "" {
		d.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return d, nil
}

// LoadDir reads every .yaml, .yml and .json definition in dir, keyed by name.
func LoadDir(dir string) (map[string]Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario dir %s: %w", dir, err)
	}
	defs := make(map[string]Definition)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		d, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if _, dup := defs[d.Name]; dup {
			return nil, fmt.Errorf("duplicate scenario name %q in %s", d.Name, dir)
		}
		defs[d.Name] = d
	}
	return defs, nil
}

// Names returns the keys of defs in sorted order.
func Names(defs map[string]Definition) []string {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normaliseParams turns the map[any]any values some YAML documents produce
// into map[string]any so params decode the same way as JSON input.
func normaliseParams(slots []SlotDefinition) []SlotDefinition {
	for i := range slots {
		if slots[i].Params == nil {
			continue
		}
		for k, v := range slots[i].Params {
			slots[i].Params[k] = normaliseValue(v)
		}
	}
	return slots
}

func normaliseValue(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normaliseValue(val)
		}
		return m
	case map[string]any:
		for k, val := range t {
			t[k] = normaliseValue(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normaliseValue(val)
		}
		return t
	}
	return v
}
