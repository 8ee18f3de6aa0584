package network

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

const (
	DefaultMinStrength   = 0.1
	DefaultMaxNodes      = 100
	MaxNodesCap          = 500
	DefaultOverfetch     = 3
	DefaultNeighborLimit = 10
	MaxNeighborLimit     = 100
)

// Params selects a bounded subgraph. CenterEntityID switches the selector to
// ego mode.
type Params struct {
	MinStrength    float64
	MaxNodes       int
	EntityTypes    []string
	CenterEntityID string
}

// Normalize clamps MaxNodes into [1, MaxNodesCap], applying the default for
// non-positive values, and canonicalizes the type filter. Values above the cap
// are clamped, never rejected.
func (p Params) Normalize() Params {
	switch {
	case p.MaxNodes <= 0:
		p.MaxNodes = DefaultMaxNodes
	case p.MaxNodes > MaxNodesCap:
		p.MaxNodes = MaxNodesCap
	}

	types := make([]string, 0, len(p.EntityTypes))
	for _, t := range p.EntityTypes {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(types, t) {
			continue
		}
		types = append(types, t)
	}
	slices.Sort(types)
	if len(types) == 0 {
		types = nil
	}
	p.EntityTypes = types
	p.CenterEntityID = strings.TrimSpace(p.CenterEntityID)
	return p
}

// Ego reports whether the params select the neighbourhood of one entity.
func (p Params) Ego() bool {
	return p.CenterEntityID != ""
}

// Key identifies the query. Two params with equal keys select the same
// subgraph from an unchanged store.
func (p Params) Key() string {
	p = p.Normalize()
	return fmt.Sprintf(
		"network|%s|%d|%s|%s",
		strconv.FormatFloat(p.MinStrength, 'g', -1, 64),
		p.MaxNodes,
		strings.Join(p.EntityTypes, ","),
		p.CenterEntityID,
	)
}

// ClampNeighborLimit applies the default and upper bound for neighbour
// rankings.
func ClampNeighborLimit(limit int) int {
	if limit <= 0 {
		return DefaultNeighborLimit
	}
	return min(limit, MaxNeighborLimit)
}

func neighborsKey(entityID string, limit int) string {
	return fmt.Sprintf("neighbors|%s|%d", entityID, limit)
}
