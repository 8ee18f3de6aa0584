package routes

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/legitrack/relnet/backend/pkg/network"
)

// networkQuery is the query string shared by the network and layout routes.
type networkQuery struct {
	MinStrength    string   `query:"min_strength" validate:"max=32"`
	MaxNodes       int      `query:"max_nodes"`
	EntityTypes    []string `query:"entity_types" validate:"max=32,dive,max=64"`
	CenterEntityID string   `query:"center_entity_id" validate:"max=128"`
	ViewID         string   `query:"view_id" validate:"max=128"`
}

// params converts the query into selector params. max_nodes is clamped by
// the selector, never rejected here.
func (q networkQuery) params() (network.Params, error) {
	p := network.Params{
		MinStrength:    network.DefaultMinStrength,
		MaxNodes:       q.MaxNodes,
		CenterEntityID: q.CenterEntityID,
	}
	if s := strings.TrimSpace(q.MinStrength); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return network.Params{}, fmt.Errorf("min_strength must be a finite number")
		}
		p.MinStrength = v
	}
	for _, raw := range q.EntityTypes {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				p.EntityTypes = append(p.EntityTypes, t)
			}
		}
	}
	return p.Normalize(), nil
}
