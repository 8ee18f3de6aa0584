package network

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/legitrack/relnet/backend/pkg/common"
	"github.com/legitrack/relnet/backend/pkg/logger"
	"github.com/legitrack/relnet/backend/pkg/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("pkg/network")

// Selector turns the co-occurrence table into a bounded subgraph. It holds no
// per-query state and is safe for concurrent use.
type Selector struct {
	edges     store.CooccurrenceStore
	catalog   store.EntityCatalog
	lookup    store.LookupOptions
	overfetch int
}

type SelectorOption func(*Selector)

// WithLookupOptions sets chunking, parallelism and retries of catalog reads.
func WithLookupOptions(opts store.LookupOptions) SelectorOption {
	return func(s *Selector) {
		s.lookup = opts
	}
}

// WithOverfetch sets how many candidate edges are read per requested node.
func WithOverfetch(factor int) SelectorOption {
	return func(s *Selector) {
		if factor > 0 {
			s.overfetch = factor
		}
	}
}

func NewSelector(edges store.CooccurrenceStore, catalog store.EntityCatalog, opts ...SelectorOption) *Selector {
	s := &Selector{
		edges:     edges,
		catalog:   catalog,
		overfetch: DefaultOverfetch,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// Select returns the subgraph for p.
//
// Candidate edges at or above p.MinStrength are read strongest first, their
// endpoints resolved against the catalog and filtered by type. Entities are
// ranked by degree over the surviving edges and the top p.MaxNodes are kept.
// In ego mode the center is always added after truncation, so the node count
// may exceed p.MaxNodes by exactly one. Edges are then filtered to the kept
// nodes and every degree is recomputed from the returned edges.
//
// The result is either complete or an error; an empty table, a threshold
// nothing passes, or an unknown center all yield an empty subgraph.
func (s *Selector) Select(ctx context.Context, p Params) (common.Subgraph, error) {
	p = p.Normalize()

	ctx, span := tracer.Start(ctx, "network.select", trace.WithAttributes(
		attribute.Float64("network.min_strength", p.MinStrength),
		attribute.Int("network.max_nodes", p.MaxNodes),
		attribute.String("network.center", p.CenterEntityID),
	))
	defer span.End()

	result, err := s.selectSubgraph(ctx, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return common.Subgraph{}, err
	}
	span.SetAttributes(
		attribute.Int("network.nodes", len(result.Nodes)),
		attribute.Int("network.edges", len(result.Edges)),
	)
	return result, nil
}

func (s *Selector) selectSubgraph(ctx context.Context, p Params) (common.Subgraph, error) {
	center := p.CenterEntityID

	candidates, err := s.edges.Edges(ctx, store.EdgeQuery{
		EntityID:    center,
		MinStrength: store.Threshold(p.MinStrength),
		Limit:       p.MaxNodes * s.overfetch,
	})
	if err != nil {
		return common.Subgraph{}, upstream("select candidate edges", err)
	}
	candidates = sanitizeCandidates(candidates, p.MinStrength, center)
	if len(candidates) == 0 {
		logger.Debug("[Network][Select] No candidate edges", "min_strength", p.MinStrength, "center", center)
		return common.EmptySubgraph(), nil
	}

	ids := make([]string, 0, len(candidates)*2+1)
	if center != "" {
		ids = append(ids, center)
	}
	for _, e := range candidates {
		ids = append(ids, e.EntityA, e.EntityB)
	}
	entities, err := store.LookupEntities(ctx, s.catalog, ids, s.lookup)
	if err != nil {
		return common.Subgraph{}, upstream("resolve entities", err)
	}
	if center != "" {
		if _, ok := entities[center]; !ok {
			logger.Debug("[Network][Select] Center entity not in catalog", "center", center)
			return common.EmptySubgraph(), nil
		}
	}

	allowed := typeFilter(p.EntityTypes)
	keepEntity := func(id string) bool {
		e, ok := entities[id]
		if !ok {
			return false
		}
		if id == center || allowed == nil {
			return true
		}
		_, ok = allowed[e.Type]
		return ok
	}

	surviving := make([]common.CooccurrenceEdge, 0, len(candidates))
	for _, e := range candidates {
		if keepEntity(e.EntityA) && keepEntity(e.EntityB) {
			surviving = append(surviving, e)
		}
	}

	ranked := rankByDegree(surviving, center)
	if len(ranked) > p.MaxNodes {
		ranked = ranked[:p.MaxNodes]
	}

	kept := make(map[string]struct{}, len(ranked)+1)
	order := make([]string, 0, len(ranked)+1)
	if center != "" {
		kept[center] = struct{}{}
		order = append(order, center)
	}
	for _, id := range ranked {
		kept[id] = struct{}{}
		order = append(order, id)
	}

	result := common.EmptySubgraph()
	degree := make(map[string]int, len(kept))
	for _, e := range surviving {
		_, okA := kept[e.EntityA]
		_, okB := kept[e.EntityB]
		if !okA || !okB {
			continue
		}
		degree[e.EntityA]++
		degree[e.EntityB]++
		result.Edges = append(result.Edges, common.SubgraphEdge{
			Source:        e.EntityA,
			Target:        e.EntityB,
			Weight:        e.Strength,
			InviteCount:   e.InviteCount,
			ResponseCount: e.ResponseCount,
			SharedCases:   e.SharedCases,
			Jaccard:       e.Jaccard,
		})
	}

	for _, id := range order {
		ent := entities[id]
		result.Nodes = append(result.Nodes, common.SubgraphNode{
			ID:     ent.ID,
			Name:   ent.Name,
			Type:   ent.Type,
			Degree: degree[id],
		})
	}

	logger.Debug(
		"[Network][Select] Built subgraph",
		"candidates", len(candidates),
		"surviving", len(surviving),
		"nodes", len(result.Nodes),
		"edges", len(result.Edges),
	)
	return result, nil
}

// sanitizeCandidates drops rows the selector must never render: self loops,
// rows below the threshold or without a comparable strength, rows not touching
// the ego center, and repeated pairs stored in both orientations. The first
// (strongest) row of a pair wins.
func sanitizeCandidates(in []common.CooccurrenceEdge, minStrength float64, center string) []common.CooccurrenceEdge {
	out := make([]common.CooccurrenceEdge, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, e := range in {
		if e.EntityA == "" || e.EntityB == "" || e.EntityA == e.EntityB {
			continue
		}
		if math.IsNaN(e.Strength) || e.Strength < minStrength {
			continue
		}
		if center != "" && !e.Touches(center) {
			continue
		}
		key := e.PairKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

func typeFilter(types []string) map[string]struct{} {
	if len(types) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}

type rankEntry struct {
	id        string
	degree    int
	strongest float64
}

// rankByDegree orders the endpoints of edges by degree, strongest incident
// edge and id, all excluding skip. The ordering is total, so the ranking only
// depends on the set of edges and not on the order the store returned them.
func rankByDegree(edges []common.CooccurrenceEdge, skip string) []string {
	byID := make(map[string]*rankEntry)
	touch := func(id string, strength float64) {
		if id == skip {
			return
		}
		entry, ok := byID[id]
		if !ok {
			entry = &rankEntry{id: id, strongest: math.Inf(-1)}
			byID[id] = entry
		}
		entry.degree++
		entry.strongest = max(entry.strongest, strength)
	}
	for _, e := range edges {
		touch(e.EntityA, e.Strength)
		touch(e.EntityB, e.Strength)
	}

	entries := make([]*rankEntry, 0, len(byID))
	for _, entry := range byID {
		entries = append(entries, entry)
	}
	slices.SortFunc(entries, func(a, b *rankEntry) int {
		if c := cmp.Compare(b.degree, a.degree); c != 0 {
			return c
		}
		if c := cmp.Compare(b.strongest, a.strongest); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	ids := make([]string, len(entries))
	for i, entry := range entries {
		ids[i] = entry.id
	}
	return ids
}
