package network

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strings"

	"github.com/legitrack/relnet/backend/pkg/common"
	"github.com/legitrack/relnet/backend/pkg/logger"
	"github.com/legitrack/relnet/backend/pkg/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Ranker lists the strongest neighbours of a single entity. Unlike Selector
// it applies no strength threshold.
type Ranker struct {
	edges   store.CooccurrenceStore
	catalog store.EntityCatalog
	lookup  store.LookupOptions
}

func NewRanker(edges store.CooccurrenceStore, catalog store.EntityCatalog, lookup store.LookupOptions) *Ranker {
	return &Ranker{
		edges:   edges,
		catalog: catalog,
		lookup:  lookup,
	}
}

// NeighborsOf returns at most limit neighbours of entityID ordered by
// relationship strength, strongest first. Each neighbour appears once.
// Neighbours missing from the catalog are dropped, not replaced.
func (r *Ranker) NeighborsOf(ctx context.Context, entityID string, limit int) ([]common.NeighborRecord, error) {
	entityID = strings.TrimSpace(entityID)
	limit = ClampNeighborLimit(limit)

	ctx, span := tracer.Start(ctx, "network.neighbors", trace.WithAttributes(
		attribute.String("network.entity", entityID),
		attribute.Int("network.limit", limit),
	))
	defer span.End()

	out, err := r.neighborsOf(ctx, entityID, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("network.neighbors", len(out)))
	return out, nil
}

type neighborRow struct {
	id   string
	edge common.CooccurrenceEdge
}

func (r *Ranker) neighborsOf(ctx context.Context, entityID string, limit int) ([]common.NeighborRecord, error) {
	if entityID == "" {
		return []common.NeighborRecord{}, nil
	}

	// Rows stored in both orientations collapse to one neighbour, read a
	// little more so the collapse does not eat into the limit.
	edges, err := r.edges.Edges(ctx, store.EdgeQuery{
		EntityID: entityID,
		Limit:    limit * 2,
	})
	if err != nil {
		return nil, upstream("read neighbour edges", err)
	}

	rows := make([]neighborRow, 0, min(len(edges), limit))
	seen := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		other, ok := e.Other(entityID)
		if !ok || other == entityID || other == "" || math.IsNaN(e.Strength) {
			continue
		}
		if _, dup := seen[other]; dup {
			continue
		}
		seen[other] = struct{}{}
		rows = append(rows, neighborRow{id: other, edge: e})
	}
	slices.SortStableFunc(rows, func(a, b neighborRow) int {
		return cmp.Compare(b.edge.Strength, a.edge.Strength)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	if len(rows) == 0 {
		return []common.NeighborRecord{}, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.id
	}
	entities, err := store.LookupEntities(ctx, r.catalog, ids, r.lookup)
	if err != nil {
		return nil, upstream("resolve neighbours", err)
	}

	out := make([]common.NeighborRecord, 0, len(rows))
	for _, row := range rows {
		ent, ok := entities[row.id]
		if !ok {
			continue
		}
		out = append(out, common.NeighborRecord{
			ID:            ent.ID,
			Name:          ent.Name,
			Type:          ent.Type,
			SharedCases:   row.edge.SharedCases,
			Jaccard:       row.edge.Jaccard,
			InviteCount:   row.edge.InviteCount,
			ResponseCount: row.edge.ResponseCount,
			Strength:      row.edge.Strength,
		})
	}

	if dropped := len(rows) - len(out); dropped > 0 {
		logger.Debug("[Network][Neighbors] Dropped neighbours missing from catalog", "entity", entityID, "dropped", dropped)
	}
	return out, nil
}
