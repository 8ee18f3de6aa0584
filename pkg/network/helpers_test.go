package network

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/legitrack/relnet/backend/pkg/common"
	"github.com/legitrack/relnet/backend/pkg/store"
	"github.com/legitrack/relnet/backend/pkg/store/memory"
)

var errBoom = errors.New("connection reset")

func ent(id, typ string) common.Entity {
	return common.Entity{ID: id, Name: "Entity " + id, Type: typ}
}

func edge(a, b string, strength float64) common.CooccurrenceEdge {
	return common.CooccurrenceEdge{
		EntityA:     a,
		EntityB:     b,
		SharedCases: 1,
		Jaccard:     strength,
		Strength:    strength,
	}
}

func newMemory(entities []common.Entity, edges ...common.CooccurrenceEdge) *memory.Store {
	s := memory.New()
	s.PutEntities(entities...)
	s.PutEdges(edges...)
	return s
}

// countingStore counts reads and can fail or block them.
type countingStore struct {
	*memory.Store

	edgeCalls    atomic.Int32
	catalogCalls atomic.Int32

	mu         sync.Mutex
	edgesErr   error
	catalogErr error
	// block holds Edges calls whose MinStrength equals blockAt until the
	// channel is closed.
	blockAt *float64
	block   chan struct{}
	entered chan struct{}
}

func (s *countingStore) Edges(ctx context.Context, q store.EdgeQuery) ([]common.CooccurrenceEdge, error) {
	s.edgeCalls.Add(1)

	s.mu.Lock()
	err := s.edgesErr
	block := s.block
	blocks := s.blockAt != nil && q.MinStrength != nil && *q.MinStrength == *s.blockAt
	s.mu.Unlock()

	if blocks {
		if s.entered != nil {
			s.entered <- struct{}{}
		}
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return s.Store.Edges(ctx, q)
}

func (s *countingStore) EntitiesByIDs(ctx context.Context, ids []string) ([]common.Entity, error) {
	s.catalogCalls.Add(1)
	s.mu.Lock()
	err := s.catalogErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Store.EntitiesByIDs(ctx, ids)
}

func nodeIDs(g common.Subgraph) []string {
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	return ids
}
