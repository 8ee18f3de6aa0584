// Package memory is an in-process Storage used by tests and by local
// development without a database.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"os"
	"slices"
	"sync"

	"github.com/legitrack/relnet/backend/pkg/common"
	"github.com/legitrack/relnet/backend/pkg/logger"
	"github.com/legitrack/relnet/backend/pkg/store"

	json "github.com/goccy/go-json"
)

type Store struct {
	mu       sync.RWMutex
	entities map[string]common.Entity
	edges    []common.CooccurrenceEdge
}

func New() *Store {
	return &Store{entities: make(map[string]common.Entity)}
}

// Seed is the on-disk format read by LoadSeed.
type Seed struct {
	Entities []common.Entity           `json:"entities"`
	Edges    []common.CooccurrenceEdge `json:"cooccurrences"`
}

// LoadSeed builds a store from a JSON seed file.
func LoadSeed(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}

	s := New()
	s.PutEntities(seed.Entities...)
	s.PutEdges(seed.Edges...)
	logger.Info("[Store][Memory] Loaded seed", "path", path, "entities", len(seed.Entities), "edges", len(seed.Edges))
	return s, nil
}

func (s *Store) PutEntities(entities ...common.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entities {
		if e.ID == "" {
			continue
		}
		s.entities[e.ID] = e
	}
}

// PutEdges appends rows. Rows are kept exactly as given, including rows the
// network package must reject, so tests can feed malformed tables.
func (s *Store) PutEdges(edges ...common.CooccurrenceEdge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges = append(s.edges, edges...)
}

// Replace swaps the whole table, as a batch refresh would.
func (s *Store) Replace(edges []common.CooccurrenceEdge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges = slices.Clone(edges)
}

func (s *Store) Edges(ctx context.Context, q store.EdgeQuery) ([]common.CooccurrenceEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]common.CooccurrenceEdge, 0, len(s.edges))
	for _, e := range s.edges {
		if q.EntityID != "" && !e.Touches(q.EntityID) {
			continue
		}
		if math.IsNaN(e.Strength) {
			continue
		}
		if q.MinStrength != nil && e.Strength < *q.MinStrength {
			continue
		}
		out = append(out, e)
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b common.CooccurrenceEdge) int {
		return cmp.Compare(b.Strength, a.Strength)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) EntitiesByIDs(ctx context.Context, ids []string) ([]common.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]common.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.entities[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) Close(context.Context) error {
	return nil
}

var _ store.Storage = (*Store)(nil)
