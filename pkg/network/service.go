package network

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/legitrack/relnet/backend/pkg/common"
	"github.com/legitrack/relnet/backend/pkg/logger"
	"github.com/legitrack/relnet/backend/pkg/store"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheTTL     = 5 * time.Minute
	DefaultQueryTimeout = 30 * time.Second
)

type ServiceOptions struct {
	// CacheTTL of network and neighbour results. Zero disables caching.
	CacheTTL     time.Duration
	QueryTimeout time.Duration
	Lookup       store.LookupOptions
	Overfetch    int
}

// Service is the query surface used by transports. It caches results per
// query key, collapses identical concurrent queries into one store read and
// enforces last-request-wins per view.
type Service struct {
	selector *Selector
	ranker   *Ranker

	networks  *Cache[common.Subgraph]
	neighbors *Cache[[]common.NeighborRecord]
	flight    singleflight.Group
	latest    *Latest

	queryTimeout time.Duration
}

func NewService(edges store.CooccurrenceStore, catalog store.EntityCatalog, opts ServiceOptions) *Service {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	return &Service{
		selector:     NewSelector(edges, catalog, WithLookupOptions(opts.Lookup), WithOverfetch(opts.Overfetch)),
		ranker:       NewRanker(edges, catalog, opts.Lookup),
		networks:     NewCache[common.Subgraph](opts.CacheTTL),
		neighbors:    NewCache[[]common.NeighborRecord](opts.CacheTTL),
		latest:       NewLatest(),
		queryTimeout: opts.QueryTimeout,
	}
}

// Network returns the subgraph for p. A non-empty viewID enables
// last-request-wins: a query still running for the same view is abandoned and
// returns ErrSuperseded.
//
// The returned subgraph may be shared with other callers and must not be
// modified.
func (s *Service) Network(ctx context.Context, viewID string, p Params) (common.Subgraph, error) {
	p = p.Normalize()
	return cachedQuery(ctx, s, s.networks, p.Key(), viewID, func(ctx context.Context) (common.Subgraph, error) {
		return s.selector.Select(ctx, p)
	})
}

// Neighbors returns the strongest neighbours of entityID.
func (s *Service) Neighbors(ctx context.Context, viewID, entityID string, limit int) ([]common.NeighborRecord, error) {
	entityID = strings.TrimSpace(entityID)
	limit = ClampNeighborLimit(limit)
	return cachedQuery(ctx, s, s.neighbors, neighborsKey(entityID, limit), viewID, func(ctx context.Context) ([]common.NeighborRecord, error) {
		return s.ranker.NeighborsOf(ctx, entityID, limit)
	})
}

// Cancel abandons the running query of viewID, if any.
func (s *Service) Cancel(viewID string) {
	s.latest.Cancel(viewID)
}

// Invalidate drops every cached result. Queries already running when
// Invalidate is called still return their result but do not cache it.
func (s *Service) Invalidate() {
	s.networks.Purge()
	s.neighbors.Purge()
	logger.Info("[Network][Invalidate] Cleared cached results")
}

func cachedQuery[V any](
	ctx context.Context,
	s *Service,
	cache *Cache[V],
	key string,
	viewID string,
	query func(ctx context.Context) (V, error),
) (V, error) {
	var zero V
	// Register before the cache lookup: a cache hit is still the newest
	// request of its view and supersedes whatever the view has in flight.
	ctx, release := s.latest.Begin(ctx, viewID)
	defer release()

	if v, ok := cache.Get(key); ok {
		return v, nil
	}

	gen := cache.Generation()
	// The shared read runs detached from any single caller so that a
	// superseded caller does not fail the others waiting on the same key.
	ch := s.flight.DoChan(key, func() (any, error) {
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.queryTimeout)
		defer cancel()
		v, err := query(qctx)
		if err != nil {
			return nil, err
		}
		cache.SetIfGeneration(key, v, gen)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, context.Cause(ctx)
	case res := <-ch:
		if ctx.Err() != nil {
			return zero, context.Cause(ctx)
		}
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(V)
		if !ok {
			return zero, fmt.Errorf("unexpected result type %T for %q", res.Val, key)
		}
		return v, nil
	}
}
