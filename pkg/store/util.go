package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/legitrack/relnet/backend/internal/util"
	"github.com/legitrack/relnet/backend/pkg/common"
	"github.com/legitrack/relnet/backend/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultLookupChunkSize = 100
	DefaultLookupParallel  = 4
	DefaultLookupRetries   = 2
)

func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// LookupOptions controls how LookupEntities splits and retries catalog reads.
type LookupOptions struct {
	ChunkSize int
	Parallel  int
	Retries   int
}

func (o LookupOptions) withDefaults() LookupOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultLookupChunkSize
	}
	if o.Parallel <= 0 {
		o.Parallel = DefaultLookupParallel
	}
	if o.Retries <= 0 {
		o.Retries = DefaultLookupRetries
	}
	return o
}

// LookupEntities resolves ids against the catalog in fixed size chunks that
// are fetched concurrently and merged by id. A chunk that still fails after
// its retries fails the whole lookup, so callers never see a partial map.
func LookupEntities(
	ctx context.Context,
	catalog EntityCatalog,
	ids []string,
	opts LookupOptions,
) (map[string]common.Entity, error) {
	if catalog == nil {
		return nil, fmt.Errorf("entity catalog is nil")
	}
	ids = DedupeStrings(ids)
	if len(ids) == 0 {
		return map[string]common.Entity{}, nil
	}
	opts = opts.withDefaults()

	var mu sync.Mutex
	out := make(map[string]common.Entity, len(ids))

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Parallel)

	err := ChunkRange(len(ids), opts.ChunkSize, func(start, end int) error {
		part := ids[start:end]
		eg.Go(func() error {
			entities, err := util.RetryWithContext(ectx, opts.Retries, func(ctx context.Context) ([]common.Entity, error) {
				return catalog.EntitiesByIDs(ctx, part)
			})
			if err != nil {
				return fmt.Errorf("catalog lookup of %d ids: %w", len(part), err)
			}

			mu.Lock()
			defer mu.Unlock()
			for _, e := range entities {
				out[e.ID] = e
			}
			return nil
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	logger.Debug("[Store][LookupEntities] Resolved entities", "requested", len(ids), "found", len(out))
	return out, nil
}
