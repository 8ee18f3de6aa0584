package pgx

import (
	"context"
	"fmt"

	"github.com/legitrack/relnet/backend/pkg/common"
	"github.com/legitrack/relnet/backend/pkg/logger"
	"github.com/legitrack/relnet/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// CooccurrenceDBStorage reads the co-occurrence table and the entity catalog
// from PostgreSQL.
type CooccurrenceDBStorage struct {
	conn  pgxIConn
	close func()
}

type CooccurrenceDBStorageOption func(*CooccurrenceDBStorage)

// WithCloser sets the function run by Close, typically the pool's Close.
func WithCloser(fn func()) CooccurrenceDBStorageOption {
	return func(s *CooccurrenceDBStorage) {
		s.close = fn
	}
}

// NewCooccurrenceDBStorageWithConnection wraps an existing connection or pool.
// The caller keeps ownership of conn unless WithCloser is given.
func NewCooccurrenceDBStorageWithConnection(conn pgxIConn, opts ...CooccurrenceDBStorageOption) *CooccurrenceDBStorage {
	s := &CooccurrenceDBStorage{conn: conn}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// Connect opens a pool for databaseURL. The returned storage closes the pool.
func Connect(ctx context.Context, databaseURL string) (*CooccurrenceDBStorage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return NewCooccurrenceDBStorageWithConnection(pool, WithCloser(pool.Close)), nil
}

const edgesSQL = `
SELECT entity_a_id, entity_b_id, shared_case_count, invite_cooccurrence_count,
       response_cooccurrence_count, jaccard_score, relationship_strength
FROM entity_cooccurrence
WHERE ($1::text = '' OR entity_a_id = $1 OR entity_b_id = $1)
  AND relationship_strength <> 'NaN'::double precision
  AND ($2::double precision IS NULL OR relationship_strength >= $2)
ORDER BY relationship_strength DESC, entity_a_id, entity_b_id
LIMIT $3`

func (s *CooccurrenceDBStorage) Edges(ctx context.Context, q store.EdgeQuery) ([]common.CooccurrenceEdge, error) {
	// LIMIT NULL is LIMIT ALL.
	var limit *int64
	if q.Limit > 0 {
		l := int64(q.Limit)
		limit = &l
	}

	// NaN sorts above every number in Postgres and would crowd valid rows out
	// of the limit.
	rows, err := s.conn.Query(ctx, edgesSQL, q.EntityID, q.MinStrength, limit)
	if err != nil {
		return nil, fmt.Errorf("query cooccurrence: %w", err)
	}
	defer rows.Close()

	out := make([]common.CooccurrenceEdge, 0, max(q.Limit, 0))
	for rows.Next() {
		var e common.CooccurrenceEdge
		if err := rows.Scan(
			&e.EntityA,
			&e.EntityB,
			&e.SharedCases,
			&e.InviteCount,
			&e.ResponseCount,
			&e.Jaccard,
			&e.Strength,
		); err != nil {
			return nil, fmt.Errorf("scan cooccurrence: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read cooccurrence: %w", err)
	}

	logger.Debug("[Store][Postgres][Edges] Read edges", "entity", q.EntityID, "limit", q.Limit, "rows", len(out))
	return out, nil
}

const entitiesSQL = `
SELECT id, name, entity_type
FROM entities
WHERE id = ANY($1)`

func (s *CooccurrenceDBStorage) EntitiesByIDs(ctx context.Context, ids []string) ([]common.Entity, error) {
	if len(ids) == 0 {
		return []common.Entity{}, nil
	}
	rows, err := s.conn.Query(ctx, entitiesSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	entities, err := pgxv5.CollectRows(rows, pgxv5.RowToStructByPos[common.Entity])
	if err != nil {
		return nil, fmt.Errorf("read entities: %w", err)
	}
	return entities, nil
}

func (s *CooccurrenceDBStorage) Close(context.Context) error {
	if s.close != nil {
		s.close()
	}
	return nil
}

var _ store.Storage = (*CooccurrenceDBStorage)(nil)
