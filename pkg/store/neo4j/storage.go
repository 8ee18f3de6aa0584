// Package neo4j serves the co-occurrence table from a graph of
// (:Entity)-[:COOCCURS]->(:Entity) relationships.
package neo4j

import (
	"context"
	"fmt"

	"github.com/legitrack/relnet/backend/pkg/common"
	"github.com/legitrack/relnet/backend/pkg/logger"
	"github.com/legitrack/relnet/backend/pkg/store"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphStore implements store.Storage on a Neo4j database. Each stored pair
// has a single COOCCURS relationship; its direction carries no meaning.
type GraphStore struct {
	driver   neo4j.DriverWithContext
	database string
}

func New(driver neo4j.DriverWithContext, database string) *GraphStore {
	return &GraphStore{driver: driver, database: database}
}

// Connect opens a driver with basic auth and verifies connectivity.
func Connect(ctx context.Context, url, user, pass string) (*GraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(url, neo4j.BasicAuth(user, pass, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return New(driver, ""), nil
}

func (g *GraphStore) session(ctx context.Context) neo4j.SessionWithContext {
	return g.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: g.database,
	})
}

func edgesCypher(q store.EdgeQuery) (string, map[string]any) {
	cypher := `MATCH (a:Entity)-[r:COOCCURS]->(b:Entity)
		WHERE ($entity = '' OR a.id = $entity OR b.id = $entity)
		  AND NOT coalesce(isNaN(r.relationship_strength), false)
		  AND ($min IS NULL OR r.relationship_strength >= $min)
		RETURN a.id AS a, b.id AS b,
		       r.shared_case_count AS shared,
		       r.invite_cooccurrence_count AS invites,
		       r.response_cooccurrence_count AS responses,
		       r.jaccard_score AS jaccard,
		       r.relationship_strength AS strength
		ORDER BY strength DESC, a, b`
	params := map[string]any{
		"entity": q.EntityID,
		"min":    nil,
	}
	if q.MinStrength != nil {
		params["min"] = *q.MinStrength
	}
	if q.Limit > 0 {
		cypher += "\n\t\tLIMIT $limit"
		params["limit"] = int64(q.Limit)
	}
	return cypher, params
}

func (g *GraphStore) Edges(ctx context.Context, q store.EdgeQuery) ([]common.CooccurrenceEdge, error) {
	sess := g.session(ctx)
	defer sess.Close(ctx)

	cypher, params := edgesCypher(q)
	result, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("query cooccurs: %w", err)
	}

	var out []common.CooccurrenceEdge
	for result.Next(ctx) {
		e, err := edgeFromRecord(result.Record())
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read cooccurs: %w", err)
	}

	logger.Debug("[Store][Neo4j][Edges] Read edges", "entity", q.EntityID, "limit", q.Limit, "rows", len(out))
	return out, nil
}

func edgeFromRecord(rec *neo4j.Record) (common.CooccurrenceEdge, error) {
	var e common.CooccurrenceEdge
	var err error
	if e.EntityA, _, err = neo4j.GetRecordValue[string](rec, "a"); err != nil {
		return e, fmt.Errorf("decode entity a: %w", err)
	}
	if e.EntityB, _, err = neo4j.GetRecordValue[string](rec, "b"); err != nil {
		return e, fmt.Errorf("decode entity b: %w", err)
	}

	counts := []struct {
		key string
		dst *int
	}{
		{"shared", &e.SharedCases},
		{"invites", &e.InviteCount},
		{"responses", &e.ResponseCount},
	}
	for _, c := range counts {
		v, _, err := neo4j.GetRecordValue[int64](rec, c.key)
		if err != nil {
			return e, fmt.Errorf("decode %s: %w", c.key, err)
		}
		*c.dst = int(v)
	}

	if e.Jaccard, _, err = neo4j.GetRecordValue[float64](rec, "jaccard"); err != nil {
		return e, fmt.Errorf("decode jaccard: %w", err)
	}
	if e.Strength, _, err = neo4j.GetRecordValue[float64](rec, "strength"); err != nil {
		return e, fmt.Errorf("decode strength: %w", err)
	}
	return e, nil
}

func (g *GraphStore) EntitiesByIDs(ctx context.Context, ids []string) ([]common.Entity, error) {
	if len(ids) == 0 {
		return []common.Entity{}, nil
	}
	sess := g.session(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (e:Entity) WHERE e.id IN $ids
		RETURN e.id AS id, e.name AS name, e.entity_type AS type`
	result, err := sess.Run(ctx, cypher, map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}

	out := make([]common.Entity, 0, len(ids))
	for result.Next(ctx) {
		rec := result.Record()
		var ent common.Entity
		if ent.ID, _, err = neo4j.GetRecordValue[string](rec, "id"); err != nil {
			return nil, fmt.Errorf("decode entity id: %w", err)
		}
		if ent.Name, _, err = neo4j.GetRecordValue[string](rec, "name"); err != nil {
			return nil, fmt.Errorf("decode entity name: %w", err)
		}
		if ent.Type, _, err = neo4j.GetRecordValue[string](rec, "type"); err != nil {
			return nil, fmt.Errorf("decode entity type: %w", err)
		}
		out = append(out, ent)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read entities: %w", err)
	}
	return out, nil
}

func (g *GraphStore) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

var _ store.Storage = (*GraphStore)(nil)
