package neo4j

import (
	"strings"
	"testing"

	"github.com/legitrack/relnet/backend/pkg/store"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func TestEdgesCypher(t *testing.T) {
	cypher, params := edgesCypher(store.EdgeQuery{EntityID: "A", MinStrength: store.Threshold(0.25), Limit: 9})
	if !strings.Contains(cypher, "LIMIT $limit") {
		t.Fatalf("expected LIMIT clause, got %s", cypher)
	}
	if !strings.Contains(cypher, "isNaN(r.relationship_strength)") {
		t.Fatalf("expected NaN filter, got %s", cypher)
	}
	if params["entity"] != "A" || params["min"] != 0.25 || params["limit"] != int64(9) {
		t.Fatalf("unexpected params: %v", params)
	}

	cypher, params = edgesCypher(store.EdgeQuery{})
	if strings.Contains(cypher, "LIMIT") {
		t.Fatalf("unexpected LIMIT clause")
	}
	if params["min"] != nil {
		t.Fatalf("expected nil threshold, got %v", params["min"])
	}
}

func TestEdgeFromRecord(t *testing.T) {
	rec := &neo4j.Record{
		Keys:   []string{"a", "b", "shared", "invites", "responses", "jaccard", "strength"},
		Values: []any{"A", "B", int64(5), int64(3), nil, 0.5, 0.75},
	}
	e, err := edgeFromRecord(rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.EntityA != "A" || e.EntityB != "B" || e.SharedCases != 5 || e.InviteCount != 3 || e.ResponseCount != 0 || e.Strength != 0.75 {
		t.Fatalf("unexpected edge: %+v", e)
	}
}
