package network

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/legitrack/relnet/backend/pkg/common"
	"github.com/legitrack/relnet/backend/pkg/store/memory"

	"pgregory.net/rapid"
)

var entityTypes = []string{common.EntityTypeOrganization, common.EntityTypePerson, common.EntityTypeCommittee}

func drawTable(t *rapid.T) (*memory.Store, int) {
	n := rapid.IntRange(1, 12).Draw(t, "entities")
	entities := make([]common.Entity, n)
	for i := range entities {
		entities[i] = ent(fmt.Sprintf("e%02d", i), rapid.SampledFrom(entityTypes).Draw(t, "type"))
	}

	edgeCount := rapid.IntRange(0, 40).Draw(t, "edges")
	edges := make([]common.CooccurrenceEdge, edgeCount)
	for i := range edges {
		// Endpoints may point outside the catalog to exercise dropping.
		a := rapid.IntRange(0, n).Draw(t, "a")
		b := rapid.IntRange(0, n).Draw(t, "b")
		edges[i] = edge(fmt.Sprintf("e%02d", a), fmt.Sprintf("e%02d", b), rapid.Float64Range(0, 1).Draw(t, "strength"))
	}
	return newMemory(entities, edges...), n
}

func drawParams(t *rapid.T, n int) Params {
	p := Params{
		MinStrength: rapid.Float64Range(0, 1).Draw(t, "min_strength"),
		MaxNodes:    rapid.IntRange(1, 15).Draw(t, "max_nodes"),
	}
	if rapid.Bool().Draw(t, "filter_types") {
		p.EntityTypes = rapid.SliceOfN(rapid.SampledFrom(entityTypes), 1, len(entityTypes)).Draw(t, "types")
	}
	if rapid.Bool().Draw(t, "ego") {
		p.CenterEntityID = fmt.Sprintf("e%02d", rapid.IntRange(0, n).Draw(t, "center"))
	}
	return p
}

func checkWellFormed(t *rapid.T, p Params, g common.Subgraph) {
	nodes := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, dup := nodes[n.ID]; dup {
			t.Fatalf("duplicate node %s", n.ID)
		}
		nodes[n.ID] = struct{}{}
	}

	budget := p.MaxNodes
	if p.Ego() {
		budget++
	}
	if len(g.Nodes) > budget {
		t.Fatalf("node budget exceeded: %d > %d", len(g.Nodes), budget)
	}

	degree := make(map[string]int)
	for _, e := range g.Edges {
		if _, ok := nodes[e.Source]; !ok {
			t.Fatalf("dangling source %s", e.Source)
		}
		if _, ok := nodes[e.Target]; !ok {
			t.Fatalf("dangling target %s", e.Target)
		}
		if e.Source == e.Target {
			t.Fatalf("self loop on %s", e.Source)
		}
		if e.Weight < p.MinStrength {
			t.Fatalf("edge below threshold: %v < %v", e.Weight, p.MinStrength)
		}
		if p.Ego() && e.Source != p.CenterEntityID && e.Target != p.CenterEntityID {
			t.Fatalf("ego edge %s-%s does not touch center", e.Source, e.Target)
		}
		degree[e.Source]++
		degree[e.Target]++
	}
	for _, n := range g.Nodes {
		if n.Degree != degree[n.ID] {
			t.Fatalf("node %s degree %d, edges say %d", n.ID, n.Degree, degree[n.ID])
		}
	}
}

func TestSelectProperties_WellFormed(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s, n := drawTable(t)
		p := drawParams(t, n)

		g, err := NewSelector(s, s).Select(context.Background(), p)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		checkWellFormed(t, p.Normalize(), g)
	})
}

func TestSelectProperties_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s, n := drawTable(t)
		p := drawParams(t, n)
		sel := NewSelector(s, s)

		first, err := sel.Select(context.Background(), p)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		second, err := sel.Select(context.Background(), p)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("repeated select differs:\n%+v\n%+v", first, second)
		}
	})
}

// With a node budget that never binds, raising the threshold can only remove
// edges. A binding budget breaks this: degree ranking can spend the budget on
// a hub whose edges all fall on other nodes, see
// TestSelect_BindingBudgetIsNotMonotone.
func TestSelectProperties_MonotoneThreshold(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s, n := drawTable(t)
		p := drawParams(t, n)
		p.MaxNodes = MaxNodesCap
		higher := p
		higher.MinStrength = rapid.Float64Range(p.MinStrength, 1).Draw(t, "higher")
		sel := NewSelector(s, s)

		low, err := sel.Select(context.Background(), p)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		high, err := sel.Select(context.Background(), higher)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if len(high.Edges) > len(low.Edges) {
			t.Fatalf("raising threshold %v -> %v grew edges %d -> %d", p.MinStrength, higher.MinStrength, len(low.Edges), len(high.Edges))
		}
	})
}
