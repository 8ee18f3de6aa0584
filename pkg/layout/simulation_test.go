package layout

import (
	"math"
	"testing"

	"github.com/legitrack/relnet/backend/pkg/common"

	"gonum.org/v1/gonum/spatial/r2"
)

func triangle() common.Subgraph {
	return common.Subgraph{
		Nodes: []common.SubgraphNode{{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "D"}},
		Edges: []common.SubgraphEdge{
			{Source: "A", Target: "B", Weight: 0.9},
			{Source: "A", Target: "C", Weight: 0.5},
			{Source: "B", Target: "C", Weight: 0.2},
			{Source: "A", Target: "D", Weight: 0.1},
		},
	}
}

func TestNewSimulation_InitialPlacement(t *testing.T) {
	bounds := Bounds{Width: 900, Height: 600}
	s := NewSimulation(triangle(), bounds, "A", DefaultConfig())

	center := bounds.Center()
	if got := s.points[s.index["A"]].Pos; got != center {
		t.Fatalf("expected primary at %v, got %v", center, got)
	}
	want := 600.0 / 3
	for _, id := range []string{"B", "C", "D"} {
		d := r2.Norm(r2.Sub(s.points[s.index[id]].Pos, center))
		if math.Abs(d-want) > 1e-9 {
			t.Fatalf("expected %s on ring of radius %v, got %v", id, want, d)
		}
	}
	if s.points[s.index["A"]].radius <= s.points[s.index["B"]].radius {
		t.Fatalf("expected primary to have the larger collision radius")
	}
}

func TestNewSimulation_SkipsMalformedInput(t *testing.T) {
	g := common.Subgraph{
		Nodes: []common.SubgraphNode{{ID: "A"}, {ID: "B"}, {ID: "A"}, {ID: ""}},
		Edges: []common.SubgraphEdge{
			{Source: "A", Target: "B", Weight: 1},
			{Source: "A", Target: "ghost", Weight: 1},
			{Source: "A", Target: "A", Weight: 1},
			{Source: "A", Target: "B", Weight: math.NaN()},
			{Source: "B", Target: "A", Weight: math.Inf(1)},
		},
	}
	s := NewSimulation(g, Bounds{}, "", DefaultConfig())
	if len(s.points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(s.points))
	}
	if len(s.links) != 1 {
		t.Fatalf("expected 1 usable link, got %d", len(s.links))
	}

	for range 50 {
		s.Tick()
	}
	for _, p := range s.Positions() {
		if !isFinite(p.X) || !isFinite(p.Y) {
			t.Fatalf("non-finite position for %s: %+v", p.ID, p)
		}
	}
}

func TestSimulation_PinnedPointIgnoresForces(t *testing.T) {
	s := NewSimulation(triangle(), Bounds{Width: 800, Height: 600}, "A", DefaultConfig())
	if err := s.Pin("B", 12.5, -3); err != nil {
		t.Fatalf("pin: %v", err)
	}
	for range 30 {
		s.Tick()
		p := s.points[s.index["B"]]
		if p.Pos.X != 12.5 || p.Pos.Y != -3 {
			t.Fatalf("pinned point moved to %v", p.Pos)
		}
	}

	if err := s.Unpin("B"); err != nil {
		t.Fatalf("unpin: %v", err)
	}
	s.Tick()
	if p := s.points[s.index["B"]].Pos; p.X == 12.5 && p.Y == -3 {
		t.Fatalf("released point did not move")
	}
}

func TestSimulation_PinRejectsBadInput(t *testing.T) {
	s := NewSimulation(triangle(), Bounds{}, "", DefaultConfig())
	if err := s.Pin("nope", 1, 1); err != ErrUnknownNode {
		t.Fatalf("expected ErrUnknownNode, got %v", err)
	}
	if err := s.Pin("A", math.NaN(), 1); err != ErrInvalidPosition {
		t.Fatalf("expected ErrInvalidPosition, got %v", err)
	}
}

func TestSimulation_NonFiniteUpdateIsSkipped(t *testing.T) {
	s := NewSimulation(triangle(), Bounds{Width: 800, Height: 600}, "A", DefaultConfig())
	d := s.index["D"]
	before := s.points[d].Pos
	s.points[d].Vel = r2.Vec{X: math.Inf(1), Y: 0}

	s.Tick()

	if s.Skipped() == 0 {
		t.Fatalf("expected a skipped update")
	}
	if got := s.points[d].Pos; got != before {
		t.Fatalf("expected D to stay at %v, got %v", before, got)
	}
	if s.points[d].Vel != (r2.Vec{}) {
		t.Fatalf("expected velocity reset, got %v", s.points[d].Vel)
	}
	for range 10 {
		s.Tick()
	}
	for _, p := range s.Positions() {
		if !isFinite(p.X) || !isFinite(p.Y) {
			t.Fatalf("non-finite position for %s after recovery", p.ID)
		}
	}
}

func TestSimulation_AlphaDecays(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSimulation(triangle(), Bounds{}, "", cfg)
	for !s.Settled() && s.Ticks() < 10000 {
		s.Tick()
	}
	if !s.Settled() {
		t.Fatalf("simulation never settled, alpha %v", s.Alpha())
	}
	if s.Ticks() < 100 {
		t.Fatalf("expected a few hundred ticks before settling, got %d", s.Ticks())
	}
}

func TestSimulation_CollisionSeparatesOverlap(t *testing.T) {
	g := common.Subgraph{Nodes: []common.SubgraphNode{{ID: "A"}, {ID: "B"}}}
	cfg := DefaultConfig()
	cfg.ChargeStrength = 0
	s := NewSimulation(g, Bounds{Width: 800, Height: 600}, "", cfg)
	s.points[0].Pos = r2.Vec{X: 400, Y: 300}
	s.points[1].Pos = r2.Vec{X: 401, Y: 300}

	for range 50 {
		s.Tick()
	}
	d := r2.Norm(r2.Sub(s.points[0].Pos, s.points[1].Pos))
	if d < cfg.CollideRadius {
		t.Fatalf("expected points to separate, distance %v", d)
	}
}
