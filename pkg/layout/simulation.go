// Package layout computes 2D positions for a subgraph with an iterative force
// simulation and drives it as a cancellable, tick-based run.
package layout

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/legitrack/relnet/backend/pkg/common"

	"gonum.org/v1/gonum/spatial/r2"
)

var (
	ErrUnknownNode     = errors.New("layout: unknown node")
	ErrInvalidPosition = errors.New("layout: position is not finite")
)

const (
	defaultWidth  = 800
	defaultHeight = 600
)

// Bounds is the viewport the layout is centered in.
type Bounds struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b Bounds) normalize() Bounds {
	if !(b.Width > 0) || math.IsInf(b.Width, 0) {
		b.Width = defaultWidth
	}
	if !(b.Height > 0) || math.IsInf(b.Height, 0) {
		b.Height = defaultHeight
	}
	return b
}

func (b Bounds) Center() r2.Vec {
	return r2.Vec{X: b.Width / 2, Y: b.Height / 2}
}

// Point is the mutable per-node state of a simulation.
type Point struct {
	ID     string
	Pos    r2.Vec
	Vel    r2.Vec
	Pinned bool

	fixed  r2.Vec
	radius float64
	links  int
}

// Position is the emitted form of a point.
type Position struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Pinned bool    `json:"pinned,omitempty"`
}

type link struct {
	source, target int
	strength       float64
	bias           float64
}

// Simulation is a single force layout. It is not safe for concurrent use;
// Run serializes access to it.
type Simulation struct {
	cfg    Config
	bounds Bounds

	points []Point
	index  map[string]int
	links  []link

	alpha       float64
	alphaTarget float64
	ticks       int
	skipped     int

	prev []r2.Vec
	rng  *rand.Rand
}

// NewSimulation places one point per node of g. The node primaryID, if
// present, starts at the bounds center and gets the larger collision radius;
// every other node starts evenly spaced on a ring around the center.
//
// Nodes without an id or repeated ids, edges with an unknown endpoint, self
// loops and edges with a non-finite weight are skipped.
func NewSimulation(g common.Subgraph, bounds Bounds, primaryID string, cfg Config) *Simulation {
	bounds = bounds.normalize()
	s := &Simulation{
		cfg:         cfg,
		bounds:      bounds,
		index:       make(map[string]int, len(g.Nodes)),
		alpha:       cfg.AlphaStart,
		alphaTarget: cfg.AlphaTarget,
		rng:         rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}

	for _, n := range g.Nodes {
		if n.ID == "" {
			continue
		}
		if _, dup := s.index[n.ID]; dup {
			continue
		}
		s.index[n.ID] = len(s.points)
		s.points = append(s.points, Point{ID: n.ID, radius: cfg.CollideRadius})
	}
	s.prev = make([]r2.Vec, len(s.points))

	s.place(primaryID)
	s.initLinks(g.Edges)
	return s
}

func (s *Simulation) place(primaryID string) {
	center := s.bounds.Center()
	radius := min(s.bounds.Width, s.bounds.Height) * s.cfg.RingFraction

	primary, hasPrimary := s.index[primaryID]
	ring := len(s.points)
	if hasPrimary {
		ring--
		s.points[primary].Pos = center
		s.points[primary].radius = s.cfg.PrimaryRadius
	}

	slot := 0
	for i := range s.points {
		if hasPrimary && i == primary {
			continue
		}
		angle := 2 * math.Pi * float64(slot) / float64(ring)
		s.points[i].Pos = r2.Add(center, r2.Vec{X: radius * math.Cos(angle), Y: radius * math.Sin(angle)})
		slot++
	}
}

func (s *Simulation) initLinks(edges []common.SubgraphEdge) {
	maxWeight := 0.0
	for _, e := range edges {
		if isFinite(e.Weight) && e.Weight > maxWeight {
			maxWeight = e.Weight
		}
	}

	for _, e := range edges {
		src, okS := s.index[e.Source]
		dst, okT := s.index[e.Target]
		if !okS || !okT || src == dst || !isFinite(e.Weight) || e.Weight < 0 {
			continue
		}
		weight := 1.0
		if maxWeight > 0 {
			weight = e.Weight / maxWeight
		}
		s.links = append(s.links, link{source: src, target: dst, strength: weight})
		s.points[src].links++
		s.points[dst].links++
	}

	for i := range s.links {
		l := &s.links[i]
		cs, ct := float64(s.points[l.source].links), float64(s.points[l.target].links)
		l.strength *= s.cfg.LinkStrength / min(cs, ct)
		l.bias = cs / (cs + ct)
	}
}

// Tick advances the simulation by one step.
func (s *Simulation) Tick() {
	s.alpha += (s.alphaTarget - s.alpha) * s.cfg.AlphaDecay
	for i := range s.points {
		s.prev[i] = s.points[i].Pos
	}

	s.applyLinks()
	s.applyCharge()
	s.applyCenter()
	s.applyCollide()
	s.integrate()
	s.ticks++
}

func (s *Simulation) integrate() {
	keep := 1 - s.cfg.VelocityDecay
	for i := range s.points {
		p := &s.points[i]
		if p.Pinned {
			p.Pos = p.fixed
			p.Vel = r2.Vec{}
			continue
		}
		p.Vel = r2.Scale(keep, p.Vel)
		p.Pos = r2.Add(p.Pos, p.Vel)
		if !isFiniteVec(p.Pos) || !isFiniteVec(p.Vel) {
			p.Pos = s.prev[i]
			p.Vel = r2.Vec{}
			s.skipped++
		}
	}
}

// Pin fixes the point id at (x, y). The position is applied immediately and
// kept exactly until Unpin.
func (s *Simulation) Pin(id string, x, y float64) error {
	i, ok := s.index[id]
	if !ok {
		return ErrUnknownNode
	}
	if !isFinite(x) || !isFinite(y) {
		return ErrInvalidPosition
	}
	p := &s.points[i]
	p.Pinned = true
	p.fixed = r2.Vec{X: x, Y: y}
	p.Pos = p.fixed
	p.Vel = r2.Vec{}
	return nil
}

// Unpin hands the point back to the forces.
func (s *Simulation) Unpin(id string) error {
	i, ok := s.index[id]
	if !ok {
		return ErrUnknownNode
	}
	s.points[i].Pinned = false
	return nil
}

func (s *Simulation) PinnedCount() int {
	n := 0
	for _, p := range s.points {
		if p.Pinned {
			n++
		}
	}
	return n
}

func (s *Simulation) SetAlphaTarget(v float64) {
	s.alphaTarget = v
}

func (s *Simulation) Alpha() float64 {
	return s.alpha
}

func (s *Simulation) Ticks() int {
	return s.ticks
}

// Skipped counts point updates discarded because they were not finite.
func (s *Simulation) Skipped() int {
	return s.skipped
}

// Settled reports whether alpha fell below the configured minimum.
func (s *Simulation) Settled() bool {
	return s.alpha < s.cfg.AlphaMin
}

func (s *Simulation) Positions() []Position {
	out := make([]Position, len(s.points))
	for i, p := range s.points {
		out[i] = Position{ID: p.ID, X: p.Pos.X, Y: p.Pos.Y, Pinned: p.Pinned}
	}
	return out
}

func (s *Simulation) jiggle() float64 {
	return (s.rng.Float64() - 0.5) * 1e-6
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func isFiniteVec(v r2.Vec) bool {
	return isFinite(v.X) && isFinite(v.Y)
}
