package layout

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Pinned points are never moved by a force. Their position still acts on the
// points they interact with.

func (s *Simulation) applyLinks() {
	for _, l := range s.links {
		src, dst := &s.points[l.source], &s.points[l.target]

		d := r2.Sub(r2.Add(dst.Pos, dst.Vel), r2.Add(src.Pos, src.Vel))
		if d.X == 0 {
			d.X = s.jiggle()
		}
		if d.Y == 0 {
			d.Y = s.jiggle()
		}
		dist := r2.Norm(d)
		if dist == 0 {
			continue
		}
		d = r2.Scale((dist-s.cfg.LinkDistance)/dist*s.alpha*l.strength, d)

		if !dst.Pinned {
			dst.Vel = r2.Sub(dst.Vel, r2.Scale(l.bias, d))
		}
		if !src.Pinned {
			src.Vel = r2.Add(src.Vel, r2.Scale(1-l.bias, d))
		}
	}
}

// applyCharge is the exact pairwise many-body force. Subgraphs are capped at a
// few hundred nodes, so no spatial approximation is used.
func (s *Simulation) applyCharge() {
	minSq := s.cfg.ChargeDistanceMin * s.cfg.ChargeDistanceMin
	maxSq := math.Inf(1)
	if s.cfg.ChargeDistanceMax > 0 {
		maxSq = s.cfg.ChargeDistanceMax * s.cfg.ChargeDistanceMax
	}
	w := s.cfg.ChargeStrength * s.alpha

	for i := range s.points {
		p := &s.points[i]
		if p.Pinned {
			continue
		}
		for j := range s.points {
			if i == j {
				continue
			}
			d := r2.Sub(s.points[j].Pos, p.Pos)
			l := r2.Norm2(d)
			if l >= maxSq {
				continue
			}
			if d.X == 0 {
				d.X = s.jiggle()
				l += d.X * d.X
			}
			if d.Y == 0 {
				d.Y = s.jiggle()
				l += d.Y * d.Y
			}
			if l < minSq {
				l = math.Sqrt(minSq * l)
			}
			p.Vel = r2.Add(p.Vel, r2.Scale(w/l, d))
		}
	}
}

// applyCenter translates the free points so that their mean sits on the
// viewport center.
func (s *Simulation) applyCenter() {
	var sum r2.Vec
	n := 0
	for _, p := range s.points {
		if p.Pinned {
			continue
		}
		sum = r2.Add(sum, p.Pos)
		n++
	}
	if n == 0 {
		return
	}
	mean := r2.Scale(1/float64(n), sum)
	shift := r2.Scale(s.cfg.CenterStrength, r2.Sub(s.bounds.Center(), mean))
	if !isFiniteVec(shift) {
		return
	}
	for i := range s.points {
		if !s.points[i].Pinned {
			s.points[i].Pos = r2.Add(s.points[i].Pos, shift)
		}
	}
}

func (s *Simulation) applyCollide() {
	for i := range s.points {
		a := &s.points[i]
		for j := i + 1; j < len(s.points); j++ {
			b := &s.points[j]
			if a.Pinned && b.Pinned {
				continue
			}
			r := a.radius + b.radius
			d := r2.Sub(r2.Add(a.Pos, a.Vel), r2.Add(b.Pos, b.Vel))
			l := r2.Norm2(d)
			if !(l < r*r) {
				continue
			}
			if d.X == 0 {
				d.X = s.jiggle()
				l += d.X * d.X
			}
			if d.Y == 0 {
				d.Y = s.jiggle()
				l += d.Y * d.Y
			}
			dist := math.Sqrt(l)
			d = r2.Scale((r-dist)/dist*s.cfg.CollideStrength, d)

			ra, rb := a.radius*a.radius, b.radius*b.radius
			share := rb / (ra + rb)
			switch {
			case a.Pinned:
				share = 0
			case b.Pinned:
				share = 1
			}
			if !a.Pinned {
				a.Vel = r2.Add(a.Vel, r2.Scale(share, d))
			}
			if !b.Pinned {
				b.Vel = r2.Sub(b.Vel, r2.Scale(1-share, d))
			}
		}
	}
}
