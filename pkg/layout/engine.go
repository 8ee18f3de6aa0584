package layout

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/legitrack/relnet/backend/pkg/common"
	"github.com/legitrack/relnet/backend/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

var ErrRunStopped = errors.New("layout: run is stopped")

type State int

const (
	StateIdle State = iota
	StateRunning
	StateFrozen
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFrozen:
		return "frozen"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type StopReason string

const (
	ReasonNone       StopReason = ""
	ReasonSettled    StopReason = "settled"
	ReasonSuperseded StopReason = "superseded"
	ReasonTornDown   StopReason = "torn-down"
)

// Frame is one coordinate update. The last frame of a run that settles on
// its own has Final set; superseded and torn down runs emit nothing more.
type Frame struct {
	RunID     string     `json:"run_id"`
	Tick      int        `json:"tick"`
	Alpha     float64    `json:"alpha"`
	Positions []Position `json:"positions"`
	Final     bool       `json:"final,omitempty"`
	Reason    StopReason `json:"reason,omitempty"`
}

// TickFunc receives frames on the run's loop goroutine. It must not call
// Engine.Start or Engine.Stop of the engine that owns the run.
type TickFunc func(Frame)

// Engine owns at most one live run. Starting a run stops the previous one
// first.
type Engine struct {
	cfg Config
	gen atomic.Uint64

	mu   sync.Mutex
	live *Run
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Start stops the current run with ReasonSuperseded, waits until its loop has
// exited and launches a new run over g. When Start returns no callback of
// the previous run can fire any more.
func (e *Engine) Start(g common.Subgraph, bounds Bounds, primaryID string, onTick TickFunc) *Run {
	id, err := gonanoid.New()
	if err != nil {
		id = fmt.Sprintf("run-%d", time.Now().UnixNano())
	}

	e.mu.Lock()
	gen := e.gen.Add(1)
	prev := e.live
	run := &Run{
		id:     id,
		gen:    gen,
		engine: e,
		onTick: onTick,
		sim:    NewSimulation(g, bounds, primaryID, e.cfg),
		state:  StateRunning,
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	e.live = run
	e.mu.Unlock()

	if prev != nil {
		prev.stop(ReasonSuperseded)
		<-prev.done
	}

	logger.Debug("[Layout][Start] Starting run", "run", id, "nodes", len(run.sim.points), "links", len(run.sim.links))
	go run.loop(e.cfg)
	return run
}

// Stop tears down the live run, if any, and waits for its loop to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	prev := e.live
	e.live = nil
	e.gen.Add(1)
	e.mu.Unlock()

	if prev != nil {
		prev.stop(ReasonTornDown)
		<-prev.done
	}
}

// Current returns the most recently started run, which may already have
// settled, or nil.
func (e *Engine) Current() *Run {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live
}

// idle reports whether the engine has no run that can still change.
func (e *Engine) idle() bool {
	run := e.Current()
	if run == nil {
		return true
	}
	state, _ := run.State()
	return state == StateStopped
}

// Run is the handle of one simulation.
type Run struct {
	id     string
	gen    uint64
	engine *Engine
	onTick TickFunc

	mu     sync.Mutex
	sim    *Simulation
	state  State
	reason StopReason

	wake     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

func (r *Run) ID() string {
	return r.id
}

// Done is closed once the run's loop has exited.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

func (r *Run) State() (State, StopReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.reason
}

// Snapshot returns the current positions. It is valid in every state.
func (r *Run) Snapshot() Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frameLocked()
}

// Freeze suspends ticking without touching positions.
func (r *Run) Freeze() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case StateStopped:
		return ErrRunStopped
	case StateRunning:
		r.state = StateFrozen
	}
	return nil
}

func (r *Run) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case StateStopped:
		return ErrRunStopped
	case StateFrozen:
		r.state = StateRunning
		select {
		case r.wake <- struct{}{}:
		default:
		}
	}
	return nil
}

// DragNode pins id at (x, y) and reheats the simulation. Emitted positions
// of a pinned node always equal the last coordinates passed here.
func (r *Run) DragNode(id string, x, y float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateStopped {
		return ErrRunStopped
	}
	if err := r.sim.Pin(id, x, y); err != nil {
		return err
	}
	r.sim.SetAlphaTarget(r.engine.cfg.DragAlphaTarget)
	return nil
}

// ReleaseNode ends the drag of id. Once no node is pinned the simulation
// cools down again.
func (r *Run) ReleaseNode(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateStopped {
		return ErrRunStopped
	}
	if err := r.sim.Unpin(id); err != nil {
		return err
	}
	if r.sim.PinnedCount() == 0 {
		r.sim.SetAlphaTarget(r.engine.cfg.AlphaTarget)
	}
	return nil
}

// Stop tears the run down. It does not wait for the loop; use Done.
func (r *Run) Stop() {
	r.stop(ReasonTornDown)
}

func (r *Run) stop(reason StopReason) {
	r.mu.Lock()
	if r.state != StateStopped {
		r.state = StateStopped
		r.reason = reason
	}
	r.mu.Unlock()
	r.quitOnce.Do(func() { close(r.quit) })
}

func (r *Run) live() bool {
	return r.engine.gen.Load() == r.gen
}

func (r *Run) frameLocked() Frame {
	return Frame{
		RunID:     r.id,
		Tick:      r.sim.Ticks(),
		Alpha:     r.sim.Alpha(),
		Positions: r.sim.Positions(),
	}
}

func (r *Run) frozen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateFrozen
}

// step advances one tick. It reports false when the run is not running.
func (r *Run) step(budget int) (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRunning {
		return Frame{}, false
	}

	r.sim.Tick()
	frame := r.frameLocked()
	if r.sim.Settled() || r.sim.Ticks() >= budget {
		r.state = StateStopped
		r.reason = ReasonSettled
		frame.Final = true
		frame.Reason = ReasonSettled
	}
	return frame, true
}

func (r *Run) loop(cfg Config) {
	defer close(r.done)

	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()
	budget := cfg.MaxTicks()

	for {
		if r.frozen() {
			select {
			case <-r.quit:
				return
			case <-r.wake:
			}
			continue
		}

		select {
		case <-r.quit:
			return
		case <-ticker.C:
		}

		frame, ok := r.step(budget)
		if !ok {
			continue
		}
		if !r.live() {
			return
		}
		if r.onTick != nil {
			r.onTick(frame)
		}
		if frame.Final {
			logger.Debug("[Layout][Run] Settled", "run", r.id, "ticks", frame.Tick, "alpha", frame.Alpha, "skipped", r.sim.Skipped())
			return
		}
	}
}
