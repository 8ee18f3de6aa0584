package layout

import (
	"sync"
	"time"

	"github.com/legitrack/relnet/backend/pkg/logger"
)

const (
	viewIdleTTL    = 10 * time.Minute
	viewSweepAbove = 64
)

type viewEntry struct {
	engine   *Engine
	lastUsed time.Time
}

// Registry keeps one Engine per graph view. Views whose run has stopped and
// that were not touched for a while are forgotten once the registry grows.
type Registry struct {
	cfg        Config
	idleTTL    time.Duration
	sweepAbove int
	now        func() time.Time

	mu    sync.Mutex
	views map[string]*viewEntry
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:        cfg,
		idleTTL:    viewIdleTTL,
		sweepAbove: viewSweepAbove,
		now:        time.Now,
		views:      make(map[string]*viewEntry),
	}
}

func (r *Registry) Config() Config {
	return r.cfg
}

// Engine returns the engine of viewID, creating it on first use.
func (r *Registry) Engine(viewID string) *Engine {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.views) >= r.sweepAbove {
		r.sweepLocked(now)
	}
	v, ok := r.views[viewID]
	if !ok {
		v = &viewEntry{engine: NewEngine(r.cfg)}
		r.views[viewID] = v
	}
	v.lastUsed = now
	return v.engine
}

func (r *Registry) Lookup(viewID string) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[viewID]
	if !ok {
		return nil, false
	}
	v.lastUsed = r.now()
	return v.engine, true
}

// Sweep forgets idle views and returns how many were dropped.
func (r *Registry) Sweep() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked(now)
}

// sweepLocked drops views idle for longer than idleTTL whose run is gone or
// stopped. Running and frozen views are kept.
func (r *Registry) sweepLocked(now time.Time) int {
	dropped := 0
	for id, v := range r.views {
		if now.Sub(v.lastUsed) <= r.idleTTL || !v.engine.idle() {
			continue
		}
		delete(r.views, id)
		dropped++
	}
	if dropped > 0 {
		logger.Debug("[Layout][Registry] Dropped idle views", "count", dropped, "remaining", len(r.views))
	}
	return dropped
}

// Remove tears down the view's run and forgets the view.
func (r *Registry) Remove(viewID string) bool {
	r.mu.Lock()
	v, ok := r.views[viewID]
	delete(r.views, viewID)
	r.mu.Unlock()
	if !ok {
		return false
	}
	v.engine.Stop()
	logger.Debug("[Layout][Registry] Removed view", "view", viewID)
	return true
}

// Close tears down every view.
func (r *Registry) Close() {
	r.mu.Lock()
	views := r.views
	r.views = make(map[string]*viewEntry)
	r.mu.Unlock()

	for _, v := range views {
		v.engine.Stop()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}
