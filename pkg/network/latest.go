package network

import (
	"context"
	"sync"
)

type ticket struct {
	seq    uint64
	cancel context.CancelCauseFunc
}

// Latest implements last-request-wins per view. Each Begin cancels the query
// previously registered for the same view with cause ErrSuperseded.
type Latest struct {
	mu       sync.Mutex
	seq      uint64
	inflight map[string]ticket
}

func NewLatest() *Latest {
	return &Latest{inflight: make(map[string]ticket)}
}

// Begin registers a query for view and returns its context. release must be
// called when the query is finished. An empty view opts out: the context is
// returned unchanged and nothing is cancelled.
func (l *Latest) Begin(ctx context.Context, view string) (context.Context, func()) {
	if view == "" {
		return ctx, func() {}
	}

	qctx, cancel := context.WithCancelCause(ctx)

	l.mu.Lock()
	l.seq++
	seq := l.seq
	prev, hadPrev := l.inflight[view]
	l.inflight[view] = ticket{seq: seq, cancel: cancel}
	l.mu.Unlock()

	if hadPrev {
		prev.cancel(ErrSuperseded)
	}

	release := func() {
		l.mu.Lock()
		if cur, ok := l.inflight[view]; ok && cur.seq == seq {
			delete(l.inflight, view)
		}
		l.mu.Unlock()
		cancel(context.Canceled)
	}
	return qctx, release
}

// Cancel aborts the in-flight query of view, if any, with ErrSuperseded.
func (l *Latest) Cancel(view string) {
	l.mu.Lock()
	cur, ok := l.inflight[view]
	if ok {
		delete(l.inflight, view)
	}
	l.mu.Unlock()
	if ok {
		cur.cancel(ErrSuperseded)
	}
}

// InFlight returns the number of views with a running query.
func (l *Latest) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inflight)
}
