// Package reqpool correlates fire-and-forget sends with the asynchronous
// acknowledgment that later confirms them.
package reqpool

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/wpp-puppet/internal/errs"
	"go.uber.org/zap"
)

// Pending is one waiter registered with Push.
type Pending struct {
	id    string
	done  chan struct{}
	err   error
	timer *time.Timer
}

// ID returns the correlation id the waiter was registered under.
func (p *Pending) ID() string { return p.id }

// Done is closed once the waiter is resolved, rejected or timed out.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Err returns the outcome. Only meaningful after Done is closed.
func (p *Pending) Err() error { return p.err }

// Wait blocks until the waiter settles or ctx is done. Cancelling ctx does
// not remove the waiter; its own timeout still fires.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pool maps correlation ids to their waiters.
type Pool struct {
	mu      sync.Mutex
	waiters map[string][]*Pending
	logger  *zap.Logger
}

// New creates an empty pool.
func New(logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{waiters: make(map[string][]*Pending), logger: logger}
}

// Push registers a waiter for id that fails with a RequestTimeout error
// unless Resolve(id) is called within timeout. Concurrent pushes for the
// same id are independent waiters.
func (p *Pool) Push(id string, timeout time.Duration) *Pending {
	w := &Pending{id: id, done: make(chan struct{})}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.waiters[id] = append(p.waiters[id], w)
	w.timer = time.AfterFunc(timeout, func() {
		if p.remove(w) {
			p.logger.Debug("request timed out", zap.String("id", id), zap.Duration("timeout", timeout))
			w.settle(errs.New(errs.CodeRequestTimeout, "%s after %s", id, timeout))
		}
	})
	return w
}

// Resolve settles every waiter of id successfully and forgets the id.
// Resolving an unknown id is a no-op.
func (p *Pool) Resolve(id string) {
	for _, w := range p.take(id) {
		w.timer.Stop()
		w.settle(nil)
	}
}

// Reject fails every waiter of id with err.
func (p *Pool) Reject(id string, err error) {
	for _, w := range p.take(id) {
		w.timer.Stop()
		w.settle(err)
	}
}

// Clear rejects every waiter with a RequestTimeout error and empties the pool.
func (p *Pool) Clear() {
	p.mu.Lock()
	all := p.waiters
	p.waiters = make(map[string][]*Pending)
	p.mu.Unlock()

	n := 0
	for id, ws := range all {
		for _, w := range ws {
			w.timer.Stop()
			w.settle(errs.New(errs.CodeRequestTimeout, "%s: pool cleared", id))
			n++
		}
	}
	if n > 0 {
		p.logger.Info("request pool cleared", zap.Int("waiters", n))
	}
}

// Len returns the number of outstanding waiters.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ws := range p.waiters {
		n += len(ws)
	}
	return n
}

func (p *Pool) take(id string) []*Pending {
	p.mu.Lock()
	defer p.mu.Unlock()
	ws := p.waiters[id]
	delete(p.waiters, id)
	return ws
}

// remove drops w from its id's list and reports whether it was still there.
// Whoever removes a waiter owns settling it.
func (p *Pool) remove(w *Pending) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ws := p.waiters[w.id]
	for i, cand := range ws {
		if cand != w {
			continue
		}
		ws = append(ws[:i:i], ws[i+1:]...)
		if len(ws) == 0 {
			delete(p.waiters, w.id)
		} else {
			p.waiters[w.id] = ws
		}
		return true
	}
	return false
}

func (w *Pending) settle(err error) {
	w.err = err
	close(w.done)
}
