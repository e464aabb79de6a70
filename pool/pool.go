// Package pool provides a bounded, mutex-guarded object pool.
//
// Unlike sync.Pool the pool never drops values behind the caller's back and
// never grows past its capacity, which keeps the hot-path allocation count
// predictable. Values are not validated on Put; reset is the caller's job
// (or the optional reset hook's).
package pool

import "sync"

// Pool holds up to capacity idle values of type T.
type Pool[T any] struct {
	newFn   func() T
	resetFn func(T) T
	items   []T
	cap     int
	mu      sync.Mutex
}

// New creates a pool. newFn builds a fresh value when the pool is empty.
// resetFn, when non-nil, runs on every Put before the value is kept.
func New[T any](capacity int, newFn func() T, resetFn func(T) T) *Pool[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Pool[T]{
		newFn:   newFn,
		resetFn: resetFn,
		items:   make([]T, 0, capacity),
		cap:     capacity,
	}
}

// Get returns an idle value or a newly constructed one.
func (p *Pool[T]) Get() T {
	p.mu.Lock()
	if n := len(p.items); n > 0 {
		v := p.items[n-1]
		var zero T
		p.items[n-1] = zero
		p.items = p.items[:n-1]
		p.mu.Unlock()
		return v
	}
	p.mu.Unlock()
	return p.newFn()
}

// Put returns v to the pool. It reports false when the pool is full and v
// was discarded.
func (p *Pool[T]) Put(v T) bool {
	if p.resetFn != nil {
		v = p.resetFn(v)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.items) >= p.cap {
		return false
	}
	p.items = append(p.items, v)
	return true
}

// Len returns the number of idle values.
func (p *Pool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Cap returns the configured capacity.
func (p *Pool[T]) Cap() int { return p.cap }

// Bytes is a pool of byte slices. Slices that grew past maxCap are
// dropped on Put so one oversized response does not pin memory.
type Bytes struct {
	pool   *Pool[*[]byte]
	maxCap int
}

// NewBytes creates a byte-slice pool whose fresh slices start with initCap.
func NewBytes(capacity, initCap, maxCap int) *Bytes {
	return &Bytes{
		pool: New(capacity,
			func() *[]byte {
				buf := make([]byte, 0, initCap)
				return &buf
			},
			func(buf *[]byte) *[]byte {
				*buf = (*buf)[:0]
				return buf
			},
		),
		maxCap: maxCap,
	}
}

// Get returns an empty slice.
func (b *Bytes) Get() *[]byte { return b.pool.Get() }

// Put returns buf to the pool.
func (b *Bytes) Put(buf *[]byte) bool {
	if buf == nil || (b.maxCap > 0 && cap(*buf) > b.maxCap) {
		return false
	}
	return b.pool.Put(buf)
}

// Len returns the number of idle slices.
func (b *Bytes) Len() int { return b.pool.Len() }
