package buffer

import (
	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/pool"
)

// Scratch is a PoolOwned local buffer. It has no boundary address: its bytes
// leave the process only through CopyTo.
type Scratch struct {
	pool *pool.Bytes
	buf  *[]byte
}

// NewScratch draws a buffer from p.
func NewScratch(p *pool.Bytes) *Scratch {
	return &Scratch{pool: p, buf: p.Get()}
}

// Owner always returns PoolOwned.
func (s *Scratch) Owner() Owner { return PoolOwned }

// Len returns the number of bytes written.
func (s *Scratch) Len() int { return len(*s.buf) }

// Bytes returns the local contents.
func (s *Scratch) Bytes() []byte { return *s.buf }

// Write appends p. It implements io.Writer.
func (s *Scratch) Write(p []byte) (int, error) {
	*s.buf = append(*s.buf, p...)
	return len(p), nil
}

// Encode replaces the contents with fn applied to an empty slice that keeps
// the pooled capacity.
func (s *Scratch) Encode(fn func([]byte) []byte) {
	*s.buf = fn((*s.buf)[:0])
}

// CopyTo writes the contents into a caller-owned span with single-buffer-out
// truncation.
func (s *Scratch) CopyTo(mem wasmbridge.Memory, ptr, capacity uint32) (uint32, bool, error) {
	return WriteTruncated(mem, ptr, capacity, *s.buf)
}

// Release returns the buffer to its pool. The Scratch must not be used after.
func (s *Scratch) Release() {
	if s.buf == nil {
		return
	}
	s.pool.Put(s.buf)
	s.buf = nil
}
