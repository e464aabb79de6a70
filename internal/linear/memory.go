package linear

import (
	"encoding/binary"
	"sync"

	"github.com/wippyai/wasm-bridge/errors"
)

// PageSize matches the WebAssembly page size.
const PageSize = 65536

// Memory is a fixed-size little-endian linear memory.
// Read returns a view into the backing array, like wazero does.
type Memory struct {
	data []byte
	mu   sync.RWMutex
}

// NewMemory allocates pages*PageSize zeroed bytes.
func NewMemory(pages uint32) *Memory {
	return &Memory{data: make([]byte, int(pages)*PageSize)}
}

// Size returns the memory size in bytes.
func (m *Memory) Size() uint32 {
	return uint32(len(m.data))
}

func (m *Memory) span(offset, length uint32) (int, int, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(m.data)) {
		return 0, 0, errors.OutOfBounds(errors.PhaseBuffer, offset, length)
	}
	return int(offset), int(end), nil
}

// Read returns length bytes at offset.
func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lo, hi, err := m.span(offset, length)
	if err != nil {
		return nil, err
	}
	return m.data[lo:hi:hi], nil
}

// Write copies data to offset.
func (m *Memory) Write(offset uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lo, hi, err := m.span(offset, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(m.data[lo:hi], data)
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	b, err := m.Read(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	b, err := m.Read(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	b, err := m.Read(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// WriteU8 writes an unsigned 8-bit value.
func (m *Memory) WriteU8(offset uint32, value uint8) error {
	return m.Write(offset, []byte{value})
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *Memory) WriteU32(offset uint32, value uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], value)
	return m.Write(offset, b[:])
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (m *Memory) WriteU64(offset uint32, value uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], value)
	return m.Write(offset, b[:])
}
