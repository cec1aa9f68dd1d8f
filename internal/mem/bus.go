package mem

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
)

// Bus is the access path for all simulated memory and register traffic.
// All multi-byte access is little-endian, matching the target.
//
// Implementations must be safe for concurrent use: handlers running on a
// raising goroutine and mainline code share the same bus.
type Bus interface {
	Read8(addr uint32) uint8
	Write8(addr uint32, v uint8)
	Read16(addr uint32) uint16
	Write16(addr uint32, v uint16)
	Read32(addr uint32) uint32
	Write32(addr uint32, v uint32)
}

// IORegion intercepts access to a half-open address range [Start, End),
// rounded out to word boundaries when mapped. OnRead and OnWrite see
// word-aligned 32-bit traffic; narrower access to any word the region
// touches is widened to a read-modify-write of the containing word.
type IORegion struct {
	Start   uint32
	End     uint32
	OnRead  func(addr uint32) uint32
	OnWrite func(addr uint32, v uint32)
}

type bank struct {
	base uint32
	data []byte
}

// Space is the standard Bus implementation: one or more memory banks
// (flash, SRAM) plus registered I/O regions consulted before bank lookup.
//
// Access outside any bank or I/O region does not fault; reads return zero
// and writes are dropped. Faulting on stray access is the machine's
// decision, not the bus's.
type Space struct {
	mu      sync.RWMutex
	banks   []bank
	regions []IORegion
}

// NewSpace creates an empty address space. Add banks and I/O regions
// before wiring the core to it.
func NewSpace() *Space {
	return &Space{}
}

// AddBank maps size bytes of zeroed memory at base. Banks must not
// overlap each other.
func (s *Space) AddBank(base uint32, size uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.banks {
		if base < b.base+uint32(len(b.data)) && b.base < base+size {
			return fmt.Errorf("bank [%#x, %#x) overlaps existing bank at %#x", base, base+size, b.base)
		}
	}
	s.banks = append(s.banks, bank{base: base, data: make([]byte, size)})
	sort.Slice(s.banks, func(i, j int) bool { return s.banks[i].base < s.banks[j].base })
	return nil
}

// MapIO registers an I/O region. Later registrations win on overlap,
// letting a test shadow a default peripheral block.
//
// Bounds are rounded out to word granularity: a region owns every word it
// touches, so the word-widened narrow accesses always agree with the
// region check.
func (s *Space) MapIO(r IORegion) {
	r.Start &^= 3
	r.End = (r.End + 3) &^ 3
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions = append(s.regions, r)
}

// Bytes returns the backing slice for the bank containing addr, or nil.
// Test-harness access path; core code goes through the Bus methods.
func (s *Space) Bytes(addr uint32) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b := s.bankFor(addr); b != nil {
		return b.data[addr-b.base:]
	}
	return nil
}

func (s *Space) bankFor(addr uint32) *bank {
	for i := range s.banks {
		b := &s.banks[i]
		if addr >= b.base && addr < b.base+uint32(len(b.data)) {
			return b
		}
	}
	return nil
}

// ioFor returns the innermost (latest-registered) region covering addr.
func (s *Space) ioFor(addr uint32) *IORegion {
	for i := len(s.regions) - 1; i >= 0; i-- {
		r := &s.regions[i]
		if addr >= r.Start && addr < r.End {
			return r
		}
	}
	return nil
}

// Read32 implements Bus.
func (s *Space) Read32(addr uint32) uint32 {
	s.mu.RLock()
	if r := s.ioFor(addr); r != nil {
		fn := r.OnRead
		s.mu.RUnlock()
		if fn == nil {
			return 0
		}
		return fn(addr &^ 3)
	}
	defer s.mu.RUnlock()
	if b := s.bankFor(addr); b != nil && addr+4 <= b.base+uint32(len(b.data)) {
		return binary.LittleEndian.Uint32(b.data[addr-b.base:])
	}
	return 0
}

// Write32 implements Bus.
func (s *Space) Write32(addr uint32, v uint32) {
	s.mu.Lock()
	if r := s.ioFor(addr); r != nil {
		fn := r.OnWrite
		s.mu.Unlock()
		if fn != nil {
			fn(addr&^3, v)
		}
		return
	}
	defer s.mu.Unlock()
	if b := s.bankFor(addr); b != nil && addr+4 <= b.base+uint32(len(b.data)) {
		binary.LittleEndian.PutUint32(b.data[addr-b.base:], v)
	}
}

// Read16 implements Bus.
func (s *Space) Read16(addr uint32) uint16 {
	if s.mapped(addr &^ 3) {
		word := s.Read32(addr &^ 3)
		return uint16(word >> ((addr & 2) * 8))
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b := s.bankFor(addr); b != nil && addr+2 <= b.base+uint32(len(b.data)) {
		return binary.LittleEndian.Uint16(b.data[addr-b.base:])
	}
	return 0
}

// Write16 implements Bus.
func (s *Space) Write16(addr uint32, v uint16) {
	if s.mapped(addr &^ 3) {
		aligned := addr &^ 3
		shift := (addr & 2) * 8
		word := s.Read32(aligned)
		word = word&^(0xFFFF<<shift) | uint32(v)<<shift
		s.Write32(aligned, word)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b := s.bankFor(addr); b != nil && addr+2 <= b.base+uint32(len(b.data)) {
		binary.LittleEndian.PutUint16(b.data[addr-b.base:], v)
	}
}

// Read8 implements Bus.
func (s *Space) Read8(addr uint32) uint8 {
	if s.mapped(addr &^ 3) {
		word := s.Read32(addr &^ 3)
		return uint8(word >> ((addr & 3) * 8))
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b := s.bankFor(addr); b != nil {
		return b.data[addr-b.base]
	}
	return 0
}

// Write8 implements Bus.
func (s *Space) Write8(addr uint32, v uint8) {
	if s.mapped(addr &^ 3) {
		aligned := addr &^ 3
		shift := (addr & 3) * 8
		word := s.Read32(aligned)
		word = word&^(0xFF<<shift) | uint32(v)<<shift
		s.Write32(aligned, word)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b := s.bankFor(addr); b != nil {
		b.data[addr-b.base] = v
	}
}

func (s *Space) mapped(addr uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ioFor(addr) != nil
}
