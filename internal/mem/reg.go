package mem

// Reg32 binds a 32-bit register address to a bus. Core code holds Reg32
// values instead of casting numeric addresses, so the same code drives a
// simulated peripheral block in tests and on the CLI.
type Reg32 struct {
	bus  Bus
	addr uint32
}

// NewReg32 creates a register handle for addr on bus.
func NewReg32(bus Bus, addr uint32) Reg32 {
	return Reg32{bus: bus, addr: addr}
}

// Addr returns the register's address.
func (r Reg32) Addr() uint32 { return r.addr }

// Load reads the register.
func (r Reg32) Load() uint32 { return r.bus.Read32(r.addr) }

// Store writes the register.
func (r Reg32) Store(v uint32) { r.bus.Write32(r.addr, v) }

// SetBits ORs mask into the register.
func (r Reg32) SetBits(mask uint32) { r.Store(r.Load() | mask) }

// ClearBits clears every bit of mask in the register.
func (r Reg32) ClearBits(mask uint32) { r.Store(r.Load() &^ mask) }

// HasBits reports whether every bit of mask is set.
func (r Reg32) HasBits(mask uint32) bool { return r.Load()&mask == mask }

// ReplaceBits clears mask then ORs in v (already shifted into position).
func (r Reg32) ReplaceBits(mask, v uint32) { r.Store(r.Load()&^mask | v) }
