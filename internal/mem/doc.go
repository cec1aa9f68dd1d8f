// Package mem provides the simulated address space the rest of the core
// runs against.
//
// Real firmware reaches registers and linker-placed regions by casting
// fixed numeric addresses to pointers. Here every access goes through a
// Bus, so tests substitute a plain memory backing and peripheral blocks
// register I/O callbacks instead of occupying real hardware addresses.
//
// Three pieces:
//   - Bus / Space: banked little-endian memory with registered I/O regions
//   - Reg32: an address-bound 32-bit register handle with bit helpers
//   - Region: a half-open, word-aligned address range
package mem
