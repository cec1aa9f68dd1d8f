package tick

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/roach88/ferrite/internal/mem"
)

// SysTick register block (SYST), offsets from SysTickBase.
const (
	SysTickBase uint32 = 0xE000_E010

	offCSR = 0x0
	offRVR = 0x4
	offCVR = 0x8
)

// SYST_CSR bits.
const (
	CSREnable    uint32 = 1 << 0
	CSRTickInt   uint32 = 1 << 1
	CSRClkSource uint32 = 1 << 2
)

// maxReload is the 24-bit limit of SYST_RVR.
const maxReload = 0xFF_FFFF

// spinCycles is the nominal cost in clock cycles of one microsecond-delay
// spin iteration, carried over from the calibrated target build.
const spinCycles = 4

// Service owns the tick counter and the SysTick register block.
//
// The clock rate is threaded in explicitly: delay calibration is only as
// good as this number, so it comes from the board description rather than
// a constant buried here.
type Service struct {
	count atomic.Uint32

	clockHz uint32
	rateHz  uint32

	csr mem.Reg32
	rvr mem.Reg32
	cvr mem.Reg32

	idle func()
	spin func()
}

// Option configures a Service.
type Option func(*Service)

// WithIdle replaces the busy-wait idle hook (default runtime.Gosched).
// Deterministic tests install a pump that advances the counter from
// inside the wait.
func WithIdle(fn func()) Option {
	return func(s *Service) { s.idle = fn }
}

// WithSpin replaces the microsecond-delay spin body. Tests count
// iterations through it.
func WithSpin(fn func()) Option {
	return func(s *Service) { s.spin = fn }
}

// NewService creates the tick service for a core clocked at clockHz with
// a tick rate of rateHz (ticks per second).
func NewService(bus mem.Bus, clockHz, rateHz uint32, opts ...Option) (*Service, error) {
	if clockHz == 0 || rateHz == 0 {
		return nil, fmt.Errorf("tick: clock %d Hz / rate %d Hz must be non-zero", clockHz, rateHz)
	}
	if clockHz/rateHz == 0 {
		return nil, fmt.Errorf("tick: rate %d Hz exceeds clock %d Hz", rateHz, clockHz)
	}
	if clockHz/rateHz-1 > maxReload {
		return nil, fmt.Errorf("tick: reload %d exceeds 24-bit limit", clockHz/rateHz-1)
	}
	s := &Service{
		clockHz: clockHz,
		rateHz:  rateHz,
		csr:     mem.NewReg32(bus, SysTickBase+offCSR),
		rvr:     mem.NewReg32(bus, SysTickBase+offRVR),
		cvr:     mem.NewReg32(bus, SysTickBase+offCVR),
		idle:    runtime.Gosched,
		spin:    func() {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Reload returns the reload value programmed into SYST_RVR.
func (s *Service) Reload() uint32 { return s.clockHz/s.rateHz - 1 }

// ClockHz returns the configured core clock rate.
func (s *Service) ClockHz() uint32 { return s.clockHz }

// RateHz returns the configured tick rate.
func (s *Service) RateHz() uint32 { return s.rateHz }

// Configure programs the SysTick block for periodic interrupts: reload
// value, cleared current value, then enable with interrupt and processor
// clock source. Called from the boot path before interrupts are unmasked,
// so the counter starts at zero with no firings outstanding.
func (s *Service) Configure() {
	s.csr.ClearBits(CSREnable)
	s.rvr.Store(s.Reload() & maxReload)
	s.cvr.Store(0) // any write clears the current value
	s.csr.Store(CSREnable | CSRTickInt | CSRClkSource)
}

// Enabled reports whether the timer is programmed and running.
func (s *Service) Enabled() bool { return s.csr.HasBits(CSREnable) }

// Handler is the SysTick interrupt handler and the counter's only
// writer. It must never block: no delays, no waits.
func (s *Service) Handler() {
	s.count.Add(1)
}

// Ticks returns the current counter value. Safe from mainline or handler
// context; never blocks.
func (s *Service) Ticks() uint32 {
	return s.count.Load()
}

// Seed positions the counter. Test support for wraparound coverage
// (seeding near the maximum); once interrupts are unmasked the timer
// handler is the sole writer.
func (s *Service) Seed(v uint32) {
	s.count.Store(v)
}

// Elapsed returns the tick delta between two counter samples, correct
// across wraparound: unsigned subtraction, never comparison of absolute
// values.
func Elapsed(later, earlier uint32) uint32 {
	return later - earlier
}

// DelayMillis busy-waits until at least ms ticks have elapsed. Blocks the
// calling context for the full duration; correct when the counter wraps
// during the wait. Must not be called from the timer handler.
func (s *Service) DelayMillis(ms uint32) {
	start := s.Ticks()
	for Elapsed(s.Ticks(), start) < ms {
		s.idle()
	}
}

// DelayMicros busy-waits for approximately us microseconds using a
// counted spin calibrated against the configured clock rate, independent
// of the tick counter. Best-effort by design: it is not adjusted for
// actual runtime clock configuration or pipeline effects, and callers
// must not rely on sub-millisecond precision.
func (s *Service) DelayMicros(us uint32) {
	iters := s.clockHz / 1_000_000 * us / spinCycles
	for i := uint32(0); i < iters; i++ {
		s.spin()
	}
}
