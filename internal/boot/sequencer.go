package boot

import (
	"fmt"

	"github.com/roach88/ferrite/internal/cpu"
	"github.com/roach88/ferrite/internal/mem"
)

// Image names the three memory regions the sequencer establishes. Bounds
// come from the board description the way linker symbols feed the real
// reset handler; the sequencer treats them as opaque addresses.
type Image struct {
	// DataLoad is the read-only source of the initialized-data image
	// (flash resident).
	DataLoad mem.Region
	// Data is the writable destination that must mirror DataLoad after
	// boot.
	Data mem.Region
	// BSS is the zero-initialized region.
	BSS mem.Region
}

// Validate checks region well-formedness and that source and destination
// sizes agree.
func (img Image) Validate() error {
	for _, r := range []mem.Region{img.DataLoad, img.Data, img.BSS} {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	if img.DataLoad.Size() != img.Data.Size() {
		return fmt.Errorf("data load region %s and destination %s differ in size",
			img.DataLoad, img.Data)
	}
	return nil
}

// Step identifies a boot stage for observers.
type Step string

const (
	StepCopyData      Step = "copy_data"
	StepZeroBSS       Step = "zero_bss"
	StepPreInit       Step = "preinit"
	StepInit          Step = "init"
	StepEntry         Step = "entry"
	StepEntryReturned Step = "entry_returned"
)

// Sequencer is the reset handler. Construct once, run once.
type Sequencer struct {
	bus     mem.Bus
	core    *cpu.Core
	img     Image
	preinit []func()
	init    []func()
	entry   func()
	observe func(Step)
	ran     bool
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithPreInit appends pre-initialization routines, run before the init
// routines in the order given.
func WithPreInit(fns ...func()) Option {
	return func(s *Sequencer) { s.preinit = append(s.preinit, fns...) }
}

// WithInit appends static-initialization routines, run in the order given
// after every preinit routine has completed. The two sequences never
// interleave.
func WithInit(fns ...func()) Option {
	return func(s *Sequencer) { s.init = append(s.init, fns...) }
}

// WithObserver installs a step callback, invoked as each stage begins
// (and once after the entry point returns). Used for trace recording.
func WithObserver(fn func(Step)) Option {
	return func(s *Sequencer) { s.observe = fn }
}

// New validates the image and builds the sequencer. entry is the
// application entry point and must not be nil.
func New(bus mem.Bus, core *cpu.Core, img Image, entry func(), opts ...Option) (*Sequencer, error) {
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("boot image: %w", err)
	}
	if entry == nil {
		return nil, fmt.Errorf("boot: nil entry point")
	}
	s := &Sequencer{bus: bus, core: core, img: img, entry: entry}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run executes the reset sequence in strict order:
//
//  1. word-copy the initialized-data image from its load region to its
//     destination
//  2. word-zero the zero-init region
//  3. run preinit routines, then init routines, each in registration order
//  4. call the entry point
//  5. if the entry point returns, halt the core
//
// A halt raised by any routine stops the sequence: later stages and the
// entry point never run. Running
// a sequencer twice halts immediately: reset runs exactly once per power
// cycle.
func (s *Sequencer) Run() {
	if s.ran {
		s.core.Halt("reset handler re-entered")
		return
	}
	s.ran = true

	s.step(StepCopyData)
	src, dst := s.img.DataLoad.Start, s.img.Data.Start
	for dst < s.img.Data.End {
		s.bus.Write32(dst, s.bus.Read32(src))
		src += 4
		dst += 4
	}

	s.step(StepZeroBSS)
	for addr := s.img.BSS.Start; addr < s.img.BSS.End; addr += 4 {
		s.bus.Write32(addr, 0)
	}

	s.step(StepPreInit)
	for _, fn := range s.preinit {
		if s.core.Halted() {
			return
		}
		fn()
	}
	s.step(StepInit)
	for _, fn := range s.init {
		if s.core.Halted() {
			return
		}
		fn()
	}
	if s.core.Halted() {
		return
	}

	s.step(StepEntry)
	s.entry()

	if s.core.Halted() {
		return
	}
	// Not a normal path: the entry point is expected to loop forever.
	s.step(StepEntryReturned)
	s.core.Halt("entry point returned")
}

func (s *Sequencer) step(st Step) {
	if s.observe != nil {
		s.observe(st)
	}
}
