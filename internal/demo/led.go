// Package demo holds example programs for the simulated target. They are
// ordinary firmware programs: they register handlers during setup, drive
// GPIO through the bus, and pace themselves on the tick service.
package demo

import "github.com/roach88/ferrite/internal/mem"

// GPIOD block on the discovery board; the four user LEDs hang off PD12
// through PD15. Only the output data register is modeled.
const (
	GPIODBase uint32 = 0x4002_0C00
	GPIODSize uint32 = 0x400

	offODR = 0x14

	// GreenLEDPin is PD12, the green user LED.
	GreenLEDPin = 12
)

// ActiveState selects whether the LED lights on a high or low pin.
type ActiveState uint8

const (
	ActiveHigh ActiveState = iota
	ActiveLow
)

// LED drives one LED through a GPIO output data register.
type LED struct {
	odr    mem.Reg32
	mask   uint32
	active ActiveState
}

// NewLED creates a driver for the LED on pin of the GPIO block at base.
func NewLED(bus mem.Bus, base uint32, pin uint, active ActiveState) *LED {
	return &LED{
		odr:    mem.NewReg32(bus, base+offODR),
		mask:   1 << pin,
		active: active,
	}
}

// On lights the LED.
func (l *LED) On() {
	if l.active == ActiveHigh {
		l.odr.SetBits(l.mask)
	} else {
		l.odr.ClearBits(l.mask)
	}
}

// Off extinguishes the LED.
func (l *LED) Off() {
	if l.active == ActiveHigh {
		l.odr.ClearBits(l.mask)
	} else {
		l.odr.SetBits(l.mask)
	}
}

// Toggle flips the LED state.
func (l *LED) Toggle() {
	if l.IsOn() {
		l.Off()
	} else {
		l.On()
	}
}

// IsOn reports whether the LED is lit.
func (l *LED) IsOn() bool {
	high := l.odr.HasBits(l.mask)
	if l.active == ActiveHigh {
		return high
	}
	return !high
}
