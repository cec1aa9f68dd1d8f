package demo

import (
	"github.com/roach88/ferrite/internal/board"
	"github.com/roach88/ferrite/internal/machine"
	"github.com/roach88/ferrite/internal/vector"
)

// blinkRates are the periods (in ticks) the button press cycles through.
var blinkRates = []uint32{500, 250, 100, 1000}

// Blinky returns the LED-blink program: toggle the green LED, wait one
// blink period, repeat for toggles iterations, then return and let the
// fail-stop net halt the machine. A button interrupt on EXTI0 cycles the
// blink rate.
//
// The rate variable is shared between the mainline loop and the button
// handler, so every access from the loop goes through a critical section.
func Blinky(toggles int) machine.Program {
	var (
		led       *LED
		rateIndex int
		rate      = blinkRates[0]
	)

	return machine.Program{
		Name:       "blinky",
		ExtraBanks: []board.Bank{{Base: GPIODBase, Size: GPIODSize}},
		Setup: func(rt *machine.Runtime) error {
			led = NewLED(rt.Bus(), GPIODBase, GreenLEDPin, ActiveHigh)
			return rt.RegisterIRQ(vector.IRQEXTI0, func() {
				rateIndex = (rateIndex + 1) % len(blinkRates)
				rate = blinkRates[rateIndex]
			})
		},
		Main: func(rt *machine.Runtime) {
			for i := 0; i < toggles && !rt.Halted(); i++ {
				led.Toggle()

				var period uint32
				rt.Critical(func() { period = rate })
				rt.DelayMillis(period)
			}
		},
	}
}
