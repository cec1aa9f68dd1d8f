package demo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ferrite/internal/board"
	"github.com/roach88/ferrite/internal/machine"
	"github.com/roach88/ferrite/internal/mem"
	"github.com/roach88/ferrite/internal/trace"
	"github.com/roach88/ferrite/internal/vector"
)

func TestLED_OnOffToggle(t *testing.T) {
	s := mem.NewSpace()
	require.NoError(t, s.AddBank(GPIODBase, GPIODSize))

	led := NewLED(s, GPIODBase, GreenLEDPin, ActiveHigh)
	assert.False(t, led.IsOn())

	led.On()
	assert.True(t, led.IsOn())
	assert.Equal(t, uint32(1<<GreenLEDPin), s.Read32(GPIODBase+offODR))

	led.Toggle()
	assert.False(t, led.IsOn())
	assert.Zero(t, s.Read32(GPIODBase+offODR))
}

func TestLED_ActiveLow(t *testing.T) {
	s := mem.NewSpace()
	require.NoError(t, s.AddBank(GPIODBase, GPIODSize))

	led := NewLED(s, GPIODBase, GreenLEDPin, ActiveLow)
	// The pin idles low, which for active-low means lit.
	assert.True(t, led.IsOn())

	led.Off()
	assert.Equal(t, uint32(1<<GreenLEDPin), s.Read32(GPIODBase+offODR))
	assert.False(t, led.IsOn())
}

func TestBlinky_TogglesAndHalts(t *testing.T) {
	m, err := machine.New(board.Default(), Blinky(4))
	require.NoError(t, err)

	res, err := m.Run()
	require.NoError(t, err)
	assert.Equal(t, "entry point returned", res.HaltCause)
	// Four toggles at the default 500-tick rate.
	assert.GreaterOrEqual(t, res.Ticks, uint32(4*500))
	// An even number of toggles leaves the LED off.
	assert.Zero(t, m.Space().Read32(GPIODBase+offODR))
}

func TestBlinky_OddTogglesLeaveLEDOn(t *testing.T) {
	m, err := machine.New(board.Default(), Blinky(3))
	require.NoError(t, err)

	_, err = m.Run()
	require.NoError(t, err)
	assert.Equal(t, uint32(1<<GreenLEDPin), m.Space().Read32(GPIODBase+offODR))
}

func TestBlinky_ButtonChangesRate(t *testing.T) {
	// A button press during the first period drops the rate to 250, so two
	// toggles finish in roughly 500+250 ticks rather than 1000.
	m, err := machine.New(board.Default(), Blinky(2), machine.WithSchedule([]trace.Injection{
		{AtTick: 100, IRQ: vector.IRQEXTI0},
	}))
	require.NoError(t, err)

	res, err := m.Run()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Ticks, uint32(750))
	assert.Less(t, res.Ticks, uint32(1000))
}
