package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout_Geometry(t *testing.T) {
	assert.Equal(t, 56, NumSlots)
	assert.Equal(t, 16, IRQBase)
	assert.Equal(t, 55, IRQSlot(IRQUSART3), "last populated line")
}

func TestLayout_CorePositions(t *testing.T) {
	assert.Equal(t, "InitialSP", SlotName(0))
	assert.Equal(t, "Reset", SlotName(1))
	assert.Equal(t, "NMI", SlotName(2))
	assert.Equal(t, "HardFault", SlotName(3))
	assert.Equal(t, "SysTick", SlotName(15))
}

func TestLayout_ReservedSlotsExplicit(t *testing.T) {
	// Core holes: 7..10 and 13.
	for _, slot := range []int{7, 8, 9, 10, 13} {
		assert.True(t, Reserved(slot), "slot %d", slot)
	}
	// Peripheral holes: after ADC and after TIM1_UP_TIM10.
	for _, irq := range []int{19, 20, 21, 22, 26, 27} {
		assert.True(t, Reserved(IRQSlot(irq)), "irq %d", irq)
	}
	assert.False(t, Reserved(SlotSysTick))
	assert.False(t, Reserved(IRQSlot(IRQTIM2)))
	assert.Equal(t, "Reserved", SlotName(7))
	assert.Equal(t, "Invalid", SlotName(-1))
	assert.Equal(t, "Invalid", SlotName(NumSlots))
}

func TestTable_DefaultBinding(t *testing.T) {
	var defaults int
	tb := New(0x2002_0000, func() {}, func() { defaults++ })

	// Every usable non-reset slot fires the default handler when unbound.
	tb.Dispatch(SlotNMI)
	tb.Dispatch(IRQSlot(IRQUSART1))
	assert.Equal(t, 2, defaults)
	assert.Equal(t, uint32(0x2002_0000), tb.InitialSP())
}

func TestTable_RegisterOverridesDefault(t *testing.T) {
	var defaults, fired int
	tb := New(0, func() {}, func() { defaults++ })

	require.NoError(t, tb.RegisterIRQ(IRQTIM2, func() { fired++ }))
	assert.True(t, tb.Overridden(IRQSlot(IRQTIM2)))

	tb.Dispatch(IRQSlot(IRQTIM2))
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, defaults)
}

func TestTable_RegisterErrors(t *testing.T) {
	tb := New(0, func() {}, func() {})

	assert.Error(t, tb.Register(SlotInitialSP, func() {}), "slot 0 is not a handler")
	assert.Error(t, tb.Register(SlotReset, func() {}), "reset is fixed at construction")
	assert.Error(t, tb.Register(7, func() {}), "reserved slot")
	assert.Error(t, tb.Register(NumSlots, func() {}), "out of range")
	assert.Error(t, tb.Register(SlotSVCall, nil), "nil handler")
}

func TestTable_SealFreezesRegistration(t *testing.T) {
	tb := New(0, func() {}, func() {})
	require.NoError(t, tb.Register(SlotSVCall, func() {}))

	tb.Seal()
	require.True(t, tb.Sealed())

	err := tb.Register(SlotPendSV, func() {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sealed")
}

func TestTable_ReservedDispatchFallsToDefault(t *testing.T) {
	var defaults int
	tb := New(0, func() {}, func() { defaults++ })

	tb.Dispatch(7)                // reserved core slot
	tb.Dispatch(IRQSlot(19))      // reserved peripheral slot
	tb.Dispatch(-4)               // nonsense
	tb.Dispatch(NumSlots + 3)     // beyond the table
	assert.Equal(t, 4, defaults)
}

func TestTable_DispatchReset(t *testing.T) {
	var reset int
	tb := New(0, func() { reset++ }, func() {})
	tb.Dispatch(SlotReset)
	assert.Equal(t, 1, reset)
}
