package vector

import (
	"fmt"
	"sync"
)

// Handler is a vector table entry point. Handlers take no arguments and
// return nothing; anything they need is process-wide state.
type Handler func()

// Core exception slot positions. Slot 0 is not a handler: it carries the
// initial stack pointer.
const (
	SlotInitialSP    = 0
	SlotReset        = 1
	SlotNMI          = 2
	SlotHardFault    = 3
	SlotMemManage    = 4
	SlotBusFault     = 5
	SlotUsageFault   = 6
	SlotSVCall       = 11
	SlotDebugMonitor = 12
	SlotPendSV       = 14
	SlotSysTick      = 15
)

// Table geometry for the STM32F4 target: 16 core slots plus 40 peripheral
// interrupt lines.
const (
	NumCoreSlots = 16
	NumIRQSlots  = 40
	NumSlots     = NumCoreSlots + NumIRQSlots
	IRQBase      = NumCoreSlots
)

// Peripheral interrupt line numbers (IRQn). Add IRQBase, or use IRQSlot,
// to get the table slot.
const (
	IRQWWDG        = 0
	IRQPVD         = 1
	IRQTampStamp   = 2
	IRQRTCWakeup   = 3
	IRQFlash       = 4
	IRQRCC         = 5
	IRQEXTI0       = 6
	IRQEXTI1       = 7
	IRQEXTI2       = 8
	IRQEXTI3       = 9
	IRQEXTI4       = 10
	IRQDMA1Stream0 = 11
	IRQDMA1Stream1 = 12
	IRQDMA1Stream2 = 13
	IRQDMA1Stream3 = 14
	IRQDMA1Stream4 = 15
	IRQDMA1Stream5 = 16
	IRQDMA1Stream6 = 17
	IRQADC         = 18
	IRQEXTI9_5     = 23
	IRQTIM1BrkTIM9 = 24
	IRQTIM1UpTIM10 = 25
	IRQTIM2        = 28
	IRQTIM3        = 29
	IRQTIM4        = 30
	IRQI2C1Event   = 31
	IRQI2C1Error   = 32
	IRQI2C2Event   = 33
	IRQI2C2Error   = 34
	IRQSPI1        = 35
	IRQSPI2        = 36
	IRQUSART1      = 37
	IRQUSART2      = 38
	IRQUSART3      = 39
)

// IRQSlot converts a peripheral line number to its table slot.
func IRQSlot(irq int) int { return IRQBase + irq }

// slotNames holds the per-slot identity. Empty string marks a reserved
// slot; position encodes identity, so reserved slots are listed, never
// omitted.
var slotNames = [NumSlots]string{
	SlotInitialSP:    "InitialSP",
	SlotReset:        "Reset",
	SlotNMI:          "NMI",
	SlotHardFault:    "HardFault",
	SlotMemManage:    "MemManage",
	SlotBusFault:     "BusFault",
	SlotUsageFault:   "UsageFault",
	SlotSVCall:       "SVCall",
	SlotDebugMonitor: "DebugMonitor",
	SlotPendSV:       "PendSV",
	SlotSysTick:      "SysTick",

	IRQBase + IRQWWDG:        "WWDG",
	IRQBase + IRQPVD:         "PVD",
	IRQBase + IRQTampStamp:   "TAMP_STAMP",
	IRQBase + IRQRTCWakeup:   "RTC_WKUP",
	IRQBase + IRQFlash:       "FLASH",
	IRQBase + IRQRCC:         "RCC",
	IRQBase + IRQEXTI0:       "EXTI0",
	IRQBase + IRQEXTI1:       "EXTI1",
	IRQBase + IRQEXTI2:       "EXTI2",
	IRQBase + IRQEXTI3:       "EXTI3",
	IRQBase + IRQEXTI4:       "EXTI4",
	IRQBase + IRQDMA1Stream0: "DMA1_Stream0",
	IRQBase + IRQDMA1Stream1: "DMA1_Stream1",
	IRQBase + IRQDMA1Stream2: "DMA1_Stream2",
	IRQBase + IRQDMA1Stream3: "DMA1_Stream3",
	IRQBase + IRQDMA1Stream4: "DMA1_Stream4",
	IRQBase + IRQDMA1Stream5: "DMA1_Stream5",
	IRQBase + IRQDMA1Stream6: "DMA1_Stream6",
	IRQBase + IRQADC:         "ADC",
	IRQBase + IRQEXTI9_5:     "EXTI9_5",
	IRQBase + IRQTIM1BrkTIM9: "TIM1_BRK_TIM9",
	IRQBase + IRQTIM1UpTIM10: "TIM1_UP_TIM10",
	IRQBase + IRQTIM2:        "TIM2",
	IRQBase + IRQTIM3:        "TIM3",
	IRQBase + IRQTIM4:        "TIM4",
	IRQBase + IRQI2C1Event:   "I2C1_EV",
	IRQBase + IRQI2C1Error:   "I2C1_ER",
	IRQBase + IRQI2C2Event:   "I2C2_EV",
	IRQBase + IRQI2C2Error:   "I2C2_ER",
	IRQBase + IRQSPI1:        "SPI1",
	IRQBase + IRQSPI2:        "SPI2",
	IRQBase + IRQUSART1:      "USART1",
	IRQBase + IRQUSART2:      "USART2",
	IRQBase + IRQUSART3:      "USART3",
}

// SlotName returns the fixed name for a slot, or "Reserved"/"Invalid".
func SlotName(slot int) string {
	if slot < 0 || slot >= NumSlots {
		return "Invalid"
	}
	if slotNames[slot] == "" {
		return "Reserved"
	}
	return slotNames[slot]
}

// Reserved reports whether slot is an explicit null marker in the layout.
func Reserved(slot int) bool {
	return slot >= 0 && slot < NumSlots && slotNames[slot] == ""
}

// Table is the dispatch table. Every usable slot starts bound to the
// default handler; Register overrides individual slots until the table is
// sealed. After Seal the table is immutable, matching the link-time
// lifecycle of the hardware vector table.
type Table struct {
	mu        sync.Mutex
	initialSP uint32
	deflt     Handler
	entries   [NumSlots]Handler
	overrides [NumSlots]bool
	sealed    bool
}

// New builds a table with initialSP in slot 0, reset in slot 1, and deflt
// bound to every other usable slot.
func New(initialSP uint32, reset, deflt Handler) *Table {
	t := &Table{initialSP: initialSP, deflt: deflt}
	for slot := 2; slot < NumSlots; slot++ {
		if !Reserved(slot) {
			t.entries[slot] = deflt
		}
	}
	t.entries[SlotReset] = reset
	return t
}

// InitialSP returns the slot-0 stack pointer value.
func (t *Table) InitialSP() uint32 { return t.initialSP }

// Register binds h to slot, replacing the default binding. Fails on
// reserved slots, the stack-pointer and reset slots, nil handlers, and
// sealed tables. The reset slot is fixed at construction; applications
// override exception and peripheral slots only.
func (t *Table) Register(slot int, h Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sealed {
		return fmt.Errorf("register %s: table sealed after interrupt unmask", SlotName(slot))
	}
	if slot < 2 || slot >= NumSlots {
		return fmt.Errorf("register: slot %d out of range", slot)
	}
	if Reserved(slot) {
		return fmt.Errorf("register: slot %d is reserved", slot)
	}
	if h == nil {
		return fmt.Errorf("register %s: nil handler", SlotName(slot))
	}
	t.entries[slot] = h
	t.overrides[slot] = true
	return nil
}

// RegisterIRQ binds h to peripheral line irq.
func (t *Table) RegisterIRQ(irq int, h Handler) error {
	return t.Register(IRQSlot(irq), h)
}

// Seal freezes the table. Called when interrupts are first unmasked;
// later Register calls fail.
func (t *Table) Seal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sealed = true
}

// Sealed reports whether the table is frozen.
func (t *Table) Sealed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sealed
}

// Overridden reports whether slot carries an application handler rather
// than the default binding.
func (t *Table) Overridden(slot int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slot >= 0 && slot < NumSlots && t.overrides[slot]
}

// Dispatch invokes the handler for slot. Reserved and out-of-range slots
// fall through to the default handler: an exception arriving on a null
// marker is exactly the "unexpected interrupt" the default handler halts
// on. Slot 0 never dispatches (it is not a handler).
func (t *Table) Dispatch(slot int) {
	t.mu.Lock()
	var h Handler
	if slot >= 1 && slot < NumSlots && t.entries[slot] != nil {
		h = t.entries[slot]
	} else {
		h = t.deflt
	}
	t.mu.Unlock()
	if h != nil {
		h()
	}
}
