package machine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ferrite/internal/board"
	"github.com/roach88/ferrite/internal/trace"
	"github.com/roach88/ferrite/internal/vector"
)

// captureRecorder collects events in memory for assertions.
type captureRecorder struct {
	events []trace.Event
	fail   error
}

func (r *captureRecorder) Record(ev trace.Event) error {
	if r.fail != nil {
		return r.fail
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *captureRecorder) kinds() []trace.Kind {
	out := make([]trace.Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func newTestMachine(t *testing.T, prog Program, opts ...Option) (*Machine, *captureRecorder) {
	t.Helper()
	rec := &captureRecorder{}
	m, err := New(board.Default(), prog, append(opts, WithRecorder(rec))...)
	require.NoError(t, err)
	return m, rec
}

func TestMachine_RunMinimalProgram(t *testing.T) {
	ran := false
	m, rec := newTestMachine(t, Program{
		Name: "noop",
		Main: func(rt *Runtime) { ran = true },
	})

	res, err := m.Run()
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, "entry point returned", res.HaltCause)
	assert.True(t, m.Core().Halted())

	// The trace opens with the reset dispatch and walks the boot stages in
	// order before the entry point runs.
	require.NotEmpty(t, rec.events)
	assert.Equal(t, trace.KindDispatch, rec.events[0].Kind)
	assert.Equal(t, "Reset", rec.events[0].Name)

	var bootSteps []string
	for _, ev := range rec.events {
		if ev.Kind == trace.KindBoot {
			bootSteps = append(bootSteps, ev.Name)
		}
	}
	assert.Equal(t, []string{"copy_data", "zero_bss", "preinit", "init", "entry", "entry_returned"}, bootSteps)

	last := rec.events[len(rec.events)-1]
	assert.Equal(t, trace.KindHalt, last.Kind)
	assert.Equal(t, "entry point returned", last.Detail["cause"])
}

func TestMachine_EventSeqStrictlyIncreasing(t *testing.T) {
	m, rec := newTestMachine(t, Program{
		Name: "seq",
		Main: func(rt *Runtime) { rt.DelayMillis(3) },
	})
	_, err := m.Run()
	require.NoError(t, err)

	for i := 1; i < len(rec.events); i++ {
		assert.Greater(t, rec.events[i].Seq, rec.events[i-1].Seq)
	}
}

func TestMachine_DataImageEstablishedBeforeMain(t *testing.T) {
	img := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	var seen []byte
	m, _ := newTestMachine(t, Program{
		Name:      "data",
		DataImage: img,
		Main: func(rt *Runtime) {
			dst := board.Default().Data.Start
			for i := uint32(0); i < 4; i++ {
				seen = append(seen, rt.Bus().Read8(dst+i))
			}
		},
	})
	_, err := m.Run()
	require.NoError(t, err)
	assert.Equal(t, img, seen)
}

func TestMachine_DataImageTooLarge(t *testing.T) {
	cfg := board.Default()
	size := cfg.DataLoad.End - cfg.DataLoad.Start
	_, err := New(cfg, Program{
		Name:      "big",
		DataImage: make([]byte, size+1),
		Main:      func(rt *Runtime) {},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds load region")
}

func TestMachine_TicksAdvanceDuringDelay(t *testing.T) {
	var before, after uint32
	m, _ := newTestMachine(t, Program{
		Name: "delay",
		Main: func(rt *Runtime) {
			before = rt.Ticks()
			rt.DelayMillis(10)
			after = rt.Ticks()
		},
	})
	res, err := m.Run()
	require.NoError(t, err)
	assert.Zero(t, before, "counter starts at zero after boot")
	assert.GreaterOrEqual(t, after-before, uint32(10))
	assert.GreaterOrEqual(t, res.Ticks, uint32(10))
}

func TestMachine_ScheduledInjectionDelivered(t *testing.T) {
	var firedAt uint32
	m, rec := newTestMachine(t, Program{
		Name: "inject",
		Setup: func(rt *Runtime) error {
			return rt.RegisterIRQ(vector.IRQTIM2, func() { firedAt = rt.Ticks() })
		},
		Main: func(rt *Runtime) { rt.DelayMillis(10) },
	}, WithSchedule([]trace.Injection{{AtTick: 5, IRQ: vector.IRQTIM2}}))

	_, err := m.Run()
	require.NoError(t, err)
	assert.Equal(t, uint32(5), firedAt, "handler runs at the scheduled tick")

	var injected, dispatched bool
	for _, ev := range rec.events {
		if ev.Kind == trace.KindInject && ev.Name == "TIM2" {
			injected = true
			assert.Equal(t, vector.IRQTIM2, ev.Detail["irq"])
			assert.Equal(t, 5, ev.Detail["at_tick"])
		}
		if ev.Kind == trace.KindDispatch && ev.Name == "TIM2" {
			dispatched = true
		}
	}
	assert.True(t, injected)
	assert.True(t, dispatched)
}

func TestMachine_UnhandledInterruptHalts(t *testing.T) {
	m, _ := newTestMachine(t, Program{
		Name: "stray",
		Main: func(rt *Runtime) {
			// No handler registered for this line; delivery must halt.
			rt.DelayMillis(2)
		},
	}, WithSchedule([]trace.Injection{{AtTick: 0, IRQ: vector.IRQUSART1}}))

	res, err := m.Run()
	require.NoError(t, err)
	assert.Contains(t, res.HaltCause, "unhandled exception")
	assert.Contains(t, res.HaltCause, "USART1")
}

func TestMachine_ResetRequestHalts(t *testing.T) {
	m, rec := newTestMachine(t, Program{
		Name: "reboot",
		Main: func(rt *Runtime) {
			rt.RequestReset()
			// Anything past the request must observe the halt.
			assert.True(t, rt.Halted())
		},
	})

	res, err := m.Run()
	require.NoError(t, err)
	assert.Equal(t, "system reset requested", res.HaltCause)

	var sawReset bool
	for _, ev := range rec.events {
		if ev.Kind == trace.KindReset {
			sawReset = true
		}
	}
	assert.True(t, sawReset)
}

func TestMachine_AIRCRWriteWithoutKeyIgnored(t *testing.T) {
	m, _ := newTestMachine(t, Program{
		Name: "badkey",
		Main: func(rt *Runtime) {
			rt.Bus().Write32(AIRCRAddr, aircrSysResetReq) // no VECTKEY
			assert.False(t, rt.Halted())
		},
	})
	res, err := m.Run()
	require.NoError(t, err)
	assert.Equal(t, "entry point returned", res.HaltCause)
}

func TestMachine_SetupErrorSurfacesFromRun(t *testing.T) {
	boom := errors.New("uart init failed")
	m, _ := newTestMachine(t, Program{
		Name:  "setupfail",
		Setup: func(rt *Runtime) error { return boom },
		Main:  func(rt *Runtime) { t.Fatal("entry point must not run") },
	})

	res, err := m.Run()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "program setup failed", res.HaltCause)
}

func TestMachine_TableSealedAfterBoot(t *testing.T) {
	var regErr error
	m, _ := newTestMachine(t, Program{
		Name: "late",
		Main: func(rt *Runtime) {
			regErr = rt.RegisterIRQ(vector.IRQTIM3, func() {})
		},
	})
	_, err := m.Run()
	require.NoError(t, err)
	require.Error(t, regErr)
	assert.Contains(t, regErr.Error(), "sealed")
}

func TestMachine_InitOrderAfterSystemInit(t *testing.T) {
	var order []string
	m, _ := newTestMachine(t, Program{
		Name:    "order",
		PreInit: []func(){func() { order = append(order, "preinit") }},
		Init:    []func(){func() { order = append(order, "init") }},
		Setup: func(rt *Runtime) error {
			order = append(order, "setup")
			return nil
		},
		Main: func(rt *Runtime) { order = append(order, "main") },
	})
	_, err := m.Run()
	require.NoError(t, err)
	// Setup runs inside system init, which precedes the program's own init
	// routines; interrupts unmask before any of them run user code in Main.
	assert.Equal(t, []string{"preinit", "setup", "init", "main"}, order)
}

func TestMachine_UniqueIDStableAndNonZero(t *testing.T) {
	var first, second [3]uint32
	m, _ := newTestMachine(t, Program{
		Name: "uid",
		Main: func(rt *Runtime) { first = rt.UniqueID() },
	})
	_, err := m.Run()
	require.NoError(t, err)

	m2, _ := newTestMachine(t, Program{
		Name: "uid",
		Main: func(rt *Runtime) { second = rt.UniqueID() },
	})
	_, err = m2.Run()
	require.NoError(t, err)

	assert.NotEqual(t, [3]uint32{}, first)
	assert.Equal(t, first, second, "same board name yields the same id")
}

func TestMachine_PowerEventsRecorded(t *testing.T) {
	m, rec := newTestMachine(t, Program{
		Name: "nap",
		Setup: func(rt *Runtime) error {
			return rt.RegisterIRQ(vector.IRQEXTI0, func() {})
		},
		Main: func(rt *Runtime) {
			// Pend the wakeup before sleeping so the wait returns
			// deterministically instead of racing a second goroutine.
			cs := rt.EnterCritical()
			rt.m.InjectIRQ(vector.IRQEXTI0, 0)
			rt.Sleep()
			cs.Leave()
		},
	})
	_, err := m.Run()
	require.NoError(t, err)
	assert.Contains(t, rec.kinds(), trace.KindPower)
}

func TestMachine_SleepWokenBySysTick(t *testing.T) {
	var before, after uint32
	m, rec := newTestMachine(t, Program{
		Name: "sleeper",
		Main: func(rt *Runtime) {
			before = rt.Ticks()
			rt.Sleep()
			after = rt.Ticks()
		},
	})

	// Nothing pended and no helper goroutine: the running tick alone must
	// wake the wait, the way SysTick does on hardware.
	res, err := m.Run()
	require.NoError(t, err)
	assert.Equal(t, "entry point returned", res.HaltCause)
	assert.Greater(t, after, before)
	assert.Contains(t, rec.kinds(), trace.KindPower)
}

func TestMachine_SleepWokenByScheduledInjection(t *testing.T) {
	fired := false
	var firedAt uint32
	m, _ := newTestMachine(t, Program{
		Name: "waiter",
		Setup: func(rt *Runtime) error {
			return rt.RegisterIRQ(vector.IRQEXTI0, func() {
				fired = true
				firedAt = rt.Ticks()
			})
		},
		Main: func(rt *Runtime) {
			for !fired && !rt.Halted() {
				rt.Sleep()
			}
		},
	}, WithSchedule([]trace.Injection{{AtTick: 3, IRQ: vector.IRQEXTI0}}))

	res, err := m.Run()
	require.NoError(t, err)
	assert.True(t, fired, "scheduled line delivered to a sleeping core")
	assert.Equal(t, uint32(3), firedAt)
	assert.GreaterOrEqual(t, res.Ticks, uint32(3))
}

func TestMachine_DeepSleepWokenBySysTick(t *testing.T) {
	m, rec := newTestMachine(t, Program{
		Name: "deep",
		Main: func(rt *Runtime) { rt.DeepSleep() },
	})

	res, err := m.Run()
	require.NoError(t, err)
	assert.Equal(t, "entry point returned", res.HaltCause)
	assert.False(t, m.pwr.SleepDeepSet(), "SLEEPDEEP cleared after the wait")

	var transitions []string
	for _, ev := range rec.events {
		if ev.Kind == trace.KindPower {
			transitions = append(transitions, ev.Name)
		}
	}
	assert.Equal(t, []string{"deep_sleep", "wake"}, transitions)
}

func TestMachine_RecorderFailureSurfacesFromRun(t *testing.T) {
	rec := &captureRecorder{fail: errors.New("disk full")}
	m, err := New(board.Default(), Program{
		Name: "recfail",
		Main: func(rt *Runtime) {},
	}, WithRecorder(rec))
	require.NoError(t, err)

	_, err = m.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestMachine_NoEntryPointRejected(t *testing.T) {
	_, err := New(board.Default(), Program{Name: "empty"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entry point")
}

func TestMachine_DeterministicTraces(t *testing.T) {
	build := func() (*Machine, *captureRecorder) {
		rec := &captureRecorder{}
		m, err := New(board.Default(), Program{
			Name: "det",
			Setup: func(rt *Runtime) error {
				return rt.RegisterIRQ(vector.IRQTIM2, func() {})
			},
			Main: func(rt *Runtime) { rt.DelayMillis(8) },
		}, WithRecorder(rec), WithSchedule([]trace.Injection{
			{AtTick: 2, IRQ: vector.IRQTIM2},
			{AtTick: 6, IRQ: vector.IRQTIM2},
		}))
		require.NoError(t, err)
		return m, rec
	}

	m1, r1 := build()
	_, err := m1.Run()
	require.NoError(t, err)
	m2, r2 := build()
	_, err = m2.Run()
	require.NoError(t, err)

	require.Equal(t, len(r1.events), len(r2.events))
	for i := range r1.events {
		assert.Equal(t, r1.events[i], r2.events[i])
	}
}
