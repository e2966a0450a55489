package simulator

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/fgpanels/switchpanel/internal/config"
	"github.com/fgpanels/switchpanel/internal/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type sent struct {
	control string
	action  uint8
}

type fakeEmitter struct {
	sent []sent
	err  error
}

func (f *fakeEmitter) Send(ctx context.Context, control string, action uint8) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{control, action})
	return nil
}

func (f *fakeEmitter) reset() {
	f.sent = nil
}

func testMapping() *types.Mapping {
	names := types.NewNameTable()
	mapping := &types.Mapping{
		Plane:      "c172p",
		Switches:   make(map[types.Snapshot]string),
		Magnetos:   "magneto",
		Starter:    "starter",
		GearPrimer: "primer",
	}
	for _, name := range names.Names() {
		if strings.HasPrefix(name, "GEAR") {
			continue
		}
		mask, _ := names.Lookup(name)
		mapping.Switches[mask] = strings.ToLower(name)
	}
	return mapping
}

func newTestMapper(t *testing.T, emitter Emitter) *Mapper {
	t.Helper()
	m := NewMapper(testMapping(), types.NewNameTable(), emitter,
		config.SimulatorConfig{InitDelay: 50 * time.Millisecond}, zaptest.NewLogger(t))
	m.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return m
}

func assertSent(t *testing.T, got []sent, want ...sent) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected %d commands %v, got %d: %v", len(want), want, len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFormatCommand(t *testing.T) {
	if got := string(FormatCommand("battery", 1)); got != "battery,1\n" {
		t.Errorf("FormatCommand() = %q", got)
	}
	if got := (Command{Control: "/controls/engines/engine/magnetos", Action: 4}).Datagram(); got != "/controls/engines/engine/magnetos,4\n" {
		t.Errorf("Datagram() = %q", got)
	}
}

func TestInitialiseSwitchesReflectsSnapshot(t *testing.T) {
	emitter := &fakeEmitter{}
	m := newTestMapper(t, emitter)

	var pauses []time.Duration
	m.sleep = func(ctx context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}

	current := types.Battery | types.Strobe | types.MagLeft
	if err := m.InitialiseSwitches(context.Background(), current); err != nil {
		t.Fatalf("InitialiseSwitches() failed: %v", err)
	}

	if len(emitter.sent) != types.MinSwitchBindings+1 {
		t.Fatalf("Expected %d commands, got %d", types.MinSwitchBindings+1, len(emitter.sent))
	}

	seen := make(map[string]bool)
	for _, cmd := range emitter.sent[:types.MinSwitchBindings] {
		if seen[cmd.control] {
			t.Errorf("Switch %s initialised twice", cmd.control)
		}
		seen[cmd.control] = true

		want := uint8(0)
		if cmd.control == "battery" || cmd.control == "strobe" {
			want = 1
		}
		if cmd.action != want {
			t.Errorf("Expected %s=%d, got %d", cmd.control, want, cmd.action)
		}
	}

	if last := emitter.sent[len(emitter.sent)-1]; last != (sent{"magneto", 2}) {
		t.Errorf("Expected magneto,2 last, got %v", last)
	}
	if m.RotaryValue() != types.MagLeft {
		t.Errorf("Expected rotary MAGL, got %s", m.RotaryValue())
	}

	if len(pauses) != types.MinSwitchBindings {
		t.Errorf("Expected %d pauses, got %d", types.MinSwitchBindings, len(pauses))
	}
	for _, d := range pauses {
		if d != 50*time.Millisecond {
			t.Errorf("Expected 50ms pause, got %s", d)
		}
	}

	for mask := range testMapping().Switches {
		if v, _ := m.LastSent(mask); v != current.Bit(mask) {
			t.Errorf("LastSent(%s) = %d, want %d", mask, v, current.Bit(mask))
		}
	}
}

type eventEmitter struct {
	events *[]string
}

func (e eventEmitter) Send(ctx context.Context, control string, action uint8) error {
	*e.events = append(*e.events, "send:"+control)
	return nil
}

func TestInitialisePausesBeforeRotary(t *testing.T) {
	var events []string
	m := newTestMapper(t, eventEmitter{events: &events})
	m.sleep = func(ctx context.Context, d time.Duration) error {
		events = append(events, "sleep")
		return nil
	}

	if err := m.InitialiseSwitches(context.Background(), types.MagLeft); err != nil {
		t.Fatalf("InitialiseSwitches() failed: %v", err)
	}

	if len(events) < 3 {
		t.Fatalf("Expected at least 3 events, got %v", events)
	}
	tail := events[len(events)-3:]
	if tail[1] != "sleep" || tail[2] != "send:magneto" || !strings.HasPrefix(tail[0], "send:") {
		t.Errorf("Expected a pause between the last switch and the magneto, got %v", tail)
	}
}

func TestInitialiseWithoutRotary(t *testing.T) {
	emitter := &fakeEmitter{}
	m := newTestMapper(t, emitter)

	if err := m.InitialiseSwitches(context.Background(), 0); err != nil {
		t.Fatalf("InitialiseSwitches() failed: %v", err)
	}
	if len(emitter.sent) != types.MinSwitchBindings {
		t.Errorf("Expected only switch commands, got %d", len(emitter.sent))
	}
	if m.RotaryValue() != 0 {
		t.Errorf("Expected no rotary value, got %s", m.RotaryValue())
	}
}

func TestInitialiseCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	emitter := &fakeEmitter{}
	m := newTestMapper(t, emitter)

	if err := m.InitialiseSwitches(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if len(emitter.sent) != 1 {
		t.Errorf("Expected to stop after the first command, got %d", len(emitter.sent))
	}
}

func TestProcessInputScenarios(t *testing.T) {
	tests := []struct {
		name     string
		init     types.Snapshot
		previous types.Snapshot
		current  types.Snapshot
		want     []sent
	}{
		{
			name:    "battery on",
			current: types.Battery,
			want:    []sent{{"battery", 1}},
		},
		{
			name:     "battery off",
			init:     types.Battery,
			previous: types.Battery,
			current:  0,
			want:     []sent{{"battery", 0}},
		},
		{
			name:     "no change",
			init:     types.Taxi | types.MagBoth,
			previous: types.Taxi | types.MagBoth,
			current:  types.Taxi | types.MagBoth,
		},
		{
			name:    "unused bit",
			current: 0x000010,
		},
		{
			name:    "two switches in mask order",
			current: types.Battery | types.Taxi,
			want:    []sent{{"taxi", 1}, {"battery", 1}},
		},
		{
			name:     "right to start",
			init:     types.MagRight,
			previous: types.MagRight,
			current:  types.MagStart,
			want:     []sent{{"magneto", 4}, {"starter", 1}},
		},
		{
			name:     "start to off",
			init:     types.MagStart,
			previous: types.MagStart,
			current:  types.MagOff,
			want:     []sent{{"starter", 0}, {"magneto", 0}},
		},
		{
			name:     "start to both",
			init:     types.MagStart,
			previous: types.MagStart,
			current:  types.MagBoth,
			want:     []sent{{"starter", 0}, {"magneto", 3}},
		},
		{
			name:     "rotary released between detents",
			init:     types.MagLeft,
			previous: types.MagLeft,
			current:  0,
		},
		{
			name:     "switch and rotary together",
			init:     types.MagOff,
			previous: types.MagOff,
			current:  types.Landing | types.MagRight,
			want:     []sent{{"landing", 1}, {"magneto", 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emitter := &fakeEmitter{}
			m := newTestMapper(t, emitter)
			if err := m.InitialiseSwitches(context.Background(), tt.init); err != nil {
				t.Fatalf("InitialiseSwitches() failed: %v", err)
			}
			emitter.reset()

			if err := m.ProcessInput(tt.current, tt.previous); err != nil {
				t.Fatalf("ProcessInput() failed: %v", err)
			}
			assertSent(t, emitter.sent, tt.want...)
		})
	}
}

func TestSingleBitChangeToggles(t *testing.T) {
	emitter := &fakeEmitter{}
	m := newTestMapper(t, emitter)
	if err := m.InitialiseSwitches(context.Background(), 0); err != nil {
		t.Fatal(err)
	}

	for mask, command := range testMapping().Switches {
		for _, want := range []uint8{1, 0} {
			emitter.reset()
			current, previous := mask, types.Snapshot(0)
			if want == 0 {
				current, previous = 0, mask
			}

			if err := m.ProcessInput(current, previous); err != nil {
				t.Fatalf("ProcessInput(%s) failed: %v", mask, err)
			}
			assertSent(t, emitter.sent, sent{command, want})
		}
	}
}

func TestRotaryValueStaysValid(t *testing.T) {
	valid := map[types.Snapshot]bool{0: true}
	for _, p := range rotaryTable {
		valid[p.mask] = true
	}

	emitter := &fakeEmitter{}
	m := newTestMapper(t, emitter)
	if err := m.InitialiseSwitches(context.Background(), 0); err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(172))
	previous := types.Snapshot(0)
	for i := 0; i < 2000; i++ {
		current := types.Snapshot(rng.Uint32()) & (types.SwitchMask | types.RotaryMask)
		// keep at most one rotary bit, as the hardware does
		current &^= types.RotaryMask
		if n := rng.Intn(len(rotaryTable) + 1); n < len(rotaryTable) {
			current |= rotaryTable[n].mask
		}

		if err := m.ProcessInput(current, previous); err != nil {
			t.Fatalf("step %d: ProcessInput failed: %v", i, err)
		}
		if !valid[m.RotaryValue()] {
			t.Fatalf("step %d: invalid rotary value %s", i, m.RotaryValue())
		}
		previous = current
	}

	// every configured switch must mirror the panel after any sequence
	for mask := range testMapping().Switches {
		if v, _ := m.LastSent(mask); v != previous.Bit(mask) {
			t.Errorf("LastSent(%s) = %d, panel has %d", mask, v, previous.Bit(mask))
		}
	}
}

func TestTwoRotaryBitsIsConsistencyError(t *testing.T) {
	emitter := &fakeEmitter{}
	m := newTestMapper(t, emitter)
	if err := m.InitialiseSwitches(context.Background(), types.MagOff); err != nil {
		t.Fatal(err)
	}
	emitter.reset()

	err := m.ProcessInput(types.MagOff|types.MagRight, types.MagOff)
	if !errors.Is(err, types.ErrUnknownRotary) {
		t.Fatalf("Expected ErrUnknownRotary, got %v", err)
	}
	if code := types.ExitCode(err); code != types.ExitConsistency {
		t.Errorf("Expected exit code %d, got %d", types.ExitConsistency, code)
	}
	if m.RotaryValue() != types.MagOff {
		t.Errorf("Expected rotary state untouched, got %s", m.RotaryValue())
	}
	if len(emitter.sent) != 0 {
		t.Errorf("Expected nothing sent, got %v", emitter.sent)
	}
}

func TestGearLeverUsesConfiguredSide(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	mapping := testMapping()
	mapping.Switches[types.GearDown] = "gear-down"

	emitter := &fakeEmitter{}
	m := NewMapper(mapping, types.NewNameTable(), emitter, config.SimulatorConfig{}, zap.New(core))
	if err := m.InitialiseSwitches(context.Background(), types.GearUp); err != nil {
		t.Fatal(err)
	}
	emitter.reset()

	if err := m.ProcessInput(types.GearDown, types.GearUp); err != nil {
		t.Fatalf("ProcessInput() failed: %v", err)
	}
	assertSent(t, emitter.sent, sent{"gear-down", 1})

	if logs.FilterMessage("Ignoring unmapped switch change").Len() != 1 {
		t.Error("Expected the unmapped GEARUP change to be logged")
	}
}

func TestSendFailure(t *testing.T) {
	refused := errors.New("connection refused")

	t.Run("fatal by default", func(t *testing.T) {
		m := newTestMapper(t, &fakeEmitter{err: refused})

		err := m.ProcessInput(types.Battery, 0)
		if !errors.Is(err, refused) {
			t.Fatalf("Expected send error, got %v", err)
		}
		if code := types.ExitCode(err); code != types.ExitTransport {
			t.Errorf("Expected exit code %d, got %d", types.ExitTransport, code)
		}
	})

	t.Run("continue on send error", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		m := NewMapper(testMapping(), types.NewNameTable(), &fakeEmitter{err: refused},
			config.SimulatorConfig{ContinueOnSendFail: true}, zap.New(core))

		if err := m.ProcessInput(types.Battery, 0); err != nil {
			t.Fatalf("Expected send error to be tolerated, got %v", err)
		}
		if v, _ := m.LastSent(types.Battery); v != 1 {
			t.Errorf("Expected switch state to follow the panel, got %d", v)
		}
		if logs.FilterMessage("Failed to send command").Len() != 1 {
			t.Error("Expected failure to be logged")
		}
	})
}

func TestObserverAndStatus(t *testing.T) {
	m := newTestMapper(t, &fakeEmitter{})

	var observed []Command
	m.SetObserver(func(cmd Command) { observed = append(observed, cmd) })

	if err := m.ProcessInput(types.Beacon|types.MagStart, 0); err != nil {
		t.Fatalf("ProcessInput() failed: %v", err)
	}

	if len(observed) != 3 {
		t.Fatalf("Expected 3 observed commands, got %d", len(observed))
	}
	if observed[0].Control != "beacon" || observed[0].Timestamp.IsZero() {
		t.Errorf("Unexpected first command %+v", observed[0])
	}

	status := m.Status()
	if status.Plane != "c172p" || status.Rotary != PositionStart {
		t.Errorf("Unexpected status header %+v", status)
	}
	if status.RotaryCode == nil || *status.RotaryCode != 4 {
		t.Errorf("Expected rotary code 4, got %v", status.RotaryCode)
	}
	if status.CommandsSent != 3 {
		t.Errorf("Expected 3 commands sent, got %d", status.CommandsSent)
	}
	if status.GearPrimer != "primer" {
		t.Errorf("Expected gear primer to be reported, got %q", status.GearPrimer)
	}
	if len(status.Switches) != types.MinSwitchBindings {
		t.Fatalf("Expected %d switches, got %d", types.MinSwitchBindings, len(status.Switches))
	}
	for _, sw := range status.Switches {
		if sw.Name == "BEACON" && sw.Value != 1 {
			t.Errorf("Expected BEACON=1, got %d", sw.Value)
		}
	}
}

func TestPositionOf(t *testing.T) {
	tests := []struct {
		key  types.Snapshot
		want Position
	}{
		{0, PositionNone},
		{types.MagOff, PositionOff},
		{types.MagRight, PositionRight},
		{types.MagLeft, PositionLeft},
		{types.MagBoth, PositionBoth},
		{types.MagStart, PositionStart},
		{types.MagOff | types.MagBoth, PositionInvalid},
	}
	for _, tt := range tests {
		if got := PositionOf(tt.key); got != tt.want {
			t.Errorf("PositionOf(%s) = %s, want %s", tt.key, got, tt.want)
		}
	}
}
