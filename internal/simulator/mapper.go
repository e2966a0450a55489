package simulator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fgpanels/switchpanel/internal/config"
	"github.com/fgpanels/switchpanel/internal/types"
	"go.uber.org/zap"
)

// CommandObserver is called after every successful emission.
type CommandObserver func(cmd Command)

// SwitchStatus is the reported state of one configured switch.
type SwitchStatus struct {
	Name    string `json:"name"`
	Mask    string `json:"mask"`
	Command string `json:"command"`
	Value   uint8  `json:"value"`
}

// Status is a copy of the mapper state.
type Status struct {
	Plane        string         `json:"plane,omitempty"`
	Switches     []SwitchStatus `json:"switches"`
	Rotary       Position       `json:"rotary"`
	RotaryCode   *uint8         `json:"rotary_code,omitempty"`
	Magnetos     string         `json:"magnetos"`
	Starter      string         `json:"starter"`
	GearRetarget string         `json:"gear_retarget,omitempty"`
	GearPrimer   string         `json:"gear_primer,omitempty"`
	CommandsSent uint64         `json:"commands_sent"`
}

// Mapper turns snapshot changes into simulator commands. It is not safe
// for concurrent use; callers publish Status copies instead.
type Mapper struct {
	logger  *zap.Logger
	emitter Emitter
	names   *types.NameTable

	plane          string
	switchOutputs  map[types.Snapshot]string
	switchLastSent map[types.Snapshot]uint8
	masks          []types.Snapshot
	rotaryValue    types.Snapshot
	rotaryCommand  string
	starterCommand string
	gearRetarget   string
	gearPrimer     string

	initDelay           time.Duration
	continueOnSendError bool
	sleep               func(ctx context.Context, d time.Duration) error
	observer            CommandObserver
	sent                uint64
}

func NewMapper(
	mapping *types.Mapping,
	names *types.NameTable,
	emitter Emitter,
	cfg config.SimulatorConfig,
	logger *zap.Logger,
) *Mapper {
	m := &Mapper{
		logger:              logger,
		emitter:             emitter,
		names:               names,
		plane:               mapping.Plane,
		switchOutputs:       make(map[types.Snapshot]string, len(mapping.Switches)),
		switchLastSent:      make(map[types.Snapshot]uint8, len(mapping.Switches)),
		masks:               make([]types.Snapshot, 0, len(mapping.Switches)),
		rotaryCommand:       mapping.Magnetos,
		starterCommand:      mapping.Starter,
		gearRetarget:        mapping.GearRetarget,
		gearPrimer:          mapping.GearPrimer,
		initDelay:           cfg.InitDelay,
		continueOnSendError: cfg.ContinueOnSendFail,
		sleep:               sleepContext,
	}

	for mask, command := range mapping.Switches {
		m.switchOutputs[mask] = command
		m.switchLastSent[mask] = 0
		m.masks = append(m.masks, mask)
	}
	sort.Slice(m.masks, func(i, j int) bool { return m.masks[i] < m.masks[j] })

	return m
}

// SetObserver registers the command observer.
func (m *Mapper) SetObserver(observer CommandObserver) {
	m.observer = observer
}

// InitialiseSwitches sends the state of every configured switch, then the
// active rotary position if any, pausing initDelay between sends.
func (m *Mapper) InitialiseSwitches(ctx context.Context, current types.Snapshot) error {
	m.logger.Info("Initialising simulator switches",
		zap.Stringer("input", current),
		zap.Int("switches", len(m.masks)))

	for i, mask := range m.masks {
		if i > 0 && m.initDelay > 0 {
			if err := m.sleep(ctx, m.initDelay); err != nil {
				return err
			}
		}

		state := current.Bit(mask)
		m.switchLastSent[mask] = state
		if err := m.emit(ctx, m.switchOutputs[mask], state); err != nil {
			return err
		}
	}

	for _, p := range rotaryTable {
		if current.Has(p.mask) {
			if len(m.masks) > 0 && m.initDelay > 0 {
				if err := m.sleep(ctx, m.initDelay); err != nil {
					return err
				}
			}
			m.rotaryValue = p.mask
			return m.emit(ctx, m.rotaryCommand, p.code)
		}
	}

	return nil
}

// ProcessInput emits commands for the switch and rotary changes between
// previous and current.
func (m *Mapper) ProcessInput(current, previous types.Snapshot) error {
	ctx := context.Background()

	if err := m.processSwitches(ctx, current, previous); err != nil {
		return err
	}

	return m.processRotary(ctx, current)
}

func (m *Mapper) processSwitches(ctx context.Context, current, previous types.Snapshot) error {
	changed := (current ^ previous) & types.SwitchMask
	if changed == 0 {
		return nil
	}

	covered := types.Snapshot(0)
	for _, mask := range m.masks {
		if mask&changed == 0 {
			continue
		}
		covered |= mask

		last, ok := m.switchLastSent[mask]
		if !ok {
			return types.NewError(types.KindConsistency, "process switches",
				fmt.Errorf("%w: %s", types.ErrUnregisteredBit, mask))
		}

		value := last ^ 1
		m.switchLastSent[mask] = value
		if err := m.emit(ctx, m.switchOutputs[mask], value); err != nil {
			return err
		}

		if mask == changed {
			return nil
		}
	}

	if uncovered := changed &^ covered; uncovered != 0 {
		m.logger.Debug("Ignoring unmapped switch change", zap.Stringer("bits", uncovered))
	}

	return nil
}

func (m *Mapper) processRotary(ctx context.Context, current types.Snapshot) error {
	key := current & types.RotaryMask
	if key == 0 || key == m.rotaryValue {
		return nil
	}

	code, ok := rotaryCode(key)
	if !ok {
		return types.NewError(types.KindConsistency, "process rotary",
			fmt.Errorf("%w: %s", types.ErrUnknownRotary, key))
	}

	if m.rotaryValue == types.MagStart {
		if err := m.emit(ctx, m.starterCommand, 0); err != nil {
			return err
		}
	}

	m.rotaryValue = key
	if err := m.emit(ctx, m.rotaryCommand, code); err != nil {
		return err
	}

	if key == types.MagStart {
		return m.emit(ctx, m.starterCommand, 1)
	}

	return nil
}

func (m *Mapper) emit(ctx context.Context, control string, action uint8) error {
	if err := m.emitter.Send(ctx, control, action); err != nil {
		if m.continueOnSendError {
			m.logger.Warn("Failed to send command",
				zap.String("control", control),
				zap.Uint8("action", action),
				zap.Error(err))
			return nil
		}
		return types.NewError(types.KindTransport, "send "+control, err)
	}

	m.sent++
	m.logger.Debug("Command sent",
		zap.String("control", control),
		zap.Uint8("action", action))

	if m.observer != nil {
		m.observer(Command{Control: control, Action: action, Timestamp: time.Now()})
	}

	return nil
}

// RotaryValue returns the active rotary bit, or 0.
func (m *Mapper) RotaryValue() types.Snapshot {
	return m.rotaryValue
}

// LastSent returns the last value sent for a configured switch mask.
func (m *Mapper) LastSent(mask types.Snapshot) (uint8, bool) {
	v, ok := m.switchLastSent[mask]
	return v, ok
}

func (m *Mapper) Status() Status {
	status := Status{
		Plane:        m.plane,
		Switches:     make([]SwitchStatus, 0, len(m.masks)),
		Rotary:       PositionOf(m.rotaryValue),
		Magnetos:     m.rotaryCommand,
		Starter:      m.starterCommand,
		GearRetarget: m.gearRetarget,
		GearPrimer:   m.gearPrimer,
		CommandsSent: m.sent,
	}

	if code, ok := rotaryCode(m.rotaryValue); ok {
		status.RotaryCode = &code
	}

	for _, mask := range m.masks {
		name, _ := m.names.NameOf(mask)
		status.Switches = append(status.Switches, SwitchStatus{
			Name:    name,
			Mask:    mask.String(),
			Command: m.switchOutputs[mask],
			Value:   m.switchLastSent[mask],
		})
	}

	return status
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
