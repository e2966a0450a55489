package panel

import (
	"context"
	"errors"
	"fmt"

	"github.com/fgpanels/switchpanel/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Device holds the current and previous snapshot of one switch panel.
type Device struct {
	ID     uuid.UUID
	Name   string
	source Source
	logger *zap.Logger

	current  types.Snapshot
	previous types.Snapshot
	buf      [FrameSize]byte
}

func NewDevice(name string, source Source, logger *zap.Logger) *Device {
	id := uuid.New()
	return &Device{
		ID:     id,
		Name:   name,
		source: source,
		logger: logger.With(zap.String("device_id", id.String())),
	}
}

// Initialise waits for the operator to move any control and seeds the
// current snapshot from that first report. While waiting, the nose gear
// LED is red on sources that have LEDs.
func (d *Device) Initialise(ctx context.Context) error {
	indicator, hasLEDs := d.source.(Indicator)
	if hasLEDs {
		if err := indicator.SetIndicator(LEDNoseRed); err != nil {
			d.logger.Warn("Failed to set nose LED", zap.Error(err))
		}
	}

	d.logger.Info("Operate a key on the switch panel", zap.String("device", d.Name))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := d.source.Read(d.buf[:])
		if errors.Is(err, ErrNoData) {
			continue
		}
		if isClosed(err) {
			return types.NewError(types.KindDevice, "initialise "+d.Name, types.ErrSourceClosed)
		}
		if err != nil {
			return types.NewError(types.KindDevice, "initialise "+d.Name,
				fmt.Errorf("%w: %v", types.ErrDeviceRead, err))
		}

		// a short first report seeds an all-off panel
		snapshot, _ := Pack(d.buf[:], n)
		d.current = snapshot
		d.previous = snapshot
		break
	}

	if hasLEDs {
		if err := indicator.SetIndicator(LEDAllOff); err != nil {
			d.logger.Warn("Failed to clear LEDs", zap.Error(err))
		}
	}

	d.logger.Info("Switch panel ready",
		zap.String("device", d.Name),
		zap.Stringer("input", d.current))

	return nil
}

// Read performs one blocking read. A short read or a transient error leaves
// the current snapshot untouched. Only a closed source is returned as an
// error.
func (d *Device) Read() (bool, error) {
	n, err := d.source.Read(d.buf[:])
	switch {
	case err == nil:
	case errors.Is(err, ErrNoData):
		return false, nil
	case isClosed(err):
		return false, types.NewError(types.KindDevice, "read "+d.Name, types.ErrSourceClosed)
	default:
		d.logger.Warn("Read failed", zap.String("device", d.Name), zap.Error(err))
		return false, nil
	}

	snapshot, ok := Pack(d.buf[:], n)
	if !ok {
		return false, nil
	}

	d.current = snapshot
	return true, nil
}

// Current returns the snapshot from the latest read.
func (d *Device) Current() types.Snapshot {
	return d.current
}

// Previous returns the snapshot from the prior cycle.
func (d *Device) Previous() types.Snapshot {
	return d.previous
}

// Preserve saves the current snapshot as the previous one.
func (d *Device) Preserve() {
	d.previous = d.current
}

// HasInputChanged reports whether current and previous differ.
func (d *Device) HasInputChanged() bool {
	return d.current != d.previous
}

func (d *Device) Close() error {
	return d.source.Close()
}
