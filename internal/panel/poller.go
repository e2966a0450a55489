package panel

import (
	"context"
	"errors"
	"sync"

	"github.com/fgpanels/switchpanel/internal/types"
	"go.uber.org/zap"
)

// InputProcessor consumes a changed snapshot pair.
type InputProcessor interface {
	ProcessInput(current, previous types.Snapshot) error
}

// Poller is the driver loop: read, process on change, preserve.
type Poller struct {
	device    *Device
	processor InputProcessor
	logger    *zap.Logger
	onChange  func(current types.Snapshot)

	mu      sync.Mutex
	running bool
	cycles  uint64
}

func NewPoller(device *Device, processor InputProcessor, logger *zap.Logger) *Poller {
	return &Poller{
		device:    device,
		processor: processor,
		logger:    logger,
	}
}

// OnChange registers a callback run after every processed change.
func (p *Poller) OnChange(fn func(current types.Snapshot)) {
	p.onChange = fn
}

// Run blocks until ctx is cancelled, the source closes or processing fails.
// Cancellation is observed between reads.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("poller already running")
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	p.logger.Info("Poller started", zap.String("device", p.device.Name))

	for {
		if ctx.Err() != nil {
			p.logger.Info("Poller stopped", zap.String("device", p.device.Name))
			return nil
		}

		if err := p.poll(); err != nil {
			if ctx.Err() != nil && errors.Is(err, types.ErrSourceClosed) {
				// source closed by shutdown
				return nil
			}
			return err
		}
	}
}

func (p *Poller) poll() error {
	if _, err := p.device.Read(); err != nil {
		return err
	}

	if p.device.HasInputChanged() {
		current, previous := p.device.Current(), p.device.Previous()

		p.logger.Debug("Input changed",
			zap.Stringer("current", current),
			zap.Stringer("previous", previous))

		if err := p.processor.ProcessInput(current, previous); err != nil {
			return err
		}

		p.mu.Lock()
		p.cycles++
		p.mu.Unlock()

		if p.onChange != nil {
			p.onChange(current)
		}
	}

	p.device.Preserve()
	return nil
}

// IsRunning gibt an ob Poller läuft
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Changes returns how many changed reports have been processed.
func (p *Poller) Changes() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cycles
}
