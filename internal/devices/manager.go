package devices

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fgpanels/switchpanel/internal/config"
	"github.com/fgpanels/switchpanel/internal/panel"
	"github.com/fgpanels/switchpanel/internal/types"
	"go.uber.org/zap"
)

// HIDOpener opens the hardware backend. Replaced in tests.
type HIDOpener func(cfg config.InputConfig) (panel.Source, string, error)

func openHID(cfg config.InputConfig) (panel.Source, string, error) {
	src, err := panel.OpenHID(cfg.VendorID, cfg.ProductID, cfg.ReadTimeout)
	if err != nil {
		return nil, "", err
	}
	return src, src.Info(), nil
}

// Manager owns the mapping loader and the single panel device.
type Manager struct {
	loader  *MappingLoader
	names   *types.NameTable
	openHID HIDOpener
	device  *panel.Device
	mu      sync.RWMutex
	logger  *zap.Logger
}

func NewManager(names *types.NameTable, searchPaths []string, logger *zap.Logger) (*Manager, error) {
	loader, err := NewMappingLoader(names, searchPaths, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create mapping loader: %w", err)
	}

	return &Manager{
		loader:  loader,
		names:   names,
		openHID: openHID,
		logger:  logger,
	}, nil
}

// SetHIDOpener swaps the hardware backend.
func (m *Manager) SetHIDOpener(opener HIDOpener) {
	m.openHID = opener
}

// LoadMapping loads the mapping document at path.
func (m *Manager) LoadMapping(path string) (*types.Mapping, error) {
	return m.loader.Load(path)
}

// Names returns the name table the manager resolves against.
func (m *Manager) Names() *types.NameTable {
	return m.names
}

// OpenDevice opens the configured input backend. stdin is used by the
// stream backend.
func (m *Manager) OpenDevice(cfg config.InputConfig, stdin io.Reader) (*panel.Device, error) {
	var (
		source panel.Source
		info   string
	)

	switch cfg.Backend {
	case config.BackendHID:
		src, desc, err := m.openHID(cfg)
		if err != nil {
			return nil, types.NewError(types.KindDevice, "open device", err)
		}
		source, info = src, desc
	case config.BackendStdin:
		source, info = panel.NewStreamSource(stdin), "stdin"
	default:
		return nil, types.NewError(types.KindConfig, "open device",
			fmt.Errorf("unknown input backend %q", cfg.Backend))
	}

	device := panel.NewDevice("switch", source, m.logger)

	m.mu.Lock()
	m.device = device
	m.mu.Unlock()

	m.logger.Info("Device opened",
		zap.String("backend", cfg.Backend),
		zap.String("info", info),
		zap.String("device_id", device.ID.String()))

	return device, nil
}

// GetDevice returns the opened device.
func (m *Manager) GetDevice() (*panel.Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.device, m.device != nil
}

// StopAll closes the device. Closing unblocks a pending stream read.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return nil
	}

	if err := m.device.Close(); err != nil {
		m.logger.Error("Failed to close device",
			zap.String("device", m.device.Name),
			zap.Error(err))
		return err
	}
	m.device = nil

	return nil
}
