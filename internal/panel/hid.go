package panel

import (
	"errors"
	"fmt"
	"time"

	"github.com/fgpanels/switchpanel/internal/types"
	"github.com/sstallion/go-hid"
)

// Saitek is 06a3, the switch panel is 0d67
const (
	SaitekVendorID    uint16 = 0x06a3
	SwitchPanelID     uint16 = 0x0d67
	featureReportSize        = 2
)

// HIDSource reads the switch panel through hidapi.
type HIDSource struct {
	device  *hid.Device
	timeout time.Duration
	info    string
}

// OpenHID opens the first panel matching vendorID:productID. Reads time out
// after timeout so the driver loop can observe cancellation.
func OpenHID(vendorID, productID uint16, timeout time.Duration) (*HIDSource, error) {
	if err := hid.Init(); err != nil {
		return nil, fmt.Errorf("hidapi init: %w", err)
	}

	dev, err := hid.OpenFirst(vendorID, productID)
	if err != nil {
		hid.Exit()
		return nil, fmt.Errorf("%w (%04x:%04x): %v", types.ErrDeviceNotFound, vendorID, productID, err)
	}

	info := fmt.Sprintf("%04x:%04x", vendorID, productID)
	if di, err := dev.GetDeviceInfo(); err == nil {
		info = fmt.Sprintf("%s %s %s", di.Path, di.MfrStr, di.ProductStr)
	}

	return &HIDSource{
		device:  dev,
		timeout: timeout,
		info:    info,
	}, nil
}

func (s *HIDSource) Read(p []byte) (int, error) {
	n, err := s.device.ReadWithTimeout(p, s.timeout)
	if errors.Is(err, hid.ErrTimeout) {
		return 0, ErrNoData
	}
	return n, err
}

// SetIndicator sends the gear LED feature report.
func (s *HIDSource) SetIndicator(leds byte) error {
	report := [featureReportSize]byte{0, leds}
	if _, err := s.device.SendFeatureReport(report[:]); err != nil {
		return fmt.Errorf("send feature report: %w", err)
	}
	return nil
}

// Info describes the opened device for logging.
func (s *HIDSource) Info() string {
	return s.info
}

func (s *HIDSource) Close() error {
	err := s.device.Close()
	hid.Exit()
	return err
}
