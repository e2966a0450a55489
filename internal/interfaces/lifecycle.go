package interfaces

import (
	"context"
	"time"

	"github.com/fgpanels/switchpanel/internal/config"
	"github.com/fgpanels/switchpanel/internal/devices"
	"github.com/fgpanels/switchpanel/internal/simulator"
)

// SystemStatus represents the current system state
type SystemStatus struct {
	State       string `json:"state"`
	Error       string `json:"error,omitempty"`
	DeviceID    string `json:"device_id,omitempty"`
	Backend     string `json:"backend"`
	MappingFile string `json:"mapping_file"`
	Plane       string `json:"plane,omitempty"`
	Changes     uint64 `json:"changes"`
	StartedAt   int64  `json:"started_at"`
}

// PanelStatus is the latest published panel and mapper state.
type PanelStatus struct {
	Input     string           `json:"input"`
	Mapper    simulator.Status `json:"mapper"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type LifecycleManager interface {
	Config() *config.Config
	DeviceManager() *devices.Manager
	GetCurrentStatus() SystemStatus
	GetPanelStatus() (PanelStatus, bool)
	Shutdown(ctx context.Context) error
}
