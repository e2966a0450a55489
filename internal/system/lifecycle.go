package system

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fgpanels/switchpanel/internal/api/rest"
	"github.com/fgpanels/switchpanel/internal/api/websocket"
	"github.com/fgpanels/switchpanel/internal/config"
	"github.com/fgpanels/switchpanel/internal/devices"
	"github.com/fgpanels/switchpanel/internal/interfaces"
	"github.com/fgpanels/switchpanel/internal/panel"
	"github.com/fgpanels/switchpanel/internal/simulator"
	"github.com/fgpanels/switchpanel/internal/types"
	"go.uber.org/zap"
)

// sendTimeout bounds a single datagram send.
const sendTimeout = time.Second

type LifecycleManager struct {
	config        *config.Config
	mappingPath   string
	stdin         io.Reader
	deviceManager *devices.Manager
	emitter       simulator.Emitter
	logger        *zap.Logger

	mapper *simulator.Mapper
	poller *panel.Poller

	restServer *rest.Server
	wsHub      *websocket.Hub
	hubCancel  context.CancelFunc

	stateMu      sync.RWMutex
	currentState SystemState
	lastError    string
	startedAt    time.Time
	panelStatus  *interfaces.PanelStatus
	changes      uint64

	listenersMu     sync.RWMutex
	statusListeners []chan SystemStatus

	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

func NewLifecycleManager(cfg *config.Config, mappingPath string, stdin io.Reader, logger *zap.Logger) (*LifecycleManager, error) {
	deviceManager, err := devices.NewManager(types.NewNameTable(), devices.DefaultSearchPaths, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create device manager: %w", err)
	}

	return &LifecycleManager{
		config:          cfg,
		mappingPath:     mappingPath,
		stdin:           stdin,
		deviceManager:   deviceManager,
		emitter:         simulator.NewUDPEmitter(cfg.Simulator.Address, cfg.Simulator.LocalAddress, sendTimeout),
		logger:          logger,
		currentState:    StateInitializing,
		startedAt:       time.Now(),
		shutdownChan:    make(chan struct{}),
		statusListeners: make([]chan SystemStatus, 0),
	}, nil
}

// SetEmitter replaces the UDP emitter. Must be called before Start.
func (lm *LifecycleManager) SetEmitter(emitter simulator.Emitter) {
	lm.emitter = emitter
}

// Start loads the mapping, opens the panel, waits for the first key and
// sends the initial switch state. It blocks until the operator touches the
// panel or ctx is cancelled.
func (lm *LifecycleManager) Start(ctx context.Context) error {
	lm.logger.Info("Starting switch panel bridge",
		zap.String("mapping", lm.mappingPath),
		zap.String("backend", lm.config.Input.Backend),
		zap.String("simulator", lm.config.Simulator.Address))

	mapping, err := lm.deviceManager.LoadMapping(lm.mappingPath)
	if err != nil {
		return lm.fail(err)
	}

	if lm.config.Monitor.Enabled {
		if err := lm.startMonitor(); err != nil {
			return lm.fail(fmt.Errorf("failed to start monitor: %w", err))
		}
	}

	device, err := lm.deviceManager.OpenDevice(lm.config.Input, lm.stdin)
	if err != nil {
		return lm.fail(err)
	}

	lm.setState(StateWaitingForInput, "")
	if err := device.Initialise(ctx); err != nil {
		return lm.fail(err)
	}

	lm.mapper = simulator.NewMapper(mapping, lm.deviceManager.Names(), lm.emitter, lm.config.Simulator, lm.logger)
	lm.mapper.SetObserver(lm.onCommand)

	if err := lm.mapper.InitialiseSwitches(ctx, device.Current()); err != nil {
		return lm.fail(err)
	}
	lm.publishPanel(device.Current())

	lm.poller = panel.NewPoller(device, lm.mapper, lm.logger)
	lm.poller.OnChange(lm.publishPanel)

	lm.setState(StateRunning, "")
	lm.logger.Info("System started successfully",
		zap.String("plane", mapping.Plane),
		zap.Stringer("input", device.Current()),
		zap.Bool("monitor_enabled", lm.config.Monitor.Enabled))

	return nil
}

// Run drives the poll loop until ctx is cancelled or the input ends.
func (lm *LifecycleManager) Run(ctx context.Context) error {
	if lm.poller == nil {
		return fmt.Errorf("system not started")
	}

	err := lm.poller.Run(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, types.ErrSourceClosed):
		lm.logger.Info("Input ended")
		return err
	default:
		return lm.fail(err)
	}
}

func (lm *LifecycleManager) startMonitor() error {
	lm.wsHub = websocket.NewHub(lm.logger)
	lm.wsHub.SetPanelStateProvider(lm)

	hubCtx, cancel := context.WithCancel(context.Background())
	lm.hubCancel = cancel
	go lm.wsHub.Run(hubCtx)

	lm.restServer = rest.NewServer(lm.config, lm, lm.logger, lm.wsHub)
	if err := lm.restServer.Start(); err != nil {
		cancel()
		lm.restServer = nil
		return err
	}
	return nil
}

func (lm *LifecycleManager) onCommand(cmd simulator.Command) {
	if lm.wsHub != nil {
		lm.wsHub.Broadcast(websocket.NewCommandMessage(cmd.Control, cmd.Action, cmd.Datagram()))
	}
}

// publishPanel stores a copy of the mapper status for the monitor. Runs
// on the driver goroutine.
func (lm *LifecycleManager) publishPanel(current types.Snapshot) {
	status := interfaces.PanelStatus{
		Input:     current.String(),
		Mapper:    lm.mapper.Status(),
		UpdatedAt: time.Now(),
	}

	var changes uint64
	if lm.poller != nil {
		changes = lm.poller.Changes()
	}

	lm.stateMu.Lock()
	lm.panelStatus = &status
	lm.changes = changes
	lm.stateMu.Unlock()

	if lm.wsHub != nil {
		lm.wsHub.Broadcast(websocket.NewPanelStateMessage(status))
	}
}

// Shutdown gracefully shuts down the system
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")

		lm.setState(StateStopping, "")
		shutdownErr = lm.gracefulShutdown(ctx)
		lm.setState(StateStopped, "")

		close(lm.shutdownChan)
	})

	return shutdownErr
}

func (lm *LifecycleManager) gracefulShutdown(ctx context.Context) error {
	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	// 1. Close the device, unblocking a pending read
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := lm.deviceManager.StopAll(ctx); err != nil {
			errChan <- fmt.Errorf("device manager stop failed: %w", err)
		}
	}()

	// 2. Monitor graceful shutdown
	if lm.restServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shutdownCtx, cancel := context.WithTimeout(ctx, lm.config.Monitor.ShutdownTimeout)
			defer cancel()

			if err := lm.restServer.Shutdown(shutdownCtx); err != nil {
				errChan <- fmt.Errorf("monitor shutdown failed: %w", err)
			}
		}()
	}

	// Wait for all shutdowns
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		lm.logger.Info("Graceful shutdown completed")
	case <-ctx.Done():
		lm.logger.Warn("Shutdown timeout, forcing stop")
		err = fmt.Errorf("shutdown timeout exceeded")
	case err = <-errChan:
	}

	if lm.hubCancel != nil {
		lm.hubCancel()
	}
	return err
}

// Done is closed once Shutdown has completed.
func (lm *LifecycleManager) Done() <-chan struct{} {
	return lm.shutdownChan
}

func (lm *LifecycleManager) fail(err error) error {
	lm.logger.Error("System failure", zap.Error(err))
	lm.setState(StateError, err.Error())
	return err
}

func (lm *LifecycleManager) setState(state SystemState, errMsg string) {
	lm.stateMu.Lock()
	previous := lm.currentState
	if err := ValidateTransition(previous, state); err != nil {
		lm.stateMu.Unlock()
		lm.logger.Warn("Ignoring state change", zap.Error(err))
		return
	}
	lm.currentState = state
	if errMsg != "" {
		lm.lastError = errMsg
	}
	lm.stateMu.Unlock()

	lm.logger.Debug("State changed",
		zap.Stringer("from", previous),
		zap.Stringer("to", state))

	if lm.wsHub != nil {
		lm.wsHub.Broadcast(websocket.NewSystemStatusMessage(state.String(), previous.String(), errMsg))
	}
	lm.broadcastStatus()
}

// State returns the current lifecycle state.
func (lm *LifecycleManager) State() SystemState {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()
	return lm.currentState
}

// GetCurrentStatus returns current system status (Interface implementation)
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()

	status := interfaces.SystemStatus{
		State:       lm.currentState.String(),
		Error:       lm.lastError,
		Backend:     lm.config.Input.Backend,
		MappingFile: lm.mappingPath,
		Changes:     lm.changes,
		StartedAt:   lm.startedAt.Unix(),
	}

	if device, ok := lm.deviceManager.GetDevice(); ok {
		status.DeviceID = device.ID.String()
	}
	if lm.panelStatus != nil {
		status.Plane = lm.panelStatus.Mapper.Plane
	}

	return status
}

// GetPanelStatus returns the latest published panel status.
func (lm *LifecycleManager) GetPanelStatus() (interfaces.PanelStatus, bool) {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()

	if lm.panelStatus == nil {
		return interfaces.PanelStatus{}, false
	}
	return *lm.panelStatus, true
}

// PanelState feeds new websocket clients.
func (lm *LifecycleManager) PanelState() (any, bool) {
	status, ok := lm.GetPanelStatus()
	return status, ok
}

func (lm *LifecycleManager) getStatusInternal() SystemStatus {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()

	return SystemStatus{
		State:     lm.currentState,
		Timestamp: time.Now().Unix(),
		Error:     lm.lastError,
	}
}

func (lm *LifecycleManager) broadcastStatus() {
	status := lm.getStatusInternal()

	lm.listenersMu.RLock()
	defer lm.listenersMu.RUnlock()

	for _, listener := range lm.statusListeners {
		select {
		case listener <- status:
		default:
			// Channel full, skip
		}
	}
}

// SubscribeStatus subscribes to status updates
func (lm *LifecycleManager) SubscribeStatus() chan SystemStatus {
	ch := make(chan SystemStatus, 10)

	lm.listenersMu.Lock()
	lm.statusListeners = append(lm.statusListeners, ch)
	lm.listenersMu.Unlock()

	return ch
}

// UnsubscribeStatus unsubscribes from status updates
func (lm *LifecycleManager) UnsubscribeStatus(ch chan SystemStatus) {
	lm.listenersMu.Lock()
	defer lm.listenersMu.Unlock()

	for i, listener := range lm.statusListeners {
		if listener == ch {
			lm.statusListeners = append(lm.statusListeners[:i], lm.statusListeners[i+1:]...)
			close(ch)
			break
		}
	}
}

// DeviceManager returns the device manager
func (lm *LifecycleManager) DeviceManager() *devices.Manager {
	return lm.deviceManager
}

// Config returns the configuration
func (lm *LifecycleManager) Config() *config.Config {
	return lm.config
}
