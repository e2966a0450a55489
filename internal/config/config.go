package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fgpanels/switchpanel/internal/types"
	"github.com/spf13/viper"
)

// DefaultMappingFile is used when no mapping file is given on the command line.
const DefaultMappingFile = "switchdefaultconfig.xml"

// SettingsEnv names an explicit settings file.
const SettingsEnv = "SWITCHPANEL_SETTINGS"

var envKeyReplacer = strings.NewReplacer(".", "_")

const (
	BackendHID   = "hid"
	BackendStdin = "stdin"
)

type Config struct {
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Input     InputConfig     `mapstructure:"input"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Log       LogConfig       `mapstructure:"log"`
}

type SimulatorConfig struct {
	Address            string        `mapstructure:"address"`
	LocalAddress       string        `mapstructure:"local_address"`
	InitDelay          time.Duration `mapstructure:"init_delay"`
	ContinueOnSendFail bool          `mapstructure:"continue_on_send_error"`
}

type InputConfig struct {
	Backend     string        `mapstructure:"backend"`
	VendorID    uint16        `mapstructure:"vendor_id"`
	ProductID   uint16        `mapstructure:"product_id"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type MonitorConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

// Load reads runtime settings. path may be empty, in which case the
// SWITCHPANEL_SETTINGS environment variable, then switchpanel.yaml in the
// working directory or configs/ are tried. A missing default settings file
// is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv(SettingsEnv)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("switchpanel")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	}
	v.SetConfigType("yaml")

	// Environment Variables mit Prefix SWITCHPANEL_
	v.SetEnvPrefix("SWITCHPANEL")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			// defaults only
		case path != "" && errors.Is(err, os.ErrNotExist):
			return nil, types.NewError(types.KindConfig, "read settings "+path,
				fmt.Errorf("%w: %v", types.ErrSettingsNotFound, err))
		default:
			return nil, types.NewError(types.KindConfig, "read settings", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, types.NewError(types.KindConfig, "unmarshal settings", err)
	}

	if err := config.Validate(); err != nil {
		return nil, types.NewError(types.KindConfig, "validate settings", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("simulator.address", "127.0.0.1:60000")
	// don't clash with the radio panel driver
	v.SetDefault("simulator.local_address", "127.0.0.1:60003")
	v.SetDefault("simulator.init_delay", "50ms")
	v.SetDefault("simulator.continue_on_send_error", false)

	v.SetDefault("input.backend", BackendHID)
	v.SetDefault("input.vendor_id", 0x06a3)
	v.SetDefault("input.product_id", 0x0d67)
	v.SetDefault("input.read_timeout", "250ms")

	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.http_port", 8090)
	v.SetDefault("monitor.shutdown_timeout", "5s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// Validate checks values that viper cannot.
func (c *Config) Validate() error {
	if c.Simulator.Address == "" {
		return fmt.Errorf("simulator.address must be set")
	}
	if c.Simulator.LocalAddress == c.Simulator.Address {
		return fmt.Errorf("simulator.local_address must differ from simulator.address (%s)", c.Simulator.Address)
	}
	if c.Simulator.InitDelay < 0 {
		return fmt.Errorf("simulator.init_delay must not be negative (%s)", c.Simulator.InitDelay)
	}

	switch c.Input.Backend {
	case BackendHID, BackendStdin:
	default:
		return fmt.Errorf("invalid input.backend %q, must be one of: %s, %s", c.Input.Backend, BackendHID, BackendStdin)
	}
	if c.Input.Backend == BackendHID && c.Input.ReadTimeout <= 0 {
		return fmt.Errorf("input.read_timeout must be positive for the hid backend")
	}

	if c.Monitor.Enabled && (c.Monitor.HTTPPort <= 0 || c.Monitor.HTTPPort > 65535) {
		return fmt.Errorf("invalid monitor.http_port %d", c.Monitor.HTTPPort)
	}

	return nil
}
