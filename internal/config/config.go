// Package config loads hkenv settings from a file and HKENV_* environment
// variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/egregors/hkenv/internal/bme280"
	"github.com/egregors/hkenv/internal/bus"
)

const (
	BackendNative = "native"
	BackendBSBMP  = "bsbmp"
)

type Config struct {
	Debug   bool    `mapstructure:"debug"`
	Sensor  Sensor  `mapstructure:"sensor"`
	Metrics Metrics `mapstructure:"metrics"`
	HomeKit HomeKit `mapstructure:"homekit"`
	Web     Web     `mapstructure:"web"`
	Ntfy    Ntfy    `mapstructure:"ntfy"`
}

type Sensor struct {
	Backend      string        `mapstructure:"backend"`
	Transport    string        `mapstructure:"transport"`
	Bus          int           `mapstructure:"bus"`
	BusName      string        `mapstructure:"bus_name"`
	Address      int           `mapstructure:"address"`
	Oversampling Oversampling  `mapstructure:"oversampling"`
	Filter       int           `mapstructure:"filter"`
	Standby      time.Duration `mapstructure:"standby"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type Oversampling struct {
	Temperature int `mapstructure:"temperature"`
	Pressure    int `mapstructure:"pressure"`
	Humidity    int `mapstructure:"humidity"`
}

type Metrics struct {
	Retention time.Duration `mapstructure:"retention"`
	Backup    bool          `mapstructure:"backup"`
	Autosave  time.Duration `mapstructure:"autosave"`
	DumpPath  string        `mapstructure:"dump_path"`
}

type HomeKit struct {
	Enabled bool   `mapstructure:"enabled"`
	Pin     string `mapstructure:"pin"`
	DBPath  string `mapstructure:"db_path"`
}

type Web struct {
	Addr string `mapstructure:"addr"`
}

type Ntfy struct {
	URL string `mapstructure:"url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("sensor.backend", BackendNative)
	v.SetDefault("sensor.transport", bus.TransportI2C)
	v.SetDefault("sensor.bus", 1)
	v.SetDefault("sensor.bus_name", "")
	v.SetDefault("sensor.address", int(bme280.AddrSecondary))
	v.SetDefault("sensor.oversampling.temperature", 1)
	v.SetDefault("sensor.oversampling.pressure", 1)
	v.SetDefault("sensor.oversampling.humidity", 1)
	v.SetDefault("sensor.filter", 0)
	v.SetDefault("sensor.standby", 500*time.Microsecond)
	v.SetDefault("sensor.poll_interval", 5*time.Second)

	v.SetDefault("metrics.retention", 30*24*time.Hour)
	v.SetDefault("metrics.backup", true)
	v.SetDefault("metrics.autosave", time.Hour)
	v.SetDefault("metrics.dump_path", "hk-dump.gob")

	v.SetDefault("homekit.enabled", true)
	v.SetDefault("homekit.pin", "11112222")
	v.SetDefault("homekit.db_path", "./db")

	v.SetDefault("web.addr", ":80")

	v.SetDefault("ntfy.url", "")
}

// Load reads path (any format viper understands, empty means defaults
// only), applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("hkenv")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("can't read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("can't decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Sensor.Backend {
	case BackendNative, BackendBSBMP:
	default:
		return fmt.Errorf("unknown sensor backend %q", c.Sensor.Backend)
	}

	switch c.Sensor.Transport {
	case bus.TransportI2C, bus.TransportPeriph, bus.TransportSim:
	default:
		return fmt.Errorf("unknown sensor transport %q", c.Sensor.Transport)
	}

	if c.Sensor.Backend == BackendBSBMP && c.Sensor.Transport != bus.TransportI2C {
		return fmt.Errorf("backend %q works only with the %q transport", BackendBSBMP, bus.TransportI2C)
	}

	if a := uint8(c.Sensor.Address); c.Sensor.Address != int(a) || (a != bme280.AddrPrimary && a != bme280.AddrSecondary) {
		return fmt.Errorf("sensor address 0x%X: must be 0x76 or 0x77", c.Sensor.Address)
	}

	if c.Sensor.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.Sensor.PollInterval)
	}

	if _, err := c.Sensor.Options(); err != nil {
		return err
	}

	if c.HomeKit.Enabled && len(c.HomeKit.Pin) != 8 {
		return fmt.Errorf("homekit pin must have 8 digits")
	}

	return nil
}

// Options converts the register settings into driver options.
func (s Sensor) Options() ([]bme280.Option, error) {
	t, err := bme280.ParseOversampling(s.Oversampling.Temperature)
	if err != nil {
		return nil, fmt.Errorf("temperature: %w", err)
	}
	p, err := bme280.ParseOversampling(s.Oversampling.Pressure)
	if err != nil {
		return nil, fmt.Errorf("pressure: %w", err)
	}
	h, err := bme280.ParseOversampling(s.Oversampling.Humidity)
	if err != nil {
		return nil, fmt.Errorf("humidity: %w", err)
	}
	f, err := bme280.ParseFilter(s.Filter)
	if err != nil {
		return nil, err
	}
	sb, err := bme280.ParseStandby(s.Standby)
	if err != nil {
		return nil, err
	}

	return []bme280.Option{
		bme280.WithOversampling(t, p, h),
		bme280.WithFilter(f),
		bme280.WithStandby(sb),
	}, nil
}

// BusOpts returns the transport settings.
func (s Sensor) BusOpts() bus.Opts {
	return bus.Opts{
		Transport: s.Transport,
		Bus:       s.Bus,
		BusName:   s.BusName,
		Addr:      uint8(s.Address),
	}
}
