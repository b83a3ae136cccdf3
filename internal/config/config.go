// Package config loads and persists the node configuration.
//
// The file is YAML. JSON is a subset of YAML, so a hand-written config.json
// using these keys loads too; saves are always written as YAML. Keys outside
// this schema are rejected as corrupt rather than ignored.
//
// Example configuration:
//
//	identity: greenhouse-1
//	secret: change-me
//	web:
//	  ip: 0.0.0.0
//	  port: 80
//	broker:
//	  endpoint: a1b2c3-ats.iot.eu-west-1.amazonaws.com
//	  port: 8883
//	  topic: complex/telemetry
//	  credentials:
//	    ca: /home/pi/complex/certs/root-CA.crt
//	    cert: /home/pi/complex/certs/Complex_device.cert.pem
//	    key: /home/pi/complex/certs/Complex_device.private.key
//	dashboard:
//	  interval: 1s
package config

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/complex-monitor/internal/gpio"
	"github.com/sweeney/complex-monitor/internal/sensor"
)

// DefaultPath is where the config lives on the device.
const DefaultPath = "/home/pi/complex/config.json"

// ErrCorrupt is returned when the persisted file cannot be decoded or holds
// values the node cannot run with. It is fatal at startup.
var ErrCorrupt = errors.New("config corrupt")

// Retry policies for broker reconnection.
const (
	RetryConstant    = "constant"
	RetryExponential = "exponential"
)

// Hardware modes.
const (
	HardwareReal = "real"
	HardwareSim  = "sim"
)

// Config is the root configuration.
type Config struct {
	// Identity names this node in outgoing payloads.
	Identity string `yaml:"identity"`

	// Secret signs the admin form token.
	Secret string `yaml:"secret"`

	Web       WebConfig       `yaml:"web"`
	Broker    BrokerConfig    `yaml:"broker"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Hardware  HardwareConfig  `yaml:"hardware"`
}

// WebConfig is where the dashboard listens.
type WebConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address.
func (w WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.IP, w.Port)
}

// BrokerConfig describes the MQTT broker connection.
type BrokerConfig struct {
	Endpoint       string      `yaml:"endpoint"`
	Port           int         `yaml:"port"`
	Topic          string      `yaml:"topic"`
	ClientID       string      `yaml:"client_id"`
	Credentials    Credentials `yaml:"credentials"`
	ConnectTimeout Duration    `yaml:"connect_timeout"`
	PublishTimeout Duration    `yaml:"publish_timeout"`
	Retry          RetryConfig `yaml:"retry"`
}

// Credentials are the mutual-TLS file paths. All empty means plain TCP.
type Credentials struct {
	CA   string `yaml:"ca"`
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

// Enabled reports whether TLS should be used.
func (c Credentials) Enabled() bool {
	return c.CA != "" || c.Cert != "" || c.Key != ""
}

// RetryConfig controls the pause between reconnection attempts.
type RetryConfig struct {
	Policy  string   `yaml:"policy"`
	Initial Duration `yaml:"initial"`
	Max     Duration `yaml:"max"`
}

// DashboardConfig controls the live dashboard push.
type DashboardConfig struct {
	Interval Duration `yaml:"interval"`
}

// HardwareConfig selects and wires the drivers.
type HardwareConfig struct {
	// Mode is "real" or "sim".
	Mode string `yaml:"mode"`
	Chip string `yaml:"chip"`
	// ButtonDevice, if set, is read instead of ButtonPin.
	ButtonDevice string `yaml:"button_device"`
	ButtonPin    int    `yaml:"button_pin"`
	LEDRed       int    `yaml:"led_red"`
	LEDYellow    int    `yaml:"led_yellow"`
	LEDGreen     int    `yaml:"led_green"`
	IIODevice    string `yaml:"iio_device"`
}

// Default returns the configuration written on first start.
func Default() Config {
	return Config{
		Identity: "complex",
		Web:      WebConfig{IP: "0.0.0.0", Port: 80},
		Broker: BrokerConfig{
			Endpoint:       "localhost",
			Port:           8883,
			Topic:          "complex/telemetry",
			ConnectTimeout: Duration(10 * time.Second),
			PublishTimeout: Duration(5 * time.Second),
			Retry: RetryConfig{
				Policy:  RetryConstant,
				Initial: Duration(time.Second),
				Max:     Duration(time.Minute),
			},
		},
		Dashboard: DashboardConfig{Interval: Duration(time.Second)},
		Hardware: HardwareConfig{
			Mode:         HardwareReal,
			Chip:         gpio.DefaultChip,
			ButtonDevice: gpio.DefaultButtonDevice,
			ButtonPin:    gpio.DefaultPinButton,
			LEDRed:       gpio.DefaultPinRed,
			LEDYellow:    gpio.DefaultPinYellow,
			LEDGreen:     gpio.DefaultPinGreen,
			IIODevice:    sensor.DefaultIIODevice,
		},
	}
}

// applyDefaults fills zero values from Default.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Identity == "" {
		cfg.Identity = def.Identity
	}
	if cfg.Web.IP == "" {
		cfg.Web.IP = def.Web.IP
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = def.Web.Port
	}
	if cfg.Broker.Endpoint == "" {
		cfg.Broker.Endpoint = def.Broker.Endpoint
	}
	if cfg.Broker.Port == 0 {
		cfg.Broker.Port = def.Broker.Port
	}
	if cfg.Broker.Topic == "" {
		cfg.Broker.Topic = def.Broker.Topic
	}
	if cfg.Broker.ClientID == "" {
		cfg.Broker.ClientID = cfg.Identity
	}
	if cfg.Broker.ConnectTimeout <= 0 {
		cfg.Broker.ConnectTimeout = def.Broker.ConnectTimeout
	}
	if cfg.Broker.PublishTimeout <= 0 {
		cfg.Broker.PublishTimeout = def.Broker.PublishTimeout
	}
	if cfg.Broker.Retry.Policy == "" {
		cfg.Broker.Retry.Policy = def.Broker.Retry.Policy
	}
	if cfg.Broker.Retry.Initial <= 0 {
		cfg.Broker.Retry.Initial = def.Broker.Retry.Initial
	}
	if cfg.Broker.Retry.Max <= 0 {
		cfg.Broker.Retry.Max = def.Broker.Retry.Max
	}
	if cfg.Dashboard.Interval <= 0 {
		cfg.Dashboard.Interval = def.Dashboard.Interval
	}
	if cfg.Hardware.Mode == "" {
		cfg.Hardware.Mode = def.Hardware.Mode
	}
	if cfg.Hardware.Chip == "" {
		cfg.Hardware.Chip = def.Hardware.Chip
	}
	if cfg.Hardware.ButtonPin == 0 {
		cfg.Hardware.ButtonPin = def.Hardware.ButtonPin
	}
	if cfg.Hardware.LEDRed == 0 {
		cfg.Hardware.LEDRed = def.Hardware.LEDRed
	}
	if cfg.Hardware.LEDYellow == 0 {
		cfg.Hardware.LEDYellow = def.Hardware.LEDYellow
	}
	if cfg.Hardware.LEDGreen == 0 {
		cfg.Hardware.LEDGreen = def.Hardware.LEDGreen
	}
	if cfg.Hardware.IIODevice == "" {
		cfg.Hardware.IIODevice = def.Hardware.IIODevice
	}
}

// Validate checks values the node cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("web.port %d out of range", c.Web.Port))
	}
	if c.Broker.Port < 1 || c.Broker.Port > 65535 {
		errs = append(errs, fmt.Errorf("broker.port %d out of range", c.Broker.Port))
	}
	if c.Broker.Endpoint == "" {
		errs = append(errs, errors.New("broker.endpoint is required"))
	}
	if c.Broker.Topic == "" {
		errs = append(errs, errors.New("broker.topic is required"))
	}
	switch c.Broker.Retry.Policy {
	case RetryConstant, RetryExponential:
	default:
		errs = append(errs, fmt.Errorf("broker.retry.policy %q (expected %q or %q)", c.Broker.Retry.Policy, RetryConstant, RetryExponential))
	}
	switch c.Hardware.Mode {
	case HardwareReal, HardwareSim:
	default:
		errs = append(errs, fmt.Errorf("hardware.mode %q (expected %q or %q)", c.Hardware.Mode, HardwareReal, HardwareSim))
	}
	return errors.Join(errs...)
}

// Duration wraps time.Duration for YAML.
type Duration time.Duration

// UnmarshalYAML accepts duration strings like "1s" or "500ms".
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
