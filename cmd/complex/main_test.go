package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sweeney/complex-monitor/internal/config"
	"github.com/sweeney/complex-monitor/internal/gpio"
	"github.com/sweeney/complex-monitor/internal/sensor"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "complex dev (none)\n", out.String())
}

func TestLoadConfigCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	store, cfg, err := loadConfig(path, false, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())
	assert.Equal(t, config.HardwareReal, cfg.Hardware.Mode)
	assert.FileExists(t, path)
}

func TestLoadConfigSimDoesNotPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	store, cfg, err := loadConfig(path, true, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, config.HardwareSim, cfg.Hardware.Mode)
	assert.Equal(t, config.HardwareReal, store.Get().Hardware.Mode)

	onDisk, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.HardwareReal, onDisk.Hardware.Mode)
}

func TestLoadConfigCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("web: [unterminated"), 0o600))

	core, logs := observer.New(zapcore.ErrorLevel)
	_, _, err := loadConfig(path, false, zap.New(core))
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrCorrupt))
	assert.Equal(t, 1, logs.FilterMessage("critical: config file corrupt").Len())
}

func TestMQTTOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Broker.Endpoint = "iot.example.com"
	cfg.Broker.Port = 8883
	cfg.Broker.ClientID = "node-7"
	cfg.Broker.Topic = "site/node-7"
	cfg.Broker.Credentials = config.Credentials{CA: "ca.pem", Cert: "cert.pem", Key: "key.pem"}
	cfg.Broker.ConnectTimeout = config.Duration(3 * time.Second)
	cfg.Broker.PublishTimeout = config.Duration(2 * time.Second)

	opts := mqttOptions(cfg)
	assert.Equal(t, "iot.example.com", opts.Endpoint)
	assert.Equal(t, 8883, opts.Port)
	assert.Equal(t, "node-7", opts.ClientID)
	assert.Equal(t, "site/node-7", opts.Topic)
	assert.Equal(t, "ca.pem", opts.CAFile)
	assert.Equal(t, "cert.pem", opts.CertFile)
	assert.Equal(t, "key.pem", opts.KeyFile)
	assert.Equal(t, 3*time.Second, opts.ConnectTimeout)
	assert.Equal(t, 2*time.Second, opts.PublishTimeout)
}

func TestStatusConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Identity = "greenhouse-1"
	cfg.Web = config.WebConfig{IP: "127.0.0.1", Port: 8080}
	cfg.Broker.Endpoint = "broker.local"
	cfg.Broker.Port = 1883
	cfg.Dashboard.Interval = config.Duration(500 * time.Millisecond)

	sc := statusConfig(cfg)
	assert.Equal(t, "greenhouse-1", sc.Identity)
	assert.Equal(t, "tcp://broker.local:1883", sc.Broker)
	assert.Equal(t, "complex/telemetry", sc.Topic)
	assert.Equal(t, "127.0.0.1:8080", sc.WebAddr)
	assert.Equal(t, int64(500), sc.IntervalMs)

	cfg.Broker.Credentials.CA = "ca.pem"
	assert.Equal(t, "ssl://broker.local:1883", statusConfig(cfg).Broker)
}

func TestOpenHardwareSim(t *testing.T) {
	hw, err := openHardware(config.HardwareConfig{Mode: config.HardwareSim}, zap.NewNop())
	require.NoError(t, err)
	defer hw.Close()

	require.NotNil(t, hw.simButton)
	_, err = hw.sensor.Temperature()
	assert.NoError(t, err)

	hw.simButton.Press()
	pressed, err := hw.button.Pressed()
	require.NoError(t, err)
	assert.True(t, pressed)
}

func TestPressOnSignal(t *testing.T) {
	b := gpio.NewSimButton()
	stop := pressOnSignal(b, zap.NewNop())
	defer stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))
	assert.Eventually(t, func() bool {
		pressed, _ := b.Pressed()
		return pressed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPrintSample(t *testing.T) {
	var out bytes.Buffer
	s := sensor.NewFakeSensor(sensor.Float(21.54), sensor.Float(40))

	require.NoError(t, printSample(&out, s, gpio.NewFakeButton(true)))
	assert.Equal(t, "Temperature: 21.5, Humidity: 40.0, Button: PRESSED\n", out.String())
}

func TestPrintSampleSensorUnavailable(t *testing.T) {
	var out bytes.Buffer
	s := sensor.Unavailable{Err: errors.New("no device")}

	require.NoError(t, printSample(&out, s, gpio.NewFakeButton(false)))
	assert.Contains(t, out.String(), "temperature: unavailable (no device)")
	assert.Contains(t, out.String(), "Temperature: -, Humidity: -, Button: RELEASED")
}

func TestPrintSampleButtonError(t *testing.T) {
	b := gpio.NewFakeButton()
	b.ReadError = errors.New("line busy")

	err := printSample(&bytes.Buffer{}, sensor.NewFakeSensor(nil, nil), b)
	assert.ErrorContains(t, err, "line busy")
}
