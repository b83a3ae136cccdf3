package main

import (
	"errors"

	"go.uber.org/zap"

	"github.com/sweeney/complex-monitor/internal/config"
	"github.com/sweeney/complex-monitor/internal/gpio"
	"github.com/sweeney/complex-monitor/internal/sensor"
)

// hardware holds the drivers selected by the hardware config.
type hardware struct {
	sensor sensor.Sensor
	button gpio.Button
	leds   gpio.LEDs

	// simButton is set in sim mode so SIGUSR1 can press it.
	simButton *gpio.SimButton
}

// openHardware selects real or simulated drivers. A sensor that cannot be
// opened degrades to absent readings; button and LED failures are fatal.
func openHardware(hw config.HardwareConfig, logger *zap.Logger) (*hardware, error) {
	if hw.Mode == config.HardwareSim {
		b := gpio.NewSimButton()
		return &hardware{
			sensor:    sensor.NewSimSensor(),
			button:    b,
			leds:      gpio.NewSimLEDs(logger.Named("led")),
			simButton: b,
		}, nil
	}

	h := &hardware{}
	s, err := sensor.NewIIOSensor(hw.IIODevice)
	if err != nil {
		logger.Warn("sensor unavailable, readings will be absent", zap.Error(err))
		h.sensor = sensor.Unavailable{Err: err}
	} else {
		h.sensor = s
	}

	h.button, err = openButton(hw, logger)
	if err != nil {
		return nil, err
	}

	h.leds, err = gpio.NewRealLEDs(hw.Chip, gpio.LEDPins{Red: hw.LEDRed, Yellow: hw.LEDYellow, Green: hw.LEDGreen})
	if err != nil {
		h.button.Close()
		return nil, err
	}
	return h, nil
}

// openButton prefers the device file and falls back to the GPIO line.
func openButton(hw config.HardwareConfig, logger *zap.Logger) (gpio.Button, error) {
	if hw.ButtonDevice != "" {
		b, err := gpio.NewFileButton(hw.ButtonDevice)
		if err == nil {
			return b, nil
		}
		logger.Info("button device unavailable, using gpio line",
			zap.String("device", hw.ButtonDevice),
			zap.Int("pin", hw.ButtonPin),
			zap.Error(err))
	}
	return gpio.NewRealButton(hw.Chip, hw.ButtonPin)
}

// Close releases the drivers.
func (h *hardware) Close() error {
	return errors.Join(h.button.Close(), h.leds.Close())
}
