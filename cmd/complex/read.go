package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/complex-monitor/internal/gpio"
	"github.com/sweeney/complex-monitor/internal/logic"
	"github.com/sweeney/complex-monitor/internal/sensor"
)

func newReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read",
		Short: "Print one sensor and button sample and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			sim, _ := cmd.Flags().GetBool("sim")

			logger := zap.NewNop()
			_, cfg, err := loadConfig(path, sim, logger)
			if err != nil {
				return err
			}
			hw, err := openHardware(cfg.Hardware, logger)
			if err != nil {
				return fmt.Errorf("init hardware: %w", err)
			}
			defer hw.Close()

			return printSample(cmd.OutOrStdout(), hw.sensor, hw.button)
		},
	}
}

// printSample writes the current readings and button level.
func printSample(w io.Writer, s sensor.Sensor, b gpio.Button) error {
	readings := logic.Readings{}
	if v, err := s.Temperature(); err == nil {
		readings.Temperature = &v
	} else {
		fmt.Fprintf(w, "temperature: unavailable (%v)\n", err)
	}
	if v, err := s.Humidity(); err == nil {
		readings.Humidity = &v
	} else {
		fmt.Fprintf(w, "humidity: unavailable (%v)\n", err)
	}

	pressed, err := b.Pressed()
	if err != nil {
		return fmt.Errorf("read button: %w", err)
	}

	fmt.Fprintf(w, "Temperature: %s, Humidity: %s, Button: %s\n",
		formatReading(readings.Temperature), formatReading(readings.Humidity), buttonString(pressed))
	return nil
}

func formatReading(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func buttonString(pressed bool) string {
	if pressed {
		return "PRESSED"
	}
	return "RELEASED"
}
