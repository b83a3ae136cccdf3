package sensor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	tempFile     = "in_temp_input"
	humidityFile = "in_humidityrelative_input"
)

// IIOSensor reads a DHT22 through the kernel IIO interface.
// Values are exported in thousandths (milli-degrees, milli-percent).
type IIOSensor struct {
	dir string
}

// NewIIOSensor creates an IIOSensor for the given sysfs device directory.
func NewIIOSensor(dir string) (*IIOSensor, error) {
	if _, err := os.Stat(filepath.Join(dir, tempFile)); err != nil {
		return nil, fmt.Errorf("iio device %s: %w", dir, err)
	}
	return &IIOSensor{dir: dir}, nil
}

// Temperature returns degrees Celsius.
func (s *IIOSensor) Temperature() (float64, error) {
	return s.read(tempFile)
}

// Humidity returns relative humidity in percent.
func (s *IIOSensor) Humidity() (float64, error) {
	return s.read(humidityFile)
}

func (s *IIOSensor) read(name string) (float64, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", name, err)
	}
	milli, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return float64(milli) / 1000, nil
}
