// Package sensor reads temperature and humidity from a DHT22.
//
// On Linux the DHT22 is served by the dht11 IIO driver (dtoverlay=dht11),
// which exposes readings under /sys/bus/iio/devices. Reads fail regularly on
// this sensor (checksum and timing errors); callers treat a failed read as
// an absent value.
package sensor

// Sensor reads the environmental sensor. Each reading may fail independently.
type Sensor interface {
	Temperature() (float64, error)
	Humidity() (float64, error)
}

// DefaultIIODevice is the sysfs directory of the first IIO device.
const DefaultIIODevice = "/sys/bus/iio/devices/iio:device0"

// Unavailable stands in for a sensor that could not be opened. Every read
// fails with Err, so payloads carry no readings.
type Unavailable struct {
	Err error
}

// Temperature returns Err.
func (u Unavailable) Temperature() (float64, error) { return 0, u.Err }

// Humidity returns Err.
func (u Unavailable) Humidity() (float64, error) { return 0, u.Err }
