package sensor

import "math/rand"

// SimSensor returns random whole-number readings in [0, 100].
type SimSensor struct{}

// NewSimSensor creates a SimSensor.
func NewSimSensor() *SimSensor {
	return &SimSensor{}
}

// Temperature returns a random value.
func (SimSensor) Temperature() (float64, error) {
	return float64(rand.Intn(101)), nil
}

// Humidity returns a random value.
func (SimSensor) Humidity() (float64, error) {
	return float64(rand.Intn(101)), nil
}
