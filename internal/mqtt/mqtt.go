// Package mqtt provides the broker client with abstraction for testing.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// QoS used for telemetry publishes and the acknowledgement subscription.
const QoS byte = 1

// ErrTimeout is returned when a connect, subscribe or publish does not
// complete within its deadline.
var ErrTimeout = errors.New("mqtt: operation timed out")

// Handlers receive asynchronous transport notifications. They are called
// from the client's own goroutines and must not block.
type Handlers struct {
	// OnConnect is called when a connection is established.
	OnConnect func()
	// OnConnectionLost is called when an established connection drops.
	OnConnectionLost func(err error)
	// OnAck is called when a message arrives on the subscribed topic.
	// The broker echoes our own publishes back, which confirms delivery.
	OnAck func(topic string, payload []byte)
}

func (h Handlers) connected() {
	if h.OnConnect != nil {
		h.OnConnect()
	}
}

func (h Handlers) lost(err error) {
	if h.OnConnectionLost != nil {
		h.OnConnectionLost(err)
	}
}

func (h Handlers) ack(topic string, payload []byte) {
	if h.OnAck != nil {
		h.OnAck(topic, payload)
	}
}

// BrokerURL returns the paho server URL for endpoint and port.
func BrokerURL(endpoint string, port int, useTLS bool) string {
	scheme := "tcp"
	if useTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, endpoint, port)
}

// waitToken blocks until tok completes, the timeout expires, or ctx is done.
// A timeout <= 0 waits without a deadline.
func waitToken(ctx context.Context, tok paho.Token, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-tok.Done():
		return tok.Error()
	case <-expired:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
