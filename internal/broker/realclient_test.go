package broker

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sweeney/complex-monitor/internal/logic"
	"github.com/sweeney/complex-monitor/internal/mqtt"
)

// silentBroker accepts sessions and subscriptions but never acknowledges a
// publish.
type silentBroker struct {
	ln       net.Listener
	sessions atomic.Int32

	mu    sync.Mutex
	conns []net.Conn
}

func newSilentBroker(t *testing.T) *silentBroker {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	b := &silentBroker{ln: ln}
	go b.accept()
	t.Cleanup(b.close)
	return b
}

func (b *silentBroker) port() int {
	return b.ln.Addr().(*net.TCPAddr).Port
}

func (b *silentBroker) accept() {
	for {
		conn, err := b.ln.Accept()
		if err != nil {
			return
		}
		b.mu.Lock()
		b.conns = append(b.conns, conn)
		b.mu.Unlock()
		go b.serve(conn)
	}
}

func (b *silentBroker) serve(conn net.Conn) {
	defer conn.Close()
	for {
		pkt, err := packets.ReadPacket(conn)
		if err != nil {
			return
		}
		switch p := pkt.(type) {
		case *packets.ConnectPacket:
			b.sessions.Add(1)
			ack := packets.NewControlPacket(packets.Connack).(*packets.ConnackPacket)
			ack.ReturnCode = packets.Accepted
			if ack.Write(conn) != nil {
				return
			}
		case *packets.SubscribePacket:
			ack := packets.NewControlPacket(packets.Suback).(*packets.SubackPacket)
			ack.MessageID = p.MessageID
			ack.ReturnCodes = []byte{1}
			if ack.Write(conn) != nil {
				return
			}
		case *packets.PingreqPacket:
			if packets.NewControlPacket(packets.Pingresp).Write(conn) != nil {
				return
			}
		case *packets.DisconnectPacket:
			return
		}
	}
}

func (b *silentBroker) close() {
	b.ln.Close()
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.conns {
		c.Close()
	}
}

func newRealClient(t *testing.T, b *silentBroker) *mqtt.RealClient {
	t.Helper()
	c, err := mqtt.NewRealClient(mqtt.Options{
		Endpoint:       "127.0.0.1",
		Port:           b.port(),
		ClientID:       "node-1",
		Topic:          "complex/telemetry",
		ConnectTimeout: 2 * time.Second,
		PublishTimeout: 200 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(c.Disconnect)
	return c
}

func TestSupervisorRecoversAfterPublishTimeout(t *testing.T) {
	b := newSilentBroker(t)
	s := New(newRealClient(t, b), Options{
		ConnectTimeout: 2 * time.Second,
		PublishTimeout: 200 * time.Millisecond,
	}, zap.NewNop(), nil)

	require.NoError(t, s.Connect(context.Background()))
	require.True(t, s.IsConnected())

	err := s.Publish(context.Background(), []byte(`{"identity":"node-1"}`))
	require.Error(t, err)
	assert.Equal(t, logic.Disconnected, s.State().Status)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Connect(context.Background()), "reconnect %d", i)
		require.True(t, s.IsConnected())
		s.Disconnect()
	}
	assert.Equal(t, int32(4), b.sessions.Load())
}

func TestRealClientConnectReplacesOpenSession(t *testing.T) {
	b := newSilentBroker(t)
	c := newRealClient(t, b)

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, int32(2), b.sessions.Load())
}
