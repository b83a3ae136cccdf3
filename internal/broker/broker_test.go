package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sweeney/complex-monitor/internal/logic"
	"github.com/sweeney/complex-monitor/internal/metrics"
	"github.com/sweeney/complex-monitor/internal/mqtt"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestSupervisor(t *testing.T, fc *mqtt.FakeClient) (*Supervisor, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	s := New(fc, Options{Now: func() time.Time { return t0 }}, zap.NewNop(), m)
	return s, m
}

func assertCounter(t *testing.T, m *metrics.Metrics, name, help string, v int) {
	t.Helper()
	expected := fmt.Sprintf("# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, v)
	assert.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), name))
}

func TestNewStartsDisconnected(t *testing.T) {
	s, _ := newTestSupervisor(t, mqtt.NewFakeClient())

	st := s.State()
	assert.Equal(t, logic.Disconnected, st.Status)
	assert.True(t, st.LastAttempt.IsZero())
	assert.False(t, s.IsConnected())
}

func TestConnectSuccess(t *testing.T) {
	fc := mqtt.NewFakeClient()
	s, m := newTestSupervisor(t, fc)

	require.NoError(t, s.Connect(context.Background()))

	st := s.State()
	assert.Equal(t, logic.Connected, st.Status)
	assert.Equal(t, t0, st.LastAttempt)

	notes := s.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, NotifyConnected, notes[0].Kind)

	assertCounter(t, m, "complex_broker_connect_attempts_total", "Broker connection attempts.", 1)
}

func TestConnectFailure(t *testing.T) {
	fc := mqtt.NewFakeClient()
	fc.SetConnectResults(mqtt.ErrFakeConnect)
	s, _ := newTestSupervisor(t, fc)

	err := s.Connect(context.Background())
	require.ErrorIs(t, err, mqtt.ErrFakeConnect)

	st := s.State()
	assert.Equal(t, logic.Disconnected, st.Status)
	assert.Equal(t, t0, st.LastAttempt, "last attempt recorded on failure")
	assert.Empty(t, s.Drain())
}

func TestConnectWhenConnectedIsNoop(t *testing.T) {
	fc := mqtt.NewFakeClient()
	s, _ := newTestSupervisor(t, fc)

	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.Connect(context.Background()))

	connects, _ := fc.Calls()
	assert.Equal(t, 1, connects)
}

// blockingTransport holds Connect until released.
type blockingTransport struct {
	*mqtt.FakeClient
	entered chan struct{}
	release chan struct{}
}

func (b *blockingTransport) Connect(ctx context.Context) error {
	close(b.entered)
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.FakeClient.Connect(ctx)
}

func TestConnectConcurrentCallerRejected(t *testing.T) {
	bt := &blockingTransport{
		FakeClient: mqtt.NewFakeClient(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	s := New(bt, Options{}, zap.NewNop(), nil)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		firstErr = s.Connect(context.Background())
	}()

	<-bt.entered
	assert.Equal(t, logic.Connecting, s.State().Status)
	assert.ErrorIs(t, s.Connect(context.Background()), ErrConnectInProgress)

	close(bt.release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.True(t, s.IsConnected())

	connects, _ := bt.Calls()
	assert.Equal(t, 1, connects, "only one attempt reaches the transport")
}

func TestConnectTimeoutIsTransportFault(t *testing.T) {
	bt := &blockingTransport{
		FakeClient: mqtt.NewFakeClient(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	s := New(bt, Options{ConnectTimeout: 20 * time.Millisecond}, zap.NewNop(), nil)

	err := s.Connect(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, logic.Disconnected, s.State().Status)
}

func TestPublishNotConnected(t *testing.T) {
	fc := mqtt.NewFakeClient()
	s, _ := newTestSupervisor(t, fc)

	err := s.Publish(context.Background(), []byte("{}"))
	require.ErrorIs(t, err, ErrNotConnected)

	_, publishes := fc.Calls()
	assert.Equal(t, 0, publishes, "transport untouched")
}

func TestPublishSuccess(t *testing.T) {
	fc := mqtt.NewFakeClient()
	fc.AckOnPublish = true
	s, m := newTestSupervisor(t, fc)
	require.NoError(t, s.Connect(context.Background()))
	s.Drain()

	require.NoError(t, s.Publish(context.Background(), []byte(`{"identity":"a"}`)))
	assert.Equal(t, [][]byte{[]byte(`{"identity":"a"}`)}, fc.Payloads())
	assert.True(t, s.IsConnected())

	notes := s.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, NotifyAck, notes[0].Kind)
	assertCounter(t, m, "complex_broker_acks_total", "Delivery acknowledgements received from the broker.", 1)
}

func TestPublishFailureDisconnects(t *testing.T) {
	fc := mqtt.NewFakeClient()
	s, _ := newTestSupervisor(t, fc)
	require.NoError(t, s.Connect(context.Background()))

	fc.SetPublishError(errors.New("broken pipe"))
	err := s.Publish(context.Background(), []byte("{}"))
	require.Error(t, err)
	assert.Equal(t, "broken pipe", err.Error())
	assert.Equal(t, logic.Disconnected, s.State().Status)
	assert.Equal(t, 1, fc.Disconnects, "transport closed so the next connect starts clean")

	fc.SetPublishError(nil)
	require.NoError(t, s.Connect(context.Background()))
	assert.True(t, s.IsConnected())
}

func TestDrainIgnoresLostFromEarlierSession(t *testing.T) {
	fc := mqtt.NewFakeClient()
	now := t0
	s := New(fc, Options{Now: func() time.Time { return now }}, zap.NewNop(), nil)
	require.NoError(t, s.Connect(context.Background()))

	now = t0.Add(time.Second)
	fc.SetPublishError(errors.New("timeout"))
	require.Error(t, s.Publish(context.Background(), []byte("{}")))
	// The client reports the loss of the failed session late.
	fc.DropConnection(errors.New("EOF"))

	now = t0.Add(2 * time.Second)
	require.NoError(t, s.Connect(context.Background()))

	for _, n := range s.Drain() {
		assert.NotEqual(t, NotifyLost, n.Kind)
	}
	assert.True(t, s.IsConnected())

	now = t0.Add(3 * time.Second)
	fc.DropConnection(errors.New("EOF"))
	notes := s.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, NotifyLost, notes[0].Kind)
	assert.False(t, s.IsConnected())
}

func TestDisconnectDuringConnectAbandonsAttempt(t *testing.T) {
	bt := &blockingTransport{
		FakeClient: mqtt.NewFakeClient(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	s := New(bt, Options{}, zap.NewNop(), nil)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Connect(context.Background()) }()

	<-bt.entered
	s.Disconnect()
	close(bt.release)

	assert.ErrorIs(t, <-errCh, ErrDisconnected)
	assert.Equal(t, logic.Disconnected, s.State().Status)
	assert.Equal(t, 2, bt.Disconnects, "late connection closed again")
}

func TestDrainAppliesLost(t *testing.T) {
	fc := mqtt.NewFakeClient()
	core, logs := observer.New(zapcore.WarnLevel)
	s := New(fc, Options{}, zap.New(core), nil)
	require.NoError(t, s.Connect(context.Background()))

	fc.DropConnection(errors.New("EOF"))
	// The state only changes when the loop drains.
	assert.True(t, s.IsConnected())

	notes := s.Drain()
	require.Len(t, notes, 2)
	assert.Equal(t, NotifyConnected, notes[0].Kind)
	assert.Equal(t, NotifyLost, notes[1].Kind)
	assert.Equal(t, logic.Disconnected, s.State().Status)
	assert.Equal(t, 1, logs.FilterMessage("connection lost").Len())
}

func TestNotificationsBounded(t *testing.T) {
	fc := mqtt.NewFakeClient()
	s, _ := newTestSupervisor(t, fc)

	for i := 0; i < notifyBuffer+5; i++ {
		fc.Ack(nil)
	}
	assert.Equal(t, 5, s.Dropped())
	assert.Len(t, s.Drain(), notifyBuffer)
	assert.Empty(t, s.Drain())
}

func TestDisconnectIdempotent(t *testing.T) {
	fc := mqtt.NewFakeClient()
	s, _ := newTestSupervisor(t, fc)
	require.NoError(t, s.Connect(context.Background()))

	s.Disconnect()
	s.Disconnect()
	assert.Equal(t, logic.Disconnected, s.State().Status)
	assert.Equal(t, 2, fc.Disconnects)
}

func TestRetryDelayDefaultConstant(t *testing.T) {
	s, _ := newTestSupervisor(t, mqtt.NewFakeClient())
	for i := 0; i < 3; i++ {
		assert.Equal(t, time.Second, s.RetryDelay())
	}
}

func TestRetryPolicyExponentialCapped(t *testing.T) {
	b, err := RetryPolicy("exponential", 100*time.Millisecond, 400*time.Millisecond)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		d := b.NextBackOff()
		assert.Positive(t, d)
		// Randomization may exceed the cap by at most half.
		assert.LessOrEqual(t, d, 600*time.Millisecond)
	}
}

func TestRetryPolicyResetOnConnect(t *testing.T) {
	b, err := RetryPolicy("exponential", 100*time.Millisecond, 10*time.Second)
	require.NoError(t, err)
	fc := mqtt.NewFakeClient()
	s := New(fc, Options{Retry: b}, zap.NewNop(), nil)

	for i := 0; i < 6; i++ {
		s.RetryDelay()
	}
	require.NoError(t, s.Connect(context.Background()))
	// After reset the first delay is near the initial interval again.
	assert.LessOrEqual(t, s.RetryDelay(), 150*time.Millisecond)
}

func TestRetryPolicyUnknown(t *testing.T) {
	_, err := RetryPolicy("fibonacci", time.Second, time.Minute)
	assert.Error(t, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "connected", NotifyConnected.String())
	assert.Equal(t, "lost", NotifyLost.String())
	assert.Equal(t, "ack", NotifyAck.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
