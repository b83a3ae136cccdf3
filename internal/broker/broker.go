// Package broker supervises the connection to the MQTT broker.
//
// The Supervisor owns the connection state. Transport callbacks arrive on
// paho's goroutines and are turned into Notifications on a bounded channel;
// the coordinator drains them once per tick so indicator changes happen on
// the loop goroutine only.
package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/sweeney/complex-monitor/internal/logic"
	"github.com/sweeney/complex-monitor/internal/metrics"
	"github.com/sweeney/complex-monitor/internal/mqtt"
)

var (
	// ErrNotConnected is returned by Publish unless the state is CONNECTED.
	ErrNotConnected = errors.New("broker not connected")

	// ErrConnectInProgress is returned when another Connect holds the attempt.
	ErrConnectInProgress = errors.New("connect already in progress")

	// ErrDisconnected is returned by a Connect that Disconnect overtook.
	ErrDisconnected = errors.New("disconnected during connect")
)

// notifyBuffer bounds the notification channel. Overflow is dropped.
const notifyBuffer = 32

// Transport is the broker client the supervisor drives.
type Transport interface {
	SetHandlers(mqtt.Handlers)
	// Connect opens the connection and subscribes for acknowledgements.
	Connect(ctx context.Context) error
	Disconnect()
	Publish(ctx context.Context, payload []byte) error
}

// Kind identifies a notification.
type Kind int

const (
	// NotifyConnected: the transport reported an established connection.
	NotifyConnected Kind = iota
	// NotifyLost: the transport lost the connection.
	NotifyLost
	// NotifyAck: a published message was acknowledged by the broker.
	NotifyAck
)

func (k Kind) String() string {
	switch k {
	case NotifyConnected:
		return "connected"
	case NotifyLost:
		return "lost"
	case NotifyAck:
		return "ack"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Notification is one transport event.
type Notification struct {
	Kind Kind
	Err  error
	At   time.Time
}

// Options configures a Supervisor.
type Options struct {
	ConnectTimeout time.Duration
	PublishTimeout time.Duration

	// Retry paces reconnection attempts. Nil means a constant one second.
	Retry backoff.BackOff

	// Now defaults to time.Now.
	Now func() time.Time
}

// Supervisor is the single source of truth for the broker connection state.
type Supervisor struct {
	transport Transport
	opts      Options
	logger    *zap.Logger
	metrics   *metrics.Metrics

	mu          sync.Mutex
	status      logic.ConnStatus
	lastAttempt time.Time
	connectedAt time.Time
	retry       backoff.BackOff
	// gen is bumped by Disconnect so an attempt it overtook is abandoned.
	gen uint64

	notify  chan Notification
	dropped int
}

// New creates a Supervisor in DISCONNECTED and registers its handlers on t.
func New(t Transport, opts Options, logger *zap.Logger, m *metrics.Metrics) *Supervisor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Retry == nil {
		opts.Retry = backoff.NewConstantBackOff(time.Second)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Supervisor{
		transport: t,
		opts:      opts,
		logger:    logger,
		metrics:   m,
		status:    logic.Disconnected,
		retry:     opts.Retry,
		notify:    make(chan Notification, notifyBuffer),
	}
	m.SetConnState(logic.Disconnected)

	t.SetHandlers(mqtt.Handlers{
		OnConnect:        func() { s.enqueue(Notification{Kind: NotifyConnected}) },
		OnConnectionLost: func(err error) { s.enqueue(Notification{Kind: NotifyLost, Err: err}) },
		OnAck:            func(string, []byte) { s.enqueue(Notification{Kind: NotifyAck}) },
	})
	return s
}

// RetryPolicy builds the backoff for a configured policy.
// "constant" waits initial between attempts; "exponential" starts at initial,
// doubles, and is capped at max. It never stops retrying.
func RetryPolicy(policy string, initial, max time.Duration) (backoff.BackOff, error) {
	switch policy {
	case "", "constant":
		return backoff.NewConstantBackOff(initial), nil
	case "exponential":
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = max
		b.MaxElapsedTime = 0
		b.Reset()
		return b, nil
	}
	return nil, fmt.Errorf("unknown retry policy %q", policy)
}

func (s *Supervisor) enqueue(n Notification) {
	if n.At.IsZero() {
		n.At = s.opts.Now()
	}
	select {
	case s.notify <- n:
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		s.logger.Warn("notification dropped", zap.Stringer("kind", n.Kind))
	}
}

func (s *Supervisor) setStatusLocked(st logic.ConnStatus) {
	if s.status == st {
		return
	}
	s.logger.Debug("state change", zap.String("from", string(s.status)), zap.String("to", string(st)))
	s.status = st
	s.metrics.SetConnState(st)
}

// Connect attempts to establish the connection. It is only started from
// DISCONNECTED: an attempt already running yields ErrConnectInProgress and an
// established connection returns nil without touching the transport.
func (s *Supervisor) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.status {
	case logic.Connected:
		s.mu.Unlock()
		return nil
	case logic.Connecting:
		s.mu.Unlock()
		return ErrConnectInProgress
	}
	s.setStatusLocked(logic.Connecting)
	s.lastAttempt = s.opts.Now()
	gen := s.gen
	s.mu.Unlock()

	cctx := ctx
	if s.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, s.opts.ConnectTimeout)
		defer cancel()
	}
	err := s.transport.Connect(cctx)

	s.mu.Lock()
	if s.gen != gen {
		// Disconnect already set the state; a newer attempt may own it now.
		s.mu.Unlock()
		if err != nil {
			return err
		}
		s.transport.Disconnect()
		s.logger.Info("connect finished after disconnect, dropped")
		return ErrDisconnected
	}
	if err != nil {
		s.setStatusLocked(logic.Disconnected)
	} else {
		s.setStatusLocked(logic.Connected)
		s.connectedAt = s.opts.Now()
		s.retry.Reset()
	}
	s.mu.Unlock()

	s.metrics.ConnectAttempt(err == nil)
	if err != nil {
		s.logger.Warn("connect failed", zap.Error(err))
		return err
	}
	s.logger.Info("connected")
	return nil
}

// Disconnect closes the connection. Safe to call in any state. An attempt
// still in flight is abandoned when it completes.
func (s *Supervisor) Disconnect() {
	s.mu.Lock()
	s.gen++
	s.setStatusLocked(logic.Disconnected)
	s.mu.Unlock()
	s.transport.Disconnect()
}

// Publish sends payload. Without a connection it returns ErrNotConnected
// without touching the transport. A transport failure marks the connection
// DISCONNECTED so the coordinator reconnects.
func (s *Supervisor) Publish(ctx context.Context, payload []byte) error {
	if !s.IsConnected() {
		s.metrics.BrokerPublish("not_connected")
		return ErrNotConnected
	}

	pctx := ctx
	if s.opts.PublishTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, s.opts.PublishTimeout)
		defer cancel()
	}
	if err := s.transport.Publish(pctx, payload); err != nil {
		s.metrics.BrokerPublish("error")
		// The client may still hold the session; close it so the next
		// Connect starts clean.
		s.transport.Disconnect()
		s.mu.Lock()
		s.setStatusLocked(logic.Disconnected)
		s.mu.Unlock()
		return err
	}
	s.metrics.BrokerPublish("ok")
	return nil
}

// Drain returns every pending notification in arrival order and applies
// its state change. A lost connection becomes DISCONNECTED. A loss stamped
// before the current connection was established belongs to an earlier
// session and is discarded.
func (s *Supervisor) Drain() []Notification {
	var out []Notification
	for {
		select {
		case n := <-s.notify:
			if s.apply(n) {
				out = append(out, n)
			}
		default:
			return out
		}
	}
}

func (s *Supervisor) apply(n Notification) bool {
	switch n.Kind {
	case NotifyLost:
		s.mu.Lock()
		if n.At.Before(s.connectedAt) {
			s.mu.Unlock()
			s.logger.Debug("stale connection lost ignored", zap.Time("at", n.At), zap.Error(n.Err))
			return false
		}
		s.setStatusLocked(logic.Disconnected)
		s.mu.Unlock()
		s.logger.Warn("connection lost", zap.Error(n.Err))
	case NotifyAck:
		s.metrics.BrokerAck()
	}
	return true
}

// RetryDelay returns the pause to take after a failed connection attempt.
func (s *Supervisor) RetryDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.retry.NextBackOff()
	if d == backoff.Stop {
		// A policy that gave up starts over.
		s.retry.Reset()
		d = s.retry.NextBackOff()
	}
	return d
}

// State returns the current connection state.
func (s *Supervisor) State() logic.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return logic.ConnectionState{Status: s.status, LastAttempt: s.lastAttempt}
}

// IsConnected reports whether the state is CONNECTED.
func (s *Supervisor) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == logic.Connected
}

// Dropped returns the number of notifications lost to a full channel.
func (s *Supervisor) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
