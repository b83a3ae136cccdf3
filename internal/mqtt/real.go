package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Options configures a RealClient.
type Options struct {
	Endpoint string
	Port     int
	ClientID string
	Topic    string

	// CAFile, CertFile and KeyFile enable mutual TLS when set.
	CAFile   string
	CertFile string
	KeyFile  string

	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	KeepAlive      time.Duration
}

// RealClient talks to an actual MQTT broker.
type RealClient struct {
	client paho.Client
	opts   Options
	logger *zap.Logger

	mu       sync.RWMutex
	handlers Handlers
}

// NewRealClient prepares a client. It does not connect.
func NewRealClient(opts Options, logger *zap.Logger) (*RealClient, error) {
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 30 * time.Second
	}

	c := &RealClient{opts: opts, logger: logger}

	useTLS := opts.CAFile != "" || opts.CertFile != "" || opts.KeyFile != ""
	po := paho.NewClientOptions().
		AddBroker(BrokerURL(opts.Endpoint, opts.Port, useTLS)).
		SetClientID(opts.ClientID).
		SetCleanSession(false).
		SetKeepAlive(opts.KeepAlive).
		SetConnectTimeout(opts.ConnectTimeout).
		// Reconnection is paced by the connection supervisor.
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOnConnectHandler(func(paho.Client) {
			c.currentHandlers().connected()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.logger.Warn("connection lost", zap.Error(err))
			c.currentHandlers().lost(err)
		})

	if useTLS {
		tlsCfg, err := TLSConfig(opts.CAFile, opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, err
		}
		po.SetTLSConfig(tlsCfg)
	}

	c.client = paho.NewClient(po)
	return c, nil
}

// TLSConfig builds a mutual-TLS config from PEM files.
func TLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("ca %s: no certificates found", caFile)
		}
		cfg.RootCAs = pool
	}

	if certFile != "" || keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

// SetHandlers registers the notification callbacks.
func (c *RealClient) SetHandlers(h Handlers) {
	c.mu.Lock()
	c.handlers = h
	c.mu.Unlock()
}

func (c *RealClient) currentHandlers() Handlers {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handlers
}

// Connect opens the connection and subscribes to the telemetry topic so the
// broker's echo of each publish can serve as a delivery acknowledgement.
func (c *RealClient) Connect(ctx context.Context) error {
	c.logger.Info("connecting",
		zap.String("endpoint", c.opts.Endpoint),
		zap.Int("port", c.opts.Port),
		zap.String("client_id", c.opts.ClientID))

	// paho refuses Connect while a previous session is still open.
	if c.client.IsConnectionOpen() {
		c.logger.Info("closing previous session")
		c.client.Disconnect(250)
	}

	if err := waitToken(ctx, c.client.Connect(), c.opts.ConnectTimeout); err != nil {
		if errors.Is(err, ErrTimeout) || ctx.Err() != nil {
			// Abandon the in-flight attempt.
			c.client.Disconnect(0)
		}
		return fmt.Errorf("connect to broker: %w", err)
	}

	tok := c.client.Subscribe(c.opts.Topic, QoS, func(_ paho.Client, msg paho.Message) {
		c.logger.Debug("received", zap.String("topic", msg.Topic()), zap.ByteString("payload", msg.Payload()))
		c.currentHandlers().ack(msg.Topic(), msg.Payload())
	})
	if err := waitToken(ctx, tok, c.opts.ConnectTimeout); err != nil {
		c.client.Disconnect(250)
		return fmt.Errorf("subscribe %s: %w", c.opts.Topic, err)
	}

	c.logger.Info("subscribed", zap.String("topic", c.opts.Topic))
	return nil
}

// Disconnect closes the connection if it is open.
func (c *RealClient) Disconnect() {
	if c.client.IsConnectionOpen() {
		c.logger.Info("disconnecting")
		c.client.Disconnect(250)
	}
}

// Publish sends payload to the telemetry topic at QoS 1 and waits for PUBACK.
func (c *RealClient) Publish(ctx context.Context, payload []byte) error {
	tok := c.client.Publish(c.opts.Topic, QoS, false, payload)
	if err := waitToken(ctx, tok, c.opts.PublishTimeout); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
