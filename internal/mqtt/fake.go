package mqtt

import (
	"context"
	"errors"
	"sync"
)

// ErrFakeConnect is a convenience error for scripted connect failures.
var ErrFakeConnect = errors.New("fake: connection refused")

// FakeClient records calls for test assertions. Safe for concurrent use.
type FakeClient struct {
	mu sync.Mutex

	// ConnectResults are returned by successive Connect calls.
	// When exhausted the last result repeats; empty means success.
	ConnectResults []error
	connectIndex   int

	// ConnectCalls counts Connect invocations.
	ConnectCalls int

	// Published contains the payloads of successful publishes.
	Published [][]byte

	// PublishCalls counts Publish invocations, including failed ones.
	PublishCalls int

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// AckOnPublish makes every successful publish echo back as an ack.
	AckOnPublish bool

	// Disconnects counts Disconnect invocations.
	Disconnects int

	handlers Handlers
}

// NewFakeClient creates a FakeClient whose connects always succeed.
func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

// SetHandlers records the handlers.
func (f *FakeClient) SetHandlers(h Handlers) {
	f.mu.Lock()
	f.handlers = h
	f.mu.Unlock()
}

// Connect returns the next scripted result. Success fires OnConnect.
func (f *FakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.ConnectCalls++
	var err error
	if len(f.ConnectResults) > 0 {
		err = f.ConnectResults[f.connectIndex]
		if f.connectIndex < len(f.ConnectResults)-1 {
			f.connectIndex++
		}
	}
	h := f.handlers
	f.mu.Unlock()

	if err != nil {
		return err
	}
	h.connected()
	return nil
}

// Disconnect counts the call.
func (f *FakeClient) Disconnect() {
	f.mu.Lock()
	f.Disconnects++
	f.mu.Unlock()
}

// Publish records the payload or returns PublishError.
func (f *FakeClient) Publish(ctx context.Context, payload []byte) error {
	f.mu.Lock()
	f.PublishCalls++
	if f.PublishError != nil {
		err := f.PublishError
		f.mu.Unlock()
		return err
	}
	f.Published = append(f.Published, payload)
	ack := f.AckOnPublish
	h := f.handlers
	f.mu.Unlock()

	if ack {
		h.ack("", payload)
	}
	return nil
}

// DropConnection simulates the broker closing the connection.
func (f *FakeClient) DropConnection(err error) {
	f.mu.Lock()
	h := f.handlers
	f.mu.Unlock()
	h.lost(err)
}

// Ack simulates the broker echoing a message.
func (f *FakeClient) Ack(payload []byte) {
	f.mu.Lock()
	h := f.handlers
	f.mu.Unlock()
	h.ack("", payload)
}

// Calls returns the connect and publish call counts.
func (f *FakeClient) Calls() (connects, publishes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ConnectCalls, f.PublishCalls
}

// Payloads returns a copy of the published payloads.
func (f *FakeClient) Payloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.Published))
	copy(out, f.Published)
	return out
}

// SetConnectResults replaces the scripted connect results.
func (f *FakeClient) SetConnectResults(results ...error) {
	f.mu.Lock()
	f.ConnectResults = results
	f.connectIndex = 0
	f.mu.Unlock()
}

// SetPublishError replaces the publish error.
func (f *FakeClient) SetPublishError(err error) {
	f.mu.Lock()
	f.PublishError = err
	f.mu.Unlock()
}
