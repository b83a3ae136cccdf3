// Package coordinator runs the main control loop of the monitoring node.
//
// A single goroutine polls the button, advances the broker connection,
// drives the indicator LEDs and pushes readings to the dashboard. The
// dashboard server and the first broker connection attempt run on their own
// goroutines; broker callbacks reach the loop only through the supervisor's
// notification queue, drained once per tick.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/complex-monitor/internal/broker"
	"github.com/sweeney/complex-monitor/internal/logic"
	"github.com/sweeney/complex-monitor/internal/metrics"
	"github.com/sweeney/complex-monitor/internal/status"
)

// Loop timing.
const (
	DefaultTick            = 100 * time.Millisecond
	DefaultSettleDelay     = time.Second
	DefaultPressDwell      = 500 * time.Millisecond
	DefaultShutdownPause   = time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultInterval        = time.Second
)

// Sensor reads the environment. An error means the reading is absent.
type Sensor interface {
	Temperature() (float64, error)
	Humidity() (float64, error)
}

// Button is polled once per tick. Edge detection is done by the loop.
type Button interface {
	Pressed() (bool, error)
}

// Indicator shows one status color at a time.
type Indicator interface {
	Show(c logic.Color)
	Off()
	Current() logic.Color
}

// Broker is the connection supervisor as seen by the loop.
type Broker interface {
	Connect(ctx context.Context) error
	Disconnect()
	Publish(ctx context.Context, payload []byte) error
	Drain() []broker.Notification
	RetryDelay() time.Duration
	State() logic.ConnectionState
	IsConnected() bool
}

// Dashboard is the live dashboard transport.
type Dashboard interface {
	// Start serves until Stop. It blocks.
	Start(ctx context.Context) error
	Push(event string, v any) error
	Stop(ctx context.Context) error
}

// Options tunes the loop. Zero values take the defaults.
type Options struct {
	Identity          string
	DashboardInterval time.Duration
	Tick              time.Duration
	SettleDelay       time.Duration
	PressDwell        time.Duration
	ShutdownPause     time.Duration
	ShutdownTimeout   time.Duration
}

func (o *Options) applyDefaults() {
	if o.DashboardInterval <= 0 {
		o.DashboardInterval = DefaultInterval
	}
	if o.Tick <= 0 {
		o.Tick = DefaultTick
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.PressDwell <= 0 {
		o.PressDwell = DefaultPressDwell
	}
	if o.ShutdownPause <= 0 {
		o.ShutdownPause = DefaultShutdownPause
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Deps are the collaborators injected into the App.
type Deps struct {
	Clock     Clock
	Sensor    Sensor
	Button    Button
	Indicator Indicator
	Broker    Broker
	Dashboard Dashboard

	// Tracker, Metrics and Logger are optional.
	Tracker *status.Tracker
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// App is the main coordinator.
type App struct {
	opts Options
	Deps

	start    time.Time
	stopped  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}

	phaseMu sync.Mutex
	phase   logic.Phase

	edge     logic.PressEdge
	readings logic.Readings

	cancelConnect context.CancelFunc
	connectDone   chan struct{}
}

// New builds an App.
func New(opts Options, deps Deps) *App {
	opts.applyDefaults()
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &App{
		opts:   opts,
		Deps:   deps,
		stopCh: make(chan struct{}),
		phase:  logic.PhaseStarting,
	}
}

// Stop requests shutdown. Safe to call from any goroutine, any number of times.
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		a.stopped.Store(true)
		close(a.stopCh)
	})
}

// Running reports whether shutdown has not been requested.
func (a *App) Running() bool {
	return !a.stopped.Load()
}

// Phase returns the current lifecycle phase.
func (a *App) Phase() logic.Phase {
	a.phaseMu.Lock()
	defer a.phaseMu.Unlock()
	return a.phase
}

func (a *App) setPhase(p logic.Phase) {
	a.phaseMu.Lock()
	a.phase = p
	a.phaseMu.Unlock()
	if a.Tracker != nil {
		a.Tracker.SetPhase(p)
	}
	a.Logger.Debug("phase", zap.String("phase", string(p)))
}

// Run executes the lifecycle STARTING, RUNNING, STOPPING, STOPPED and returns
// once stopped. Cancelling ctx is equivalent to calling Stop.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-runCtx.Done():
		case <-a.stopCh:
		}
		a.Stop()
	}()

	dashDone := a.startup(runCtx)

	a.setPhase(logic.PhaseRunning)
	timer := logic.NewPublishTimer(a.Clock.Now(), a.opts.DashboardInterval)
	for a.Running() {
		a.tick(runCtx, timer)
	}

	a.shutdown(dashDone)
	return nil
}

// startup lights RED, launches the dashboard and the first connection
// attempt, and waits the settle delay.
func (a *App) startup(ctx context.Context) <-chan struct{} {
	a.setPhase(logic.PhaseStarting)
	a.start = a.Clock.Now()
	a.Logger.Info("starting", zap.String("identity", a.opts.Identity))
	a.Indicator.Show(logic.ColorRed)

	dashDone := make(chan struct{})
	go func() {
		defer close(dashDone)
		if err := a.Dashboard.Start(ctx); err != nil {
			a.Logger.Error("critical: dashboard failed", zap.Error(err))
		}
	}()

	connectCtx, cancelConnect := context.WithCancel(ctx)
	a.cancelConnect = cancelConnect
	a.connectDone = make(chan struct{})
	go func() {
		defer close(a.connectDone)
		if err := a.Broker.Connect(connectCtx); err != nil && !errors.Is(err, broker.ErrConnectInProgress) {
			a.Logger.Debug("initial connect failed", zap.Error(err))
		}
	}()

	a.Clock.Sleep(a.opts.SettleDelay)
	a.Logger.Info("initialized")
	return dashDone
}

// tick is one loop iteration: notifications, reconnect, dashboard, button.
func (a *App) tick(ctx context.Context, timer *logic.PublishTimer) {
	a.Clock.Sleep(a.opts.Tick)

	a.applyNotifications()

	if !a.Broker.IsConnected() {
		a.reconnect(ctx)
	}

	now := a.Clock.Now()
	if timer.Fire(now) {
		a.pushDashboard(now)
	}
	a.checkButton(ctx)

	if a.Tracker != nil {
		a.Tracker.Update(a.Broker.State(), a.Indicator.Current(), a.readings, logic.FormatUptime(a.start, now))
	}
}

func (a *App) applyNotifications() {
	for _, n := range a.Broker.Drain() {
		switch n.Kind {
		case broker.NotifyConnected, broker.NotifyAck:
			a.Indicator.Show(logic.ColorGreen)
		case broker.NotifyLost:
			a.Indicator.Show(logic.ColorRed)
		}
	}
}

// reconnect makes one attempt, lit YELLOW, then pauses for the retry delay
// if it failed. An attempt already running elsewhere is not paced.
func (a *App) reconnect(ctx context.Context) {
	a.Indicator.Show(logic.ColorYellow)
	err := a.Broker.Connect(ctx)
	switch {
	case err == nil:
		a.Indicator.Show(logic.ColorGreen)
	case errors.Is(err, broker.ErrConnectInProgress):
	default:
		a.Logger.Info("broker not reachable, retrying", zap.Error(err))
		a.Clock.Sleep(a.Broker.RetryDelay())
		if a.Broker.IsConnected() {
			a.Indicator.Show(logic.ColorGreen)
		}
	}
}

// readSensor samples both quantities. A failed read leaves the field absent.
func (a *App) readSensor() logic.Readings {
	var r logic.Readings
	if t, err := a.Sensor.Temperature(); err != nil {
		a.Logger.Debug("temperature read failed", zap.Error(err))
		a.Metrics.SensorReadError("temperature")
	} else {
		r.Temperature = &t
	}
	if h, err := a.Sensor.Humidity(); err != nil {
		a.Logger.Debug("humidity read failed", zap.Error(err))
		a.Metrics.SensorReadError("humidity")
	} else {
		r.Humidity = &h
	}
	return r
}

func (a *App) buildPayload(now time.Time) logic.Payload {
	a.readings = a.readSensor()
	return logic.BuildPayload(a.opts.Identity, logic.FormatUptime(a.start, now), a.readings)
}

func (a *App) pushDashboard(now time.Time) {
	payload := a.buildPayload(now)
	if err := a.Dashboard.Push("data", payload); err != nil {
		a.Logger.Warn("dashboard push failed", zap.Error(err))
		return
	}
	if a.Tracker == nil {
		return
	}
	a.Tracker.RecordPush()
	a.Tracker.Update(a.Broker.State(), a.Indicator.Current(), a.readings, payload.Uptime)
	if err := a.Dashboard.Push("status", status.StatusEvent(a.Tracker.Snapshot())); err != nil {
		a.Logger.Warn("dashboard push failed", zap.Error(err))
	}
}

// checkButton publishes once per press. A held button does not re-fire.
func (a *App) checkButton(ctx context.Context) {
	pressed, err := a.Button.Pressed()
	if err != nil {
		a.Logger.Debug("button read failed", zap.Error(err))
		pressed = false
	}
	if !a.edge.Observe(pressed) {
		return
	}

	if !a.Broker.IsConnected() {
		a.Logger.Info("button pressed, broker not connected, message dropped")
		a.Metrics.DroppedPress()
		if a.Tracker != nil {
			a.Tracker.RecordDroppedPress()
		}
		return
	}

	payload := a.buildPayload(a.Clock.Now())
	data, err := payload.JSON()
	if err != nil {
		a.Logger.Error("encode payload", zap.Error(err))
		return
	}
	a.Logger.Info("sending", zap.ByteString("payload", data))
	a.Indicator.Show(logic.ColorYellow)
	a.Clock.Sleep(a.opts.PressDwell)

	err = a.Broker.Publish(ctx, data)
	if a.Tracker != nil {
		a.Tracker.RecordPublish(err == nil)
	}
	if err != nil {
		a.Logger.Warn("publish failed", zap.Error(err))
		a.Indicator.Show(logic.ColorRed)
	}
}

// shutdown pauses, switches the LEDs off, stops the dashboard and
// disconnects from the broker.
func (a *App) shutdown(dashDone <-chan struct{}) {
	a.setPhase(logic.PhaseStopping)
	a.Logger.Info("stopping")
	a.Clock.Sleep(a.opts.ShutdownPause)

	a.Indicator.Off()

	ctx, cancel := context.WithTimeout(context.Background(), a.opts.ShutdownTimeout)
	defer cancel()
	if err := a.Dashboard.Stop(ctx); err != nil {
		a.Logger.Warn("dashboard stop", zap.Error(err))
	}
	select {
	case <-dashDone:
	case <-ctx.Done():
		a.Logger.Warn("dashboard did not stop in time")
	}

	// The startup attempt must not land after the disconnect.
	a.cancelConnect()
	select {
	case <-a.connectDone:
	case <-ctx.Done():
		a.Logger.Warn("initial connect did not stop in time")
	}
	a.Broker.Disconnect()
	a.setPhase(logic.PhaseStopped)
	a.Logger.Info("stopped")
}
