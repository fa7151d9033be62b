package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-presence/internal/device"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-presence/internal/scan"
)

// Logger defines the logging interface used by the engine and emitter.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Connection is the connection-state half of the telemetry sink.
type Connection interface {
	IsConnected() bool
	Reconnect(ctx context.Context) error
}

// Clock abstracts time for the scheduler.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Options controls scheduling.
type Options struct {
	// ScanDuration bounds the broadcast scan.
	ScanDuration time.Duration

	// QueryTimeout bounds each directed query.
	QueryTimeout time.Duration

	// Interval is the target cycle length, measured from cycle start to
	// the end of the last emission.
	Interval time.Duration

	// DecayStep is subtracted from confidence on a missed cycle.
	DecayStep int

	// Workers bounds concurrent directed queries. 1 or less is serial.
	Workers int

	// ReconnectAttempts bounds sink reconnect tries per cycle boundary.
	ReconnectAttempts int

	// ReconnectDelay separates reconnect attempts and is the backoff
	// before a cycle is retried when the sink stayed down.
	ReconnectDelay time.Duration
}

// OptionsFromConfig derives engine options from the loaded config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ScanDuration:      cfg.BLEScanDuration(),
		QueryTimeout:      cfg.BTQueryTimeout(),
		Interval:          cfg.CycleInterval(),
		DecayStep:         cfg.Scan.DecayStep,
		Workers:           cfg.Scan.Workers,
		ReconnectAttempts: cfg.MQTT.Reconnect.Attempts,
		ReconnectDelay:    cfg.ReconnectDelay(),
	}
}

// CycleReport summarises one scan cycle.
type CycleReport struct {
	ID      string        `json:"id"`
	Started time.Time     `json:"started"`
	Elapsed time.Duration `json:"elapsed"`

	// Broadcast is true when the broadcast scan ran this cycle.
	Broadcast        bool `json:"broadcast"`
	BroadcastEntries int  `json:"broadcast_entries"`

	// Processed counts devices decided and emitted; Found counts matches.
	Processed int `json:"processed"`
	Found     int `json:"found"`

	// SensingFailures counts scans and queries that could not run.
	SensingFailures int `json:"sensing_failures"`

	// Interrupted is true when shutdown cut the device loop short.
	Interrupted bool `json:"interrupted"`
}

// Engine is the scan cycle scheduler.
//
// One cycle: reconnect the sink if needed, run the broadcast scan once if
// any device needs it, then for each device in registry order resolve a
// match, update confidence and emit. Cycles are paced to Options.Interval.
//
// The registry is mutated only from the goroutine running Run or RunCycle.
type Engine struct {
	registry  *device.Registry
	broadcast scan.BroadcastScanner
	querier   scan.DirectQuerier
	notifier  Notifier
	conn      Connection
	shutdown  *Shutdown
	opts      Options

	clock   Clock
	logger  Logger
	metrics MetricsRecorder
	store   *Store
}

// NewEngine creates an engine. All collaborators are required.
func NewEngine(
	registry *device.Registry,
	broadcast scan.BroadcastScanner,
	querier scan.DirectQuerier,
	notifier Notifier,
	conn Connection,
	shutdown *Shutdown,
	opts Options,
) *Engine {
	if opts.DecayStep <= 0 {
		opts.DecayStep = device.DefaultDecayStep
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ReconnectAttempts < 1 {
		opts.ReconnectAttempts = 1
	}

	return &Engine{
		registry:  registry,
		broadcast: broadcast,
		querier:   querier,
		notifier:  notifier,
		conn:      conn,
		shutdown:  shutdown,
		opts:      opts,
		clock:     systemClock{},
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// SetClock replaces the system clock.
func (e *Engine) SetClock(clock Clock) {
	e.clock = clock
}

// SetMetrics records a summary of every completed cycle to m.
func (e *Engine) SetMetrics(m MetricsRecorder) {
	e.metrics = m
}

// SetStore records every completed cycle report in s.
func (e *Engine) SetStore(s *Store) {
	e.store = s
}

// Run executes cycles until shutdown is requested or ctx is cancelled.
// It returns nil on a cooperative stop.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("presence engine started",
		"devices", e.registry.Len(),
		"interval", e.opts.Interval,
		"workers", e.opts.Workers,
	)
	defer e.logger.Info("presence engine stopped")

	for !e.stopping(ctx) {
		report, err := e.RunCycle(ctx)
		if err != nil {
			e.logger.Warn("cycle skipped", "error", err, "retry_in", e.opts.ReconnectDelay)
			if !e.wait(ctx, e.opts.ReconnectDelay) {
				return nil
			}
			continue
		}

		if report.Interrupted || e.stopping(ctx) {
			return nil
		}

		pause := Pause(e.opts.Interval, report.Elapsed)
		if pause > 0 {
			e.logger.Debug("waiting for next cycle", "pause", pause)
			if !e.wait(ctx, pause) {
				return nil
			}
		}
	}
	return nil
}

// Pause returns how long to wait after a cycle: max(0, interval-elapsed).
func Pause(interval, elapsed time.Duration) time.Duration {
	if pause := interval - elapsed; pause > 0 {
		return pause
	}
	return 0
}

// RunCycle runs exactly one cycle.
//
// It returns ErrSinkUnavailable without touching any device when the sink
// cannot be reconnected. A shutdown observed between devices ends the
// cycle early with Interrupted set; devices already emitted keep their
// new state.
func (e *Engine) RunCycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{
		ID:      uuid.NewString(),
		Started: e.clock.Now(),
	}

	if err := e.ensureConnected(ctx); err != nil {
		return report, err
	}

	// In-flight sensing is allowed to finish after a shutdown request.
	// Both transports are bounded by their own timeouts.
	senseCtx := context.WithoutCancel(ctx)

	var result scan.BroadcastResult
	if e.needsBroadcast() {
		result = e.broadcast.Scan(senseCtx, e.opts.ScanDuration)
		report.Broadcast = true
		report.BroadcastEntries = result.Len()
		if result.Failure != nil {
			report.SensingFailures++
			e.logger.Warn("broadcast scan failed", "cycle", report.ID, "error", result.Failure)
		}
	}

	devices := e.registry.Ordered()

	var prefetched map[string]scan.Outcome
	if e.opts.Workers > 1 {
		prefetched = e.prefetchQueries(ctx, senseCtx, devices, result)
	}

	for _, d := range devices {
		if e.stopping(ctx) {
			report.Interrupted = true
			break
		}

		found, failed := e.resolve(senseCtx, d, result, prefetched)
		if failed {
			report.SensingFailures++
		}

		if found {
			d.MarkSeen(e.clock.Now())
			report.Found++
			e.logger.Info("device found", "cycle", report.ID, "device", d.Name, "transport", d.Transport)
		} else {
			d.Decay(e.opts.DecayStep)
		}

		e.logger.Debug("device decided",
			"cycle", report.ID,
			"device", d.Name,
			"confidence", d.Confidence,
			"state", d.Presence(),
		)

		e.notifier.Emit(*d)
		report.Processed++
	}

	report.Elapsed = e.clock.Now().Sub(report.Started)

	e.logger.Info("cycle complete",
		"cycle", report.ID,
		"elapsed", report.Elapsed,
		"processed", report.Processed,
		"found", report.Found,
		"interrupted", report.Interrupted,
	)

	if e.store != nil {
		e.store.PutCycle(report)
	}
	if e.metrics != nil {
		e.metrics.RecordCycle(report)
	}

	return report, nil
}

// needsBroadcast reports whether any device can be matched by the
// broadcast scan this cycle.
func (e *Engine) needsBroadcast() bool {
	return e.registry.HasTransport(device.TransportBLE) || e.registry.HasTransport(device.TransportAuto)
}

// resolve decides whether d was detected this cycle. Auto devices are
// pinned to the transport that first detects them.
func (e *Engine) resolve(ctx context.Context, d *device.WatchedDevice, result scan.BroadcastResult, prefetched map[string]scan.Outcome) (found, failed bool) {
	switch d.Transport {
	case device.TransportBLE:
		return scan.MatchAddress(result, d.Address) || scan.MatchIdentifier(result, d.Identifier), false

	case device.TransportBT:
		outcome := e.query(ctx, d, prefetched)
		return outcome.IsFound(), outcome.Status == scan.StatusFailed

	case device.TransportAuto:
		if scan.MatchAddress(result, d.Address) || scan.MatchIdentifier(result, d.Identifier) {
			e.pin(d, device.TransportBLE)
			return true, false
		}
		outcome := e.query(ctx, d, prefetched)
		if outcome.IsFound() {
			e.pin(d, device.TransportBT)
		}
		return outcome.IsFound(), outcome.Status == scan.StatusFailed
	}

	return false, false
}

func (e *Engine) pin(d *device.WatchedDevice, t device.Transport) {
	d.Pin(t)
	e.logger.Info("device transport pinned", "device", d.Name, "transport", t)
}

// query returns the prefetched outcome for d or runs the query now.
func (e *Engine) query(ctx context.Context, d *device.WatchedDevice, prefetched map[string]scan.Outcome) scan.Outcome {
	outcome, ok := prefetched[d.Name]
	if !ok {
		outcome = e.querier.Query(ctx, d.Address, e.opts.QueryTimeout)
	}

	if outcome.Status == scan.StatusFailed {
		e.logger.Warn("directed query failed", "device", d.Name, "error", outcome.Err)
	}
	return outcome
}

// prefetchQueries runs the directed queries of a cycle through a bounded
// worker pool. No query starts after shutdown is requested; those devices
// fall back to a serial query or are skipped by the device loop.
func (e *Engine) prefetchQueries(ctx, senseCtx context.Context, devices []*device.WatchedDevice, result scan.BroadcastResult) map[string]scan.Outcome {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		outcomes = make(map[string]scan.Outcome)
		sem      = make(chan struct{}, e.opts.Workers)
	)

	for _, d := range devices {
		if !e.needsQuery(d, result) {
			continue
		}

		name, address := d.Name, d.Address
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if e.stopping(ctx) {
				return
			}

			outcome := e.querier.Query(senseCtx, address, e.opts.QueryTimeout)
			mu.Lock()
			outcomes[name] = outcome
			mu.Unlock()
		}()
	}

	wg.Wait()
	return outcomes
}

// needsQuery reports whether d will need a directed query this cycle.
func (e *Engine) needsQuery(d *device.WatchedDevice, result scan.BroadcastResult) bool {
	switch d.Transport {
	case device.TransportBT:
		return true
	case device.TransportAuto:
		return !scan.MatchAddress(result, d.Address) && !scan.MatchIdentifier(result, d.Identifier)
	default:
		return false
	}
}

// ensureConnected runs the bounded reconnect loop at a cycle boundary.
func (e *Engine) ensureConnected(ctx context.Context) error {
	if e.conn.IsConnected() {
		return nil
	}

	e.logger.Warn("sink disconnected, reconnecting", "attempts", e.opts.ReconnectAttempts)

	var lastErr error
	for attempt := 1; attempt <= e.opts.ReconnectAttempts; attempt++ {
		if e.stopping(ctx) {
			return fmt.Errorf("%w: shutdown requested", ErrSinkUnavailable)
		}

		lastErr = e.conn.Reconnect(ctx)
		if lastErr == nil {
			e.logger.Info("sink reconnected", "attempt", attempt)
			return nil
		}

		e.logger.Warn("sink reconnect failed", "attempt", attempt, "error", lastErr)

		if attempt < e.opts.ReconnectAttempts && !e.wait(ctx, e.opts.ReconnectDelay) {
			return fmt.Errorf("%w: shutdown requested", ErrSinkUnavailable)
		}
	}

	return fmt.Errorf("%w: %w", ErrSinkUnavailable, lastErr)
}

// wait pauses for d. It returns false if shutdown or ctx ended the wait.
func (e *Engine) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !e.stopping(ctx)
	}
	select {
	case <-e.clock.After(d):
		return !e.stopping(ctx)
	case <-e.shutdown.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

// stopping reports whether the engine should stop at this checkpoint.
func (e *Engine) stopping(ctx context.Context) bool {
	return e.shutdown.Requested() || ctx.Err() != nil
}
