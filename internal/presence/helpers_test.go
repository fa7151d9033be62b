package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/device"
	"github.com/nerrad567/gray-logic-presence/internal/scan"
)

// fakeScanner is a test implementation of scan.BroadcastScanner.
type fakeScanner struct {
	mu      sync.Mutex
	results []scan.BroadcastResult // one per call; the last repeats
	calls   int
	events  *eventLog
}

func (f *fakeScanner) Scan(context.Context, time.Duration) scan.BroadcastResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.events.add("scan")
	if len(f.results) == 0 {
		return scan.BroadcastResult{}
	}
	idx := f.calls - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	return f.results[idx]
}

func (f *fakeScanner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeQuerier is a test implementation of scan.DirectQuerier.
// Outcomes are scripted per address; the last outcome repeats.
type fakeQuerier struct {
	mu       sync.Mutex
	outcomes map[string][]scan.Outcome
	calls    map[string]int
	delay    time.Duration
	onQuery  func(address string)

	active    int
	maxActive int
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		outcomes: make(map[string][]scan.Outcome),
		calls:    make(map[string]int),
	}
}

func (f *fakeQuerier) script(address string, outcomes ...scan.Outcome) {
	f.outcomes[address] = outcomes
}

func (f *fakeQuerier) Query(_ context.Context, address string, _ time.Duration) scan.Outcome {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	n := f.calls[address]
	f.calls[address] = n + 1
	scripted := f.outcomes[address]
	hook := f.onQuery
	f.mu.Unlock()

	if hook != nil {
		hook(address)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.active--
	f.mu.Unlock()

	if len(scripted) == 0 {
		return scan.NotFound()
	}
	if n >= len(scripted) {
		n = len(scripted) - 1
	}
	return scripted[n]
}

func (f *fakeQuerier) Calls(address string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[address]
}

// fakeNotifier is a test implementation of Notifier.
type fakeNotifier struct {
	emitted []device.WatchedDevice
	onEmit  func(n int, d device.WatchedDevice)
	events  *eventLog
}

func (f *fakeNotifier) Emit(d device.WatchedDevice) Record {
	f.emitted = append(f.emitted, d)
	f.events.add("emit:" + d.Name)
	if f.onEmit != nil {
		f.onEmit(len(f.emitted), d)
	}
	return NewRecord(d)
}

// history returns every emitted state for one device, in order.
func (f *fakeNotifier) history(name string) []device.WatchedDevice {
	var out []device.WatchedDevice
	for _, d := range f.emitted {
		if d.Name == name {
			out = append(out, d)
		}
	}
	return out
}

// fakeConn is a test implementation of Connection.
type fakeConn struct {
	mu            sync.Mutex
	connected     bool
	reconnectErrs []error // consumed per call; nil entries succeed
	reconnects    int
	events        *eventLog
}

var errBrokerDown = errors.New("broker down")

func (f *fakeConn) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeConn) Reconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reconnects++
	f.events.add("reconnect")

	var err error
	if len(f.reconnectErrs) > 0 {
		err = f.reconnectErrs[0]
		f.reconnectErrs = f.reconnectErrs[1:]
	}
	if err == nil {
		f.connected = true
	}
	return err
}

func (f *fakeConn) setConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = v
}

// fakeClock is a test implementation of Clock. After returns immediately
// and advances the clock by the requested duration.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 8, 0, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.waits))
	copy(out, c.waits)
	return out
}

// eventLog records the order of collaborator calls.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) indexOf(e string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, got := range l.events {
		if got == e {
			return i
		}
	}
	return -1
}

// harness bundles an engine with its fakes.
type harness struct {
	engine   *Engine
	registry *device.Registry
	scanner  *fakeScanner
	querier  *fakeQuerier
	notifier *fakeNotifier
	conn     *fakeConn
	clock    *fakeClock
	shutdown *Shutdown
	events   *eventLog
}

func testOptions() Options {
	return Options{
		ScanDuration:      10 * time.Second,
		QueryTimeout:      6 * time.Second,
		Interval:          20 * time.Second,
		DecayStep:         5,
		Workers:           1,
		ReconnectAttempts: 3,
		ReconnectDelay:    10 * time.Second,
	}
}

func newHarness(t *testing.T, devices []device.WatchedDevice, opts Options) *harness {
	t.Helper()

	registry, err := device.NewRegistry(devices)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	events := &eventLog{}
	h := &harness{
		registry: registry,
		scanner:  &fakeScanner{events: events},
		querier:  newFakeQuerier(),
		notifier: &fakeNotifier{events: events},
		conn:     &fakeConn{connected: true, events: events},
		clock:    newFakeClock(),
		shutdown: NewShutdown(),
		events:   events,
	}

	h.engine = NewEngine(registry, h.scanner, h.querier, h.notifier, h.conn, h.shutdown, opts)
	h.engine.SetClock(h.clock)
	return h
}

func (h *harness) runCycles(t *testing.T, n int) []CycleReport {
	t.Helper()
	reports := make([]CycleReport, 0, n)
	for i := 0; i < n; i++ {
		report, err := h.engine.RunCycle(context.Background())
		if err != nil {
			t.Fatalf("RunCycle() #%d error = %v", i+1, err)
		}
		reports = append(reports, report)
	}
	return reports
}

func btDevice(name, address string) device.WatchedDevice {
	return device.WatchedDevice{Name: name, Address: address, Transport: device.TransportBT}
}

func bleDevice(name, address, identifier string) device.WatchedDevice {
	return device.WatchedDevice{Name: name, Address: address, Identifier: identifier, Transport: device.TransportBLE}
}
