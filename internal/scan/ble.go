package scan

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// adTypeComplete128 is the advertising data type for the complete list of
// 128-bit service class UUIDs.
const adTypeComplete128 = 0x07

const stopRetryInterval = 50 * time.Millisecond

// advertisementSource is the radio behind a BLEScanner.
type advertisementSource interface {
	Enable() error
	Scan(onResult func(address string, payload []byte)) error
	StopScan() error
}

// tinygoSource adapts a tinygo bluetooth adapter.
type tinygoSource struct {
	adapter *bluetooth.Adapter
}

func (s tinygoSource) Enable() error {
	return s.adapter.Enable()
}

func (s tinygoSource) Scan(onResult func(address string, payload []byte)) error {
	return s.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		onResult(result.Address.String(), result.AdvertisementPayload.Bytes())
	})
}

func (s tinygoSource) StopScan() error {
	return s.adapter.StopScan()
}

// BLEScanner runs broadcast scans on the default Bluetooth adapter.
//
// The adapter is enabled lazily on the first scan and re-enabled after an
// enable failure, so a radio that comes up late is picked up by a later
// cycle. On Linux, BlueZ does not expose raw advertising data; entries
// carry addresses only and identifier matching never succeeds there.
//
// Thread Safety:
//   - Scan serialises callers; only one scan runs at a time.
type BLEScanner struct {
	source  advertisementSource
	logger  Logger
	enabled bool
	mu      sync.Mutex
}

// NewBLEScanner creates a scanner on bluetooth.DefaultAdapter.
func NewBLEScanner() *BLEScanner {
	return newBLEScanner(tinygoSource{adapter: bluetooth.DefaultAdapter})
}

func newBLEScanner(source advertisementSource) *BLEScanner {
	return &BLEScanner{
		source: source,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the scanner.
func (s *BLEScanner) SetLogger(logger Logger) {
	s.logger = logger
}

// Scan listens for advertisements for d, or until ctx is cancelled.
//
// It never fails hard: an adapter that cannot be enabled or a scan that
// errors yields whatever was collected so far, with Failure set.
func (s *BLEScanner) Scan(ctx context.Context, d time.Duration) BroadcastResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		if err := s.source.Enable(); err != nil {
			return BroadcastResult{Failure: fmt.Errorf("%w: %w", ErrAdapterUnavailable, err)}
		}
		s.enabled = true
	}

	if ctx.Err() != nil {
		return BroadcastResult{}
	}

	collector := newAdvertisementCollector()

	scanCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	// StopScan fails while the scan has not started yet, so keep
	// trying until Scan returns.
	scanDone := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-scanCtx.Done()
		for {
			err := s.source.StopScan()
			if err == nil {
				return
			}
			select {
			case <-scanDone:
				return
			case <-time.After(stopRetryInterval):
				s.logger.Debug("retrying stop scan", "error", err)
			}
		}
	}()

	err := s.source.Scan(collector.add)
	close(scanDone)
	cancel()
	<-stopped

	result := BroadcastResult{Entries: collector.entries()}
	if err != nil {
		// Force a re-enable next cycle in case the adapter was reset.
		s.enabled = false
		result.Failure = fmt.Errorf("%w: %w", ErrBusy, err)
	}

	s.logger.Debug("broadcast scan complete",
		"duration", d,
		"entries", result.Len(),
	)

	return result
}

// advertisementCollector deduplicates scan callbacks by address.
// Callbacks may arrive on a radio goroutine.
type advertisementCollector struct {
	mu    sync.Mutex
	order []string
	byKey map[string]*Advertisement
}

func newAdvertisementCollector() *advertisementCollector {
	return &advertisementCollector{byKey: make(map[string]*Advertisement)}
}

func (c *advertisementCollector) add(address string, payload []byte) {
	raw := serviceUUIDField(payload)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.byKey[address]; ok {
		if raw != "" {
			existing.Raw = raw
		}
		return
	}
	c.order = append(c.order, address)
	c.byKey[address] = &Advertisement{Address: address, Raw: raw}
}

func (c *advertisementCollector) entries() []Advertisement {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Advertisement, 0, len(c.order))
	for _, addr := range c.order {
		out = append(out, *c.byKey[addr])
	}
	return out
}

// serviceUUIDField returns the hex of the complete 128-bit service UUID
// list in an advertising payload, or "" if absent or malformed.
//
// Payload layout is a sequence of [length][type][data...] structures where
// length counts the type byte and the data.
func serviceUUIDField(payload []byte) string {
	for i := 0; i < len(payload); {
		length := int(payload[i])
		if length == 0 {
			return ""
		}
		end := i + 1 + length
		if end > len(payload) {
			return ""
		}
		if payload[i+1] == adTypeComplete128 {
			return hex.EncodeToString(payload[i+2 : end])
		}
		i = end
	}
	return ""
}
