package device

import (
	"fmt"
	"sort"

	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
)

// Registry is the fixed set of watched devices.
//
// It is built once at startup and never resized. The scan scheduler is its
// only writer and mutates devices in place through the pointers returned by
// Ordered; nothing else reads the live state, so there is no locking.
// External readers get copies via Snapshot or Get.
type Registry struct {
	devices []*WatchedDevice
	byName  map[string]*WatchedDevice
}

// NewRegistry validates the devices and builds the registry.
//
// Addresses are upper-cased. Devices are held in cycle order: broadcast
// devices first, then auto devices, then directed-query devices, each group
// sorted by name. The order is fixed at construction.
func NewRegistry(devices []WatchedDevice) (*Registry, error) {
	r := &Registry{
		devices: make([]*WatchedDevice, 0, len(devices)),
		byName:  make(map[string]*WatchedDevice, len(devices)),
	}

	for i := range devices {
		d := devices[i]
		d.Address = NormalizeAddress(d.Address)

		if err := ValidateDevice(&d); err != nil {
			return nil, fmt.Errorf("device %d: %w", i, err)
		}
		if _, exists := r.byName[d.Name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, d.Name)
		}

		r.devices = append(r.devices, &d)
		r.byName[d.Name] = &d
	}

	sort.SliceStable(r.devices, func(i, j int) bool {
		a, b := r.devices[i], r.devices[j]
		if a.Transport.rank() != b.Transport.rank() {
			return a.Transport.rank() < b.Transport.rank()
		}
		return a.Name < b.Name
	})

	return r, nil
}

// FromConfig builds a registry from the devices section of the config.
// Every device starts at zero confidence and never seen.
func FromConfig(entries []config.DeviceConfig) (*Registry, error) {
	devices := make([]WatchedDevice, 0, len(entries))
	for i, e := range entries {
		transport, err := ParseTransport(e.BTType)
		if err != nil {
			return nil, fmt.Errorf("device %d (%s): %w", i, e.Name, err)
		}
		devices = append(devices, WatchedDevice{
			Name:       e.Name,
			Address:    e.MAC,
			Identifier: e.UUID,
			Transport:  transport,
		})
	}
	return NewRegistry(devices)
}

// Ordered returns the live devices in cycle order.
// Only the scan scheduler may mutate the returned devices.
func (r *Registry) Ordered() []*WatchedDevice {
	out := make([]*WatchedDevice, len(r.devices))
	copy(out, r.devices)
	return out
}

// HasTransport reports whether any device currently uses the transport.
func (r *Registry) HasTransport(t Transport) bool {
	for _, d := range r.devices {
		if d.Transport == t {
			return true
		}
	}
	return false
}

// Get returns a copy of the named device.
// Returns ErrDeviceNotFound if no device has that name.
func (r *Registry) Get(name string) (WatchedDevice, error) {
	d, ok := r.byName[name]
	if !ok {
		return WatchedDevice{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
	}
	return *d, nil
}

// Len returns the number of watched devices.
func (r *Registry) Len() int {
	return len(r.devices)
}

// Snapshot returns copies of all devices in cycle order.
func (r *Registry) Snapshot() []WatchedDevice {
	out := make([]WatchedDevice, len(r.devices))
	for i, d := range r.devices {
		out[i] = *d
	}
	return out
}
