package device

import (
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
)

func testDevices() []WatchedDevice {
	return []WatchedDevice{
		{Name: "watch", Address: "aa:bb:cc:dd:ee:01", Transport: TransportBT},
		{Name: "tag", Identifier: "cdab3412", Transport: TransportBLE},
		{Name: "phone", Address: "AA:BB:CC:DD:EE:02", Transport: TransportBT},
		{Name: "band", Address: "aa:bb:cc:dd:ee:03", Transport: TransportBLE},
		{Name: "tablet", Address: "aa:bb:cc:dd:ee:04", Transport: TransportAuto},
	}
}

func TestNewRegistry_Order(t *testing.T) {
	r, err := NewRegistry(testDevices())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	want := []string{"band", "tag", "tablet", "phone", "watch"}
	got := r.Ordered()
	if len(got) != len(want) {
		t.Fatalf("Ordered() returned %d devices, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("Ordered()[%d] = %q, want %q", i, got[i].Name, name)
		}
	}

	// Deterministic across calls.
	again := r.Ordered()
	for i := range again {
		if again[i] != got[i] {
			t.Errorf("Ordered()[%d] changed between calls", i)
		}
	}
}

func TestNewRegistry_UpperCasesAddress(t *testing.T) {
	r, err := NewRegistry(testDevices())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	d, err := r.Get("watch")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if d.Address != "AA:BB:CC:DD:EE:01" {
		t.Errorf("Address = %q, want upper-cased", d.Address)
	}
}

func TestNewRegistry_Errors(t *testing.T) {
	tests := []struct {
		name    string
		devices []WatchedDevice
		wantErr error
	}{
		{
			name: "duplicate name",
			devices: []WatchedDevice{
				{Name: "phone", Address: "AA:BB:CC:DD:EE:01", Transport: TransportBT},
				{Name: "phone", Address: "AA:BB:CC:DD:EE:02", Transport: TransportBT},
			},
			wantErr: ErrDuplicateName,
		},
		{
			name:    "empty name",
			devices: []WatchedDevice{{Address: "AA:BB:CC:DD:EE:01", Transport: TransportBT}},
			wantErr: ErrInvalidName,
		},
		{
			name:    "unknown transport",
			devices: []WatchedDevice{{Name: "x", Address: "AA:BB:CC:DD:EE:01", Transport: "wifi"}},
			wantErr: ErrInvalidTransport,
		},
		{
			name:    "bt without address",
			devices: []WatchedDevice{{Name: "x", Transport: TransportBT}},
			wantErr: ErrInvalidAddress,
		},
		{
			name:    "identifier that can never match",
			devices: []WatchedDevice{{Name: "tag", Identifier: "abc", Transport: TransportBLE}},
			wantErr: ErrInvalidDevice,
		},
		{
			name:    "malformed address",
			devices: []WatchedDevice{{Name: "x", Address: "AA:BB:CC", Transport: TransportBT}},
			wantErr: ErrInvalidAddress,
		},
		{
			name:    "ble with nothing to match",
			devices: []WatchedDevice{{Name: "x", Transport: TransportBLE}},
			wantErr: ErrInvalidDevice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.devices)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewRegistry() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_HasTransport(t *testing.T) {
	r, err := NewRegistry([]WatchedDevice{
		{Name: "phone", Address: "AA:BB:CC:DD:EE:01", Transport: TransportBT},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	if r.HasTransport(TransportBLE) {
		t.Error("HasTransport(ble) = true for bt-only registry")
	}
	if !r.HasTransport(TransportBT) {
		t.Error("HasTransport(bt) = false")
	}
}

func TestRegistry_HasTransportFollowsPin(t *testing.T) {
	r, err := NewRegistry([]WatchedDevice{
		{Name: "tablet", Address: "AA:BB:CC:DD:EE:01", Transport: TransportAuto},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	r.Ordered()[0].Pin(TransportBT)

	if r.HasTransport(TransportAuto) {
		t.Error("HasTransport(auto) = true after pin")
	}
	if !r.HasTransport(TransportBT) {
		t.Error("HasTransport(bt) = false after pin")
	}
}

func TestRegistry_GetNotFound(t *testing.T) {
	r, err := NewRegistry(testDevices())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	if _, err := r.Get("missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Get() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_SnapshotIsCopy(t *testing.T) {
	r, err := NewRegistry(testDevices())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	snap := r.Snapshot()
	snap[0].Confidence = 77

	if r.Ordered()[0].Confidence != 0 {
		t.Error("mutating a snapshot changed the registry")
	}
	if r.Len() != len(snap) {
		t.Errorf("Len() = %d, want %d", r.Len(), len(snap))
	}
}

func TestFromConfig(t *testing.T) {
	r, err := FromConfig([]config.DeviceConfig{
		{Name: "phone", BTType: "BT", MAC: "aa:bb:cc:dd:ee:ff"},
		{Name: "tag", BTType: "ble", UUID: "cdab3412"},
	})
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}

	tag, err := r.Get("tag")
	if err != nil {
		t.Fatalf("Get(tag) error = %v", err)
	}
	if tag.Transport != TransportBLE || tag.Identifier != "cdab3412" {
		t.Errorf("tag = %+v", tag)
	}
	if tag.Confidence != 0 || tag.Seen() {
		t.Errorf("tag should start unseen at zero confidence, got %+v", tag)
	}

	phone, err := r.Get("phone")
	if err != nil {
		t.Fatalf("Get(phone) error = %v", err)
	}
	if phone.Transport != TransportBT || phone.Address != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("phone = %+v", phone)
	}
}

func TestFromConfig_UnknownTransport(t *testing.T) {
	_, err := FromConfig([]config.DeviceConfig{{Name: "x", BTType: "zigbee", MAC: "AA:BB:CC:DD:EE:FF"}})
	if !errors.Is(err, ErrInvalidTransport) {
		t.Errorf("FromConfig() error = %v, want ErrInvalidTransport", err)
	}
}
