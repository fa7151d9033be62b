package device

import "time"

// Transport selects which scan provider is authoritative for a device.
type Transport string

// Transport constants.
const (
	// TransportBLE is the broadcast scan: one scan per cycle discovers
	// every advertising device in range.
	TransportBLE Transport = "ble"

	// TransportBT is the directed query: one bounded lookup per device.
	TransportBT Transport = "bt"

	// TransportAuto is an unpinned device. It is checked against the
	// broadcast scan and then the directed query until one of them
	// detects it, after which it is pinned to that transport.
	TransportAuto Transport = "auto"
)

// AllTransports returns every valid transport in cycle order.
func AllTransports() []Transport {
	return []Transport{TransportBLE, TransportAuto, TransportBT}
}

// rank orders transports within a cycle. Broadcast devices come first so
// they share the single cached scan result.
func (t Transport) rank() int {
	switch t {
	case TransportBLE:
		return 0
	case TransportAuto:
		return 1
	default:
		return 2
	}
}

// Presence is the two-valued classification derived from confidence.
type Presence string

// Presence constants. The string values are the payloads published on
// the classification topic.
const (
	PresenceHome    Presence = "home"
	PresenceNotHome Presence = "not_home"
)

// Confidence bounds.
const (
	MaxConfidence = 100
	MinConfidence = 0

	// DefaultDecayStep is subtracted from confidence on each missed cycle.
	DefaultDecayStep = 5
)

// WatchedDevice is one configured device and its live presence state.
//
// Only the scan scheduler mutates Confidence, LastSeen and (for auto
// devices) Transport. Everything else is fixed when the registry is built.
type WatchedDevice struct {
	// Name is the unique registry key and the classification topic suffix.
	Name string `json:"name"`

	// Address is the upper-cased hardware address. May be empty for a
	// broadcast device matched only by Identifier.
	Address string `json:"address,omitempty"`

	// Identifier is an advertised service token, only usable with the
	// broadcast scan.
	Identifier string `json:"identifier,omitempty"`

	Transport Transport `json:"transport"`

	// Confidence is in [0,100]. 100 means detected this cycle.
	Confidence int `json:"confidence"`

	// LastSeen is the time of the last detection; zero if never seen.
	LastSeen time.Time `json:"last_seen"`
}

// MarkSeen records a positive match at the given time.
// Confidence resets to MaxConfidence, overriding any decay for this cycle.
func (d *WatchedDevice) MarkSeen(at time.Time) {
	d.Confidence = MaxConfidence
	d.LastSeen = at
}

// Decay lowers confidence by step, floored at MinConfidence.
// LastSeen is never cleared.
func (d *WatchedDevice) Decay(step int) {
	if step < 0 {
		step = 0
	}
	d.Confidence -= step
	if d.Confidence < MinConfidence {
		d.Confidence = MinConfidence
	}
}

// Pin fixes an auto device to the transport that detected it.
// Devices with a configured transport are left unchanged.
func (d *WatchedDevice) Pin(t Transport) {
	if d.Transport != TransportAuto || t == TransportAuto {
		return
	}
	d.Transport = t
}

// Seen reports whether the device has ever been detected.
func (d *WatchedDevice) Seen() bool {
	return !d.LastSeen.IsZero()
}

// Presence classifies the device's current confidence.
func (d *WatchedDevice) Presence() Presence {
	return Classify(d.Confidence)
}

// Classify maps a confidence value to home or not_home.
// Any confidence above zero is home.
func Classify(confidence int) Presence {
	if confidence > MinConfidence {
		return PresenceHome
	}
	return PresenceNotHome
}
