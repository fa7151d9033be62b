package presence

import (
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/device"
)

// LastSeenLayout formats Record.LastSeen in local time.
const LastSeenLayout = "2006-01-02 15:04:05"

// Record is the per-device payload published on the owner topic every cycle.
// It is a copy: changing it never affects the registry.
type Record struct {
	Name       string `json:"name"`
	MAC        string `json:"mac"`
	UUID       string `json:"uuid"`
	BTType     string `json:"bt_type"`
	Confidence int    `json:"confidence"`

	// LastSeen is empty until the device is first detected.
	LastSeen string `json:"lastseen"`

	State device.Presence `json:"state"`
}

// NewRecord builds the outbound record for a device.
func NewRecord(d device.WatchedDevice) Record {
	return Record{
		Name:       d.Name,
		MAC:        d.Address,
		UUID:       d.Identifier,
		BTType:     string(d.Transport),
		Confidence: d.Confidence,
		LastSeen:   FormatLastSeen(d.LastSeen),
		State:      d.Presence(),
	}
}

// FormatLastSeen renders a detection time, or "" for the zero time.
func FormatLastSeen(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(LastSeenLayout)
}

// Home reports whether the record classifies the device as home.
func (r Record) Home() bool {
	return r.State == device.PresenceHome
}
