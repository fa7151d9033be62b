// Package device provides the watched-device registry for the presence agent.
//
// The registry is the fixed catalogue of devices the agent looks for, and
// holds each device's live presence state: confidence, last-seen time and
// the transport that is authoritative for it.
//
// # Key Types
//
//   - WatchedDevice: one configured device and its confidence state
//   - Transport: ble (broadcast scan), bt (directed query) or auto
//   - Presence: home / not_home, derived from confidence by Classify
//   - Registry: ordered, validated device set built once at startup
//
// # Confidence
//
// A detection sets confidence to 100 and records LastSeen. A missed cycle
// lowers it by the decay step, never below 0. A device is home while its
// confidence is above 0, so with a step of 5 it takes 20 consecutive
// missed cycles to flip to not_home.
//
// # Usage
//
//	registry, err := device.FromConfig(cfg.Devices)
//	if err != nil {
//	    return err
//	}
//
//	for _, d := range registry.Ordered() {
//	    if found {
//	        d.MarkSeen(time.Now())
//	    } else {
//	        d.Decay(device.DefaultDecayStep)
//	    }
//	}
//
// # Thread Safety
//
// The registry has a single writer, the scan scheduler. Snapshot and Get
// return copies and are meant to be called from that same goroutine.
package device
