// Package api implements the read-only HTTP status API of the presence agent.
//
// Endpoints (all GET):
//   - /api/v1/health          liveness plus sink connection state
//   - /api/v1/metrics         runtime, sink and scan loop metrics
//   - /api/v1/devices         last emitted record of every device (?state=home|not_home)
//   - /api/v1/devices/{name}  last emitted record of one device
//
// The API reads only copies kept by presence.Store, so it never contends
// with the scan loop for the live registry. It is disabled by default and
// binds to loopback unless configured otherwise.
package api
