// Package scan provides the two proximity-sensing transports used by the
// presence agent and the matching rules applied to their results.
//
// # Transports
//
//   - BLEScanner: broadcast scan on the default Bluetooth adapter
//     (tinygo.org/x/bluetooth). One scan per cycle discovers every
//     advertising device in range.
//   - ClassicQuerier: directed name lookup with hcitool, one address per
//     call, bounded by a timeout.
//
// Neither transport returns errors to its caller. A broadcast scan that
// failed yields an empty or partial BroadcastResult with Failure set; a
// directed query yields an Outcome whose Status separates a clean negative
// (StatusNotFound) from a query that could not run (StatusFailed). For
// presence purposes both count as "not found".
//
// # Matching
//
//	result := scanner.Scan(ctx, 10*time.Second)
//	scan.MatchAddress(result, "AA:BB:CC:DD:EE:FF")   // case-insensitive
//	scan.MatchIdentifier(result, "cdab3412")         // byte-reversed raw payload
//
// Advertised service UUIDs are transmitted little-endian, so the raw hex is
// reversed in byte pairs before it is compared with the configured token.
package scan
