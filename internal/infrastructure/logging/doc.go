// Package logging provides structured logging for the presence agent.
//
// It wraps log/slog with JSON output for production, text output for
// development, level filtering and default fields (service, version)
// on every entry.
//
// Logging is configured via the logging section of presence.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
