// Package mqtt provides the telemetry sink for the presence agent.
//
// This package manages:
//   - Connection to the broker with credentials and optional TLS
//   - Presence publishing (device record and home/away classification)
//   - Last Will and Testament (LWT) so consumers notice a dead agent
//   - Explicit, caller-driven reconnection
//
// # Reconnection
//
// The paho auto-reconnect loop is disabled. The scan scheduler checks
// IsConnected at every cycle boundary and calls Reconnect itself, so there
// is exactly one place that ever dials the broker again and a shutdown
// request is never stuck behind a background retry loop.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Room)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.Topics, cfg.Room)
//	client.Publish(topics.Presence("phone"), []byte("home"), 0, false)
package mqtt
