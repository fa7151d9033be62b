// Package presence implements the presence inference engine: the scan
// cycle scheduler, the per-device confidence updates and the emission of
// each decision to the telemetry sink.
//
// # Cycle
//
//	CYCLE_START
//	  │  sink disconnected? bounded reconnect loop, else retry after backoff
//	  ▼
//	BROADCAST_SCAN        once, only if a ble or auto device is watched
//	  ▼
//	PER_DEVICE_RESOLUTION registry order: ble, auto, bt
//	  │  ble  → address or identifier match against the cached scan
//	  │  bt   → directed query (optionally prefetched by a worker pool)
//	  │  auto → scan first, then query; pinned on first detection
//	  ▼
//	DECAY_AND_EMIT        match: confidence=100, lastSeen=now
//	  │                   miss:  confidence=max(0, confidence-step)
//	  │                   every device is emitted every cycle
//	  ▼
//	PACE_WAIT             max(0, interval - elapsed)
//
// # Shutdown
//
// Shutdown is cooperative. The engine checks the flag between devices and
// between cycles, and interrupts its own waits. A scan or query already
// running is allowed to finish.
//
// # Usage
//
//	shutdown := presence.NewShutdown()
//	shutdown.RequestOnDone(ctx)
//
//	emitter := presence.NewEmitter(mqttClient, mqtt.NewTopics(cfg.Topics, cfg.Room), qos, retain)
//	engine := presence.NewEngine(registry, bleScanner, querier, emitter, mqttClient,
//	    shutdown, presence.OptionsFromConfig(cfg))
//	engine.SetLogger(log)
//
//	return engine.Run(ctx)
package presence
