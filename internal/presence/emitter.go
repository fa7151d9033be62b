package presence

import (
	"encoding/json"

	"github.com/nerrad567/gray-logic-presence/internal/device"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/mqtt"
)

// Publisher is the publishing half of the telemetry sink.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MetricsRecorder mirrors emitted state to a metrics store.
type MetricsRecorder interface {
	RecordPresence(rec Record)
	RecordCycle(report CycleReport)
}

// Notifier hands a device's state to the outside world once per cycle.
type Notifier interface {
	Emit(d device.WatchedDevice) Record
}

// Emitter publishes each device decision to MQTT.
//
// For every device it publishes:
//   - the JSON Record on <owner_prefix>/<room>/<ADDRESS>
//   - "home" or "not_home" on <presence_prefix>/<name>
//
// Publish failures are logged and swallowed; reconnecting is the engine's
// job at the next cycle boundary.
type Emitter struct {
	publisher Publisher
	topics    mqtt.Topics
	qos       byte
	retain    bool

	metrics MetricsRecorder
	store   *Store
	logger  Logger
}

// NewEmitter creates an emitter publishing through publisher.
func NewEmitter(publisher Publisher, topics mqtt.Topics, qos byte, retain bool) *Emitter {
	return &Emitter{
		publisher: publisher,
		topics:    topics,
		qos:       qos,
		retain:    retain,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the emitter.
func (e *Emitter) SetLogger(logger Logger) {
	e.logger = logger
}

// SetMetrics mirrors every emitted record to m.
func (e *Emitter) SetMetrics(m MetricsRecorder) {
	e.metrics = m
}

// SetStore keeps the last emitted record per device in s.
func (e *Emitter) SetStore(s *Store) {
	e.store = s
}

// Emit publishes the device's current state and returns the emitted record.
func (e *Emitter) Emit(d device.WatchedDevice) Record {
	rec := NewRecord(d)

	payload, err := json.Marshal(rec)
	if err != nil {
		// Record holds only strings and ints.
		e.logger.Error("encoding presence record", "device", rec.Name, "error", err)
	} else {
		topic := e.ownerTopic(d)
		if err := e.publisher.Publish(topic, payload, e.qos, e.retain); err != nil {
			e.logger.Warn("publishing presence record failed",
				"device", rec.Name,
				"topic", topic,
				"error", err,
			)
		}
	}

	topic := e.topics.Presence(d.Name)
	if err := e.publisher.Publish(topic, []byte(rec.State), e.qos, e.retain); err != nil {
		e.logger.Warn("publishing presence state failed",
			"device", rec.Name,
			"topic", topic,
			"error", err,
		)
	}

	if e.store != nil {
		e.store.Put(rec)
	}
	if e.metrics != nil {
		e.metrics.RecordPresence(rec)
	}

	return rec
}

// ownerTopic keys the record by address. A broadcast device matched only
// by identifier has no address and is keyed by name instead.
func (e *Emitter) ownerTopic(d device.WatchedDevice) string {
	if d.Address != "" {
		return e.topics.Owner(d.Address)
	}
	return e.topics.Owner(d.Name)
}

