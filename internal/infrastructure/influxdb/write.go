package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// presenceMeasurement is the measurement name for per-cycle presence samples.
const presenceMeasurement = "presence"

// PresenceSample is one device decision from a scan cycle.
type PresenceSample struct {
	Name       string
	Address    string
	Transport  string
	Room       string
	Confidence int
	Home       bool
	Timestamp  time.Time
}

// WritePresence writes a presence sample to InfluxDB.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Name, room and transport are tags (low cardinality); confidence and the
// home flag are fields so they can be graphed and aggregated.
//
// Example:
//
//	client.WritePresence(influxdb.PresenceSample{
//	    Name: "phone", Room: "bedroom", Transport: "bt",
//	    Confidence: 95, Home: true, Timestamp: time.Now(),
//	})
func (c *Client) WritePresence(sample PresenceSample) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(newPresencePoint(sample))
}

// newPresencePoint builds the line-protocol point for a sample.
func newPresencePoint(sample PresenceSample) *write.Point {
	ts := sample.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	tags := map[string]string{
		"device":    sample.Name,
		"room":      sample.Room,
		"transport": sample.Transport,
	}
	if sample.Address != "" {
		tags["address"] = sample.Address
	}

	return write.NewPoint(
		presenceMeasurement,
		tags,
		map[string]interface{}{
			"confidence": sample.Confidence,
			"home":       sample.Home,
		},
		ts,
	)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
