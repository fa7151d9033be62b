// Package influxdb mirrors presence decisions into InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Each scan cycle the
// agent writes one "presence" point per watched device (confidence and the
// home flag), so dashboards can chart how confidence decays between
// detections. The agent never reads these points back.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WritePresence(influxdb.PresenceSample{Name: "phone", Confidence: 100, Home: true})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes; batch errors
// are delivered to the SetOnError callback.
package influxdb
