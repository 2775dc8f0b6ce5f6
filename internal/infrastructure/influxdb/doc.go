// Package influxdb provides InfluxDB connectivity for MeterLease Core.
//
// It wraps the official influxdb-client-go v2 library with MeterLease-specific
// patterns for connection management, metric writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Metered session usage and revenue
//   - Subscription purchases per plan
//   - Balance movements (credits, rewards, withdrawals)
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "meterlease",
//	    Bucket: "metering",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Record a settled session
//	client.WriteSessionMetric("meter-001", "0xuser", 5000, 42*time.Minute)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This reduces network overhead for high-frequency metering data.
package influxdb
