package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSessionMetric records a settled metered session.
//
// This is the primary method for recording usage revenue.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Unique identifier for the device (e.g., "meter-berlin-001")
//   - user: Account that leased the device
//   - fee: Settled session fee in the smallest currency unit
//   - duration: Wall-clock session duration
//
// Example:
//
//	client.WriteSessionMetric("meter-berlin-001", "0xuser", 5000, 42*time.Minute)
func (c *Client) WriteSessionMetric(deviceID, user string, fee int64, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sessions",
		map[string]string{
			"device_id": deviceID,
			"user":      user,
		},
		map[string]interface{}{
			"fee":              fee,
			"duration_seconds": duration.Seconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSubscriptionMetric records a subscription purchase.
//
// Parameters:
//   - deviceID: Device identifier
//   - user: Subscribing account
//   - plan: Duration class ("day", "week", "month")
//   - fee: Total up-front fee in the smallest currency unit
func (c *Client) WriteSubscriptionMetric(deviceID, user, plan string, fee int64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"subscriptions",
		map[string]string{
			"device_id": deviceID,
			"user":      user,
			"plan":      plan,
		},
		map[string]interface{}{
			"fee": fee,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteBalanceMetric records a balance movement for an owner account.
//
// Used for tracking earnings and withdrawals over time.
//
// Parameters:
//   - owner: Account whose balance changed
//   - kind: Movement kind (e.g., "credit", "withdrawal", "reward")
//   - amount: Movement amount in the smallest currency unit
func (c *Client) WriteBalanceMetric(owner, kind string, amount int64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"balances",
		map[string]string{
			"owner": owner,
			"kind":  kind,
		},
		map[string]interface{}{
			"amount": amount,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
