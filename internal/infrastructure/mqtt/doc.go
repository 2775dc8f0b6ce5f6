// Package mqtt provides MQTT client connectivity for MeterLease Core.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// MeterLease uses MQTT to fan out ledger events (device registrations,
// session starts and settlements, subscription purchases, withdrawals)
// to off-platform collaborators: the web UI backend, the profile mirror,
// and reporting consumers. The broker decouples the ledger core from
// the consumers.
//
//	MeterLease Core → MQTT Broker → UI / mirror / reporting
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all ledger events
//	err = client.Subscribe(mqtt.Topics{}.AllCoreEvents(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish an event
//	topic := mqtt.Topics{}.CoreEvent("session_started")
//	client.Publish(topic, payload, 1, false)
package mqtt
