package mqtt

import "fmt"

// Topic prefixes for the MeterLease message bus.
//
// All topics use the flat scheme: meterlease/{category}/{...}
const (
	// TopicPrefix is the base for all MeterLease topics.
	TopicPrefix = "meterlease"

	// TopicPrefixCore is the base for all core ledger topics.
	TopicPrefixCore = "meterlease/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "meterlease/system"
)

// Topics provides builders for MeterLease MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	eventTopic := topics.CoreEvent("session_started")
//	// Returns: "meterlease/core/event/session_started"
type Topics struct{}

// =============================================================================
// Core Topics
// =============================================================================

// CoreEvent returns the topic for ledger events of a given type.
//
// Example: meterlease/core/event/session_started
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// CoreDeviceEvent returns the per-device event topic.
// Subscribers interested in a single device listen here instead of
// filtering the full event stream.
//
// Example: meterlease/core/device/meter-001/event/session_started
func (Topics) CoreDeviceEvent(deviceID, eventType string) string {
	return fmt.Sprintf("%s/device/%s/event/%s", TopicPrefixCore, deviceID, eventType)
}

// CoreDeviceHeartbeat returns the topic for device liveness updates.
//
// Example: meterlease/core/device/meter-001/heartbeat
func (Topics) CoreDeviceHeartbeat(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/heartbeat", TopicPrefixCore, deviceID)
}

// CoreBalance returns the topic for balance change notifications.
//
// Example: meterlease/core/balance/0xowner
func (Topics) CoreBalance(owner string) string {
	return fmt.Sprintf("%s/balance/%s", TopicPrefixCore, owner)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic.
//
// Example: meterlease/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// SystemTime returns the time sync topic.
//
// Example: meterlease/system/time
func (Topics) SystemTime() string {
	return fmt.Sprintf("%s/time", TopicPrefixSystem)
}

// SystemShutdown returns the shutdown signal topic.
//
// Example: meterlease/system/shutdown
func (Topics) SystemShutdown() string {
	return fmt.Sprintf("%s/shutdown", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllCoreEvents returns a pattern matching all ledger events.
//
// Pattern: meterlease/core/event/+
func (Topics) AllCoreEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefixCore)
}

// AllDeviceEvents returns a pattern matching every per-device event.
//
// Pattern: meterlease/core/device/+/event/+
func (Topics) AllDeviceEvents() string {
	return fmt.Sprintf("%s/device/+/event/+", TopicPrefixCore)
}

// AllDeviceHeartbeats returns a pattern matching all heartbeat topics.
//
// Pattern: meterlease/core/device/+/heartbeat
func (Topics) AllDeviceHeartbeats() string {
	return fmt.Sprintf("%s/device/+/heartbeat", TopicPrefixCore)
}

// AllBalances returns a pattern matching all balance notifications.
//
// Pattern: meterlease/core/balance/+
func (Topics) AllBalances() string {
	return fmt.Sprintf("%s/balance/+", TopicPrefixCore)
}

// AllTopics returns a pattern matching all MeterLease topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: meterlease/#
func (Topics) AllTopics() string {
	return "meterlease/#"
}
