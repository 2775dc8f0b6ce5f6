package event

import (
	"time"
)

// Type identifies what happened in the ledger.
type Type string

// Ledger event types.
const (
	TypeDeviceRegistered    Type = "device_registered"
	TypeDeviceUpdated       Type = "device_updated"
	TypeDeviceStatusChanged Type = "device_status_changed"
	TypeDeviceHeartbeat     Type = "device_heartbeat"
	TypeDeviceRemoved       Type = "device_removed"
	TypeSessionStarted      Type = "session_started"
	TypeSessionEnded        Type = "session_ended"
	TypeSubscriptionCreated Type = "subscription_created"
	TypeSubscriptionExpired Type = "subscription_expired"
	TypeRewardCredited      Type = "reward_credited"
	TypeRewardSet           Type = "reward_set"
	TypeTreasuryFunded      Type = "treasury_funded"
	TypeWithdrawn           Type = "withdrawn"
)

// Entity types referenced by events.
const (
	EntityDevice       = "device"
	EntitySession      = "session"
	EntitySubscription = "subscription"
	EntityBalance      = "balance"
	EntityTreasury     = "treasury"
)

// Event is a single entry in the ledger event stream.
//
// Fields carries the key values that changed (fees, balances, plan names)
// so consumers don't need a follow-up read to interpret the event.
type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Caller     string         `json:"caller"`
	Fields     map[string]any `json:"fields,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// New builds an event for journalling. Services stamp CreatedAt from
// their own clock before insert; the journal assigns the ID and falls
// back to wall time for anything left unset.
func New(t Type, entityType, entityID, caller string, fields map[string]any) *Event {
	return &Event{
		Type:       t,
		EntityType: entityType,
		EntityID:   entityID,
		Caller:     caller,
		Fields:     fields,
	}
}

// Publisher delivers committed events to a downstream consumer.
//
// Publish is called after the owning transaction commits. Implementations
// must not block the caller for long; slow sinks should buffer internally.
// Errors are the implementation's to log - a failed publish never unwinds
// the committed state change.
type Publisher interface {
	Publish(ev *Event)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ev *Event)

// Publish calls f(ev).
func (f PublisherFunc) Publish(ev *Event) {
	f(ev)
}

// MultiPublisher fans an event out to several publishers in order.
type MultiPublisher []Publisher

// Publish delivers the event to each publisher.
func (m MultiPublisher) Publish(ev *Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(ev)
		}
	}
}
