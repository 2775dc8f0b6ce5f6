// Package event defines the structured ledger event stream.
//
// Every state change in the ledger produces an event describing what
// happened, to which entity, and on whose behalf. Events are appended to
// the journal inside the same transaction as the state change, then fanned
// out to publishers (MQTT, WebSocket, metering) after the transaction
// commits. Delivery to publishers is at-least-once; the journal is the
// authoritative record.
package event
