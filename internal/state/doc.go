// Package state holds the last known snapshot of every polled resource and
// turns consecutive snapshots into change events.
//
// A Snapshot is a resource reading flattened into entities keyed by a stable
// ID (device id, node MAC, or the resource name for single-object resources),
// each entity a map from slash-joined field path to scalar value:
//
//	network-devices
//	  d1  {"id": "d1", "alive-status": "online", "ipv4/address": "192.168.212.20"}
//
// Cache.Update diffs the new snapshot against the previous one and publishes
// an Event only when something changed: entities only in the new snapshot are
// added, entities only in the old one are removed, and every differing field
// of a shared entity is one FieldChange. Repeated identical polls therefore
// produce no events.
//
// Availability is reported separately: MarkUnavailable and MarkAvailable emit
// EventUnavailable and EventRecovered on transitions only.
//
// Store persists the latest snapshots as CBOR so that Preload can seed a
// restarted cache.
package state
