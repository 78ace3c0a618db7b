// Package notify fans committed access grants out to downstream sinks.
// Sinks run after the grant transaction, so their failures never undo a
// grant.
package notify
