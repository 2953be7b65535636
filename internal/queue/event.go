// Package queue defines message payloads exchanged over the message broker.
package queue

// RecordCreatedEvent is published after a row is committed on a primary.
// Consumers in any region can tell from it which instance accepted a write
// without querying MySQL.  PublishedAt is the publisher's clock at send
// time, not the row's created_at, which MySQL assigns.
type RecordCreatedEvent struct {
	ID          uint64 `json:"id"`
	Message     string `json:"message"`
	Region      string `json:"region"`
	PublishedAt string `json:"published_at"`
}
