// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns them into an audit trail.
package queue

// AuthEventsQueue is the durable queue auth events are published to.
const AuthEventsQueue = "auth.events"

// Auth event types.
const (
	EventUserRegistered = "user.registered"
	EventUserLoggedIn   = "user.logged_in"
	EventUserLoggedOut  = "user.logged_out"
)

// AuthEvent is published after a successful registration, login or logout.
// It carries enough information for downstream consumers to audit or
// notify without querying the credential store.  It never contains
// passwords, hashes or tokens.
type AuthEvent struct {
	Type       string `json:"type"`
	UserID     string `json:"user_id"`
	Username   string `json:"username,omitempty"`
	Email      string `json:"email,omitempty"`
	IP         string `json:"ip,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
