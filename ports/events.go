package ports

import "context"

// Event kinds published by the auth service
const (
	EventSignup = "signup"
	EventLogin  = "login"
	EventLogout = "logout"
)

// AuthEvent describes a completed authentication step
type AuthEvent struct {
	Kind    string `json:"kind"`
	Address string `json:"address"`
	UserID  string `json:"user_id"`
	TokenID string `json:"token_id"`
}

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	Publish(ctx context.Context, event AuthEvent) error
}
