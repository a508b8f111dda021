package server

import "fmt"

type ScopeKind string

const (
	ScopeRoom         ScopeKind = "room"
	ScopeConversation ScopeKind = "conversation"
)

// Scope identifies the chat scope a connection is attached to: a room or
// a conversation. Id is the store's internal id, ExternalId the public
// one carried on the wire.
type Scope struct {
	Kind       ScopeKind
	ExternalId string
	Id         int
}

// Key is the registry routing key for the scope.
func (s Scope) Key() string {
	return fmt.Sprintf("%s:%d", s.Kind, s.Id)
}
