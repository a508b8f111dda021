package database

import (
	"database/sql"
	"time"
)

const (
	ScopeRoom         = "room"
	ScopeConversation = "conversation"
)

type User struct {
	Id           int
	Username     string
	EmailAddress string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Room struct {
	Id         int
	ExternalId string
	Title      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Members    []User
}

type Conversation struct {
	Id          int
	ExternalId  string
	RequesterId int
	PetRef      sql.NullString
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Message is a stored chat message. Sender columns are null for system
// messages; attachment columns are null when the message has none.
type Message struct {
	Id             int64
	ScopeKind      string
	ScopeId        int
	SenderId       sql.NullInt64
	SenderUsername sql.NullString
	SenderEmail    sql.NullString
	Content        string
	ContentType    string
	AttachmentUrl  sql.NullString
	AttachmentType sql.NullString
	AttachmentName sql.NullString
	AttachmentSize sql.NullInt64
	IsDeleted      bool
	CreatedAt      time.Time
}

type CreateRoomParams struct {
	ExternalId string
	Title      string
	MemberIds  []int
}

type CreateConversationParams struct {
	ExternalId  string
	RequesterId int
	PetRef      string
}

type CreateMessageParams struct {
	ScopeKind      string
	ScopeId        int
	SenderId       int
	Content        string
	ContentType    string
	AttachmentUrl  string
	AttachmentType string
	AttachmentName string
	AttachmentSize int64
}
