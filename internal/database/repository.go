package database

type ChatRepository interface {
	Ping() error
	GetAccountById(accountId int) (User, error)
	GetRoomByExternalId(externalId string) (Room, error)
	GetRoomWithMembers(roomId int) (*Room, error)
	IsRoomMember(accountId, roomId int) bool
	CreateRoom(params CreateRoomParams) (Room, error)
	AddRoomMember(roomId, accountId int) error
	GetConversationByExternalId(externalId string) (Conversation, error)
	CreateConversation(params CreateConversationParams) (Conversation, error)
	UpdateConversationStatus(conversationId int, status string) (Conversation, error)
	CreateMessage(params CreateMessageParams) (Message, error)
	GetMessage(messageId int64) (Message, error)
	SoftDeleteMessage(messageId int64) error
	GetMessages(scopeKind string, scopeId int, before int64, limit int) ([]Message, error)
}
