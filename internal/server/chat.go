package server

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pawhaven/pawchat/internal/database"
	"github.com/pawhaven/pawchat/internal/stats"
	"github.com/pawhaven/pawchat/internal/types"
)

var ErrInvalidMessage = errors.New("invalid message")

// CreateMessageParams is the single create-message input shared by the
// socket session and the REST fallback handlers.
type CreateMessageParams struct {
	Content     string `validate:"required,max=4096"`
	ContentType string `validate:"omitempty,max=64"`
	Attachment  *types.Attachment
}

// ChatService owns message creation and deletion. Both the socket path
// and the REST path call into it, so there is exactly one fan-out path:
// persist first, then broadcast. Persist+broadcast are serialized per
// scope so every recipient observes creation order.
type ChatService struct {
	log         *log.Logger
	db          database.ChatRepository
	broadcaster *Broadcaster
	validate    *validator.Validate
	stats       stats.StatsProvider

	lockMu     sync.Mutex
	scopeLocks map[string]*sync.Mutex
}

func NewChatService(logger *log.Logger, db database.ChatRepository, b *Broadcaster, su stats.StatsProvider) *ChatService {
	su.RegisterMetric("MessagesSent")
	su.RegisterMetric("MessagesDeleted")

	return &ChatService{
		log:         logger,
		db:          db,
		broadcaster: b,
		validate:    validator.New(),
		stats:       su,
		scopeLocks:  make(map[string]*sync.Mutex),
	}
}

func (s *ChatService) scopeLock(scopeKey string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	mu, ok := s.scopeLocks[scopeKey]
	if !ok {
		mu = &sync.Mutex{}
		s.scopeLocks[scopeKey] = mu
	}
	return mu
}

// CreateMessage validates and persists a message, then broadcasts
// message_created to every connection in the scope, including the
// sender's own. A persistence failure produces no broadcast.
func (s *ChatService) CreateMessage(scope Scope, sender types.User, params CreateMessageParams) (types.Message, error) {
	if err := s.validate.Struct(params); err != nil {
		return types.Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if params.Attachment != nil && params.Attachment.Url == "" {
		return types.Message{}, fmt.Errorf("%w: attachment without url", ErrInvalidMessage)
	}
	if params.ContentType == "" {
		params.ContentType = types.ContentTypeText
	}

	createParams := database.CreateMessageParams{
		ScopeKind:   string(scope.Kind),
		ScopeId:     scope.Id,
		SenderId:    sender.Id,
		Content:     params.Content,
		ContentType: params.ContentType,
	}
	if params.Attachment != nil {
		createParams.AttachmentUrl = params.Attachment.Url
		createParams.AttachmentType = params.Attachment.Type
		createParams.AttachmentName = params.Attachment.Name
		createParams.AttachmentSize = params.Attachment.Size
	}

	mu := s.scopeLock(scope.Key())
	mu.Lock()
	defer mu.Unlock()

	record, err := s.db.CreateMessage(createParams)
	if err != nil {
		return types.Message{}, fmt.Errorf("create message: %w", err)
	}

	msg := messageFromRecord(record, scope.ExternalId)
	s.stats.Incr("MessagesSent")
	s.broadcaster.Broadcast(scope.Key(), MessageCreated(&msg))

	return msg, nil
}

// DeleteMessage soft-deletes a message (admin only) and broadcasts
// message_deleted to the message's scope. The stored record is retained;
// clients replace the display with a removed placeholder.
func (s *ChatService) DeleteMessage(actor types.User, messageId int64) error {
	if !actor.IsAdmin {
		return fmt.Errorf("%w: only admins may delete messages", ErrForbidden)
	}

	record, err := s.db.GetMessage(messageId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: message %d", ErrNotFound, messageId)
		}
		return fmt.Errorf("get message: %w", err)
	}

	if err := s.db.SoftDeleteMessage(messageId); err != nil {
		return fmt.Errorf("soft delete message: %w", err)
	}

	s.stats.Incr("MessagesDeleted")
	scopeKey := fmt.Sprintf("%s:%d", record.ScopeKind, record.ScopeId)
	s.broadcaster.Broadcast(scopeKey, MessageDeleted(messageId))

	return nil
}

// ListMessages returns a history page for the scope in insertion order.
// Soft-deleted messages come back with hidden content and is_deleted set.
func (s *ChatService) ListMessages(scope Scope, before int64, limit int) ([]types.Message, error) {
	records, err := s.db.GetMessages(string(scope.Kind), scope.Id, before, limit)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}

	messages := make([]types.Message, 0, len(records))
	for _, record := range records {
		messages = append(messages, messageFromRecord(record, scope.ExternalId))
	}

	return messages, nil
}

func messageFromRecord(record database.Message, scopeExternalId string) types.Message {
	msg := types.Message{
		Id:          record.Id,
		Content:     record.Content,
		ContentType: record.ContentType,
		IsDeleted:   record.IsDeleted,
		CreatedAt:   record.CreatedAt,
	}

	switch record.ScopeKind {
	case string(ScopeConversation):
		msg.ConversationId = scopeExternalId
	default:
		msg.RoomId = scopeExternalId
	}

	if record.SenderId.Valid {
		msg.Sender = &types.User{
			Id:           int(record.SenderId.Int64),
			Username:     record.SenderUsername.String,
			EmailAddress: record.SenderEmail.String,
		}
	}

	if record.AttachmentUrl.Valid {
		msg.Attachment = &types.Attachment{
			Url:  record.AttachmentUrl.String,
			Type: record.AttachmentType.String,
			Name: record.AttachmentName.String,
			Size: record.AttachmentSize.Int64,
		}
	}

	return msg
}
