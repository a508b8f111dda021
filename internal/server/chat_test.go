package server

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/pawhaven/pawchat/internal/database"
	"github.com/pawhaven/pawchat/internal/stats"
	"github.com/pawhaven/pawchat/internal/testutil"
	"github.com/pawhaven/pawchat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestChatService(t *testing.T, db database.ChatRepository, r *Registry, su *stats.MockStatsUpdater) *ChatService {
	su.On("RegisterMetric", mock.Anything).Times(4)
	b := NewBroadcaster(testutil.TestLogger(t), r, su)
	return NewChatService(testutil.TestLogger(t), db, b, su)
}

func roomScope() Scope {
	return Scope{Kind: ScopeRoom, ExternalId: "EoGKUXPHgz", Id: 1}
}

func TestChatService_CreateMessage(t *testing.T) {
	sender := types.User{Id: 7, Username: "finder"}

	t.Run("persists then broadcasts to all connections", func(t *testing.T) {
		db := &database.MockChatRepository{}
		defer db.AssertExpectations(t)

		su := &stats.MockStatsUpdater{}
		su.On("Incr", "MessagesSent").Once()
		su.On("Incr", "BroadcastsDelivered").Times(2)
		defer su.AssertExpectations(t)

		r := NewRegistry(testutil.TestLogger(t))
		cs := newTestChatService(t, db, r, su)

		// the sender's own connection is a broadcast target too
		senderConn := newTestClient(sender.Id)
		peerConn := newTestClient(8)
		r.Register(roomScope().Key(), senderConn)
		r.Register(roomScope().Key(), peerConn)

		now := time.Now().UTC().Round(time.Millisecond)
		db.On("CreateMessage", database.CreateMessageParams{
			ScopeKind:   "room",
			ScopeId:     1,
			SenderId:    sender.Id,
			Content:     "hello",
			ContentType: "text",
		}).Return(database.Message{
			Id:             101,
			ScopeKind:      "room",
			ScopeId:        1,
			SenderId:       sql.NullInt64{Int64: 7, Valid: true},
			SenderUsername: sql.NullString{String: "finder", Valid: true},
			Content:        "hello",
			ContentType:    "text",
			CreatedAt:      now,
		}, nil).Once()

		msg, err := cs.CreateMessage(roomScope(), sender, CreateMessageParams{Content: "hello"})
		assert.NoError(t, err, "expected message to be created")
		assert.Equal(t, int64(101), msg.Id)
		assert.Equal(t, "EoGKUXPHgz", msg.RoomId, "expected room external id on the wire message")
		assert.Equal(t, "hello", msg.Content)
		assert.False(t, msg.IsDeleted)
		assert.NotNil(t, msg.Sender, "expected sender display info")
		assert.Equal(t, "finder", msg.Sender.Username)

		for _, c := range []*Client{senderConn, peerConn} {
			select {
			case event := <-c.send:
				assert.Equal(t, EventMessageCreated, event.Event)
				assert.Equal(t, msg.Id, event.Message.Id)
				assert.Equal(t, "hello", event.Message.Content)
			default:
				t.Errorf("expected connection %s to receive message_created", c.id)
			}
		}
	})

	t.Run("empty content is rejected before persistence", func(t *testing.T) {
		db := &database.MockChatRepository{}
		defer db.AssertExpectations(t)

		su := &stats.MockStatsUpdater{}
		r := NewRegistry(testutil.TestLogger(t))
		cs := newTestChatService(t, db, r, su)

		_, err := cs.CreateMessage(roomScope(), sender, CreateMessageParams{Content: ""})
		assert.ErrorIs(t, err, ErrInvalidMessage, "expected invalid message error")
		db.AssertNotCalled(t, "CreateMessage", mock.Anything)
	})

	t.Run("attachment without url is rejected", func(t *testing.T) {
		db := &database.MockChatRepository{}
		su := &stats.MockStatsUpdater{}
		cs := newTestChatService(t, db, NewRegistry(testutil.TestLogger(t)), su)

		_, err := cs.CreateMessage(roomScope(), sender, CreateMessageParams{
			Content:    "see photo",
			Attachment: &types.Attachment{Name: "photo.jpg"},
		})
		assert.ErrorIs(t, err, ErrInvalidMessage)
	})

	t.Run("persistence failure produces no broadcast", func(t *testing.T) {
		db := &database.MockChatRepository{}
		defer db.AssertExpectations(t)

		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)

		r := NewRegistry(testutil.TestLogger(t))
		cs := newTestChatService(t, db, r, su)

		peerConn := newTestClient(8)
		r.Register(roomScope().Key(), peerConn)

		db.On("CreateMessage", mock.Anything).Return(database.Message{}, errors.New("db down")).Once()

		_, err := cs.CreateMessage(roomScope(), sender, CreateMessageParams{Content: "hello"})
		assert.Error(t, err, "expected persistence error to surface")

		select {
		case <-peerConn.send:
			t.Error("expected no broadcast after a failed persist")
		default:
		}
	})

	t.Run("defaults content type to text", func(t *testing.T) {
		db := &database.MockChatRepository{}
		defer db.AssertExpectations(t)

		su := &stats.MockStatsUpdater{}
		su.On("Incr", "MessagesSent").Once()

		cs := newTestChatService(t, db, NewRegistry(testutil.TestLogger(t)), su)

		db.On("CreateMessage", mock.MatchedBy(func(p database.CreateMessageParams) bool {
			return p.ContentType == "text"
		})).Return(database.Message{Id: 1, ScopeKind: "room", ScopeId: 1, Content: "hi", ContentType: "text"}, nil).Once()

		_, err := cs.CreateMessage(roomScope(), sender, CreateMessageParams{Content: "hi"})
		assert.NoError(t, err)
	})

	t.Run("attachment descriptor is persisted", func(t *testing.T) {
		db := &database.MockChatRepository{}
		defer db.AssertExpectations(t)

		su := &stats.MockStatsUpdater{}
		su.On("Incr", "MessagesSent").Once()

		cs := newTestChatService(t, db, NewRegistry(testutil.TestLogger(t)), su)

		db.On("CreateMessage", mock.MatchedBy(func(p database.CreateMessageParams) bool {
			return p.AttachmentUrl == "https://cdn.example/photo.jpg" &&
				p.AttachmentName == "photo.jpg" &&
				p.AttachmentSize == 2048
		})).Return(database.Message{
			Id:             2,
			ScopeKind:      "room",
			ScopeId:        1,
			Content:        "see photo",
			ContentType:    "text",
			AttachmentUrl:  sql.NullString{String: "https://cdn.example/photo.jpg", Valid: true},
			AttachmentName: sql.NullString{String: "photo.jpg", Valid: true},
			AttachmentSize: sql.NullInt64{Int64: 2048, Valid: true},
		}, nil).Once()

		msg, err := cs.CreateMessage(roomScope(), sender, CreateMessageParams{
			Content: "see photo",
			Attachment: &types.Attachment{
				Url:  "https://cdn.example/photo.jpg",
				Name: "photo.jpg",
				Size: 2048,
			},
		})
		assert.NoError(t, err)
		assert.NotNil(t, msg.Attachment, "expected attachment on the wire message")
		assert.Equal(t, "https://cdn.example/photo.jpg", msg.Attachment.Url)
	})
}

func TestChatService_DeleteMessage(t *testing.T) {
	admin := types.User{Id: 1, Username: "admin", IsAdmin: true}

	t.Run("soft deletes and broadcasts message_deleted", func(t *testing.T) {
		db := &database.MockChatRepository{}
		defer db.AssertExpectations(t)

		su := &stats.MockStatsUpdater{}
		su.On("Incr", "MessagesDeleted").Once()
		su.On("Incr", "BroadcastsDelivered").Once()
		defer su.AssertExpectations(t)

		r := NewRegistry(testutil.TestLogger(t))
		cs := newTestChatService(t, db, r, su)

		conn := newTestClient(8)
		r.Register("room:1", conn)

		db.On("GetMessage", int64(101)).Return(database.Message{Id: 101, ScopeKind: "room", ScopeId: 1}, nil).Once()
		db.On("SoftDeleteMessage", int64(101)).Return(nil).Once()

		err := cs.DeleteMessage(admin, 101)
		assert.NoError(t, err)

		select {
		case event := <-conn.send:
			assert.Equal(t, EventMessageDeleted, event.Event)
			assert.Equal(t, int64(101), event.MessageId)
		default:
			t.Error("expected message_deleted broadcast")
		}
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		db := &database.MockChatRepository{}
		su := &stats.MockStatsUpdater{}
		cs := newTestChatService(t, db, NewRegistry(testutil.TestLogger(t)), su)

		err := cs.DeleteMessage(types.User{Id: 2}, 101)
		assert.ErrorIs(t, err, ErrForbidden)
		db.AssertNotCalled(t, "SoftDeleteMessage", mock.Anything)
	})

	t.Run("unknown message", func(t *testing.T) {
		db := &database.MockChatRepository{}
		defer db.AssertExpectations(t)

		su := &stats.MockStatsUpdater{}
		cs := newTestChatService(t, db, NewRegistry(testutil.TestLogger(t)), su)

		db.On("GetMessage", int64(404)).Return(database.Message{}, sql.ErrNoRows).Once()

		err := cs.DeleteMessage(admin, 404)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestChatService_ListMessages(t *testing.T) {
	db := &database.MockChatRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	cs := newTestChatService(t, db, NewRegistry(testutil.TestLogger(t)), su)

	db.On("GetMessages", "room", 1, int64(0), 50).Return([]database.Message{
		{Id: 1, ScopeKind: "room", ScopeId: 1, Content: "first", ContentType: "text"},
		{Id: 2, ScopeKind: "room", ScopeId: 1, Content: "", ContentType: "text", IsDeleted: true},
		{Id: 3, ScopeKind: "room", ScopeId: 1, Content: "third", ContentType: "text"},
	}, nil).Once()

	messages, err := cs.ListMessages(roomScope(), 0, 50)
	assert.NoError(t, err)
	assert.Len(t, messages, 3, "expected soft-deleted message to remain in history")

	assert.Equal(t, int64(1), messages[0].Id)
	assert.Equal(t, int64(2), messages[1].Id)
	assert.True(t, messages[1].IsDeleted, "expected is_deleted flag on the soft-deleted message")
	assert.Empty(t, messages[1].Content, "expected soft-deleted content to be hidden")
	assert.Equal(t, int64(3), messages[2].Id)
}
