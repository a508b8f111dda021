package server

import (
	"testing"
	"time"

	"github.com/pawhaven/pawchat/internal/types"
	"github.com/stretchr/testify/assert"
)

func Test_serializeEvent(t *testing.T) {
	event := MessageCreated(&types.Message{
		Id:          1,
		RoomId:      "EoGKUXPHgz",
		Sender:      &types.User{Id: 7, Username: "finder"},
		Content:     "hello",
		ContentType: "text",
		CreatedAt:   Now(),
	})

	bytes, err := serializeEvent(event)
	assert.NoError(t, err, "expected no error during serialization")

	got := string(bytes)
	assert.Contains(t, got, `"event":"message_created"`)
	assert.Contains(t, got, `"room_id":"EoGKUXPHgz"`)
	assert.Contains(t, got, `"content":"hello"`)
	assert.Contains(t, got, `"is_deleted":false`)
	assert.Contains(t, got, `"username":"finder"`)
}

func Test_serializeEvent_SystemMessage(t *testing.T) {
	event := MessageCreated(&types.Message{
		Id:          2,
		RoomId:      "EoGKUXPHgz",
		Content:     "conversation accepted",
		ContentType: "text",
		CreatedAt:   Now(),
	})

	bytes, err := serializeEvent(event)
	assert.NoError(t, err)
	assert.Contains(t, string(bytes), `"sender":null`, "expected system messages to carry a null sender")
}

func TestMessageDeleted(t *testing.T) {
	event := MessageDeleted(42)
	assert.Equal(t, EventMessageDeleted, event.Event)
	assert.Equal(t, int64(42), event.MessageId)
	assert.False(t, event.Timestamp.IsZero(), "expected event timestamp to be set")

	bytes, err := serializeEvent(event)
	assert.NoError(t, err)
	assert.Contains(t, string(bytes), `"message_id":42`)
}

func TestErrMessageNotSent(t *testing.T) {
	event := ErrMessageNotSent()
	assert.Equal(t, EventError, event.Event)
	assert.Equal(t, "message not sent", event.Error.Message)

	bytes, err := serializeEvent(event)
	assert.NoError(t, err)
	assert.Contains(t, string(bytes), `"event":"error"`)
	assert.Contains(t, string(bytes), `"code":500`)
}

func TestNow(t *testing.T) {
	now := Now()
	assert.Equal(t, now, now.Round(time.Millisecond), "expected Now to round to milliseconds")
	assert.Equal(t, time.UTC, now.Location(), "expected Now to be UTC")
}
