package database

import (
	"database/sql"
	"fmt"
	"time"
)

const defaultMessageLimit = 50

// messageColumns hides the content of soft-deleted messages at read time
// while keeping the row itself.
const messageColumns = "m.id, m.scope_kind, m.scope_id, m.sender_id, a.username, a.email, " +
	"CASE WHEN m.is_deleted THEN '' ELSE m.content END, m.content_type, " +
	"CASE WHEN m.is_deleted THEN NULL ELSE m.attachment_url END, m.attachment_type, m.attachment_name, m.attachment_size, " +
	"m.is_deleted, m.created_at"

func (db *PgChatRepository) GetAccountById(accountId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, is_admin, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.IsAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgChatRepository) GetRoomByExternalId(externalId string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, title, created_at, updated_at FROM rooms "+
			"WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Title,
		&room.CreatedAt,
		&room.UpdatedAt,
	)

	return room, err
}

func (db *PgChatRepository) GetRoomWithMembers(roomId int) (*Room, error) {
	var room Room
	row := db.conn.QueryRow(
		"SELECT id, external_id, title, created_at, updated_at FROM rooms "+
			"WHERE id = $1 LIMIT 1",
		roomId,
	)
	if err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Title,
		&room.CreatedAt,
		&room.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(
		"SELECT a.id, a.username, a.email, a.is_admin FROM accounts a "+
			"JOIN room_members rm ON rm.account_id = a.id "+
			"WHERE rm.room_id = $1 ORDER BY a.id",
		roomId,
	)
	if err != nil {
		return nil, fmt.Errorf("query room members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Id, &u.Username, &u.EmailAddress, &u.IsAdmin); err != nil {
			return nil, fmt.Errorf("scan room member: %w", err)
		}
		room.Members = append(room.Members, u)
	}

	return &room, rows.Err()
}

func (db *PgChatRepository) IsRoomMember(accountId, roomId int) bool {
	var exists bool
	err := db.conn.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM room_members WHERE account_id = $1 AND room_id = $2)",
		accountId,
		roomId,
	).Scan(&exists)

	return err == nil && exists
}

func (db *PgChatRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Room{}, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var room Room
	if err := tx.QueryRow(
		"INSERT INTO rooms (external_id, title, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $3) RETURNING id, external_id, title, created_at, updated_at",
		params.ExternalId,
		params.Title,
		now,
	).Scan(
		&room.Id,
		&room.ExternalId,
		&room.Title,
		&room.CreatedAt,
		&room.UpdatedAt,
	); err != nil {
		return Room{}, err
	}

	for _, accountId := range params.MemberIds {
		if _, err := tx.Exec(
			"INSERT INTO room_members (room_id, account_id, created_at) VALUES ($1, $2, $3) "+
				"ON CONFLICT (room_id, account_id) DO NOTHING",
			room.Id,
			accountId,
			now,
		); err != nil {
			return Room{}, fmt.Errorf("add member %d: %w", accountId, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Room{}, err
	}

	return room, nil
}

func (db *PgChatRepository) AddRoomMember(roomId, accountId int) error {
	_, err := db.conn.Exec(
		"INSERT INTO room_members (room_id, account_id, created_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (room_id, account_id) DO NOTHING",
		roomId,
		accountId,
		time.Now().UTC(),
	)

	return err
}

func (db *PgChatRepository) GetConversationByExternalId(externalId string) (Conversation, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, requester_id, pet_ref, status, created_at, updated_at "+
			"FROM conversations WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var conv Conversation
	err := row.Scan(
		&conv.Id,
		&conv.ExternalId,
		&conv.RequesterId,
		&conv.PetRef,
		&conv.Status,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)

	return conv, err
}

func (db *PgChatRepository) CreateConversation(params CreateConversationParams) (Conversation, error) {
	var petRef sql.NullString
	if params.PetRef != "" {
		petRef = sql.NullString{String: params.PetRef, Valid: true}
	}

	row := db.conn.QueryRow(
		"INSERT INTO conversations (external_id, requester_id, pet_ref, status, created_at, updated_at) "+
			"VALUES ($1, $2, $3, 'pending', $4, $4) "+
			"RETURNING id, external_id, requester_id, pet_ref, status, created_at, updated_at",
		params.ExternalId,
		params.RequesterId,
		petRef,
		time.Now().UTC(),
	)

	var conv Conversation
	err := row.Scan(
		&conv.Id,
		&conv.ExternalId,
		&conv.RequesterId,
		&conv.PetRef,
		&conv.Status,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)

	return conv, err
}

func (db *PgChatRepository) UpdateConversationStatus(conversationId int, status string) (Conversation, error) {
	row := db.conn.QueryRow(
		"UPDATE conversations SET status = $2, updated_at = $3 WHERE id = $1 "+
			"RETURNING id, external_id, requester_id, pet_ref, status, created_at, updated_at",
		conversationId,
		status,
		time.Now().UTC(),
	)

	var conv Conversation
	err := row.Scan(
		&conv.Id,
		&conv.ExternalId,
		&conv.RequesterId,
		&conv.PetRef,
		&conv.Status,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)

	return conv, err
}

func (db *PgChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	var senderId sql.NullInt64
	if params.SenderId != 0 {
		senderId = sql.NullInt64{Int64: int64(params.SenderId), Valid: true}
	}

	var attUrl, attType, attName sql.NullString
	var attSize sql.NullInt64
	if params.AttachmentUrl != "" {
		attUrl = sql.NullString{String: params.AttachmentUrl, Valid: true}
		if params.AttachmentType != "" {
			attType = sql.NullString{String: params.AttachmentType, Valid: true}
		}
		if params.AttachmentName != "" {
			attName = sql.NullString{String: params.AttachmentName, Valid: true}
		}
		if params.AttachmentSize > 0 {
			attSize = sql.NullInt64{Int64: params.AttachmentSize, Valid: true}
		}
	}

	var messageId int64
	if err := db.conn.QueryRow(
		"INSERT INTO messages (scope_kind, scope_id, sender_id, content, content_type, "+
			"attachment_url, attachment_type, attachment_name, attachment_size, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id",
		params.ScopeKind,
		params.ScopeId,
		senderId,
		params.Content,
		params.ContentType,
		attUrl,
		attType,
		attName,
		attSize,
		time.Now().UTC(),
	).Scan(&messageId); err != nil {
		return Message{}, err
	}

	return db.GetMessage(messageId)
}

func (db *PgChatRepository) GetMessage(messageId int64) (Message, error) {
	row := db.conn.QueryRow(
		"SELECT "+messageColumns+" FROM messages m "+
			"LEFT JOIN accounts a ON a.id = m.sender_id "+
			"WHERE m.id = $1 LIMIT 1",
		messageId,
	)

	return scanMessage(row)
}

func (db *PgChatRepository) SoftDeleteMessage(messageId int64) error {
	res, err := db.conn.Exec(
		"UPDATE messages SET is_deleted = TRUE WHERE id = $1",
		messageId,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (db *PgChatRepository) GetMessages(scopeKind string, scopeId int, before int64, limit int) ([]Message, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultMessageLimit
	}

	query := "SELECT " + messageColumns + " FROM messages m " +
		"LEFT JOIN accounts a ON a.id = m.sender_id " +
		"WHERE m.scope_kind = $1 AND m.scope_id = $2"
	args := []any{scopeKind, scopeId}

	if before > 0 {
		query += " AND m.id < $3"
		args = append(args, before)
	}

	query += fmt.Sprintf(" ORDER BY m.id DESC LIMIT %d", limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// rows come back newest-first for the limit, flip to insertion order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (Message, error) {
	var msg Message
	err := row.Scan(
		&msg.Id,
		&msg.ScopeKind,
		&msg.ScopeId,
		&msg.SenderId,
		&msg.SenderUsername,
		&msg.SenderEmail,
		&msg.Content,
		&msg.ContentType,
		&msg.AttachmentUrl,
		&msg.AttachmentType,
		&msg.AttachmentName,
		&msg.AttachmentSize,
		&msg.IsDeleted,
		&msg.CreatedAt,
	)

	return msg, err
}
