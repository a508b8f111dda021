package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/pawhaven/pawchat/internal/database"
	"github.com/pawhaven/pawchat/internal/server"
	"github.com/pawhaven/pawchat/internal/types"
)

type CreateRoomRequest struct {
	Title     string `json:"title"`
	MemberIds []int  `json:"member_ids"`
}

type AddRoomMemberRequest struct {
	AccountId int `json:"account_id"`
}

type CreateConversationRequest struct {
	PetRef string `json:"pet_ref"`
}

type UpdateConversationRequest struct {
	Status string `json:"status"`
}

type SendMessageRequest struct {
	Content     string            `json:"content"`
	ContentType string            `json:"content_type"`
	Attachments *types.Attachment `json:"attachments"`
}

func (s *ChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

// writeChatError maps chat core errors onto the API error taxonomy.
func (s *ChatApp) writeChatError(w http.ResponseWriter, err error) {
	var errResp *ApiError
	switch {
	case errors.Is(err, server.ErrUnauthorized):
		errResp = NewUnauthorizedError()
	case errors.Is(err, server.ErrForbidden):
		errResp = NewForbiddenError()
	case errors.Is(err, server.ErrNotFound):
		errResp = NewNotFoundError()
	case errors.Is(err, server.ErrInvalidMessage):
		errResp = NewBadRequestError()
	default:
		errResp = NewInternalServerError(err)
	}

	if errResp.StatusCode == http.StatusInternalServerError {
		s.log.Println("internal error:", err)
	}

	s.writeJson(w, errResp.StatusCode, errResp)
}

func roomFromRecord(record database.Room) types.Room {
	room := types.Room{
		Id:         record.Id,
		ExternalId: record.ExternalId,
		Title:      record.Title,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}

	for _, m := range record.Members {
		room.Members = append(room.Members, types.User{
			Id:           m.Id,
			Username:     m.Username,
			EmailAddress: m.EmailAddress,
			IsAdmin:      m.IsAdmin,
		})
	}

	return room
}

func conversationFromRecord(record database.Conversation) types.Conversation {
	return types.Conversation{
		Id:          record.Id,
		ExternalId:  record.ExternalId,
		RequesterId: record.RequesterId,
		PetRef:      record.PetRef.String,
		Status:      record.Status,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

func (s *ChatApp) createRoom(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !user.IsAdmin {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var createRoomReq CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&createRoomReq); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if createRoomReq.Title == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sid, err := s.generateShortId()
	if err != nil {
		s.log.Print("generateShortId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	newRoom, err := s.db.CreateRoom(database.CreateRoomParams{
		ExternalId: sid,
		Title:      createRoomReq.Title,
		MemberIds:  createRoomReq.MemberIds,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, roomFromRecord(newRoom))
}

func (s *ChatApp) getRoom(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	scope, err := s.resolver.Authorize(user, server.ScopeRoom, r.PathValue("id"))
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	room, err := s.db.GetRoomWithMembers(scope.Id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, roomFromRecord(*room))
}

func (s *ChatApp) addRoomMember(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !user.IsAdmin {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req AddRoomMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountId == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.db.GetRoomByExternalId(r.PathValue("id"))
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.AddRoomMember(room.Id, req.AccountId); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ChatApp) createConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sid, err := s.generateShortId()
	if err != nil {
		s.log.Print("generateShortId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conv, err := s.db.CreateConversation(database.CreateConversationParams{
		ExternalId:  sid,
		RequesterId: user.Id,
		PetRef:      req.PetRef,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, conversationFromRecord(conv))
}

func (s *ChatApp) updateConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !user.IsAdmin {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req UpdateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Status != types.ConversationAccepted && req.Status != types.ConversationClosed {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conv, err := s.db.GetConversationByExternalId(r.PathValue("id"))
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	updated, err := s.db.UpdateConversationStatus(conv.Id, req.Status)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, conversationFromRecord(updated))
}

// postMessage is the REST fallback send path. It calls the same
// ChatService.CreateMessage as the socket path, so live-connected peers
// still receive the broadcast.
func (s *ChatApp) postMessage(kind server.ScopeKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		scope, err := s.resolver.Authorize(user, kind, r.PathValue("id"))
		if err != nil {
			s.writeChatError(w, err)
			return
		}

		var req SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		msg, err := s.chat.CreateMessage(scope, user, server.CreateMessageParams{
			Content:     req.Content,
			ContentType: req.ContentType,
			Attachment:  req.Attachments,
		})
		if err != nil {
			s.writeChatError(w, err)
			return
		}

		s.writeJson(w, http.StatusCreated, msg)
	}
}

func (s *ChatApp) listMessages(kind server.ScopeKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		scope, err := s.resolver.Authorize(user, kind, r.PathValue("id"))
		if err != nil {
			s.writeChatError(w, err)
			return
		}

		var before int64
		var limit int

		beforeStr := r.URL.Query().Get("before")
		if beforeStr != "" {
			before, err = strconv.ParseInt(beforeStr, 10, 64)
			if err != nil {
				errResp := NewBadRequestError()
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}

		limitStr := r.URL.Query().Get("limit")
		if limitStr != "" {
			limit, err = strconv.Atoi(limitStr)
			if err != nil {
				errResp := NewBadRequestError()
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}

		messages, err := s.chat.ListMessages(scope, before, limit)
		if err != nil {
			s.writeChatError(w, err)
			return
		}

		s.writeJson(w, http.StatusOK, messages)
	}
}

func (s *ChatApp) deleteMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messageId, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.chat.DeleteMessage(user, messageId); err != nil {
		s.writeChatError(w, err)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}
