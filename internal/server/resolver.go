package server

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pawhaven/pawchat/internal/database"
	"github.com/pawhaven/pawchat/internal/types"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

const userIdClaim = "user-id"

// Resolver authorizes connect attempts: it validates the bearer token and
// confirms the caller may join the requested scope. A failed resolve is
// always surfaced to the caller, never silently ignored.
type Resolver struct {
	log        *log.Logger
	db         database.ChatRepository
	signingKey []byte
}

func NewResolver(logger *log.Logger, db database.ChatRepository, signingKey []byte) *Resolver {
	return &Resolver{
		log:        logger,
		db:         db,
		signingKey: signingKey,
	}
}

// VerifyToken validates the signed bearer token and returns the user id
// it carries. Expiry is enforced by the parser.
func (r *Resolver) VerifyToken(tokenString string) (int, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return r.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, fmt.Errorf("%w: parse token: %v", ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("%w: invalid token claims", ErrUnauthorized)
	}

	userId, ok := claims[userIdClaim].(float64)
	if !ok {
		return 0, fmt.Errorf("%w: invalid user id claim", ErrUnauthorized)
	}

	return int(userId), nil
}

// Resolve validates the token and authorizes the user for the scope,
// returning the resolved identity the session tags messages with.
func (r *Resolver) Resolve(kind ScopeKind, externalId, token string) (types.User, Scope, error) {
	userId, err := r.VerifyToken(token)
	if err != nil {
		return types.User{}, Scope{}, err
	}

	account, err := r.db.GetAccountById(userId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, Scope{}, fmt.Errorf("%w: unknown account %d", ErrUnauthorized, userId)
		}
		return types.User{}, Scope{}, fmt.Errorf("get account: %w", err)
	}

	user := types.User{
		Id:           account.Id,
		Username:     account.Username,
		EmailAddress: account.EmailAddress,
		IsAdmin:      account.IsAdmin,
		CreatedAt:    account.CreatedAt,
		UpdatedAt:    account.UpdatedAt,
	}

	scope, err := r.Authorize(user, kind, externalId)
	if err != nil {
		return types.User{}, Scope{}, err
	}

	return user, scope, nil
}

// Authorize confirms an already-authenticated user may join the scope.
// Rooms require membership; conversations require being the requester or
// an admin.
func (r *Resolver) Authorize(user types.User, kind ScopeKind, externalId string) (Scope, error) {
	switch kind {
	case ScopeRoom:
		room, err := r.db.GetRoomByExternalId(externalId)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return Scope{}, fmt.Errorf("%w: room %q", ErrNotFound, externalId)
			}
			return Scope{}, fmt.Errorf("get room: %w", err)
		}

		if !r.db.IsRoomMember(user.Id, room.Id) {
			return Scope{}, fmt.Errorf("%w: user %d is not a member of room %q", ErrForbidden, user.Id, externalId)
		}

		return Scope{Kind: ScopeRoom, ExternalId: room.ExternalId, Id: room.Id}, nil
	case ScopeConversation:
		conv, err := r.db.GetConversationByExternalId(externalId)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return Scope{}, fmt.Errorf("%w: conversation %q", ErrNotFound, externalId)
			}
			return Scope{}, fmt.Errorf("get conversation: %w", err)
		}

		if conv.RequesterId != user.Id && !user.IsAdmin {
			return Scope{}, fmt.Errorf("%w: user %d may not join conversation %q", ErrForbidden, user.Id, externalId)
		}

		return Scope{Kind: ScopeConversation, ExternalId: conv.ExternalId, Id: conv.Id}, nil
	default:
		return Scope{}, fmt.Errorf("%w: unknown scope kind %q", ErrNotFound, kind)
	}
}
