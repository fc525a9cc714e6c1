package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotSender is returned when a sender-only mutation is attempted
	// by a user other than the message's sender.
	ErrNotSender = errors.New("requester is not the sender")
)

type Repository interface {
	Ping(ctx context.Context) error
	GetUserById(ctx context.Context, userId string) (User, error)
	GetFollowers(ctx context.Context, userId string) ([]string, error)
	SetPresence(ctx context.Context, userId string, online bool, lastSeen time.Time) error
	UpdateLastSeen(ctx context.Context, userId string, lastSeen time.Time) error
	CreateConversation(ctx context.Context, externalId string, members []string) (Conversation, error)
	GetConversation(ctx context.Context, conversationId string) (Conversation, error)
	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	GetMessages(ctx context.Context, conversationId, viewerId string) ([]Message, error)
	ToggleReaction(ctx context.Context, messageId, userId, emoji string) (Message, error)
	MarkSeen(ctx context.Context, messageId, userId string) error
	UpdateMessageText(ctx context.Context, messageId, senderId, text string) (Message, error)
	DeleteForMe(ctx context.Context, messageId, userId string) error
	DeleteMessage(ctx context.Context, messageId, senderId string) error
	ClearConversation(ctx context.Context, conversationId string) error
}
