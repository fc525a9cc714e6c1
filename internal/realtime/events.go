package realtime

import (
	"encoding/json"
	"time"

	"github.com/blogloom/realtime/internal/types"
)

// Client to server event types.
const (
	EventSendMessage       = "send-message"
	EventMessageReact      = "message-react"
	EventMessageReply      = "message-reply"
	EventTyping            = "typing"
	EventMessageSeen       = "message-seen"
	EventUpdateMessage     = "update-message"
	EventUpdateLastSeen    = "update-last-seen"
	EventDeleteForMe       = "delete-for-me"
	EventDeleteForEveryone = "delete-for-everyone"
	EventClearChat         = "clear-chat"
)

// Server to client event types.
const (
	EventConnectionEstablished  = "connection-established"
	EventUserStatusUpdate       = "user-status-update"
	EventReceiveMessage         = "receive-message"
	EventReceiveReplyMessage    = "receive-reply-message"
	EventMessageReactionUpdated = "message-reaction-updated"
	EventMessageUpdated         = "MESSAGE_UPDATED"
	EventChatCleared            = "chat-cleared"
	EventError                  = "error"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// ClientEvent is an inbound frame. The payload is decoded by the
// handler matched on Type.
type ClientEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServerEvent is an outbound frame.
type ServerEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type SendMessagePayload struct {
	ConversationId string `json:"conversationId"`
	ReceiverId     string `json:"receiverId"`
	Text           string `json:"text"`
	ReplyTo        string `json:"replyTo,omitempty"`
}

type ReactPayload struct {
	ConversationId string `json:"conversationId"`
	MessageId      string `json:"messageId"`
	Emoji          string `json:"emoji"`
}

type TypingPayload struct {
	ConversationId string `json:"conversationId"`
	UserId         string `json:"userId"`
	ReceiverId     string `json:"receiverId,omitempty"`
}

type SeenPayload struct {
	MessageId string `json:"messageId"`
}

type UpdateMessagePayload struct {
	ConversationId string `json:"conversationId"`
	MessageId      string `json:"messageId"`
	Text           string `json:"text"`
}

type DeleteMessagePayload struct {
	ConversationId string `json:"conversationId"`
	MessageId      string `json:"messageId"`
}

type ClearChatPayload struct {
	ConversationId string `json:"conversationId"`
}

type ConnectionEstablishedPayload struct {
	UserId    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

type UserStatusUpdatePayload struct {
	UserId   string     `json:"userId"`
	Status   string     `json:"status"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

type ReactionUpdatedPayload struct {
	MessageId string           `json:"messageId"`
	Reactions []types.Reaction `json:"reactions"`
}

type MessageDeletedPayload struct {
	MessageId string `json:"messageId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func NewErrorEvent(message string) *ServerEvent {
	return &ServerEvent{
		Type:    EventError,
		Payload: ErrorPayload{Message: message},
	}
}

func NewMessageEvent(eventType string, msg types.Message) *ServerEvent {
	return &ServerEvent{
		Type:    eventType,
		Payload: msg,
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
