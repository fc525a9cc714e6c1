package types

import (
	"time"
)

type User struct {
	Id       string    `json:"id"`
	Username string    `json:"username"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen,omitempty"`
}

type Reaction struct {
	UserId string `json:"user_id"`
	Emoji  string `json:"emoji"`
}

type Message struct {
	Id             string     `json:"id"`
	ConversationId string     `json:"conversation_id"`
	SenderId       string     `json:"sender_id"`
	Text           string     `json:"text"`
	Reactions      []Reaction `json:"reactions"`
	ReplyTo        string     `json:"reply_to,omitempty"`
	SeenBy         []string   `json:"seen_by,omitempty"`
	Edited         bool       `json:"edited,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type Conversation struct {
	Id            string    `json:"id"`
	Members       []string  `json:"members"`
	LastMessageId string    `json:"last_message_id,omitempty"`
	LastActivity  time.Time `json:"last_activity"`
}
