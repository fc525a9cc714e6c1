package store

import (
	"time"
)

type User struct {
	Id        string    `bson:"_id"`
	Username  string    `bson:"username"`
	Followers []string  `bson:"followers"`
	IsOnline  bool      `bson:"is_online"`
	LastSeen  time.Time `bson:"last_seen"`
}

type Reaction struct {
	UserId string `bson:"user_id"`
	Emoji  string `bson:"emoji"`
}

type Message struct {
	Id             string     `bson:"_id"`
	ConversationId string     `bson:"conversation_id"`
	SenderId       string     `bson:"sender_id"`
	Text           string     `bson:"text"`
	Reactions      []Reaction `bson:"reactions"`
	ReplyTo        string     `bson:"reply_to,omitempty"`
	SeenBy         []string   `bson:"seen_by"`
	DeletedFor     []string   `bson:"deleted_for"`
	Edited         bool       `bson:"edited"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
}

type Conversation struct {
	Id            string    `bson:"_id"`
	Members       []string  `bson:"members"`
	LastMessageId string    `bson:"last_message_id,omitempty"`
	LastActivity  time.Time `bson:"last_activity"`
}

type CreateMessageParams struct {
	ConversationId string
	SenderId       string
	Text           string
	ReplyTo        string
}
