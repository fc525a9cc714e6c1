package store

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRepository) GetUserById(ctx context.Context, userId string) (User, error) {
	args := m.Called(userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetFollowers(ctx context.Context, userId string) ([]string, error) {
	args := m.Called(userId)
	return args.Get(0).([]string), args.Error(1)
}
func (m *MockRepository) SetPresence(ctx context.Context, userId string, online bool, lastSeen time.Time) error {
	args := m.Called(userId, online, lastSeen)
	return args.Error(0)
}
func (m *MockRepository) UpdateLastSeen(ctx context.Context, userId string, lastSeen time.Time) error {
	args := m.Called(userId, lastSeen)
	return args.Error(0)
}
func (m *MockRepository) CreateConversation(ctx context.Context, externalId string, members []string) (Conversation, error) {
	args := m.Called(externalId, members)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockRepository) GetConversation(ctx context.Context, conversationId string) (Conversation, error) {
	args := m.Called(conversationId)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) GetMessages(ctx context.Context, conversationId, viewerId string) ([]Message, error) {
	args := m.Called(conversationId, viewerId)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockRepository) ToggleReaction(ctx context.Context, messageId, userId, emoji string) (Message, error) {
	args := m.Called(messageId, userId, emoji)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) MarkSeen(ctx context.Context, messageId, userId string) error {
	args := m.Called(messageId, userId)
	return args.Error(0)
}
func (m *MockRepository) UpdateMessageText(ctx context.Context, messageId, senderId, text string) (Message, error) {
	args := m.Called(messageId, senderId, text)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) DeleteForMe(ctx context.Context, messageId, userId string) error {
	args := m.Called(messageId, userId)
	return args.Error(0)
}
func (m *MockRepository) DeleteMessage(ctx context.Context, messageId, senderId string) error {
	args := m.Called(messageId, senderId)
	return args.Error(0)
}
func (m *MockRepository) ClearConversation(ctx context.Context, conversationId string) error {
	args := m.Called(conversationId)
	return args.Error(0)
}
