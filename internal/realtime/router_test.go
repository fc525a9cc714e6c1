package realtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/blogloom/realtime/internal/stats"
	"github.com/blogloom/realtime/internal/store"
)

func TestDispatch_MalformedFrame(t *testing.T) {
	db := &store.MockRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("Incr", "NumEventsReceived").Once()
	su.On("Incr", "NumInvalidEvents").Once()

	s := newTestServer(t, db, su)
	client := newTestClient(t, "u1")

	s.dispatch(client, []byte(`{not json`))

	select {
	case ev := <-client.send:
		assert.Equal(t, EventError, ev.Type, "expected an error event")
		payload, ok := ev.Payload.(ErrorPayload)
		assert.True(t, ok, "expected an ErrorPayload")
		assert.Equal(t, invalidMessageFormat, payload.Message, "expected invalid message format error")
	default:
		t.Error("expected error event to be queued to the originating client")
	}
}

func TestDispatch_UnknownEventType(t *testing.T) {
	db := &store.MockRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("Incr", "NumEventsReceived").Once()
	su.On("Incr", "NumInvalidEvents").Once()

	s := newTestServer(t, db, su)
	client := newTestClient(t, "u1")

	s.dispatch(client, []byte(`{"type":"no-such-event","payload":{}}`))

	assert.Len(t, client.send, 0, "expected unknown event type to be dropped without a reply")
}

func TestDispatch_SendMessage(t *testing.T) {
	t.Run("stores and delivers to online receiver", func(t *testing.T) {
		db := &store.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("CreateMessage", store.CreateMessageParams{
			ConversationId: "c1",
			SenderId:       "u1",
			Text:           "hello",
		}).Return(store.Message{
			Id:             "m1",
			ConversationId: "c1",
			SenderId:       "u1",
			Text:           "hello",
		}, nil).Once()

		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", "NumEventsReceived").Once()
		su.On("Incr", "NumEventsDelivered").Once()

		s := newTestServer(t, db, su)
		sender := newTestClient(t, "u1")
		receiver := newTestClient(t, "u2")
		s.registry.Register("u2", receiver)

		s.dispatch(sender, []byte(`{"type":"send-message","payload":{"conversationId":"c1","receiverId":"u2","text":"hello"}}`))

		select {
		case ev := <-receiver.send:
			assert.Equal(t, EventReceiveMessage, ev.Type, "expected a receive-message event")
		default:
			t.Error("expected message to be delivered to the online receiver")
		}
		assert.Len(t, sender.send, 0, "expected no echo to the sender")
	})

	t.Run("offline receiver still persists the message", func(t *testing.T) {
		db := &store.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("CreateMessage", mock.Anything).Return(store.Message{Id: "m1"}, nil).Once()

		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", "NumEventsReceived").Once()

		s := newTestServer(t, db, su)
		sender := newTestClient(t, "u1")

		s.dispatch(sender, []byte(`{"type":"send-message","payload":{"conversationId":"c1","receiverId":"u2","text":"hello"}}`))
	})

	t.Run("store failure suppresses delivery", func(t *testing.T) {
		db := &store.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("CreateMessage", mock.Anything).Return(store.Message{}, errors.New("db error")).Once()

		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", "NumEventsReceived").Once()

		s := newTestServer(t, db, su)
		sender := newTestClient(t, "u1")
		receiver := newTestClient(t, "u2")
		s.registry.Register("u2", receiver)

		s.dispatch(sender, []byte(`{"type":"send-message","payload":{"conversationId":"c1","receiverId":"u2","text":"hello"}}`))

		assert.Len(t, receiver.send, 0, "expected no delivery when the store write fails")
	})
}

func TestDispatch_MessageReply(t *testing.T) {
	db := &store.MockRepository{}
	defer db.AssertExpectations(t)
	db.On("CreateMessage", store.CreateMessageParams{
		ConversationId: "c1",
		SenderId:       "u1",
		Text:           "right back at you",
		ReplyTo:        "m1",
	}).Return(store.Message{
		Id:             "m2",
		ConversationId: "c1",
		SenderId:       "u1",
		Text:           "right back at you",
		ReplyTo:        "m1",
	}, nil).Once()

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("Incr", "NumEventsReceived").Once()
	su.On("Incr", "NumEventsDelivered").Once()

	s := newTestServer(t, db, su)
	sender := newTestClient(t, "u1")
	receiver := newTestClient(t, "u2")
	s.registry.Register("u2", receiver)

	s.dispatch(sender, []byte(`{"type":"message-reply","payload":{"conversationId":"c1","receiverId":"u2","text":"right back at you","replyTo":"m1"}}`))

	select {
	case ev := <-receiver.send:
		assert.Equal(t, EventReceiveReplyMessage, ev.Type, "expected a receive-reply-message event")
	default:
		t.Error("expected reply to be delivered to the online receiver")
	}
}

func TestDispatch_MessageReact(t *testing.T) {
	db := &store.MockRepository{}
	defer db.AssertExpectations(t)
	db.On("ToggleReaction", "m1", "u1", "👍").Return(store.Message{
		Id:             "m1",
		ConversationId: "c1",
		Reactions:      []store.Reaction{{UserId: "u1", Emoji: "👍"}},
	}, nil).Once()
	db.On("GetConversation", "c1").Return(store.Conversation{
		Id:      "c1",
		Members: []string{"u1", "u2"},
	}, nil).Once()

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("Incr", "NumEventsReceived").Once()
	su.On("Incr", "NumEventsDelivered").Twice()

	s := newTestServer(t, db, su)
	sender := newTestClient(t, "u1")
	peer := newTestClient(t, "u2")
	s.registry.Register("u1", sender)
	s.registry.Register("u2", peer)

	s.dispatch(sender, []byte(`{"type":"message-react","payload":{"conversationId":"c1","messageId":"m1","emoji":"👍"}}`))

	for _, c := range []*Client{sender, peer} {
		select {
		case ev := <-c.send:
			assert.Equal(t, EventMessageReactionUpdated, ev.Type, "expected a reaction update event")
			payload, ok := ev.Payload.(ReactionUpdatedPayload)
			assert.True(t, ok, "expected a ReactionUpdatedPayload")
			assert.Equal(t, "m1", payload.MessageId, "expected reaction update for the reacted message")
			assert.Len(t, payload.Reactions, 1, "expected the full reaction set")
		default:
			t.Errorf("expected reaction update to be delivered to %s", c.user.Id)
		}
	}
}

func TestDispatch_Typing(t *testing.T) {
	db := &store.MockRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("Incr", "NumEventsReceived").Once()
	su.On("Incr", "NumEventsDelivered").Once()

	s := newTestServer(t, db, su)
	sender := newTestClient(t, "u1")
	receiver := newTestClient(t, "u2")
	s.registry.Register("u2", receiver)

	// The userId in the payload is attacker-controlled; the forwarded
	// event must carry the authenticated sender instead.
	s.dispatch(sender, []byte(`{"type":"typing","payload":{"conversationId":"c1","userId":"someone-else","receiverId":"u2"}}`))

	select {
	case ev := <-receiver.send:
		assert.Equal(t, EventTyping, ev.Type, "expected a typing event")
		payload, ok := ev.Payload.(TypingPayload)
		assert.True(t, ok, "expected a TypingPayload")
		assert.Equal(t, "u1", payload.UserId, "expected the authenticated sender identity")
		assert.Equal(t, "c1", payload.ConversationId, "expected the conversation to be preserved")
	default:
		t.Error("expected typing indicator to be forwarded to the receiver")
	}
}

func TestDispatch_MessageSeen(t *testing.T) {
	db := &store.MockRepository{}
	defer db.AssertExpectations(t)
	db.On("MarkSeen", "m1", "u1").Return(nil).Once()

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("Incr", "NumEventsReceived").Once()

	s := newTestServer(t, db, su)
	client := newTestClient(t, "u1")

	s.dispatch(client, []byte(`{"type":"message-seen","payload":{"messageId":"m1"}}`))

	assert.Len(t, client.send, 0, "expected no reply for a seen receipt")
}

func TestDispatch_UpdateMessage(t *testing.T) {
	t.Run("sender edit broadcasts to members", func(t *testing.T) {
		db := &store.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("UpdateMessageText", "m1", "u1", "edited").Return(store.Message{
			Id:             "m1",
			ConversationId: "c1",
			SenderId:       "u1",
			Text:           "edited",
			Edited:         true,
		}, nil).Once()
		db.On("GetConversation", "c1").Return(store.Conversation{
			Id:      "c1",
			Members: []string{"u1", "u2"},
		}, nil).Once()

		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", "NumEventsReceived").Once()
		su.On("Incr", "NumEventsDelivered").Twice()

		s := newTestServer(t, db, su)
		sender := newTestClient(t, "u1")
		peer := newTestClient(t, "u2")
		s.registry.Register("u1", sender)
		s.registry.Register("u2", peer)

		s.dispatch(sender, []byte(`{"type":"update-message","payload":{"conversationId":"c1","messageId":"m1","text":"edited"}}`))

		for _, c := range []*Client{sender, peer} {
			select {
			case ev := <-c.send:
				assert.Equal(t, EventMessageUpdated, ev.Type, "expected a message updated event")
			default:
				t.Errorf("expected updated message to be delivered to %s", c.user.Id)
			}
		}
	})

	t.Run("non-sender edit is a silent no-op", func(t *testing.T) {
		db := &store.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("UpdateMessageText", "m1", "u2", "tampered").Return(store.Message{}, store.ErrNotSender).Once()

		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", "NumEventsReceived").Once()

		s := newTestServer(t, db, su)
		intruder := newTestClient(t, "u2")
		s.registry.Register("u2", intruder)

		s.dispatch(intruder, []byte(`{"type":"update-message","payload":{"conversationId":"c1","messageId":"m1","text":"tampered"}}`))

		assert.Len(t, intruder.send, 0, "expected no broadcast or error reply for a rejected edit")
	})
}

func TestDispatch_UpdateLastSeen(t *testing.T) {
	db := &store.MockRepository{}
	defer db.AssertExpectations(t)
	db.On("UpdateLastSeen", "u1", mock.Anything).Return(nil).Once()

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("Incr", "NumEventsReceived").Once()

	s := newTestServer(t, db, su)
	client := newTestClient(t, "u1")

	s.dispatch(client, []byte(`{"type":"update-last-seen","payload":{}}`))
}

func TestDispatch_DeleteForMe(t *testing.T) {
	db := &store.MockRepository{}
	defer db.AssertExpectations(t)
	db.On("DeleteForMe", "m1", "u1").Return(nil).Once()

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("Incr", "NumEventsReceived").Once()

	s := newTestServer(t, db, su)
	requester := newTestClient(t, "u1")
	peer := newTestClient(t, "u2")
	s.registry.Register("u1", requester)
	s.registry.Register("u2", peer)

	s.dispatch(requester, []byte(`{"type":"delete-for-me","payload":{"conversationId":"c1","messageId":"m1"}}`))

	select {
	case ev := <-requester.send:
		assert.Equal(t, EventDeleteForMe, ev.Type, "expected a delete-for-me acknowledgment")
		payload, ok := ev.Payload.(MessageDeletedPayload)
		assert.True(t, ok, "expected a MessageDeletedPayload")
		assert.Equal(t, "m1", payload.MessageId, "expected the hidden message id")
	default:
		t.Error("expected acknowledgment to the requester")
	}
	assert.Len(t, peer.send, 0, "expected no notification to other members")
}

func TestDispatch_DeleteForEveryone(t *testing.T) {
	t.Run("sender delete broadcasts to members", func(t *testing.T) {
		db := &store.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("DeleteMessage", "m1", "u1").Return(nil).Once()
		db.On("GetConversation", "c1").Return(store.Conversation{
			Id:      "c1",
			Members: []string{"u1", "u2"},
		}, nil).Once()

		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", "NumEventsReceived").Once()
		su.On("Incr", "NumEventsDelivered").Twice()

		s := newTestServer(t, db, su)
		sender := newTestClient(t, "u1")
		peer := newTestClient(t, "u2")
		s.registry.Register("u1", sender)
		s.registry.Register("u2", peer)

		s.dispatch(sender, []byte(`{"type":"delete-for-everyone","payload":{"conversationId":"c1","messageId":"m1"}}`))

		for _, c := range []*Client{sender, peer} {
			select {
			case ev := <-c.send:
				assert.Equal(t, EventDeleteForEveryone, ev.Type, "expected a delete-for-everyone event")
			default:
				t.Errorf("expected delete notification to be delivered to %s", c.user.Id)
			}
		}
	})

	t.Run("non-sender delete is a silent no-op", func(t *testing.T) {
		db := &store.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("DeleteMessage", "m1", "u2").Return(store.ErrNotSender).Once()

		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", "NumEventsReceived").Once()

		s := newTestServer(t, db, su)
		intruder := newTestClient(t, "u2")
		s.registry.Register("u2", intruder)

		s.dispatch(intruder, []byte(`{"type":"delete-for-everyone","payload":{"conversationId":"c1","messageId":"m1"}}`))

		assert.Len(t, intruder.send, 0, "expected no broadcast or error reply for a rejected delete")
	})
}

func TestDispatch_ClearChat(t *testing.T) {
	db := &store.MockRepository{}
	defer db.AssertExpectations(t)
	db.On("ClearConversation", "c1").Return(nil).Once()
	db.On("GetConversation", "c1").Return(store.Conversation{
		Id:      "c1",
		Members: []string{"u1", "u2"},
	}, nil).Once()

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("Incr", "NumEventsReceived").Once()
	su.On("Incr", "NumEventsDelivered").Twice()

	s := newTestServer(t, db, su)
	requester := newTestClient(t, "u1")
	peer := newTestClient(t, "u2")
	s.registry.Register("u1", requester)
	s.registry.Register("u2", peer)

	s.dispatch(requester, []byte(`{"type":"clear-chat","payload":{"conversationId":"c1"}}`))

	for _, c := range []*Client{requester, peer} {
		select {
		case ev := <-c.send:
			assert.Equal(t, EventChatCleared, ev.Type, "expected a chat cleared event")
			payload, ok := ev.Payload.(ClearChatPayload)
			assert.True(t, ok, "expected a ClearChatPayload")
			assert.Equal(t, "c1", payload.ConversationId, "expected the cleared conversation id")
		default:
			t.Errorf("expected clear notification to be delivered to %s", c.user.Id)
		}
	}
}

func TestMessageToWire(t *testing.T) {
	msg := store.Message{
		Id:             "m1",
		ConversationId: "c1",
		SenderId:       "u1",
		Text:           "hello",
		Reactions:      []store.Reaction{{UserId: "u2", Emoji: "❤️"}},
		ReplyTo:        "m0",
		SeenBy:         []string{"u2"},
		Edited:         true,
	}

	wire := MessageToWire(msg)

	assert.Equal(t, msg.Id, wire.Id, "expected message id to be carried over")
	assert.Equal(t, msg.ConversationId, wire.ConversationId, "expected conversation id to be carried over")
	assert.Equal(t, msg.SenderId, wire.SenderId, "expected sender id to be carried over")
	assert.Equal(t, msg.Text, wire.Text, "expected text to be carried over")
	assert.Equal(t, msg.ReplyTo, wire.ReplyTo, "expected reply reference to be carried over")
	assert.Equal(t, msg.SeenBy, wire.SeenBy, "expected seen set to be carried over")
	assert.True(t, wire.Edited, "expected edited flag to be carried over")
	assert.Len(t, wire.Reactions, 1, "expected reactions to be converted")
	assert.Equal(t, "u2", wire.Reactions[0].UserId, "expected reaction user to be carried over")
	assert.Equal(t, "❤️", wire.Reactions[0].Emoji, "expected reaction emoji to be carried over")
}
