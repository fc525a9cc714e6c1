package realtime

import (
	"context"
	"encoding/json"

	"github.com/blogloom/realtime/internal/store"
	"github.com/blogloom/realtime/internal/types"
)

const invalidMessageFormat = "Invalid message format"

// dispatch decodes an inbound frame and routes it to the handler for
// its event type. A malformed frame is reported to the originating
// connection only and never closes it; an unrecognized type is logged
// and dropped. Handlers complete their store write before any broadcast
// is issued.
func (s *Server) dispatch(c *Client, raw []byte) {
	s.stats.Incr("NumEventsReceived")

	var ev ClientEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		s.stats.Incr("NumInvalidEvents")
		c.queueEvent(NewErrorEvent(invalidMessageFormat))
		return
	}

	switch ev.Type {
	case EventSendMessage:
		s.handleSendMessage(c, ev.Payload)
	case EventMessageReact:
		s.handleMessageReact(c, ev.Payload)
	case EventMessageReply:
		s.handleMessageReply(c, ev.Payload)
	case EventTyping:
		s.handleTyping(c, ev.Payload)
	case EventMessageSeen:
		s.handleMessageSeen(c, ev.Payload)
	case EventUpdateMessage:
		s.handleUpdateMessage(c, ev.Payload)
	case EventUpdateLastSeen:
		s.handleUpdateLastSeen(c)
	case EventDeleteForMe:
		s.handleDeleteForMe(c, ev.Payload)
	case EventDeleteForEveryone:
		s.handleDeleteForEveryone(c, ev.Payload)
	case EventClearChat:
		s.handleClearChat(c, ev.Payload)
	default:
		s.stats.Incr("NumInvalidEvents")
		s.log.Printf("dropping unrecognized event type %q from user %q", ev.Type, c.user.Id)
	}
}

func (s *Server) decodePayload(c *Client, raw json.RawMessage, v any) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		s.stats.Incr("NumInvalidEvents")
		c.queueEvent(NewErrorEvent(invalidMessageFormat))
		return false
	}
	return true
}

func (s *Server) handleSendMessage(c *Client, raw json.RawMessage) {
	var p SendMessagePayload
	if !s.decodePayload(c, raw, &p) {
		return
	}

	msg, err := s.store.CreateMessage(context.Background(), store.CreateMessageParams{
		ConversationId: p.ConversationId,
		SenderId:       c.user.Id,
		Text:           p.Text,
	})
	if err != nil {
		s.log.Println("create message:", err)
		return
	}

	s.SendTo(p.ReceiverId, NewMessageEvent(EventReceiveMessage, MessageToWire(msg)))
}

func (s *Server) handleMessageReply(c *Client, raw json.RawMessage) {
	var p SendMessagePayload
	if !s.decodePayload(c, raw, &p) {
		return
	}

	msg, err := s.store.CreateMessage(context.Background(), store.CreateMessageParams{
		ConversationId: p.ConversationId,
		SenderId:       c.user.Id,
		Text:           p.Text,
		ReplyTo:        p.ReplyTo,
	})
	if err != nil {
		s.log.Println("create reply message:", err)
		return
	}

	s.SendTo(p.ReceiverId, NewMessageEvent(EventReceiveReplyMessage, MessageToWire(msg)))
}

func (s *Server) handleMessageReact(c *Client, raw json.RawMessage) {
	var p ReactPayload
	if !s.decodePayload(c, raw, &p) {
		return
	}

	msg, err := s.ToggleReaction(context.Background(), p.ConversationId, p.MessageId, c.user.Id, p.Emoji)
	if err != nil {
		s.log.Println("toggle reaction:", err)
		return
	}

	members, err := s.conversationMembers(p.ConversationId)
	if err != nil {
		s.log.Println("get conversation:", err)
		return
	}

	wire := MessageToWire(msg)
	s.SendToMany(members, &ServerEvent{
		Type: EventMessageReactionUpdated,
		Payload: ReactionUpdatedPayload{
			MessageId: msg.Id,
			Reactions: wire.Reactions,
		},
	})
}

func (s *Server) handleTyping(c *Client, raw json.RawMessage) {
	var p TypingPayload
	if !s.decodePayload(c, raw, &p) {
		return
	}

	// Typing indicators are forwarded to the addressed receiver only
	// and never persisted.
	s.SendTo(p.ReceiverId, &ServerEvent{
		Type: EventTyping,
		Payload: TypingPayload{
			ConversationId: p.ConversationId,
			UserId:         c.user.Id,
		},
	})
}

func (s *Server) handleMessageSeen(c *Client, raw json.RawMessage) {
	var p SeenPayload
	if !s.decodePayload(c, raw, &p) {
		return
	}

	if err := s.store.MarkSeen(context.Background(), p.MessageId, c.user.Id); err != nil {
		s.log.Println("mark seen:", err)
	}
}

func (s *Server) handleUpdateMessage(c *Client, raw json.RawMessage) {
	var p UpdateMessagePayload
	if !s.decodePayload(c, raw, &p) {
		return
	}

	msg, err := s.UpdateMessageText(context.Background(), p.ConversationId, p.MessageId, c.user.Id, p.Text)
	if err != nil {
		// A non-sender's edit is rejected without notifying anyone.
		s.log.Println("update message:", err)
		return
	}

	members, err := s.conversationMembers(p.ConversationId)
	if err != nil {
		s.log.Println("get conversation:", err)
		return
	}

	s.SendToMany(members, NewMessageEvent(EventMessageUpdated, MessageToWire(msg)))
}

func (s *Server) handleUpdateLastSeen(c *Client) {
	if err := s.store.UpdateLastSeen(context.Background(), c.user.Id, Now()); err != nil {
		s.log.Println("update last seen:", err)
	}
}

func (s *Server) handleDeleteForMe(c *Client, raw json.RawMessage) {
	var p DeleteMessagePayload
	if !s.decodePayload(c, raw, &p) {
		return
	}

	if err := s.store.DeleteForMe(context.Background(), p.MessageId, c.user.Id); err != nil {
		s.log.Println("delete for me:", err)
		return
	}

	// Only the requester hides the message; acknowledge to them alone.
	c.queueEvent(&ServerEvent{
		Type:    EventDeleteForMe,
		Payload: MessageDeletedPayload{MessageId: p.MessageId},
	})
}

func (s *Server) handleDeleteForEveryone(c *Client, raw json.RawMessage) {
	var p DeleteMessagePayload
	if !s.decodePayload(c, raw, &p) {
		return
	}

	if err := s.store.DeleteMessage(context.Background(), p.MessageId, c.user.Id); err != nil {
		// Hard delete is sender-only; rejected silently.
		s.log.Println("delete message:", err)
		return
	}

	members, err := s.conversationMembers(p.ConversationId)
	if err != nil {
		s.log.Println("get conversation:", err)
		return
	}

	s.SendToMany(members, &ServerEvent{
		Type:    EventDeleteForEveryone,
		Payload: MessageDeletedPayload{MessageId: p.MessageId},
	})
}

func (s *Server) handleClearChat(c *Client, raw json.RawMessage) {
	var p ClearChatPayload
	if !s.decodePayload(c, raw, &p) {
		return
	}

	if err := s.store.ClearConversation(context.Background(), p.ConversationId); err != nil {
		s.log.Println("clear conversation:", err)
		return
	}

	members, err := s.conversationMembers(p.ConversationId)
	if err != nil {
		s.log.Println("get conversation:", err)
		return
	}

	s.SendToMany(members, &ServerEvent{
		Type:    EventChatCleared,
		Payload: ClearChatPayload{ConversationId: p.ConversationId},
	})
}

func (s *Server) conversationMembers(conversationId string) ([]string, error) {
	conv, err := s.store.GetConversation(context.Background(), conversationId)
	if err != nil {
		return nil, err
	}
	return conv.Members, nil
}

// MessageToWire converts a store message to its wire representation.
func MessageToWire(msg store.Message) types.Message {
	reactions := make([]types.Reaction, len(msg.Reactions))
	for i, r := range msg.Reactions {
		reactions[i] = types.Reaction{UserId: r.UserId, Emoji: r.Emoji}
	}

	return types.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		SenderId:       msg.SenderId,
		Text:           msg.Text,
		Reactions:      reactions,
		ReplyTo:        msg.ReplyTo,
		SeenBy:         msg.SeenBy,
		Edited:         msg.Edited,
		CreatedAt:      msg.CreatedAt,
		UpdatedAt:      msg.UpdatedAt,
	}
}
