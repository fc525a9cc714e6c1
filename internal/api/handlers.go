package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/teris-io/shortid"

	"github.com/blogloom/realtime/internal/realtime"
	"github.com/blogloom/realtime/internal/store"
	"github.com/blogloom/realtime/internal/types"
)

type CreateConversationRequest struct {
	Members []string `json:"members"`
}

type CreateMessageRequest struct {
	ConversationId string `json:"conversation_id"`
	Text           string `json:"text"`
}

type ReactRequest struct {
	ConversationId string `json:"conversation_id"`
	MessageId      string `json:"message_id"`
	Emoji          string `json:"emoji"`
}

type ReplyRequest struct {
	ConversationId string `json:"conversation_id"`
	ReplyTo        string `json:"reply_to"`
	Text           string `json:"text"`
}

type DeleteMessageRequest struct {
	ConversationId string `json:"conversation_id"`
	MessageId      string `json:"message_id"`
	ForEveryone    bool   `json:"for_everyone"`
}

func (s *App) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *App) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Println("health check:", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *App) createConversation(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Members) == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	members := req.Members
	if !slices.Contains(members, userId) {
		members = append(members, userId)
	}

	sid, err := shortid.Generate()
	if err != nil {
		s.log.Println("generate short id:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conv, err := s.db.CreateConversation(r.Context(), sid, members)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, types.Conversation{
		Id:           conv.Id,
		Members:      conv.Members,
		LastActivity: conv.LastActivity,
	})
}

func (s *App) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conversationId := r.URL.Query().Get("conversation_id")
	if conversationId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages, err := s.db.GetMessages(r.Context(), conversationId, userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	wire := make([]types.Message, len(messages))
	for i, msg := range messages {
		wire[i] = realtime.MessageToWire(msg)
	}

	s.writeJson(w, http.StatusOK, wire)
}

func (s *App) createMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConversationId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.db.CreateMessage(r.Context(), store.CreateMessageParams{
		ConversationId: req.ConversationId,
		SenderId:       userId,
		Text:           req.Text,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	wire := realtime.MessageToWire(msg)
	s.notifyOtherMembers(r, req.ConversationId, userId, realtime.NewMessageEvent(realtime.EventReceiveMessage, wire))
	s.writeJson(w, http.StatusCreated, wire)
}

func (s *App) reactMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req ReactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MessageId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// Routed through the realtime server so the read-modify-write is
	// serialized with concurrent mutations on the same conversation.
	msg, err := s.rt.ToggleReaction(r.Context(), req.ConversationId, req.MessageId, userId, req.Emoji)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, store.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	wire := realtime.MessageToWire(msg)
	s.notifyMembers(r, req.ConversationId, &realtime.ServerEvent{
		Type: realtime.EventMessageReactionUpdated,
		Payload: realtime.ReactionUpdatedPayload{
			MessageId: wire.Id,
			Reactions: wire.Reactions,
		},
	})
	s.writeJson(w, http.StatusOK, wire)
}

func (s *App) replyMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req ReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConversationId == "" || req.ReplyTo == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.db.CreateMessage(r.Context(), store.CreateMessageParams{
		ConversationId: req.ConversationId,
		SenderId:       userId,
		Text:           req.Text,
		ReplyTo:        req.ReplyTo,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	wire := realtime.MessageToWire(msg)
	s.notifyOtherMembers(r, req.ConversationId, userId, realtime.NewMessageEvent(realtime.EventReceiveReplyMessage, wire))
	s.writeJson(w, http.StatusCreated, wire)
}

func (s *App) deleteMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req DeleteMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MessageId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !req.ForEveryone {
		if err := s.db.DeleteForMe(r.Context(), req.MessageId, userId); err != nil {
			var errResp *ApiError
			if errors.Is(err, store.ErrNotFound) {
				errResp = NewNotFoundError()
			} else {
				errResp = NewInternalServerError(err)
			}
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := s.db.DeleteMessage(r.Context(), req.MessageId, userId); err != nil {
		var errResp *ApiError
		switch {
		case errors.Is(err, store.ErrNotFound):
			errResp = NewNotFoundError()
		case errors.Is(err, store.ErrNotSender):
			errResp = NewForbiddenError()
		default:
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.notifyMembers(r, req.ConversationId, &realtime.ServerEvent{
		Type:    realtime.EventDeleteForEveryone,
		Payload: realtime.MessageDeletedPayload{MessageId: req.MessageId},
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *App) clearConversation(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserId(r.Context()); !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conversationId := r.URL.Query().Get("conversation_id")
	if conversationId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.ClearConversation(r.Context(), conversationId); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.notifyMembers(r, conversationId, &realtime.ServerEvent{
		Type:    realtime.EventChatCleared,
		Payload: realtime.ClearChatPayload{ConversationId: conversationId},
	})
	w.WriteHeader(http.StatusNoContent)
}

// notifyMembers fans an event out to every member of a conversation.
func (s *App) notifyMembers(r *http.Request, conversationId string, ev *realtime.ServerEvent) {
	conv, err := s.db.GetConversation(r.Context(), conversationId)
	if err != nil {
		s.log.Println("get conversation:", err)
		return
	}

	s.rt.SendToMany(conv.Members, ev)
}

// notifyOtherMembers fans an event out to every member except the
// sender.
func (s *App) notifyOtherMembers(r *http.Request, conversationId, senderId string, ev *realtime.ServerEvent) {
	conv, err := s.db.GetConversation(r.Context(), conversationId)
	if err != nil {
		s.log.Println("get conversation:", err)
		return
	}

	for _, member := range conv.Members {
		if member == senderId {
			continue
		}
		s.rt.SendTo(member, ev)
	}
}
