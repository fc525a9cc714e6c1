package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// defaultOpTimeout bounds every store call so a slow database cannot
// stall a connection's event handling indefinitely.
const defaultOpTimeout = 5 * time.Second

type MongoRepository struct {
	client        *mongo.Client
	users         *mongo.Collection
	conversations *mongo.Collection
	messages      *mongo.Collection
	opTimeout     time.Duration
}

func NewMongoRepository(ctx context.Context, uri, dbName string) (*MongoRepository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(dbName)
	return &MongoRepository{
		client:        client,
		users:         db.Collection("users"),
		conversations: db.Collection("conversations"),
		messages:      db.Collection("messages"),
		opTimeout:     defaultOpTimeout,
	}, nil
}

func (r *MongoRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoRepository) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	return r.client.Ping(ctx, readpref.Primary())
}

func (r *MongoRepository) GetUserById(ctx context.Context, userId string) (User, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	var user User
	err := r.users.FindOne(ctx, bson.M{"_id": userId}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	return user, err
}

func (r *MongoRepository) GetFollowers(ctx context.Context, userId string) ([]string, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	var user User
	opts := options.FindOne().SetProjection(bson.M{"followers": 1})
	err := r.users.FindOne(ctx, bson.M{"_id": userId}, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user.Followers, nil
}

func (r *MongoRepository) SetPresence(ctx context.Context, userId string, online bool, lastSeen time.Time) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	update := bson.M{"$set": bson.M{"is_online": online, "last_seen": lastSeen}}
	_, err := r.users.UpdateOne(ctx, bson.M{"_id": userId}, update)
	return err
}

func (r *MongoRepository) UpdateLastSeen(ctx context.Context, userId string, lastSeen time.Time) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	update := bson.M{"$set": bson.M{"last_seen": lastSeen}}
	_, err := r.users.UpdateOne(ctx, bson.M{"_id": userId}, update)
	return err
}

func (r *MongoRepository) CreateConversation(ctx context.Context, externalId string, members []string) (Conversation, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	conv := Conversation{
		Id:           externalId,
		Members:      members,
		LastActivity: time.Now().UTC(),
	}
	if _, err := r.conversations.InsertOne(ctx, conv); err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

func (r *MongoRepository) GetConversation(ctx context.Context, conversationId string) (Conversation, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	var conv Conversation
	err := r.conversations.FindOne(ctx, bson.M{"_id": conversationId}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Conversation{}, ErrNotFound
	}
	return conv, err
}

func (r *MongoRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	now := time.Now().UTC()
	msg := Message{
		Id:             primitive.NewObjectID().Hex(),
		ConversationId: params.ConversationId,
		SenderId:       params.SenderId,
		Text:           params.Text,
		ReplyTo:        params.ReplyTo,
		Reactions:      []Reaction{},
		SeenBy:         []string{},
		DeletedFor:     []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := r.messages.InsertOne(ctx, msg); err != nil {
		return Message{}, err
	}

	// last_message_id and last_activity are denormalized. The message is
	// already durable at this point, so a failed pointer update leaves
	// the pointer stale until the next write rather than failing the
	// send.
	update := bson.M{"$set": bson.M{"last_message_id": msg.Id, "last_activity": now}}
	r.conversations.UpdateOne(ctx, bson.M{"_id": params.ConversationId}, update)

	return msg, nil
}

func (r *MongoRepository) GetMessages(ctx context.Context, conversationId, viewerId string) ([]Message, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	filter := bson.M{
		"conversation_id": conversationId,
		"deleted_for":     bson.M{"$ne": viewerId},
	}
	opts := options.Find().SetSort(bson.M{"created_at": 1})
	cur, err := r.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var messages []Message
	if err := cur.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *MongoRepository) ToggleReaction(ctx context.Context, messageId, userId, emoji string) (Message, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	var msg Message
	if err := r.messages.FindOne(ctx, bson.M{"_id": messageId}).Decode(&msg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Message{}, ErrNotFound
		}
		return Message{}, err
	}

	reaction := Reaction{UserId: userId, Emoji: emoji}
	var update bson.M
	if hasReaction(msg.Reactions, reaction) {
		update = bson.M{"$pull": bson.M{"reactions": bson.M{"user_id": userId, "emoji": emoji}}}
	} else {
		update = bson.M{"$push": bson.M{"reactions": reaction}}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.messages.FindOneAndUpdate(ctx, bson.M{"_id": messageId}, update, opts).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Message{}, ErrNotFound
	}
	return msg, err
}

func hasReaction(reactions []Reaction, reaction Reaction) bool {
	for _, r := range reactions {
		if r == reaction {
			return true
		}
	}
	return false
}

func (r *MongoRepository) MarkSeen(ctx context.Context, messageId, userId string) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	update := bson.M{"$addToSet": bson.M{"seen_by": userId}}
	res, err := r.messages.UpdateOne(ctx, bson.M{"_id": messageId}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) UpdateMessageText(ctx context.Context, messageId, senderId, text string) (Message, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	filter := bson.M{"_id": messageId, "sender_id": senderId}
	update := bson.M{"$set": bson.M{"text": text, "edited": true, "updated_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var msg Message
	err := r.messages.FindOneAndUpdate(ctx, filter, update, opts).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Message{}, ErrNotSender
	}
	return msg, err
}

func (r *MongoRepository) DeleteForMe(ctx context.Context, messageId, userId string) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	update := bson.M{"$addToSet": bson.M{"deleted_for": userId}}
	res, err := r.messages.UpdateOne(ctx, bson.M{"_id": messageId}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) DeleteMessage(ctx context.Context, messageId, senderId string) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	var msg Message
	if err := r.messages.FindOne(ctx, bson.M{"_id": messageId}).Decode(&msg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}

	if msg.SenderId != senderId {
		return ErrNotSender
	}

	_, err := r.messages.DeleteOne(ctx, bson.M{"_id": messageId, "sender_id": senderId})
	return err
}

func (r *MongoRepository) ClearConversation(ctx context.Context, conversationId string) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	if _, err := r.messages.DeleteMany(ctx, bson.M{"conversation_id": conversationId}); err != nil {
		return err
	}

	update := bson.M{"$unset": bson.M{"last_message_id": ""}}
	_, err := r.conversations.UpdateOne(ctx, bson.M{"_id": conversationId}, update)
	return err
}
