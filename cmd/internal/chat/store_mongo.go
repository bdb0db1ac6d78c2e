package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"courier/cmd/identity/ids"
)

const (
	conversationCollection = "conversations"
	messageCollection      = "messages"
)

// MongoStore is a Store backed by MongoDB. The caller owns the client.
//
// Counter atomicity relies on single-document updates ($inc / $set on the
// conversation document), which Mongo applies atomically. Append spans two
// documents; a failed aggregate update is compensated by removing the
// just-inserted message so no half-applied send becomes visible. Bulk
// mark-as-read spans many documents and runs in a session transaction.
type MongoStore struct {
	db *mongo.Database
}

// NewMongoStore constructs a Mongo-backed chat store.
func NewMongoStore(db *mongo.Database) (*MongoStore, error) {
	if db == nil {
		return nil, errors.New("chat: nil mongo database")
	}
	return &MongoStore{db: db}, nil
}

// Close is a no-op because the client is owned by the caller.
func (s *MongoStore) Close() error { return nil }

type imageDoc struct {
	URL      string `bson:"url"`
	Filename string `bson:"filename,omitempty"`
	Size     int64  `bson:"size,omitempty"`
}

type messageDoc struct {
	ID             string     `bson:"_id"`
	ConversationID string     `bson:"conversation_id"`
	SenderID       string     `bson:"sender_id"`
	Kind           string     `bson:"kind"`
	Text           string     `bson:"text,omitempty"`
	Image          *imageDoc  `bson:"image,omitempty"`
	Status         string     `bson:"status"`
	SentAt         time.Time  `bson:"sent_at"`
	DeliveredAt    *time.Time `bson:"delivered_at,omitempty"`
	ReadAt         *time.Time `bson:"read_at,omitempty"`
}

func (d messageDoc) message() *Message {
	m := &Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		Kind:           Kind(d.Kind),
		Text:           d.Text,
		Status:         Status(d.Status),
		SentAt:         d.SentAt,
		DeliveredAt:    d.DeliveredAt,
		ReadAt:         d.ReadAt,
	}
	if d.Image != nil {
		m.Image = &Image{URL: d.Image.URL, Filename: d.Image.Filename, Size: d.Image.Size}
	}
	return m
}

func toMessageDoc(m *Message) messageDoc {
	d := messageDoc{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Kind:           string(m.Kind),
		Text:           m.Text,
		Status:         string(m.Status),
		SentAt:         m.SentAt,
		DeliveredAt:    m.DeliveredAt,
		ReadAt:         m.ReadAt,
	}
	if m.Image != nil {
		d.Image = &imageDoc{URL: m.Image.URL, Filename: m.Image.Filename, Size: m.Image.Size}
	}
	return d
}

type conversationDoc struct {
	ID            string         `bson:"_id"`
	Participants  []string       `bson:"participants"` // canonical (sorted) order
	LastMessageID string         `bson:"last_message_id,omitempty"`
	LastMessageAt *time.Time     `bson:"last_message_at,omitempty"`
	Unread        map[string]int `bson:"unread"`
	CreatedAt     time.Time      `bson:"created_at"`
}

func (d conversationDoc) conversation() *Conversation {
	c := &Conversation{
		ID:            d.ID,
		LastMessageID: d.LastMessageID,
		LastMessageAt: d.LastMessageAt,
		Unread:        d.Unread,
		CreatedAt:     d.CreatedAt,
	}
	if len(d.Participants) == 2 {
		c.Participants = [2]string{d.Participants[0], d.Participants[1]}
	}
	if c.Unread == nil {
		c.Unread = make(map[string]int, 2)
	}
	return c
}

// AppendMessage persists msg and applies the conversation aggregate.
func (s *MongoStore) AppendMessage(ctx context.Context, msg *Message) error {
	conv, err := s.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		return err
	}

	if _, err := s.db.Collection(messageCollection).InsertOne(ctx, toMessageDoc(msg)); err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{"last_message_id": msg.ID, "last_message_at": msg.SentAt},
	}
	inc := bson.M{}
	for _, p := range conv.Participants {
		if p != msg.SenderID {
			inc["unread."+p] = 1
		}
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}

	if _, err := s.db.Collection(conversationCollection).
		UpdateOne(ctx, bson.M{"_id": msg.ConversationID}, update); err != nil {
		// Keep the durable state consistent: without the aggregate the send
		// did not happen.
		_, _ = s.db.Collection(messageCollection).DeleteOne(ctx, bson.M{"_id": msg.ID})
		return err
	}
	return nil
}

// GetMessage fetches a message by id.
func (s *MongoStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	var doc messageDoc
	err := s.db.Collection(messageCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("mongo get: %w", ErrMessageNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc.message(), nil
}

// UpdateMessageStatus applies a guarded forward-only transition; the filter
// is the concurrency guard, the pipeline backfills delivered_at on read.
func (s *MongoStore) UpdateMessageStatus(ctx context.Context, id string, to Status, at time.Time) (*Message, error) {
	var filter bson.M
	var update any
	switch to {
	case StatusDelivered:
		filter = bson.M{"_id": id, "status": string(StatusSent)}
		update = bson.M{"$set": bson.M{"status": string(StatusDelivered), "delivered_at": at}}
	case StatusRead:
		filter = bson.M{"_id": id, "status": bson.M{"$in": []string{string(StatusSent), string(StatusDelivered)}}}
		update = mongo.Pipeline{{{Key: "$set", Value: bson.M{
			"status":       string(StatusRead),
			"read_at":      at,
			"delivered_at": bson.M{"$ifNull": bson.A{"$delivered_at", at}},
		}}}}
	default:
		return nil, fmt.Errorf("mongo status: %w: cannot transition to %q", ErrInvalidTransition, to)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc messageDoc
	err := s.db.Collection(messageCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, probeErr := s.GetMessage(ctx, id); probeErr != nil {
			return nil, probeErr
		}
		return nil, fmt.Errorf("mongo status: %w: no forward move to %s", ErrInvalidTransition, to)
	}
	if err != nil {
		return nil, err
	}
	return doc.message(), nil
}

// MessagesByConversation returns a history window in ascending sent order.
func (s *MongoStore) MessagesByConversation(ctx context.Context, conversationID string, page Page) ([]Message, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}

	filter := bson.M{"conversation_id": conversationID}
	if !page.Before.IsZero() {
		filter["sent_at"] = bson.M{"$lt": page.Before}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "sent_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.db.Collection(messageCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]Message, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		out = append(out, *docs[i].message())
	}
	return out, nil
}

// GetConversation fetches a conversation by id.
func (s *MongoStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var doc conversationDoc
	err := s.db.Collection(conversationCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("mongo get: %w", ErrConversationNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc.conversation(), nil
}

// FindConversation resolves the conversation for an unordered user pair.
func (s *MongoStore) FindConversation(ctx context.Context, userA, userB string) (*Conversation, error) {
	lo, hi := pairKey(userA, userB)

	var doc conversationDoc
	err := s.db.Collection(conversationCollection).
		FindOne(ctx, bson.M{"participants": []string{lo, hi}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("mongo find: %w", ErrConversationNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc.conversation(), nil
}

// FindOrCreateConversation upserts on the canonical participant pair:
// concurrent calls for the same pair land on the same document and only one
// insert wins.
func (s *MongoStore) FindOrCreateConversation(ctx context.Context, userA, userB string, now time.Time) (*Conversation, bool, error) {
	if userA == userB || userA == "" || userB == "" {
		return nil, false, fmt.Errorf("mongo find_or_create: %w", ErrInvalidParticipants)
	}
	lo, hi := pairKey(userA, userB)

	id, err := ids.NewULID(now)
	if err != nil {
		return nil, false, err
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc conversationDoc
	err = s.db.Collection(conversationCollection).FindOneAndUpdate(ctx,
		bson.M{"participants": []string{lo, hi}},
		bson.M{"$setOnInsert": conversationDoc{
			ID:           id,
			Participants: []string{lo, hi},
			Unread:       map[string]int{lo: 0, hi: 0},
			CreatedAt:    now,
		}},
		opts,
	).Decode(&doc)
	if err != nil {
		return nil, false, err
	}
	return doc.conversation(), doc.ID == id, nil
}

// MarkConversationRead applies the bulk read transition and the counter
// reset in one multi-document transaction, so a send landing between the
// message updates and the counter reset cannot have its unread increment
// zeroed away. Requires a replica set or sharded deployment.
func (s *MongoStore) MarkConversationRead(ctx context.Context, conversationID, readerID string, at time.Time) ([]string, error) {
	sess, err := s.db.Client().StartSession()
	if err != nil {
		return nil, err
	}
	defer sess.EndSession(ctx)

	res, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return s.markConversationReadTx(sc, conversationID, readerID, at)
	})
	if err != nil {
		return nil, err
	}
	return res.([]string), nil
}

func (s *MongoStore) markConversationReadTx(ctx mongo.SessionContext, conversationID, readerID string, at time.Time) ([]string, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	filter := bson.M{
		"conversation_id": conversationID,
		"sender_id":       bson.M{"$ne": readerID},
		"status":          bson.M{"$in": []string{string(StatusSent), string(StatusDelivered)}},
	}

	cursor, err := s.db.Collection(messageCollection).
		Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var idDocs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &idDocs); err != nil {
		return nil, err
	}

	affected := make([]string, 0, len(idDocs))
	for _, d := range idDocs {
		affected = append(affected, d.ID)
	}
	sort.Strings(affected)

	if len(affected) > 0 {
		update := mongo.Pipeline{{{Key: "$set", Value: bson.M{
			"status":       string(StatusRead),
			"read_at":      at,
			"delivered_at": bson.M{"$ifNull": bson.A{"$delivered_at", at}},
		}}}}
		if _, err := s.db.Collection(messageCollection).
			UpdateMany(ctx, bson.M{"_id": bson.M{"$in": affected}, "status": bson.M{"$ne": string(StatusRead)}}, update); err != nil {
			return nil, err
		}
	}

	if _, err := s.db.Collection(conversationCollection).UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$set": bson.M{"unread." + readerID: 0}},
	); err != nil {
		return nil, err
	}
	return affected, nil
}

// ConversationsForUser lists the user's conversations, newest activity first.
func (s *MongoStore) ConversationsForUser(ctx context.Context, userID string) ([]Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.db.Collection(conversationCollection).
		Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []conversationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]Conversation, 0, len(docs))
	for _, d := range docs {
		out = append(out, *d.conversation())
	}
	return out, nil
}

// IsParticipant reports whether userID belongs to the conversation.
func (s *MongoStore) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	if conversationID == "" || userID == "" {
		return false, nil
	}
	n, err := s.db.Collection(conversationCollection).
		CountDocuments(ctx, bson.M{"_id": conversationID, "participants": userID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
