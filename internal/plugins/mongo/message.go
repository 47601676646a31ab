package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/masterboy376/cphere/internal/core/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type messageDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	ChatID    primitive.ObjectID `bson:"chat_id"`
	SenderID  primitive.ObjectID `bson:"sender_id"`
	Content   string             `bson:"content"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (d messageDoc) toDomain() domain.Message {
	return domain.Message{
		ID:        d.ID.Hex(),
		ChatID:    d.ChatID.Hex(),
		SenderID:  d.SenderID.Hex(),
		Content:   d.Content,
		CreatedAt: d.CreatedAt,
	}
}

type MessageRepo struct {
	coll *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepo {
	return &MessageRepo{coll: db.Collection(messagesCollection)}
}

func (r *MessageRepo) PersistMessage(ctx context.Context, msg *domain.Message) (string, error) {
	chatID, err := objectID(msg.ChatID)
	if err != nil {
		return "", err
	}
	senderID, err := objectID(msg.SenderID)
	if err != nil {
		return "", err
	}
	doc := messageDoc{
		ID:        primitive.NewObjectID(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return "", err
	}
	return doc.ID.Hex(), nil
}

func (r *MessageRepo) ListMessages(ctx context.Context, chatID string) ([]domain.Message, error) {
	oid, err := objectID(chatID)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"chat_id": oid}, opts)
	if err != nil {
		return nil, err
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Message, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *MessageRepo) LastMessage(ctx context.Context, chatID string) (*domain.Message, error) {
	oid, err := objectID(chatID)
	if err != nil {
		return nil, err
	}
	var doc messageDoc
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	err = r.coll.FindOne(ctx, bson.M{"chat_id": oid}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	m := doc.toDomain()
	return &m, nil
}
