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

// Participant ids are stored sorted so a participant set has one array form.
type chatDoc struct {
	ID             primitive.ObjectID   `bson:"_id"`
	ParticipantIDs []primitive.ObjectID `bson:"participant_ids"`
	CreatedAt      time.Time            `bson:"created_at"`
}

func (d chatDoc) toDomain() *domain.Chat {
	return &domain.Chat{
		ID:             d.ID.Hex(),
		ParticipantIDs: hexes(d.ParticipantIDs),
		CreatedAt:      d.CreatedAt,
	}
}

type ChatRepo struct {
	coll *mongo.Collection
}

func NewChatRepository(db *mongo.Database) *ChatRepo {
	return &ChatRepo{coll: db.Collection(chatsCollection)}
}

// LoadOrCreateChat upserts with $setOnInsert so concurrent creators of the same
// chat id all observe the participant set written by the first.
func (r *ChatRepo) LoadOrCreateChat(ctx context.Context, chatID string, participants []string) (*domain.Chat, error) {
	oid, err := objectID(chatID)
	if err != nil {
		return nil, err
	}
	var doc chatDoc
	if len(participants) == 0 {
		err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrChatNotFound
		}
		if err != nil {
			return nil, err
		}
		return doc.toDomain(), nil
	}

	pids, err := objectIDs(domain.NormalizeParticipants(participants))
	if err != nil {
		return nil, err
	}
	update := bson.M{"$setOnInsert": bson.M{
		"participant_ids": pids,
		"created_at":      time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *ChatRepo) FindChatByParticipants(ctx context.Context, participants []string) (*domain.Chat, error) {
	pids, err := objectIDs(domain.NormalizeParticipants(participants))
	if err != nil {
		return nil, err
	}
	var doc chatDoc
	err = r.coll.FindOne(ctx, bson.M{"participant_ids": pids}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *ChatRepo) ListChatsForUser(ctx context.Context, userID string) ([]domain.Chat, error) {
	oid, err := objectID(userID)
	if err != nil {
		return nil, err
	}
	cur, err := r.coll.Find(ctx, bson.M{"participant_ids": oid}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []chatDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Chat, 0, len(docs))
	for _, d := range docs {
		out = append(out, *d.toDomain())
	}
	return out, nil
}
