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

type notificationDoc struct {
	ID               primitive.ObjectID `bson:"_id"`
	NotificationType string             `bson:"notification_type"`
	RecipientID      primitive.ObjectID `bson:"recipient_id"`
	SenderID         primitive.ObjectID `bson:"sender_id"`
	Message          string             `bson:"message"`
	IsHandled        bool               `bson:"is_handled"`
	CreatedAt        time.Time          `bson:"created_at"`
}

func (d notificationDoc) toDomain() domain.Notification {
	return domain.Notification{
		ID:          d.ID.Hex(),
		Type:        domain.NotificationType(d.NotificationType),
		RecipientID: d.RecipientID.Hex(),
		SenderID:    d.SenderID.Hex(),
		Message:     d.Message,
		IsHandled:   d.IsHandled,
		CreatedAt:   d.CreatedAt,
	}
}

type NotificationRepo struct {
	coll *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) *NotificationRepo {
	return &NotificationRepo{coll: db.Collection(notificationsCollection)}
}

func (r *NotificationRepo) CreateNotification(ctx context.Context, n *domain.Notification) error {
	id, err := objectID(n.ID)
	if err != nil {
		return err
	}
	recipient, err := objectID(n.RecipientID)
	if err != nil {
		return err
	}
	sender, err := objectID(n.SenderID)
	if err != nil {
		return err
	}
	_, err = r.coll.InsertOne(ctx, notificationDoc{
		ID:               id,
		NotificationType: string(n.Type),
		RecipientID:      recipient,
		SenderID:         sender,
		Message:          n.Message,
		IsHandled:        n.IsHandled,
		CreatedAt:        n.CreatedAt,
	})
	return err
}

// MarkHandled matches on recipient and is_handled in one atomic update, so a
// request can be answered once and only by the user it was sent to.
func (r *NotificationRepo) MarkHandled(ctx context.Context, id, recipientID string) (*domain.Notification, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	recipient, err := objectID(recipientID)
	if err != nil {
		return nil, err
	}
	filter := bson.M{"_id": oid, "recipient_id": recipient, "is_handled": false}
	update := bson.M{"$set": bson.M{"is_handled": true}}
	var doc notificationDoc
	err = r.coll.FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotificationNotFound
	}
	if err != nil {
		return nil, err
	}
	n := doc.toDomain()
	return &n, nil
}

func (r *NotificationRepo) ListForUser(ctx context.Context, recipientID string) ([]domain.Notification, error) {
	recipient, err := objectID(recipientID)
	if err != nil {
		return nil, err
	}
	cur, err := r.coll.Find(ctx, bson.M{"recipient_id": recipient}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var docs []notificationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Notification, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}
