package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-customizer-app/internal/domain"
	"storefront-customizer-app/internal/infrastructure/repository/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository holds the webhook event log and pending OAuth states.
type MongoRepository struct {
	webhooksCollection *mongo.Collection
	statesCollection   *mongo.Collection
	now                func() time.Time
}

// NewMongoRepository creates a new MongoDB repository
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		webhooksCollection: db.Collection("webhook_events"),
		statesCollection:   db.Collection("oauth_states"),
		now:                time.Now,
	}
}

// EnsureIndexes creates the TTL index on oauth_states and the lookup index
// on webhook_events. Safe to call on every start.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.statesCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("failed to create oauth state ttl index: %w", err)
	}

	_, err = r.webhooksCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "shop", Value: 1}, {Key: "receivedAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create webhook event index: %w", err)
	}
	return nil
}

// LogWebhook logs a webhook event
func (r *MongoRepository) LogWebhook(ctx context.Context, event *domain.WebhookEvent) error {
	doc := entity.MongoWebhookDocFromDomain(event)
	doc.ID = primitive.NewObjectID()
	doc.CreatedAt = r.now()
	if doc.ReceivedAt.IsZero() {
		doc.ReceivedAt = doc.CreatedAt
	}

	_, err := r.webhooksCollection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to log webhook: %w", err)
	}

	return nil
}

// SaveState saves or replaces a pending install state
func (r *MongoRepository) SaveState(ctx context.Context, state *domain.OAuthState) error {
	doc := entity.MongoOAuthStateDocFromDomain(state)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = r.now()
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": doc.State}
	update := bson.M{"$set": bson.M{
		"shop":      doc.Shop,
		"scopes":    doc.Scopes,
		"expiresAt": doc.ExpiresAt,
		"createdAt": doc.CreatedAt,
	}}

	_, err := r.statesCollection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}

	return nil
}

// ConsumeState atomically removes and returns an unexpired state. The TTL
// monitor runs about once a minute, so expiry is also checked here.
func (r *MongoRepository) ConsumeState(ctx context.Context, state string) (*domain.OAuthState, error) {
	var doc entity.MongoOAuthStateDoc
	filter := bson.M{
		"_id":       state,
		"expiresAt": bson.M{"$gt": r.now()},
	}

	err := r.statesCollection.FindOneAndDelete(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}

	return doc.ToDomain(), nil
}

// Ping checks the underlying client connection
func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.webhooksCollection.Database().Client().Ping(ctx, nil)
}
