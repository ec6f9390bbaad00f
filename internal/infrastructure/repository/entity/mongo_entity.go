package entity

import (
	"time"

	"storefront-customizer-app/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoWebhookDoc represents a logged webhook delivery in MongoDB
type MongoWebhookDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	WebhookID  string             `bson:"webhookId"`
	Topic      string             `bson:"topic"`
	Shop       string             `bson:"shop"`
	Payload    string             `bson:"payload"`
	Verified   bool               `bson:"verified"`
	ReceivedAt time.Time          `bson:"receivedAt"`
	CreatedAt  time.Time          `bson:"createdAt"`
}

// MongoWebhookDocFromDomain converts a webhook event to a MongoDB document
func MongoWebhookDocFromDomain(event *domain.WebhookEvent) *MongoWebhookDoc {
	return &MongoWebhookDoc{
		WebhookID:  event.ID,
		Topic:      event.Topic,
		Shop:       event.Shop,
		Payload:    string(event.Payload),
		Verified:   event.Verified,
		ReceivedAt: event.ReceivedAt,
	}
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoWebhookDoc) ToDomain() *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:         d.WebhookID,
		Topic:      d.Topic,
		Shop:       d.Shop,
		Payload:    []byte(d.Payload),
		Verified:   d.Verified,
		ReceivedAt: d.ReceivedAt,
	}
}

// MongoOAuthStateDoc represents a pending install nonce in MongoDB.
// expiresAt carries a TTL index so abandoned installs are cleaned up.
type MongoOAuthStateDoc struct {
	State     string    `bson:"_id"`
	Shop      string    `bson:"shop"`
	Scopes    []string  `bson:"scopes"`
	ExpiresAt time.Time `bson:"expiresAt"`
	CreatedAt time.Time `bson:"createdAt"`
}

func MongoOAuthStateDocFromDomain(s *domain.OAuthState) *MongoOAuthStateDoc {
	return &MongoOAuthStateDoc{
		State:     s.State,
		Shop:      s.Shop,
		Scopes:    s.Scopes,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
	}
}

func (d *MongoOAuthStateDoc) ToDomain() *domain.OAuthState {
	return &domain.OAuthState{
		State:     d.State,
		Shop:      d.Shop,
		Scopes:    d.Scopes,
		ExpiresAt: d.ExpiresAt,
		CreatedAt: d.CreatedAt,
	}
}
