package domain

import (
	"strings"
	"time"
)

// Webhook topics the app subscribes to or receives.
const (
	TopicOrdersCreate         = "orders/create"
	TopicCustomersDataRequest = "customers/data_request"
	TopicCustomersRedact      = "customers/redact"
	TopicShopRedact           = "shop/redact"
	TopicAppUninstalled       = "app/uninstalled"
)

// WebhookEvent is one inbound, signature-checked webhook delivery.
type WebhookEvent struct {
	ID         string    `json:"id" bson:"webhookId"`
	Topic      string    `json:"topic" bson:"topic"`
	Shop       string    `json:"shop" bson:"shop"`
	Payload    []byte    `json:"payload" bson:"payload"`
	Verified   bool      `json:"verified" bson:"verified"`
	ReceivedAt time.Time `json:"received_at" bson:"receivedAt"`
}

// WebhookSubscription is a subscription as reported by the Admin API.
// ID is a numeric id for REST subscriptions and a gid for GraphQL ones.
type WebhookSubscription struct {
	ID      string `json:"id"`
	Topic   string `json:"topic"`
	Address string `json:"address"`
}

// WebhookTarget is a subscription the app wants to exist.
type WebhookTarget struct {
	Topic   string
	Address string
}

// SubscriptionAction is what reconciling a WebhookTarget did.
type SubscriptionAction string

const (
	SubscriptionSkipped SubscriptionAction = "skipped"
	SubscriptionUpdated SubscriptionAction = "updated"
	SubscriptionCreated SubscriptionAction = "created"
)

// PlanSubscription decides how to reconcile target against existing
// subscriptions: an exact topic and address match is left alone, a topic
// match at another address is updated in place, anything else is created.
// Topics are compared case-insensitively with "/" and "_" treated alike so
// REST ("customers/redact") and GraphQL ("CUSTOMERS_REDACT") forms match.
func PlanSubscription(existing []WebhookSubscription, target WebhookTarget) (SubscriptionAction, string) {
	want := NormalizeTopic(target.Topic)
	var sameTopic *WebhookSubscription
	for i := range existing {
		if NormalizeTopic(existing[i].Topic) != want {
			continue
		}
		if existing[i].Address == target.Address {
			return SubscriptionSkipped, existing[i].ID
		}
		if sameTopic == nil {
			sameTopic = &existing[i]
		}
	}
	if sameTopic != nil {
		return SubscriptionUpdated, sameTopic.ID
	}
	return SubscriptionCreated, ""
}

// NormalizeTopic folds a topic to lower case with underscores.
func NormalizeTopic(topic string) string {
	return strings.ReplaceAll(strings.ToLower(topic), "/", "_")
}

// TopicFromPath turns a path segment such as "app_uninstalled" into the
// REST topic "app/uninstalled". Segments already containing "/" are kept.
func TopicFromPath(segment string) string {
	if segment == "" || strings.Contains(segment, "/") {
		return segment
	}
	resource, event, ok := strings.Cut(segment, "_")
	if !ok {
		return segment
	}
	return resource + "/" + event
}
