package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventLicenseSubmitted EventType = "LICENSE_SUBMITTED"
	EventLicenseVerified  EventType = "LICENSE_VERIFIED"
	EventLicenseActivated EventType = "LICENSE_ACTIVATED"
	EventLicenseRejected  EventType = "LICENSE_REJECTED"
	EventLicenseDeleted   EventType = "LICENSE_DELETED"
	EventUserRegistered   EventType = "USER_REGISTERED"
	EventError            EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Subscribers run in goroutines so a slow consumer cannot block
	// the publishing request path.
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishLicenseSubmitted publishes a license submission event. The
// license key is never included in event payloads.
func (eb *EventBus) PublishLicenseSubmitted(licenseID, userID, plan, paymentReference string, amount int64) {
	eb.Publish(Event{
		Type: EventLicenseSubmitted,
		Data: map[string]interface{}{
			"license_id":        licenseID,
			"user_id":           userID,
			"plan":              plan,
			"payment_reference": paymentReference,
			"amount":            amount,
		},
	})
}

// PublishLicenseVerified publishes an admin verification event
func (eb *EventBus) PublishLicenseVerified(licenseID, userID string, expiresAt time.Time) {
	eb.Publish(Event{
		Type: EventLicenseVerified,
		Data: map[string]interface{}{
			"license_id": licenseID,
			"user_id":    userID,
			"expires_at": expiresAt,
		},
	})
}

// PublishLicenseActivated publishes an activation (email sent) event
func (eb *EventBus) PublishLicenseActivated(licenseID, userID, email string) {
	eb.Publish(Event{
		Type: EventLicenseActivated,
		Data: map[string]interface{}{
			"license_id": licenseID,
			"user_id":    userID,
			"email":      email,
		},
	})
}

// PublishLicenseRejected publishes a rejection event
func (eb *EventBus) PublishLicenseRejected(licenseID, userID, reason string) {
	eb.Publish(Event{
		Type: EventLicenseRejected,
		Data: map[string]interface{}{
			"license_id": licenseID,
			"user_id":    userID,
			"reason":     reason,
		},
	})
}

// PublishLicenseDeleted publishes a hard-delete event
func (eb *EventBus) PublishLicenseDeleted(licenseID string) {
	eb.Publish(Event{
		Type: EventLicenseDeleted,
		Data: map[string]interface{}{
			"license_id": licenseID,
		},
	})
}

// PublishUserRegistered publishes a user registration event
func (eb *EventBus) PublishUserRegistered(userID, email string) {
	eb.Publish(Event{
		Type: EventUserRegistered,
		Data: map[string]interface{}{
			"user_id": userID,
			"email":   email,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source string, err error) {
	eb.Publish(Event{
		Type: EventError,
		Data: map[string]interface{}{
			"source": source,
			"error":  err.Error(),
		},
	})
}
