// Package events is a small in-process pub/sub used to fan out
// referral lifecycle notifications without blocking the pipeline.
package events

import (
	"context"
	"sync"
	"time"

	"referral-service/internal/models"
)

// EventType represents the type of event.
type EventType string

const (
	// EventReferralCreated is emitted after a referral record is persisted.
	EventReferralCreated EventType = "referral.created"
	// EventReferralFailed is emitted when a referral attempt fails after
	// validation (remote-call failures only).
	EventReferralFailed EventType = "referral.failed"
	// EventVerificationEmailSent is emitted after a verification email
	// send attempt, successful or not.
	EventVerificationEmailSent EventType = "verification.email_sent"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// ReferralCreatedData contains data for referral created events.
type ReferralCreatedData struct {
	ReferrerID string
	UserID     string
	GroupID    string
	Email      string
}

// ReferralFailedData contains data for referral failed events.
type ReferralFailedData struct {
	ReferrerID string
	Email      string
	ErrorType  models.ErrorType
	Message    string
}

// EmailSentData contains data for verification email events.
type EmailSentData struct {
	Email   string
	Success bool
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
}

// NewManager creates a new event manager.
func NewManager(enabled bool) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish publishes an event to all subscribed handlers. Handlers run
// asynchronously; a slow subscriber never delays the referral pipeline.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	if !m.enabled {
		return
	}

	m.mu.RLock()
	handlers := m.handlers[eventType]
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	for _, handler := range handlers {
		go func(h Handler) {
			_ = h(ctx, event)
		}(handler)
	}
}

// PublishReferralCreated publishes a referral created event.
func (m *Manager) PublishReferralCreated(ctx context.Context, data ReferralCreatedData) {
	m.Publish(ctx, EventReferralCreated, data)
}

// PublishReferralFailed publishes a referral failed event.
func (m *Manager) PublishReferralFailed(ctx context.Context, data ReferralFailedData) {
	m.Publish(ctx, EventReferralFailed, data)
}

// PublishEmailSent publishes a verification email event.
func (m *Manager) PublishEmailSent(ctx context.Context, email string, success bool) {
	m.Publish(ctx, EventVerificationEmailSent, EmailSentData{Email: email, Success: success})
}

// Shutdown shuts down the event manager.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
}
