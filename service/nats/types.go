package nats

import (
	"time"

	"github.com/brojonat/sollink/service/dashboard"
)

// NotificationEvent is a dashboard notification as published to NATS.
// It is published to the subject "sollink.notifications.{address}" in JetStream.
type NotificationEvent struct {
	Address string `json:"address"`

	Level   string `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`

	// Set for transfer notifications
	Signature   string `json:"signature,omitempty"`
	ExplorerURL string `json:"explorer_url,omitempty"`

	At          time.Time `json:"at"`
	PublishedAt time.Time `json:"published_at"`
}

// FromNotification converts a dashboard notification to a NotificationEvent for publishing.
func FromNotification(n dashboard.Notification) *NotificationEvent {
	return &NotificationEvent{
		Address:     n.Address,
		Level:       string(n.Level),
		Title:       n.Title,
		Message:     n.Message,
		Kind:        string(n.Kind),
		Signature:   n.Signature,
		ExplorerURL: n.ExplorerURL,
		At:          n.At,
		PublishedAt: time.Now().UTC(),
	}
}

// Subject returns the subject an event for address is published on.
// Notifications raised with no wallet connected go to "sollink.notifications.none".
func Subject(address string) string {
	if address == "" {
		address = "none"
	}
	return SubjectPrefix + address
}
