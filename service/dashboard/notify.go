package dashboard

import (
	"context"
	"time"

	"github.com/brojonat/sollink/service/apperr"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a transient message for the user.
type Notification struct {
	Address     string      `json:"address"`
	Level       Level       `json:"level"`
	Title       string      `json:"title"`
	Message     string      `json:"message"`
	Kind        apperr.Kind `json:"kind,omitempty"`
	Signature   string      `json:"signature,omitempty"`
	ExplorerURL string      `json:"explorer_url,omitempty"`
	At          time.Time   `json:"at"`
}

// Notifier delivers notifications. Implementations must not block for long;
// delivery errors are logged and otherwise ignored.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) error { return nil }
