package nats

import (
	"context"
	"log/slog"
	"time"

	"github.com/brojonat/sollink/service/dashboard"
	"github.com/brojonat/sollink/service/metrics"
)

// Notifier publishes dashboard notifications through a Publisher.
type Notifier struct {
	pub     Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

var _ dashboard.Notifier = (*Notifier)(nil)

// NewNotifier returns a dashboard.Notifier backed by pub. m may be nil.
func NewNotifier(pub Publisher, m *metrics.Metrics, logger *slog.Logger) *Notifier {
	return &Notifier{pub: pub, metrics: m, logger: logger}
}

// Notify implements dashboard.Notifier.
func (n *Notifier) Notify(ctx context.Context, note dashboard.Notification) error {
	start := time.Now()
	err := n.pub.PublishNotification(ctx, FromNotification(note))

	status := "success"
	if err != nil {
		status = "error"
		n.logger.WarnContext(ctx, "failed to publish notification",
			"title", note.Title,
			"address", note.Address,
			"error", err,
		)
	}
	if n.metrics != nil {
		n.metrics.RecordNATSPublish(status, time.Since(start).Seconds())
	}
	return err
}
