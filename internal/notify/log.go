package notify

import (
	"context"

	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ Notifier = (*LogNotifier)(nil)

// LogNotifier writes alerts to the structured log. Useful on headless hosts.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, alert *Alert) error {
	if alert.Kind == KindError {
		l.logger.Warn(alert.Title, zap.String("body", alert.Body))
		return nil
	}
	l.logger.Info(alert.Title,
		zap.Uint32("feed_id", alert.FeedID),
		zap.String("feed_name", alert.FeedName),
		zap.Uint32("listeners", alert.Listeners),
		zap.Int64("jump", alert.Jump),
		zap.String("link", alert.Link),
	)
	return nil
}

func (l *LogNotifier) Type() string {
	return "log"
}
