package notify

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/feedwatch/internal/config"
	"github.com/HerbHall/feedwatch/internal/event"
	"github.com/HerbHall/feedwatch/internal/monitor"
)

var deliveries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "feedwatch_notifications_total",
		Help: "Notification deliveries by notifier and result.",
	},
	[]string{"notifier", "result"},
)

func init() {
	prometheus.MustRegister(deliveries)
}

// Dispatcher turns monitor events into alerts and delivers them to every
// configured notifier. Delivery failures are logged and counted, never
// returned.
type Dispatcher struct {
	notifiers []Notifier
	limiter   *rate.Limiter
	onErrors  bool
	feedURL   string
	logger    *zap.Logger
}

// NewDispatcher creates a dispatcher. A RatePerMinute of 0 disables pacing.
func NewDispatcher(cfg config.NotifyConfig, notifiers []Notifier, logger *zap.Logger) *Dispatcher {
	limit := rate.Inf
	burst := 1
	if cfg.RatePerMinute > 0 {
		limit = rate.Limit(cfg.RatePerMinute / 60)
		burst = int(math.Ceil(cfg.RatePerMinute / 6))
		if burst < 1 {
			burst = 1
		}
	}
	return &Dispatcher{
		notifiers: notifiers,
		limiter:   rate.NewLimiter(limit, burst),
		onErrors:  cfg.OnErrors,
		feedURL:   cfg.FeedURL,
		logger:    logger,
	}
}

// BuildNotifiers creates the notifiers enabled in the configuration.
func BuildNotifiers(cfg config.NotifyConfig, logger *zap.Logger) []Notifier {
	var out []Notifier
	if cfg.Desktop {
		out = append(out, NewDesktopNotifier())
	}
	if cfg.Webhook.URL != "" {
		out = append(out, NewWebhookNotifier(cfg.Webhook))
	}
	if cfg.Log {
		out = append(out, NewLogNotifier(logger))
	}
	return out
}

// Subscribe registers the dispatcher's handlers on the bus.
func (d *Dispatcher) Subscribe(bus event.Subscriber) (unsubscribe func()) {
	unsubSpike := bus.Subscribe(monitor.TopicSpikeConfirmed, d.HandleSpike)
	unsubFailed := bus.Subscribe(monitor.TopicCycleFailed, d.HandleCycleFailed)
	return func() {
		unsubSpike()
		unsubFailed()
	}
}

// HandleSpike delivers a confirmed spike.
func (d *Dispatcher) HandleSpike(ctx context.Context, ev event.Event) {
	sp, ok := ev.Payload.(*monitor.SpikeEvent)
	if !ok {
		d.logger.Warn("unexpected payload type for spike event",
			zap.String("topic", ev.Topic),
		)
		return
	}
	d.Deliver(ctx, SpikeAlert(sp, d.feedURL))
}

// HandleCycleFailed delivers a failed cycle as an error alert when error
// notifications are enabled.
func (d *Dispatcher) HandleCycleFailed(ctx context.Context, ev event.Event) {
	if !d.onErrors {
		return
	}
	failed, ok := ev.Payload.(*monitor.CycleFailedEvent)
	if !ok {
		d.logger.Warn("unexpected payload type for cycle failure event",
			zap.String("topic", ev.Topic),
		)
		return
	}
	d.Deliver(ctx, &Alert{
		ID:        uuid.NewString(),
		Kind:      KindError,
		Title:     errorTitle,
		Body:      failed.Message,
		CreatedAt: failed.FailedAt,
	})
}

// Deliver sends one alert to every notifier, waiting for the rate limiter
// first.
func (d *Dispatcher) Deliver(ctx context.Context, alert *Alert) {
	if err := d.limiter.Wait(ctx); err != nil {
		d.logger.Warn("notification dropped",
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
		deliveries.WithLabelValues("all", "dropped").Inc()
		return
	}

	for _, n := range d.notifiers {
		if err := n.Notify(ctx, alert); err != nil {
			d.logger.Warn("notification delivery failed",
				zap.String("notifier", n.Type()),
				zap.String("alert_id", alert.ID),
				zap.Error(err),
			)
			deliveries.WithLabelValues(n.Type(), "error").Inc()
			continue
		}

		deliveries.WithLabelValues(n.Type(), "ok").Inc()
		d.logger.Debug("notification delivered",
			zap.String("notifier", n.Type()),
			zap.String("alert_id", alert.ID),
			zap.String("kind", string(alert.Kind)),
		)
	}
}

// SpikeAlert renders a confirmed spike.
func SpikeAlert(sp *monitor.SpikeEvent, feedURL string) *Alert {
	link := FeedLink(feedURL, sp.Feed.ID)
	return &Alert{
		ID:        sp.ID.String(),
		Kind:      KindSpike,
		Title:     SpikeTitle(sp.Rank, sp.Total),
		Body:      SpikeBody(sp.Feed.Name, sp.Feed.Listeners, sp.Jump, sp.Feed.Alert, link),
		FeedID:    sp.Feed.ID,
		FeedName:  sp.Feed.Name,
		Listeners: sp.Feed.Listeners,
		Jump:      sp.Jump,
		Link:      link,
		Rank:      sp.Rank,
		Total:     sp.Total,
		CreatedAt: sp.DetectedAt,
	}
}
