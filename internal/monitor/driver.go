// Package monitor runs the polling loop that feeds listing snapshots through
// the spike engine and publishes confirmed spikes.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/feedwatch/internal/config"
	"github.com/HerbHall/feedwatch/internal/event"
	"github.com/HerbHall/feedwatch/internal/spike"
	"github.com/HerbHall/feedwatch/pkg/models"
)

// ErrNotReady is returned by Ready until a cycle has succeeded recently.
var ErrNotReady = errors.New("monitor not ready")

// Source returns the current feed listing. A stateID of 0 means no
// secondary listing.
type Source interface {
	Fetch(ctx context.Context, stateID int) ([]models.FeedSnapshot, error)
}

// CycleReport summarizes one completed cycle.
type CycleReport struct {
	Cycle     uint64
	Observed  int
	Filtered  int
	Evaluated int
	Pending   int
	Spikes    []SpikeEvent
	Evicted   int
	Duration  time.Duration
}

// Driver owns the polling cadence. Cycles never overlap: the next one is
// scheduled only after the previous one has finished.
type Driver struct {
	cfg      *config.Config
	source   Source
	engine   *spike.Engine
	filter   Filter
	bus      event.Publisher
	logger   *zap.Logger
	now      func() time.Time
	interval time.Duration // end of one cycle to start of the next
	running  atomic.Bool
	lastOK   atomic.Int64 // unix nanoseconds of the last successful cycle
}

// NewDriver creates a cycle driver. bus may be nil when nothing consumes
// the events, as in one-shot commands.
func NewDriver(cfg *config.Config, src Source, engine *spike.Engine, bus event.Publisher, logger *zap.Logger) *Driver {
	interval := cfg.UpdateInterval()
	if interval <= 0 {
		interval = time.Duration(config.MinUpdateTime) * time.Second
	}
	return &Driver{
		cfg:      cfg,
		source:   src,
		engine:   engine,
		filter:   NewFilter(cfg),
		bus:      bus,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		interval: interval,
	}
}

// Run executes cycles until ctx is canceled. The first cycle starts
// immediately; each later one starts one interval after the previous one
// ended. Cycle failures are logged and never end the loop.
func (d *Driver) Run(ctx context.Context) error {
	d.running.Store(true)
	defer d.running.Store(false)

	d.logger.Info("monitor started",
		zap.Duration("interval", d.interval),
		zap.Int("tracked", d.engine.Tracker().Len()),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("monitor stopped", zap.Int("tracked", d.engine.Tracker().Len()))
			return nil
		case <-timer.C:
			if ctx.Err() != nil {
				continue // canceled while the timer also fired
			}
		}

		if _, err := d.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Warn("cycle skipped", zap.Error(err))
			d.publish(ctx, TopicCycleFailed, &CycleFailedEvent{
				Err:      err,
				Message:  err.Error(),
				FailedAt: d.now(),
			})
		}

		timer.Reset(d.interval)
	}
}

// Running reports whether Run is active.
func (d *Driver) Running() bool {
	return d.running.Load()
}

// LastSuccess returns when the last cycle completed without error. The zero
// time means no cycle has succeeded yet.
func (d *Driver) LastSuccess() time.Time {
	ns := d.lastOK.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

// Ready returns nil when a cycle has succeeded within maxAge.
func (d *Driver) Ready(maxAge time.Duration) error {
	last := d.LastSuccess()
	if last.IsZero() {
		return fmt.Errorf("%w: no successful cycle yet", ErrNotReady)
	}
	if age := time.Since(last); age > maxAge {
		return fmt.Errorf("%w: last successful cycle %s ago", ErrNotReady, age.Round(time.Second))
	}
	return nil
}

// RunCycle performs one fetch, filter, evaluate and publish pass. A fetch
// failure leaves every feed's statistics untouched.
func (d *Driver) RunCycle(ctx context.Context) (CycleReport, error) {
	start := time.Now()
	defer func() { cycleDuration.Observe(time.Since(start).Seconds()) }()

	stateID, _ := d.cfg.StateFeeds()
	feeds, err := d.source.Fetch(ctx, stateID)
	if err != nil {
		cyclesTotal.WithLabelValues("fetch_error").Inc()
		return CycleReport{}, fmt.Errorf("fetch feeds: %w", err)
	}

	tracker := d.engine.Tracker()
	report := CycleReport{
		Cycle:    tracker.BeginCycle(),
		Observed: len(feeds),
	}
	feedsObserved.Set(float64(len(feeds)))

	seen := make(map[uint32]struct{}, len(feeds))
	var confirmed []SpikeEvent
	for _, feed := range feeds {
		if _, dup := seen[feed.ID]; dup {
			continue
		}
		seen[feed.ID] = struct{}{}

		if reason := d.filter.Reason(feed); reason != "" {
			report.Filtered++
			feedsFiltered.WithLabelValues(reason).Inc()
			continue
		}

		ev := d.engine.Evaluate(feed)
		report.Evaluated++

		switch ev.Decision {
		case spike.DecisionPending:
			report.Pending++
			d.logger.Debug("feed over threshold",
				zap.Uint32("feed_id", feed.ID),
				zap.String("feed_name", feed.Name),
				zap.Uint32("listeners", feed.Listeners),
				zap.Float32("baseline", ev.Prior.Baseline),
				zap.Float32("threshold", ev.Threshold),
				zap.Int("consecutive", ev.Current.ConsecutiveOverThreshold),
			)
		case spike.DecisionConfirmed:
			if !ev.Notify {
				continue
			}
			confirmed = append(confirmed, SpikeEvent{
				ID:        uuid.New(),
				Cycle:     report.Cycle,
				Feed:      feed,
				Stats:     ev.Prior,
				Threshold: ev.Threshold,
				Jump:      ev.Prior.Jump(feed.Listeners),
			})
		}
	}

	rankSpikes(confirmed)
	now := d.now()
	for i := range confirmed {
		confirmed[i].Rank = i + 1
		confirmed[i].Total = len(confirmed)
		confirmed[i].DetectedAt = now

		sp := &confirmed[i]
		fields := []zap.Field{
			zap.Uint32("feed_id", sp.Feed.ID),
			zap.String("feed_name", sp.Feed.Name),
			zap.Uint32("listeners", sp.Feed.Listeners),
			zap.Float32("baseline", sp.Stats.Baseline),
			zap.Float32("threshold", sp.Threshold),
			zap.Int64("jump", sp.Jump),
			zap.Int("rank", sp.Rank),
			zap.Int("total", sp.Total),
		}
		if sp.Feed.HasAlert() {
			fields = append(fields, zap.String("alert", sp.Feed.Alert))
		}
		d.logger.Info("spike confirmed", fields...)
		spikesConfirmed.Inc()
		d.publish(ctx, TopicSpikeConfirmed, sp)
	}
	report.Spikes = confirmed

	report.Evicted = tracker.Evict(d.cfg.Stats.EvictAfterCycles)
	if report.Evicted > 0 {
		d.logger.Debug("evicted idle feeds", zap.Int("evicted", report.Evicted))
	}
	feedsTracked.Set(float64(tracker.Len()))

	report.Duration = time.Since(start)
	cyclesTotal.WithLabelValues("ok").Inc()
	d.lastOK.Store(time.Now().UnixNano())

	d.logger.Debug("cycle complete",
		zap.Uint64("cycle", report.Cycle),
		zap.Int("observed", report.Observed),
		zap.Int("filtered", report.Filtered),
		zap.Int("pending", report.Pending),
		zap.Int("spikes", len(report.Spikes)),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// rankSpikes orders spikes by jump, largest first, then by feed id.
func rankSpikes(spikes []SpikeEvent) {
	sort.SliceStable(spikes, func(i, j int) bool {
		if spikes[i].Jump != spikes[j].Jump {
			return spikes[i].Jump > spikes[j].Jump
		}
		return spikes[i].Feed.ID < spikes[j].Feed.ID
	})
}

func (d *Driver) publish(ctx context.Context, topic string, payload any) {
	if d.bus == nil {
		return
	}
	if err := d.bus.Publish(ctx, event.Event{
		Topic:   topic,
		Source:  "monitor",
		Payload: payload,
	}); err != nil {
		d.logger.Warn("publish event failed", zap.String("topic", topic), zap.Error(err))
	}
}
