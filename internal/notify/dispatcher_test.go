package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/feedwatch/internal/config"
	"github.com/HerbHall/feedwatch/internal/event"
	"github.com/HerbHall/feedwatch/internal/monitor"
	"github.com/HerbHall/feedwatch/internal/testutil"
)

// fakeNotifier records alerts and optionally fails.
type fakeNotifier struct {
	name string
	err  error

	mu     sync.Mutex
	alerts []*Alert
}

func (f *fakeNotifier) Notify(_ context.Context, alert *Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return f.err
}

func (f *fakeNotifier) Type() string { return f.name }

func (f *fakeNotifier) received() []*Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Alert(nil), f.alerts...)
}

func testSpikeEvent() *monitor.SpikeEvent {
	return &monitor.SpikeEvent{
		ID:         uuid.New(),
		Feed:       testutil.NewSnapshot(testutil.WithID(42), testutil.WithName("County Fire"), testutil.WithListeners(300), testutil.WithAlert("Working fire")),
		Jump:       120,
		Rank:       1,
		Total:      2,
		DetectedAt: time.Now().UTC(),
	}
}

func TestDispatcher_SpikeReachesAllNotifiers(t *testing.T) {
	failing := &fakeNotifier{name: "desktop", err: errors.New("no display")}
	ok := &fakeNotifier{name: "webhook"}

	cfg := config.NotifyConfig{FeedURL: "https://www.broadcastify.com/listen/feed/%d"}
	d := NewDispatcher(cfg, []Notifier{failing, ok}, zap.NewNop())

	bus := event.NewBus(zap.NewNop())
	d.Subscribe(bus)

	sp := testSpikeEvent()
	_ = bus.Publish(context.Background(), event.Event{Topic: monitor.TopicSpikeConfirmed, Payload: sp})

	if len(failing.received()) != 1 {
		t.Errorf("failing notifier got %d alerts, want 1", len(failing.received()))
	}
	got := ok.received()
	if len(got) != 1 {
		t.Fatalf("webhook notifier got %d alerts, want 1 despite earlier failure", len(got))
	}

	alert := got[0]
	if alert.ID != sp.ID.String() {
		t.Errorf("alert.ID = %q, want %q", alert.ID, sp.ID.String())
	}
	if alert.Title != "Broadcastify Update (1 of 2)" {
		t.Errorf("alert.Title = %q", alert.Title)
	}
	wantBody := "Name: County Fire\nListeners: 300 (^120)\nAlert: Working fire\nLink: https://www.broadcastify.com/listen/feed/42"
	if alert.Body != wantBody {
		t.Errorf("alert.Body = %q, want %q", alert.Body, wantBody)
	}
}

func TestDispatcher_CycleFailedGatedByOnErrors(t *testing.T) {
	tests := []struct {
		name     string
		onErrors bool
		want     int
	}{
		{"disabled", false, 0},
		{"enabled", true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &fakeNotifier{name: "desktop"}
			d := NewDispatcher(config.NotifyConfig{OnErrors: tt.onErrors}, []Notifier{n}, zap.NewNop())

			bus := event.NewBus(zap.NewNop())
			unsubscribe := d.Subscribe(bus)
			defer unsubscribe()

			_ = bus.Publish(context.Background(), event.Event{
				Topic:   monitor.TopicCycleFailed,
				Payload: &monitor.CycleFailedEvent{Message: "fetch feeds: site down", FailedAt: time.Now()},
			})

			got := n.received()
			if len(got) != tt.want {
				t.Fatalf("received %d alerts, want %d", len(got), tt.want)
			}
			if tt.want == 1 {
				if got[0].Kind != KindError || got[0].Title != errorTitle || got[0].Body != "fetch feeds: site down" {
					t.Errorf("alert = %+v", got[0])
				}
			}
		})
	}
}

func TestDispatcher_IgnoresUnexpectedPayload(t *testing.T) {
	n := &fakeNotifier{name: "log"}
	d := NewDispatcher(config.NotifyConfig{OnErrors: true}, []Notifier{n}, zap.NewNop())

	d.HandleSpike(context.Background(), event.Event{Topic: monitor.TopicSpikeConfirmed, Payload: "nope"})
	d.HandleCycleFailed(context.Background(), event.Event{Topic: monitor.TopicCycleFailed, Payload: 42})

	if len(n.received()) != 0 {
		t.Errorf("received %d alerts, want 0", len(n.received()))
	}
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	n := &fakeNotifier{name: "log"}
	d := NewDispatcher(config.NotifyConfig{}, []Notifier{n}, zap.NewNop())

	bus := event.NewBus(zap.NewNop())
	unsubscribe := d.Subscribe(bus)
	unsubscribe()

	_ = bus.Publish(context.Background(), event.Event{Topic: monitor.TopicSpikeConfirmed, Payload: testSpikeEvent()})
	if len(n.received()) != 0 {
		t.Errorf("received %d alerts after unsubscribe, want 0", len(n.received()))
	}
}

func TestDispatcher_DropsWhenContextDone(t *testing.T) {
	n := &fakeNotifier{name: "log"}
	d := NewDispatcher(config.NotifyConfig{RatePerMinute: 6}, []Notifier{n}, zap.NewNop())

	// Burst is one alert; the second must wait ten seconds.
	d.Deliver(context.Background(), &Alert{ID: "first"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d.Deliver(ctx, &Alert{ID: "second"})

	got := n.received()
	if len(got) != 1 || got[0].ID != "first" {
		t.Errorf("received %+v, want only the first alert", got)
	}
}

func TestBuildNotifiers(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.NotifyConfig
		want []string
	}{
		{"none", config.NotifyConfig{}, nil},
		{"desktop and log", config.NotifyConfig{Desktop: true, Log: true}, []string{"desktop", "log"}},
		{"webhook", config.NotifyConfig{Webhook: config.WebhookConfig{URL: "http://example.com"}}, []string{"webhook"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildNotifiers(tt.cfg, zap.NewNop())
			if len(got) != len(tt.want) {
				t.Fatalf("BuildNotifiers() returned %d notifiers, want %d", len(got), len(tt.want))
			}
			for i, n := range got {
				if n.Type() != tt.want[i] {
					t.Errorf("notifier %d = %q, want %q", i, n.Type(), tt.want[i])
				}
			}
		})
	}
}
