package spike

import (
	"github.com/HerbHall/feedwatch/internal/config"
	"github.com/HerbHall/feedwatch/pkg/models"
)

// Decision is the per-cycle verdict for one feed.
type Decision int

const (
	// DecisionNone means the feed is at or below its threshold.
	DecisionNone Decision = iota
	// DecisionPending means the feed is over threshold but has not yet
	// stayed there for SpikesRequired consecutive cycles.
	DecisionPending
	// DecisionConfirmed means the feed has been over threshold for at
	// least SpikesRequired consecutive cycles.
	DecisionConfirmed
)

func (d Decision) String() string {
	switch d {
	case DecisionNone:
		return "none"
	case DecisionPending:
		return "pending"
	case DecisionConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Evaluation is the result of evaluating one snapshot.
type Evaluation struct {
	Decision Decision
	// Notify is true only on the cycle a spike episode is first confirmed.
	Notify    bool
	Threshold float32
	Prior     FeedStats
	Current   FeedStats
}

// Engine combines the threshold model and the baseline tracker into a
// per-feed spike state machine:
//
//	None --over--> Pending --over x SpikesRequired--> Confirmed (notify once)
//	any state --not over--> None
type Engine struct {
	cfg     *config.Config
	tracker *Tracker
}

// NewEngine creates an engine over the given tracker. A nil tracker gets
// a fresh one.
func NewEngine(cfg *config.Config, tracker *Tracker) *Engine {
	if tracker == nil {
		tracker = NewTracker()
	}
	return &Engine{cfg: cfg, tracker: tracker}
}

// Tracker returns the engine's baseline tracker.
func (e *Engine) Tracker() *Tracker {
	return e.tracker
}

// Evaluate feeds one snapshot through the tracker and derives the decision.
// It performs no I/O and cannot fail.
func (e *Engine) Evaluate(feed models.FeedSnapshot) Evaluation {
	u := e.tracker.Update(feed.ID, feed.Name, feed.Listeners, e.cfg.SpikeFor(feed.ID), e.cfg.UnskewedAvg)

	ev := Evaluation{
		Threshold: u.Threshold,
		Prior:     u.Prior,
		Current:   u.Current,
	}

	required := e.cfg.UnskewedAvg.SpikesRequired
	if required < config.MinSpikesRequired {
		required = config.MinSpikesRequired
	}

	switch count := u.Current.ConsecutiveOverThreshold; {
	case count == 0:
		ev.Decision = DecisionNone
	case count < required:
		ev.Decision = DecisionPending
	default:
		ev.Decision = DecisionConfirmed
		if !u.Current.Notified {
			ev.Notify = true
			e.tracker.MarkNotified(feed.ID)
			ev.Current.Notified = true
		}
	}

	return ev
}
