package spike

import (
	"sort"
	"sync"

	"github.com/HerbHall/feedwatch/internal/config"
)

// FeedStats is the state carried across cycles for one feed.
type FeedStats struct {
	ID                       uint32  `json:"id"`
	Name                     string  `json:"name"`
	Baseline                 float32 `json:"baseline"`
	ConsecutiveOverThreshold int     `json:"consecutive_over_threshold"`
	LastListenerCount        uint32  `json:"last_listener_count"`
	Notified                 bool    `json:"notified"`
	LastSeenCycle            uint64  `json:"last_seen_cycle"`
}

// Jump returns how far listeners sits above the baseline, truncated to a
// whole listener count. Negative when the feed is below its baseline.
func (s FeedStats) Jump(listeners uint32) int64 {
	return int64(float32(listeners) - s.Baseline)
}

// Update is the outcome of one Tracker.Update call.
type Update struct {
	Prior         FeedStats // stats before this observation
	Current       FeedStats // stats after this observation
	Threshold     float32
	OverThreshold bool
	New           bool // first observation of this feed
}

// Tracker owns the FeedStats of every observed feed. Entries are created on
// first observation and kept until evicted. Safe for concurrent use; a
// single Update is atomic with respect to readers.
type Tracker struct {
	mu    sync.Mutex
	stats map[uint32]*FeedStats
	cycle uint64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{stats: make(map[uint32]*FeedStats)}
}

// BeginCycle advances the tracker's cycle counter and returns it.
func (t *Tracker) BeginCycle() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cycle++
	return t.cycle
}

// Update records one observation of a feed and applies the unskewed-average
// correction to its baseline:
//   - over threshold: the baseline is left untouched
//   - far below baseline (beyond ResetPcnt): the baseline snaps to the count
//   - otherwise: the baseline moves AdjustPcnt of the way toward the count
//
// A zero baseline is reseeded from the first non-zero count; that cycle is
// never over threshold.
func (t *Tracker) Update(id uint32, name string, listeners uint32, spike config.Spike, avg config.UnskewedAverage) Update {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.stats[id]
	if !ok {
		st = &FeedStats{ID: id, Baseline: float32(listeners), LastListenerCount: listeners}
		t.stats[id] = st
	}
	prior := *st

	observed := float32(listeners)
	threshold := Threshold(st.Baseline, listeners, spike)
	over := observed > threshold

	switch {
	case st.Baseline <= 0:
		st.Baseline = observed
		over = false
	case over:
		// A spike must not pull its own baseline upward.
	case observed < st.Baseline*(1-avg.ResetPcnt):
		st.Baseline = observed
	default:
		st.Baseline += (observed - st.Baseline) * avg.AdjustPcnt
	}
	if st.Baseline < 0 {
		st.Baseline = 0
	}

	st.Name = name
	st.LastListenerCount = listeners
	st.LastSeenCycle = t.cycle
	if over {
		st.ConsecutiveOverThreshold++
	} else {
		st.ConsecutiveOverThreshold = 0
		st.Notified = false
	}

	return Update{
		Prior:         prior,
		Current:       *st,
		Threshold:     threshold,
		OverThreshold: over,
		New:           !ok,
	}
}

// MarkNotified records that the feed's current spike episode has been
// reported. Reports false if the feed is unknown.
func (t *Tracker) MarkNotified(id uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.stats[id]
	if !ok {
		return false
	}
	st.Notified = true
	return true
}

// Get returns a copy of a feed's stats.
func (t *Tracker) Get(id uint32) (FeedStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.stats[id]
	if !ok {
		return FeedStats{}, false
	}
	return *st, true
}

// Len returns the number of tracked feeds.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.stats)
}

// Snapshot returns a copy of every tracked feed's stats sorted by ID.
func (t *Tracker) Snapshot() []FeedStats {
	t.mu.Lock()
	out := make([]FeedStats, 0, len(t.stats))
	for _, st := range t.stats {
		out = append(out, *st)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Evict removes feeds not observed during the last maxIdle cycles and
// returns how many were removed. maxIdle of 0 disables eviction.
func (t *Tracker) Evict(maxIdle uint64) int {
	if maxIdle == 0 {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, st := range t.stats {
		if t.cycle-st.LastSeenCycle > maxIdle {
			delete(t.stats, id)
			removed++
		}
	}
	return removed
}
