package monitor

import (
	"github.com/HerbHall/feedwatch/internal/config"
	"github.com/HerbHall/feedwatch/pkg/models"
)

// Filter reasons reported for feeds that are not tracked.
const (
	ReasonDenied       = "denied"
	ReasonNotAllowed   = "not_allowed"
	ReasonBelowMinimum = "below_minimum"
)

// Filter decides which feeds are tracked. The deny list is checked first,
// then the allow list (when non-empty), then the listener floor.
type Filter struct {
	Deny             []models.FeedIdent
	Allow            []models.FeedIdent
	MinimumListeners uint32
}

// NewFilter builds a filter from the black/white lists and misc settings.
func NewFilter(cfg *config.Config) Filter {
	return Filter{
		Deny:             cfg.Blacklist,
		Allow:            cfg.Whitelist,
		MinimumListeners: cfg.Misc.MinimumListeners,
	}
}

// Reason returns why a feed is excluded, or "" when it is kept.
func (f Filter) Reason(feed models.FeedSnapshot) string {
	if models.MatchAny(f.Deny, feed) {
		return ReasonDenied
	}
	if len(f.Allow) > 0 && !models.MatchAny(f.Allow, feed) {
		return ReasonNotAllowed
	}
	if feed.Listeners < f.MinimumListeners {
		return ReasonBelowMinimum
	}
	return ""
}

// Keep reports whether a feed should be tracked.
func (f Filter) Keep(feed models.FeedSnapshot) bool {
	return f.Reason(feed) == ""
}
