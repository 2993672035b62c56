// Package notify delivers spike and error alerts to the desktop, a webhook
// or the log.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Notifier delivers alerts through one channel.
type Notifier interface {
	Notify(ctx context.Context, alert *Alert) error
	// Type returns the channel identifier ("desktop", "webhook", "log").
	Type() string
}

// Kind distinguishes spike alerts from error alerts.
type Kind string

const (
	KindSpike Kind = "spike"
	KindError Kind = "error"
)

// Alert is a rendered notification.
type Alert struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	FeedID    uint32    `json:"feed_id,omitempty"`
	FeedName  string    `json:"feed_name,omitempty"`
	Listeners uint32    `json:"listeners,omitempty"`
	Jump      int64     `json:"jump,omitempty"`
	Link      string    `json:"link,omitempty"`
	Rank      int       `json:"rank,omitempty"`
	Total     int       `json:"total,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const errorTitle = "Feed Watch Error"

// SpikeTitle renders the title of a spike notification.
func SpikeTitle(rank, total int) string {
	return fmt.Sprintf("Broadcastify Update (%d of %d)", rank, total)
}

// SpikeBody renders the body of a spike notification. The alert line is
// omitted when the feed carries no operator alert.
func SpikeBody(name string, listeners uint32, jump int64, alert, link string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", name)
	fmt.Fprintf(&b, "Listeners: %d (^%d)\n", listeners, jump)
	if alert != "" {
		fmt.Fprintf(&b, "Alert: %s\n", alert)
	}
	fmt.Fprintf(&b, "Link: %s", link)
	return b.String()
}

// FeedLink expands a feed URL template holding a %d placeholder.
func FeedLink(template string, id uint32) string {
	if template == "" {
		return ""
	}
	if !strings.Contains(template, "%d") {
		return template
	}
	return fmt.Sprintf(template, id)
}
