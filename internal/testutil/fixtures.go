// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"github.com/HerbHall/feedwatch/internal/config"
	"github.com/HerbHall/feedwatch/pkg/models"
)

// NewSnapshot returns a FeedSnapshot with sensible defaults, suitable for
// test fixtures. Override individual fields with options.
func NewSnapshot(opts ...func(*models.FeedSnapshot)) models.FeedSnapshot {
	f := models.FeedSnapshot{
		ID:        5,
		Name:      "Test County Fire",
		Listeners: 100,
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// WithID sets the feed id.
func WithID(id uint32) func(*models.FeedSnapshot) {
	return func(f *models.FeedSnapshot) { f.ID = id }
}

// WithName sets the feed name.
func WithName(name string) func(*models.FeedSnapshot) {
	return func(f *models.FeedSnapshot) { f.Name = name }
}

// WithListeners sets the listener count.
func WithListeners(n uint32) func(*models.FeedSnapshot) {
	return func(f *models.FeedSnapshot) { f.Listeners = n }
}

// WithAlert sets the operator alert text.
func WithAlert(alert string) func(*models.FeedSnapshot) {
	return func(f *models.FeedSnapshot) { f.Alert = alert }
}

// FlatConfig returns the default config with a fixed jump fraction and no
// listener-count adjustments, so thresholds are exactly baseline*(1+jump).
func FlatConfig(jump float32, spikesRequired int) *config.Config {
	cfg := config.Default()
	cfg.Spike = config.Spike{
		Jump:                 jump,
		HighListenerDecEvery: 100,
	}
	cfg.UnskewedAvg.SpikesRequired = spikesRequired
	cfg.Misc.MinimumListeners = 0
	return cfg
}
