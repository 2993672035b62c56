// Package config loads the feedwatch configuration: spike thresholds,
// baseline correction parameters, feed filters, and the ambient settings
// of the collaborators around the spike engine.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/HerbHall/feedwatch/pkg/models"
)

// Spike holds the adaptive threshold parameters.
type Spike struct {
	Jump                 float32 `mapstructure:"jump" json:"jump"`
	LowListenerIncrease  float32 `mapstructure:"low_listener_increase" json:"low_listener_increase"`
	HighListenerDec      float32 `mapstructure:"high_listener_dec" json:"high_listener_dec"`
	HighListenerDecEvery float32 `mapstructure:"high_listener_dec_every" json:"high_listener_dec_every"`
}

// UnskewedAverage holds the baseline correction parameters.
type UnskewedAverage struct {
	ResetPcnt      float32 `mapstructure:"reset_pcnt" json:"reset_pcnt"`
	AdjustPcnt     float32 `mapstructure:"adjust_pcnt" json:"adjust_pcnt"`
	SpikesRequired int     `mapstructure:"spikes_required" json:"spikes_required"`
}

type Misc struct {
	UpdateTime       float32 `mapstructure:"update_time" json:"update_time"` // seconds
	MinimumListeners uint32  `mapstructure:"minimum_listeners" json:"minimum_listeners"`
	StateFeedsID     *int    `mapstructure:"state_feeds_id" json:"state_feeds_id,omitempty"`
}

// FeedSetting replaces the global Spike block for a single feed.
type FeedSetting struct {
	ID    uint32 `mapstructure:"id" json:"id"`
	Spike Spike  `mapstructure:"spike" json:"spike"`
}

type SourceConfig struct {
	TopURL            string        `mapstructure:"top_url" json:"top_url"`
	StateURL          string        `mapstructure:"state_url" json:"state_url"`
	UserAgent         string        `mapstructure:"user_agent" json:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout" json:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" json:"requests_per_second"`
	BreakerFailures   uint32        `mapstructure:"breaker_failures" json:"breaker_failures"`
	BreakerTimeout    time.Duration `mapstructure:"breaker_timeout" json:"breaker_timeout"`
}

type WebhookConfig struct {
	URL     string            `mapstructure:"url" json:"url"`
	Secret  string            `mapstructure:"secret" json:"-"` //nolint:gosec // G101: config field name, not a credential
	Headers map[string]string `mapstructure:"headers" json:"headers,omitempty"`
	Timeout time.Duration     `mapstructure:"timeout" json:"timeout"`
}

type NotifyConfig struct {
	Desktop       bool          `mapstructure:"desktop" json:"desktop"`
	Log           bool          `mapstructure:"log" json:"log"`
	OnErrors      bool          `mapstructure:"on_errors" json:"on_errors"`
	RatePerMinute float64       `mapstructure:"rate_per_minute" json:"rate_per_minute"`
	FeedURL       string        `mapstructure:"feed_url" json:"feed_url"`
	Webhook       WebhookConfig `mapstructure:"webhook" json:"webhook"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Host    string `mapstructure:"host" json:"host"`
	Port    int    `mapstructure:"port" json:"port"`
}

// Addr returns the listen address as host:port.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type StatsConfig struct {
	EvictAfterCycles uint64 `mapstructure:"evict_after_cycles" json:"evict_after_cycles"`
}

// Config is the full, immutable process configuration.
type Config struct {
	Spike        Spike           `mapstructure:"spike" json:"spike"`
	UnskewedAvg  UnskewedAverage `mapstructure:"unskewed_average" json:"unskewed_average"`
	Misc         Misc            `mapstructure:"misc" json:"misc"`
	FeedSettings []FeedSetting   `mapstructure:"-" json:"feed_settings"`
	Source       SourceConfig    `mapstructure:"source" json:"source"`
	Notify       NotifyConfig    `mapstructure:"notify" json:"notify"`
	Server       ServerConfig    `mapstructure:"server" json:"server"`
	Stats        StatsConfig     `mapstructure:"stats" json:"stats"`

	// Decoded by dedicated passes rather than mapstructure.
	Blacklist []models.FeedIdent `mapstructure:"-" json:"blacklist"`
	Whitelist []models.FeedIdent `mapstructure:"-" json:"whitelist"`

	// Warnings lists entries that were dropped while loading.
	Warnings []error `mapstructure:"-" json:"-"`
}

// DefaultSpike returns the spike block used when none is configured.
func DefaultSpike() Spike {
	return Spike{
		Jump:                 0.25,
		LowListenerIncrease:  0.005,
		HighListenerDec:      0.02,
		HighListenerDecEvery: 100,
	}
}

func DefaultUnskewedAverage() UnskewedAverage {
	return UnskewedAverage{
		ResetPcnt:      0.15,
		AdjustPcnt:     0.01,
		SpikesRequired: 1,
	}
}

// Default returns a Config populated with every default value.
func Default() *Config {
	return &Config{
		Spike:       DefaultSpike(),
		UnskewedAvg: DefaultUnskewedAverage(),
		Misc: Misc{
			UpdateTime:       6,
			MinimumListeners: 15,
		},
		Source: SourceConfig{
			TopURL:            "https://www.broadcastify.com/listen/top",
			StateURL:          "https://www.broadcastify.com/listen/stid/%d",
			UserAgent:         "feedwatch/0.1",
			Timeout:           15 * time.Second,
			RequestsPerSecond: 1,
			BreakerFailures:   3,
			BreakerTimeout:    2 * time.Minute,
		},
		Notify: NotifyConfig{
			Desktop:       true,
			Log:           true,
			RatePerMinute: 30,
			FeedURL:       "https://www.broadcastify.com/listen/feed/%d",
			Webhook:       WebhookConfig{Timeout: 10 * time.Second},
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 9120,
		},
	}
}

// SpikeFor returns the spike parameters for a feed: its override when one
// is configured, the global block otherwise. Overrides are never merged.
func (c *Config) SpikeFor(id uint32) Spike {
	for i := range c.FeedSettings {
		if c.FeedSettings[i].ID == id {
			return c.FeedSettings[i].Spike
		}
	}
	return c.Spike
}

// UpdateInterval returns the polling interval as a duration.
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(float64(c.Misc.UpdateTime) * float64(time.Second))
}

// StateFeeds returns the secondary region ID, if one is configured.
func (c *Config) StateFeeds() (int, bool) {
	if c.Misc.StateFeedsID == nil {
		return 0, false
	}
	return *c.Misc.StateFeedsID, true
}
