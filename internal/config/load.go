package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/HerbHall/feedwatch/pkg/models"
)

// ErrInvalidIdent is reported (as a load warning) for black/whitelist
// entries that are neither a feed ID nor a feed name.
var ErrInvalidIdent = errors.New("invalid feed identifier")

// ErrInvalidFeedSetting is reported for feed_settings entries without an ID.
var ErrInvalidFeedSetting = errors.New("invalid feed setting")

// LoadViper reads configuration from file, .env-populated environment
// variables, and defaults. A missing config file is not an error.
func LoadViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("feedwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.config/feedwatch")
		v.AddConfigPath("/etc/feedwatch")
	}

	// Environment variable support: FEEDWATCH_SPIKE_JUMP=0.3
	v.SetEnvPrefix("FEEDWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("misc.state_feeds_id")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("spike.jump", d.Spike.Jump)
	v.SetDefault("spike.low_listener_increase", d.Spike.LowListenerIncrease)
	v.SetDefault("spike.high_listener_dec", d.Spike.HighListenerDec)
	v.SetDefault("spike.high_listener_dec_every", d.Spike.HighListenerDecEvery)
	v.SetDefault("unskewed_average.reset_pcnt", d.UnskewedAvg.ResetPcnt)
	v.SetDefault("unskewed_average.adjust_pcnt", d.UnskewedAvg.AdjustPcnt)
	v.SetDefault("unskewed_average.spikes_required", d.UnskewedAvg.SpikesRequired)
	v.SetDefault("misc.update_time", d.Misc.UpdateTime)
	v.SetDefault("misc.minimum_listeners", d.Misc.MinimumListeners)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("source.top_url", d.Source.TopURL)
	v.SetDefault("source.state_url", d.Source.StateURL)
	v.SetDefault("source.user_agent", d.Source.UserAgent)
	v.SetDefault("source.timeout", d.Source.Timeout)
	v.SetDefault("source.requests_per_second", d.Source.RequestsPerSecond)
	v.SetDefault("source.breaker_failures", d.Source.BreakerFailures)
	v.SetDefault("source.breaker_timeout", d.Source.BreakerTimeout)

	v.SetDefault("notify.desktop", d.Notify.Desktop)
	v.SetDefault("notify.log", d.Notify.Log)
	v.SetDefault("notify.on_errors", d.Notify.OnErrors)
	v.SetDefault("notify.rate_per_minute", d.Notify.RatePerMinute)
	v.SetDefault("notify.feed_url", d.Notify.FeedURL)
	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.webhook.secret", "")
	v.SetDefault("notify.webhook.timeout", d.Notify.Webhook.Timeout)

	v.SetDefault("server.enabled", d.Server.Enabled)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("stats.evict_after_cycles", 0)
}

// Load decodes the typed configuration out of v and applies the floor of
// every bounded field. Malformed list entries are dropped and recorded in
// Config.Warnings; only structural decode failures return an error.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	settings, warnings := parseFeedSettings(v.Get("feed_settings"))
	cfg.FeedSettings = settings
	cfg.Warnings = append(cfg.Warnings, warnings...)

	cfg.Blacklist, warnings = parseIdents("blacklist", v.Get("blacklist"))
	cfg.Warnings = append(cfg.Warnings, warnings...)
	cfg.Whitelist, warnings = parseIdents("whitelist", v.Get("whitelist"))
	cfg.Warnings = append(cfg.Warnings, warnings...)

	if id := cfg.Misc.StateFeedsID; id != nil && (*id < 1 || *id > 255) {
		cfg.Warnings = append(cfg.Warnings, fmt.Errorf("misc.state_feeds_id %d out of range 1-255, ignoring", *id))
		cfg.Misc.StateFeedsID = nil
	}

	cfg.applyFloors()
	return cfg, nil
}

// parseFeedSettings decodes each override on top of the default spike block,
// so fields an override leaves out take their defaults.
func parseFeedSettings(raw any) ([]FeedSetting, []error) {
	entries, ok := raw.([]any)
	if !ok {
		return nil, nil
	}

	var (
		settings []FeedSetting
		warnings []error
	)
	for i, entry := range entries {
		m, ok := toStringMap(entry)
		if !ok {
			warnings = append(warnings, fmt.Errorf("%w: feed_settings[%d] is not a mapping", ErrInvalidFeedSetting, i))
			continue
		}
		if _, hasID := m["id"]; !hasID {
			warnings = append(warnings, fmt.Errorf("%w: feed_settings[%d] has no id", ErrInvalidFeedSetting, i))
			continue
		}

		fs := FeedSetting{Spike: DefaultSpike()}
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &fs,
		})
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%w: feed_settings[%d]: %v", ErrInvalidFeedSetting, i, err))
			continue
		}
		if err := dec.Decode(m); err != nil {
			warnings = append(warnings, fmt.Errorf("%w: feed_settings[%d]: %v", ErrInvalidFeedSetting, i, err))
			continue
		}
		settings = append(settings, fs)
	}
	return settings, warnings
}

// parseIdents decodes an identifier list. Accepted entry forms:
// 123, "Feed Name", {id: 123}, {name: "Feed Name"}.
func parseIdents(key string, raw any) ([]models.FeedIdent, []error) {
	if raw == nil {
		return nil, nil
	}
	entries, ok := raw.([]any)
	if !ok {
		return nil, []error{fmt.Errorf("%w: %s is not a list", ErrInvalidIdent, key)}
	}

	var (
		idents   []models.FeedIdent
		warnings []error
	)
	for i, entry := range entries {
		ident, err := parseIdent(entry)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%s[%d]: %w", key, i, err))
			continue
		}
		idents = append(idents, ident)
	}
	return idents, warnings
}

func parseIdent(entry any) (models.FeedIdent, error) {
	switch e := entry.(type) {
	case string:
		if strings.TrimSpace(e) == "" {
			return models.FeedIdent{}, fmt.Errorf("%w: empty name", ErrInvalidIdent)
		}
		return models.IdentName(e), nil
	case int, int64, uint64, uint32, float64:
		id, err := cast.ToUint32E(e)
		if err != nil {
			return models.FeedIdent{}, fmt.Errorf("%w: %v", ErrInvalidIdent, err)
		}
		return models.IdentID(id), nil
	}

	m, ok := toStringMap(entry)
	if !ok {
		return models.FeedIdent{}, fmt.Errorf("%w: unsupported entry %v", ErrInvalidIdent, entry)
	}
	for k, val := range m {
		switch strings.ToLower(k) {
		case "id":
			id, err := cast.ToUint32E(val)
			if err != nil {
				return models.FeedIdent{}, fmt.Errorf("%w: %v", ErrInvalidIdent, err)
			}
			return models.IdentID(id), nil
		case "name":
			name := cast.ToString(val)
			if strings.TrimSpace(name) == "" {
				return models.FeedIdent{}, fmt.Errorf("%w: empty name", ErrInvalidIdent)
			}
			return models.IdentName(name), nil
		}
	}
	return models.FeedIdent{}, fmt.Errorf("%w: mapping needs an id or name key", ErrInvalidIdent)
}

func toStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[cast.ToString(k)] = val
		}
		return out, true
	}
	return nil, false
}
