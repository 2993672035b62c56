package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/HerbHall/feedwatch/pkg/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feedwatch.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func loadFromString(t *testing.T, body string) *Config {
	t.Helper()
	v, err := LoadViper(writeConfig(t, body))
	if err != nil {
		t.Fatalf("LoadViper: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, "{}\n")

	if cfg.Spike != DefaultSpike() {
		t.Errorf("Spike = %+v, want %+v", cfg.Spike, DefaultSpike())
	}
	if cfg.UnskewedAvg != DefaultUnskewedAverage() {
		t.Errorf("UnskewedAvg = %+v, want %+v", cfg.UnskewedAvg, DefaultUnskewedAverage())
	}
	if cfg.Misc.UpdateTime != 6 {
		t.Errorf("UpdateTime = %v, want 6", cfg.Misc.UpdateTime)
	}
	if cfg.Misc.MinimumListeners != 15 {
		t.Errorf("MinimumListeners = %d, want 15", cfg.Misc.MinimumListeners)
	}
	if _, ok := cfg.StateFeeds(); ok {
		t.Error("StateFeeds() ok = true, want false when unset")
	}
	if cfg.UpdateInterval() != 6*time.Second {
		t.Errorf("UpdateInterval() = %v, want 6s", cfg.UpdateInterval())
	}
	if cfg.Source.Timeout != 15*time.Second {
		t.Errorf("Source.Timeout = %v, want 15s", cfg.Source.Timeout)
	}
	if len(cfg.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", cfg.Warnings)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := LoadViper(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("LoadViper() expected error for a missing explicit config file")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := LoadViper(writeConfig(t, "spike: [unclosed\n"))
	if err == nil {
		t.Fatal("LoadViper() expected error for malformed YAML")
	}
}

func TestLoad_FloorsSubstituted(t *testing.T) {
	cfg := loadFromString(t, `
spike:
  jump: -0.5
  low_listener_increase: -1
  high_listener_dec: -0.02
  high_listener_dec_every: 0
unskewed_average:
  reset_pcnt: -0.1
  adjust_pcnt: -0.1
  spikes_required: 0
misc:
  update_time: 1
`)

	want := Spike{Jump: 0, LowListenerIncrease: 0, HighListenerDec: 0, HighListenerDecEvery: 1}
	if cfg.Spike != want {
		t.Errorf("Spike = %+v, want %+v", cfg.Spike, want)
	}
	if cfg.UnskewedAvg.ResetPcnt != 0 || cfg.UnskewedAvg.AdjustPcnt != 0 {
		t.Errorf("UnskewedAvg = %+v, want zeroed fractions", cfg.UnskewedAvg)
	}
	if cfg.UnskewedAvg.SpikesRequired != 1 {
		t.Errorf("SpikesRequired = %d, want 1", cfg.UnskewedAvg.SpikesRequired)
	}
	if cfg.Misc.UpdateTime != MinUpdateTime {
		t.Errorf("UpdateTime = %v, want %v", cfg.Misc.UpdateTime, MinUpdateTime)
	}
}

func TestLoad_ValuesAboveFloorKept(t *testing.T) {
	cfg := loadFromString(t, `
spike:
  jump: 0.4
  high_listener_dec_every: 250
unskewed_average:
  spikes_required: 3
misc:
  update_time: 30
  minimum_listeners: 50
  state_feeds_id: 12
`)

	if cfg.Spike.Jump != 0.4 {
		t.Errorf("Jump = %v, want 0.4", cfg.Spike.Jump)
	}
	if cfg.Spike.HighListenerDecEvery != 250 {
		t.Errorf("HighListenerDecEvery = %v, want 250", cfg.Spike.HighListenerDecEvery)
	}
	if cfg.Spike.LowListenerIncrease != 0.005 {
		t.Errorf("LowListenerIncrease = %v, want default 0.005", cfg.Spike.LowListenerIncrease)
	}
	if cfg.UnskewedAvg.SpikesRequired != 3 {
		t.Errorf("SpikesRequired = %d, want 3", cfg.UnskewedAvg.SpikesRequired)
	}
	if cfg.Misc.MinimumListeners != 50 {
		t.Errorf("MinimumListeners = %d, want 50", cfg.Misc.MinimumListeners)
	}
	if id, ok := cfg.StateFeeds(); !ok || id != 12 {
		t.Errorf("StateFeeds() = (%d, %v), want (12, true)", id, ok)
	}
}

func TestLoad_StateFeedsOutOfRange(t *testing.T) {
	cfg := loadFromString(t, "misc:\n  state_feeds_id: 300\n")

	if _, ok := cfg.StateFeeds(); ok {
		t.Error("StateFeeds() ok = true, want false for out-of-range id")
	}
	if len(cfg.Warnings) != 1 {
		t.Errorf("Warnings = %v, want exactly one", cfg.Warnings)
	}
}

func TestLoad_FeedSettings(t *testing.T) {
	cfg := loadFromString(t, `
spike:
  jump: 0.5
feed_settings:
  - id: 101
    spike:
      jump: 0.1
      high_listener_dec_every: -4
  - id: 202
  - spike:
      jump: 0.9
  - "not a mapping"
`)

	if len(cfg.FeedSettings) != 2 {
		t.Fatalf("FeedSettings = %+v, want 2 entries", cfg.FeedSettings)
	}

	got := cfg.SpikeFor(101)
	want := DefaultSpike()
	want.Jump = 0.1
	want.HighListenerDecEvery = MinHighListenerDecEvery
	if got != want {
		t.Errorf("SpikeFor(101) = %+v, want %+v", got, want)
	}

	// An override without a spike block takes the defaults, not the global values.
	if got := cfg.SpikeFor(202); got != DefaultSpike() {
		t.Errorf("SpikeFor(202) = %+v, want defaults %+v", got, DefaultSpike())
	}

	if got := cfg.SpikeFor(999); got.Jump != 0.5 {
		t.Errorf("SpikeFor(999).Jump = %v, want global 0.5", got.Jump)
	}

	if len(cfg.Warnings) != 2 {
		t.Errorf("Warnings = %v, want 2", cfg.Warnings)
	}
	for _, w := range cfg.Warnings {
		if !errors.Is(w, ErrInvalidFeedSetting) {
			t.Errorf("warning %v is not ErrInvalidFeedSetting", w)
		}
	}
}

func TestLoad_IdentLists(t *testing.T) {
	cfg := loadFromString(t, `
blacklist:
  - 5
  - "Shelbyville Fire"
  - id: 77
  - name: "Capital City"
  - ID: 88
  - {}
  - ""
whitelist:
  - name: Springfield Police
`)

	wantBlack := []models.FeedIdent{
		models.IdentID(5),
		models.IdentName("Shelbyville Fire"),
		models.IdentID(77),
		models.IdentName("Capital City"),
		models.IdentID(88),
	}
	if len(cfg.Blacklist) != len(wantBlack) {
		t.Fatalf("Blacklist = %v, want %v", cfg.Blacklist, wantBlack)
	}
	for i := range wantBlack {
		if cfg.Blacklist[i] != wantBlack[i] {
			t.Errorf("Blacklist[%d] = %v, want %v", i, cfg.Blacklist[i], wantBlack[i])
		}
	}

	if len(cfg.Whitelist) != 1 || cfg.Whitelist[0] != models.IdentName("Springfield Police") {
		t.Errorf("Whitelist = %v", cfg.Whitelist)
	}

	if len(cfg.Warnings) != 2 {
		t.Errorf("Warnings = %v, want 2", cfg.Warnings)
	}
	for _, w := range cfg.Warnings {
		if !errors.Is(w, ErrInvalidIdent) {
			t.Errorf("warning %v is not ErrInvalidIdent", w)
		}
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("FEEDWATCH_SPIKE_JUMP", "0.33")
	t.Setenv("FEEDWATCH_MISC_MINIMUM_LISTENERS", "40")

	cfg := loadFromString(t, "{}\n")

	if cfg.Spike.Jump != 0.33 {
		t.Errorf("Jump = %v, want 0.33 from env", cfg.Spike.Jump)
	}
	if cfg.Misc.MinimumListeners != 40 {
		t.Errorf("MinimumListeners = %d, want 40 from env", cfg.Misc.MinimumListeners)
	}
}

func TestParseIdent(t *testing.T) {
	tests := []struct {
		name    string
		entry   any
		want    models.FeedIdent
		wantErr bool
	}{
		{"int", 12, models.IdentID(12), false},
		{"float", float64(13), models.IdentID(13), false},
		{"string", "Metro", models.IdentName("Metro"), false},
		{"numeric string is a name", "14", models.IdentName("14"), false},
		{"map id", map[string]any{"id": 15}, models.IdentID(15), false},
		{"any map name", map[any]any{"Name": "Metro"}, models.IdentName("Metro"), false},
		{"negative id", -1, models.FeedIdent{}, true},
		{"bool", true, models.FeedIdent{}, true},
		{"blank", "   ", models.FeedIdent{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIdent(tt.entry)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseIdent(%v) expected error", tt.entry)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseIdent(%v): %v", tt.entry, err)
			}
			if got != tt.want {
				t.Errorf("parseIdent(%v) = %v, want %v", tt.entry, got, tt.want)
			}
		})
	}
}

func TestConfig_JSONOmitsWebhookSecret(t *testing.T) {
	cfg := loadFromString(t, `
notify:
  webhook:
    url: https://hooks.example.com/feedwatch
    secret: s3cr3t-value
blacklist: [42]
`)

	b, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out := string(b)
	if strings.Contains(out, "s3cr3t-value") {
		t.Errorf("config JSON leaks the webhook secret: %s", out)
	}
	if !strings.Contains(out, "hooks.example.com") {
		t.Errorf("config JSON missing webhook url: %s", out)
	}
	if !strings.Contains(out, `"blacklist":["id:42"]`) {
		t.Errorf("config JSON missing blacklist: %s", out)
	}
}

func TestServerConfig_Addr(t *testing.T) {
	tests := []struct {
		cfg  ServerConfig
		want string
	}{
		{ServerConfig{Host: "127.0.0.1", Port: 9120}, "127.0.0.1:9120"},
		{ServerConfig{Host: "", Port: 8080}, ":8080"},
		{ServerConfig{Host: "::1", Port: 9120}, "[::1]:9120"},
	}
	for _, tt := range tests {
		if got := tt.cfg.Addr(); got != tt.want {
			t.Errorf("Addr() = %q, want %q", got, tt.want)
		}
	}
}
