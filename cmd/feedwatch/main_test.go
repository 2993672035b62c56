package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/HerbHall/feedwatch/internal/monitor"
	"github.com/HerbHall/feedwatch/internal/version"
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

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) != version.Info() {
		t.Errorf("output = %q, want %q", out, version.Info())
	}
}

func TestConfigCmd_PrintsClampedConfig(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: error
misc:
  update_time: 1
unskewed_average:
  spikes_required: 0
`)

	out, err := execute(t, "config", "--config", path)
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	var got struct {
		Misc struct {
			UpdateTime float32 `json:"update_time"`
		} `json:"misc"`
		UnskewedAvg struct {
			SpikesRequired int `json:"spikes_required"`
		} `json:"unskewed_average"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("unmarshal %q: %v", out, err)
	}
	if got.Misc.UpdateTime != 5 {
		t.Errorf("update_time = %v, want 5 (floor)", got.Misc.UpdateTime)
	}
	if got.UnskewedAvg.SpikesRequired != 1 {
		t.Errorf("spikes_required = %d, want 1 (floor)", got.UnskewedAvg.SpikesRequired)
	}
}

func TestConfigCmd_MissingFile(t *testing.T) {
	_, err := execute(t, "config", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestFetchCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/listen/top" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<table>
<tr><td class="c m">342</td><td><a href="/listen/feed/12345">Springfield Police</a></td></tr>
<tr><td class="c m">9</td><td><a href="/listen/feed/222">Quiet Township</a></td></tr>
</table>`))
	}))
	defer srv.Close()

	path := writeConfig(t, `
logging:
  level: error
misc:
  minimum_listeners: 15
source:
  top_url: `+srv.URL+`/listen/top
  requests_per_second: 100
`)

	out, err := execute(t, "fetch", "--config", path)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("output has %d lines, want 3:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "12345") || !strings.Contains(lines[1], "tracked") {
		t.Errorf("line 1 = %q, want tracked feed 12345", lines[1])
	}
	if !strings.Contains(lines[2], "222") || !strings.Contains(lines[2], monitor.ReasonBelowMinimum) {
		t.Errorf("line 2 = %q, want feed 222 below minimum", lines[2])
	}
}

func TestPrintFeeds(t *testing.T) {
	feeds := []models.FeedSnapshot{
		{ID: 1, Name: "Alpha", Listeners: 50, Alert: "Storm"},
		{ID: 2, Name: "Bravo", Listeners: 40},
	}
	filter := monitor.Filter{Deny: []models.FeedIdent{models.IdentID(2)}}

	var buf bytes.Buffer
	if err := printFeeds(&buf, feeds, filter); err != nil {
		t.Fatalf("printFeeds: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"ID", "LISTENERS", "Alpha", "Storm", "tracked", monitor.ReasonDenied} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
