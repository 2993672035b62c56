package notify

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSpikeTitle(t *testing.T) {
	if got, want := SpikeTitle(2, 5), "Broadcastify Update (2 of 5)"; got != want {
		t.Errorf("SpikeTitle() = %q, want %q", got, want)
	}
}

func TestSpikeBody(t *testing.T) {
	tests := []struct {
		name  string
		alert string
		want  string
	}{
		{
			name: "without alert",
			want: "Name: County Fire\nListeners: 135 (^35)\nLink: https://example.com/feed/5",
		},
		{
			name:  "with alert",
			alert: "Working fire",
			want:  "Name: County Fire\nListeners: 135 (^35)\nAlert: Working fire\nLink: https://example.com/feed/5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SpikeBody("County Fire", 135, 35, tt.alert, "https://example.com/feed/5")
			if got != tt.want {
				t.Errorf("SpikeBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFeedLink(t *testing.T) {
	tests := []struct {
		template string
		want     string
	}{
		{"https://www.broadcastify.com/listen/feed/%d", "https://www.broadcastify.com/listen/feed/42"},
		{"https://example.com/static", "https://example.com/static"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FeedLink(tt.template, 42); got != tt.want {
			t.Errorf("FeedLink(%q) = %q, want %q", tt.template, got, tt.want)
		}
	}
}

func TestDesktopCommand(t *testing.T) {
	spike := &Alert{Kind: KindSpike, Title: `Broadcastify Update (1 of 1)`, Body: "Name: \"Q\" & A\nLink: x"}
	failure := &Alert{Kind: KindError, Title: errorTitle, Body: "fetch feeds: boom"}

	tests := []struct {
		name     string
		goos     string
		alert    *Alert
		wantName string
		contains []string
		wantErr  bool
	}{
		{"linux spike", "linux", spike, "notify-send", []string{"--icon=" + iconUpdate, spike.Title, spike.Body}, false},
		{"linux error", "linux", failure, "notify-send", []string{"--icon=" + iconError}, false},
		{"freebsd", "freebsd", spike, "notify-send", []string{"--app-name=" + appName}, false},
		{"darwin", "darwin", spike, "osascript", []string{`display notification "Name: \"Q\" & A` + "\n" + `Link: x" with title "Broadcastify Update (1 of 1)"`}, false},
		{"windows", "windows", spike, "powershell", []string{"&quot;Q&quot; &amp; A", powershellAppID}, false},
		{"unsupported", "plan9", spike, "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args, err := desktopCommand(tt.goos, tt.alert)
			if (err != nil) != tt.wantErr {
				t.Fatalf("desktopCommand() error = %v, wantErr %v", err, tt.wantErr)
			}
			if name != tt.wantName {
				t.Errorf("desktopCommand() name = %q, want %q", name, tt.wantName)
			}
			joined := strings.Join(args, "\x00")
			for _, want := range tt.contains {
				if !strings.Contains(joined, want) {
					t.Errorf("desktopCommand() args %q missing %q", args, want)
				}
			}
		})
	}
}

func TestDesktopNotifier_UsesRunner(t *testing.T) {
	var gotName string
	var gotArgs []string
	d := &DesktopNotifier{
		goos: "linux",
		run: func(_ context.Context, name string, args ...string) error {
			gotName = name
			gotArgs = args
			return nil
		},
	}

	alert := &Alert{Kind: KindSpike, Title: "t", Body: "b"}
	if err := d.Notify(context.Background(), alert); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if gotName != "notify-send" {
		t.Errorf("runner name = %q, want notify-send", gotName)
	}
	if len(gotArgs) != 4 || gotArgs[2] != "t" || gotArgs[3] != "b" {
		t.Errorf("runner args = %q", gotArgs)
	}
	if d.Type() != "desktop" {
		t.Errorf("Type() = %q, want desktop", d.Type())
	}
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	_ = n.Notify(context.Background(), &Alert{Kind: KindSpike, Title: "Broadcastify Update (1 of 1)", FeedID: 7})
	_ = n.Notify(context.Background(), &Alert{Kind: KindError, Title: errorTitle, Body: "boom"})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("logged %d entries, want 2", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[0].ContextMap()["feed_id"] != uint32(7) {
		t.Errorf("spike entry = %+v", entries[0])
	}
	if entries[1].Level != zapcore.WarnLevel || entries[1].Message != errorTitle {
		t.Errorf("error entry = %+v", entries[1])
	}
}
