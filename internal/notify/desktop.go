package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Compile-time interface guard.
var _ Notifier = (*DesktopNotifier)(nil)

const appName = "Feed Watch"

// Icons passed to notify-send.
const (
	iconUpdate = "emblem-sound"
	iconError  = "dialog-error"
)

// powershellAppID lets toasts show without registering a shortcut.
const powershellAppID = `{1AC14E77-02E7-4E5D-B744-2EB1AE5198B7}\WindowsPowerShell\v1.0\powershell.exe`

// CommandRunner runs an external program.
type CommandRunner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// DesktopNotifier shows alerts with the platform's notification tool:
// notify-send on Linux and the BSDs, osascript on macOS and a PowerShell
// toast on Windows.
type DesktopNotifier struct {
	goos string
	run  CommandRunner
}

// NewDesktopNotifier creates a desktop notifier for the running platform.
func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{goos: runtime.GOOS, run: execRunner}
}

// Notify shows the alert.
func (d *DesktopNotifier) Notify(ctx context.Context, alert *Alert) error {
	name, args, err := desktopCommand(d.goos, alert)
	if err != nil {
		return err
	}
	return d.run(ctx, name, args...)
}

// Type returns the notifier type identifier.
func (d *DesktopNotifier) Type() string {
	return "desktop"
}

func desktopCommand(goos string, alert *Alert) (string, []string, error) {
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd", "dragonfly":
		icon := iconUpdate
		if alert.Kind == KindError {
			icon = iconError
		}
		return "notify-send", []string{"--app-name=" + appName, "--icon=" + icon, alert.Title, alert.Body}, nil

	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s",
			appleScriptString(alert.Body), appleScriptString(alert.Title))
		return "osascript", []string{"-e", script}, nil

	case "windows":
		return "powershell", []string{"-NoProfile", "-NonInteractive", "-Command", toastScript(alert)}, nil

	default:
		return "", nil, fmt.Errorf("desktop notifications not supported on %s", goos)
	}
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func toastScript(alert *Alert) string {
	var lines strings.Builder
	for _, line := range strings.Split(alert.Body, "\n") {
		fmt.Fprintf(&lines, "<text>%s</text>", xmlEscape(line))
	}

	xml := fmt.Sprintf(`<toast><visual><binding template="ToastGeneric"><text>%s</text>%s</binding></visual></toast>`,
		xmlEscape(alert.Title), lines.String())

	return strings.Join([]string{
		`[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null`,
		`[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null`,
		`$xml = New-Object Windows.Data.Xml.Dom.XmlDocument`,
		`$xml.LoadXml(` + powershellString(xml) + `)`,
		`$toast = New-Object Windows.UI.Notifications.ToastNotification $xml`,
		`[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier(` + powershellString(powershellAppID) + `).Show($toast)`,
	}, "; ")
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")
	return r.Replace(s)
}

func powershellString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
