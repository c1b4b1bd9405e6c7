package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"setupsync/pkg/models"
)

// AppName titles desktop notifications.
const AppName = "setupsync"

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	cmd := exec.Command("notify-send", "--app-name", AppName, title, message)
	return cmd.Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %s with title %s`, appleQuote(message), appleQuote(title))
	cmd := exec.Command("osascript", "-e", script)
	return cmd.Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("%s").Show($toast)
	`, xmlEscape(title), xmlEscape(message), AppName)

	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	return cmd.Run()
}

// Notifier sends desktop notifications when enabled. Failures are ignored.
type Notifier struct {
	sender  NotificationSender
	enabled bool
}

// NewNotifier creates a Notifier for the current platform
func NewNotifier(enabled bool) *Notifier {
	var sender NotificationSender

	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	case "windows":
		sender = &WindowsNotificationSender{}
	}

	return &Notifier{sender: sender, enabled: enabled}
}

// NewNotifierWithSender creates an enabled Notifier using sender.
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender, enabled: true}
}

// Send delivers a notification if enabled and supported.
func (n *Notifier) Send(title, message string) {
	if n == nil || !n.enabled || n.sender == nil {
		return
	}
	_ = n.sender.Send(title, message)
}

// NotifyRun announces the end of a sync run.
func (n *Notifier) NotifyRun(result models.RunResult) {
	n.Send(RunTitle(result), RunMessage(result))
}

// RunTitle is the one-line headline for a finished run.
func RunTitle(result models.RunResult) string {
	switch {
	case result.Error != "":
		return "Setup sync failed"
	case result.Stopped:
		return "Setup sync stopped"
	case len(result.Failed) > 0:
		return "Setup sync finished with errors"
	default:
		return "Setup sync complete"
	}
}

// RunMessage is the body text for a finished run.
func RunMessage(result models.RunResult) string {
	if result.Error != "" {
		return result.Error
	}
	if result.NothingFound() {
		return "No eligible setups were found"
	}
	msg := fmt.Sprintf("%d of %d setups downloaded", len(result.Processed), result.Found)
	if n := len(result.Failed); n > 0 {
		msg += fmt.Sprintf(", %d failed", n)
	}
	return msg
}

func appleQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")
	return r.Replace(s)
}
