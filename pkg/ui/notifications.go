package ui

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"moodlescraper/pkg/config"
)

const notificationTitle = "Moodle Scraper"

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	cmd := exec.Command("notify-send", title, message)
	return cmd.Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
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
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier(%q).Show($toast)
	`, title, message, notificationTitle)

	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	return cmd.Run()
}

// Notifier announces run completion and failure according to the
// notification settings
type Notifier struct {
	out    io.Writer
	sender NotificationSender
	cfg    config.NotificationConfig
}

// NewNotifier creates a Notifier. The "desktop" type also sends a platform
// notification; "terminal" only prints.
func NewNotifier(out io.Writer, cfg config.NotificationConfig) *Notifier {
	var sender NotificationSender
	if strings.EqualFold(cfg.NotificationType, "desktop") {
		sender = platformSender()
	}
	return &Notifier{out: out, sender: sender, cfg: cfg}
}

func platformSender() NotificationSender {
	switch runtime.GOOS {
	case "linux":
		return &LinuxNotificationSender{}
	case "darwin":
		return &MacOSNotificationSender{}
	case "windows":
		return &WindowsNotificationSender{}
	default:
		return nil
	}
}

func (n *Notifier) active() bool {
	return n.cfg.Enabled && !strings.EqualFold(n.cfg.NotificationType, "none")
}

// NotifyComplete announces a finished run
func (n *Notifier) NotifyComplete(s Summary) {
	if !n.active() || !n.cfg.OnComplete {
		return
	}
	message := fmt.Sprintf("%d entries, %d files organized", s.Entries, s.Moved+s.Recovered)
	fmt.Fprintf(n.out, "\n%s: %s\n", Green(notificationTitle), Green(message))
	n.send(message)
}

// NotifyFailure announces an aborted run
func (n *Notifier) NotifyFailure(err error) {
	if !n.active() || !n.cfg.OnError {
		return
	}
	message := fmt.Sprintf("Run aborted: %v", err)
	fmt.Fprintf(n.out, "\n%s: %s\n", Red(notificationTitle), Red(message))
	n.send(message)
}

func (n *Notifier) send(message string) {
	if n.sender != nil {
		// notifications are best effort
		_ = n.sender.Send(notificationTitle, message)
	}
}
