package notify

import (
	"os/exec"
	"runtime"
	"strings"

	"github.com/billmal071/zlibdl/internal/config"
)

// Notification types
const (
	TypeSuccess = "success"
	TypeError   = "error"
	TypeInfo    = "info"
)

// Send sends a desktop notification if enabled in config
func Send(title, message, notifyType string) {
	if !config.Get().Downloads.Notifications {
		return
	}

	// Send notification in background
	go sendNotification(title, message, notifyType)
}

// DownloadComplete sends a download complete notification
func DownloadComplete(filename string) {
	Send("Download Complete", filename, TypeSuccess)
}

// DownloadFailed sends a download failed notification
func DownloadFailed(filename, reason string) {
	Send("Download Failed", failureMessage(filename, reason), TypeError)
}

// LoggedIn sends a notification after a successful login
func LoggedIn(email string) {
	Send("Logged In", email, TypeInfo)
}

func failureMessage(filename, reason string) string {
	if reason == "" {
		return filename
	}
	return filename + ": " + reason
}

func sendNotification(title, message, notifyType string) {
	switch runtime.GOOS {
	case "linux":
		sendLinuxNotification(title, message, notifyType)
	case "darwin":
		sendMacNotification(title, message)
	case "windows":
		sendWindowsNotification(title, message)
	}
}

func sendLinuxNotification(title, message, notifyType string) {
	exec.Command("notify-send", "-i", linuxIcon(notifyType), "-a", "zlibdl", title, message).Run()
}

func linuxIcon(notifyType string) string {
	switch notifyType {
	case TypeSuccess:
		return "dialog-ok"
	case TypeError:
		return "dialog-error"
	default:
		return "dialog-information"
	}
}

func sendMacNotification(title, message string) {
	script := `display notification "` + escapeAppleScript(message) + `" with title "` + escapeAppleScript(title) + `"`
	exec.Command("osascript", "-e", script).Run()
}

func sendWindowsNotification(title, message string) {
	// Use PowerShell for Windows notifications
	script := `
	[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
	[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
	$template = '<toast><visual><binding template="ToastText02"><text id="1">` + escapeXML(title) + `</text><text id="2">` + escapeXML(message) + `</text></binding></visual></toast>'
	$xml = New-Object Windows.Data.Xml.Dom.XmlDocument
	$xml.LoadXml($template)
	$toast = [Windows.UI.Notifications.ToastNotification]::new($xml)
	[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("zlibdl").Show($toast)
	`
	exec.Command("powershell", "-Command", script).Run()
}

var (
	appleScriptEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	xmlEscaper         = strings.NewReplacer("<", "&lt;", ">", "&gt;", "&", "&amp;", `"`, "&quot;", "'", "&apos;")
)

func escapeAppleScript(s string) string {
	return appleScriptEscaper.Replace(s)
}

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
