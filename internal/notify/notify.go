// Package notify sends desktop notifications when a split finishes.
package notify

import (
	"fmt"
	"log"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
)

// Notifier is implemented by anything that can surface a message to the user.
type Notifier interface {
	Notify(title, message, filePath string)
}

// Desktop notifies through terminal-notifier or osascript on macOS and
// notify-send on Linux. Failures are logged, never returned.
type Desktop struct{}

func (Desktop) Notify(title, message, filePath string) {
	name, args, ok := command(runtime.GOOS, title, message, filePath, exec.LookPath)
	if !ok {
		return
	}
	if err := exec.Command(name, args...).Run(); err != nil {
		log.Printf("通知の送信に失敗: %v", err)
	}
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(string, string, string) {}

type lookPathFunc func(string) (string, error)

// command picks the notification program for goos. filePath, when set,
// is opened on click where the program supports it.
func command(goos, title, message, filePath string, lookPath lookPathFunc) (string, []string, bool) {
	if _, err := lookPath("terminal-notifier"); err == nil {
		args := []string{"-title", title, "-message", message, "-sound", "default"}
		if filePath != "" {
			u := url.URL{Scheme: "file", Path: filePath}
			args = append(args, "-open", u.String())
		}
		return "terminal-notifier", args, true
	}

	switch goos {
	case "darwin":
		script := fmt.Sprintf(`display notification %s with title %s sound name "default"`, appleString(message), appleString(title))
		return "osascript", []string{"-e", script}, true
	case "linux":
		if _, err := lookPath("notify-send"); err == nil {
			return "notify-send", []string{title, message}, true
		}
	}
	return "", nil, false
}

// appleString quotes s as an AppleScript string literal.
func appleString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
