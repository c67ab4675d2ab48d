package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// TerminalChannel writes notifications to a terminal with colour.
type TerminalChannel struct {
	out         io.Writer
	enabled     bool
	bellEnabled bool
	mu          sync.Mutex
}

// TerminalOption configures a TerminalChannel.
type TerminalOption func(*TerminalChannel)

// WithWriter sets the output writer. Defaults to stderr.
func WithWriter(w io.Writer) TerminalOption {
	return func(t *TerminalChannel) { t.out = w }
}

// WithBell rings the terminal bell on order and error notifications.
func WithBell(enabled bool) TerminalOption {
	return func(t *TerminalChannel) { t.bellEnabled = enabled }
}

// NewTerminalChannel creates a terminal channel.
func NewTerminalChannel(opts ...TerminalOption) *TerminalChannel {
	t := &TerminalChannel{
		out:     os.Stderr,
		enabled: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the channel name.
func (t *TerminalChannel) Name() string {
	return "terminal"
}

// IsEnabled returns whether the channel is enabled.
func (t *TerminalChannel) IsEnabled() bool {
	return t.enabled
}

// SetEnabled toggles the channel.
func (t *TerminalChannel) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

// Send writes the formatted notification.
func (t *TerminalChannel) Send(ctx context.Context, n Notification) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bellEnabled && (n.Type == NotificationOrder || n.Type == NotificationError) {
		fmt.Fprint(t.out, "\a")
	}
	_, err := fmt.Fprintln(t.out, FormatNotification(n))
	return err
}

// FormatNotification renders a notification as a single coloured block.
func FormatNotification(n Notification) string {
	var icon string
	var c *color.Color

	switch n.Type {
	case NotificationOrder:
		icon, c = "📤", color.New(color.FgGreen, color.Bold)
	case NotificationUpdate:
		icon, c = "🔄", color.New(color.FgCyan)
	case NotificationError:
		icon, c = "❌", color.New(color.FgRed, color.Bold)
	case NotificationWarning:
		icon, c = "⚠️", color.New(color.FgYellow)
	default:
		icon, c = "ℹ️", color.New(color.FgWhite)
	}

	var sb strings.Builder
	ts := n.Timestamp.Format("15:04:05")
	sb.WriteString(c.Sprintf("%s [%s] %s", icon, ts, n.Title))
	for _, line := range strings.Split(n.Message, "\n") {
		if line == "" {
			continue
		}
		sb.WriteString("\n   ")
		sb.WriteString(line)
	}
	return sb.String()
}

var _ NotificationChannel = (*TerminalChannel)(nil)
