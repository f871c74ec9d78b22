// Package notify is the user-facing notification channel of the filer core.
// Every notice is logged and, while enabled, published on the event bus for
// the presentation layer to render.
package notify

import (
	"sync/atomic"

	"github.com/spacefiler/spacefiler/internal/events"
	"github.com/spacefiler/spacefiler/internal/logging"
)

const maxMessageLen = 200

// Notifier publishes loading, success, warning and error notices.
type Notifier struct {
	eventBus *events.EventBus
	logger   *logging.Logger
	enabled  atomic.Bool
}

// NewNotifier creates an enabled notifier. Both arguments may be nil.
func NewNotifier(eventBus *events.EventBus, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	n := &Notifier{
		eventBus: eventBus,
		logger:   logger.Component("notify"),
	}
	n.enabled.Store(true)
	return n
}

// SetEnabled enables or disables publishing. Logging is unaffected.
func (n *Notifier) SetEnabled(enabled bool) {
	n.enabled.Store(enabled)
}

// IsEnabled returns whether notices are published.
func (n *Notifier) IsEnabled() bool {
	return n.enabled.Load()
}

// Loading announces a long-running operation.
func (n *Notifier) Loading(message string) {
	n.notify(events.LevelLoading, message, nil)
}

func (n *Notifier) Success(message string) {
	n.notify(events.LevelSuccess, message, nil)
}

func (n *Notifier) Warning(message string) {
	n.notify(events.LevelWarning, message, nil)
}

// Error reports a failed operation. The message shown is err's text when
// message is empty.
func (n *Notifier) Error(message string, err error) {
	if message == "" && err != nil {
		message = err.Error()
	}
	n.notify(events.LevelError, message, err)
}

func (n *Notifier) notify(level events.Level, message string, err error) {
	if n == nil {
		return
	}
	message = truncate(message, maxMessageLen)

	switch level {
	case events.LevelError:
		n.logger.Error().Err(err).Msg(message)
	case events.LevelWarning:
		n.logger.Warn().Msg(message)
	default:
		n.logger.Debug().Str("level", string(level)).Msg(message)
	}

	if !n.IsEnabled() {
		return
	}
	n.eventBus.PublishNotification(level, message, err)
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
