package progress

import (
	"context"
	"fmt"
	"io"

	"github.com/spacefiler/spacefiler/internal/events"
)

// Notices prints notification events one per line.
type Notices struct {
	out io.Writer
}

func NewNotices(out io.Writer) *Notices {
	return &Notices{out: out}
}

// Run prints notifications from ch until ctx is done or ch closes.
func (n *Notices) Run(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if note, ok := ev.(*events.NotificationEvent); ok {
				n.Print(note)
			}
		}
	}
}

// Print writes one notification.
func (n *Notices) Print(note *events.NotificationEvent) {
	fmt.Fprintf(n.out, "%s %s\n", marker(note.Level), note.Message)
}

func marker(level events.Level) string {
	switch level {
	case events.LevelSuccess:
		return "✓"
	case events.LevelWarning:
		return "!"
	case events.LevelError:
		return "✗"
	default:
		return "…"
	}
}
