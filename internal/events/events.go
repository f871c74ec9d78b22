// Package events carries state changes from the filer core to whatever
// presents them (CLI output, progress bars, metrics).
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/spacefiler/spacefiler/internal/constants"
	"github.com/spacefiler/spacefiler/internal/models"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventNotification EventType = "notification"

	// Upload map snapshot after every mutation, including cleanup
	EventUploadsChanged EventType = "uploads_changed"

	// Conflict dialog: shown with the queue head, or dismissed when empty
	EventConflictPrompt    EventType = "conflict_prompt"
	EventConflictDismissed EventType = "conflict_dismissed"

	EventSessionChanged EventType = "session_changed"
)

// Level is the severity of a user-facing notification.
type Level string

const (
	LevelLoading Level = "loading"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// NewBase stamps an event header with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// NotificationEvent is a transient user-facing message.
type NotificationEvent struct {
	BaseEvent
	Level   Level
	Message string
	Err     error
}

// UploadsChangedEvent carries a full snapshot of the upload map.
type UploadsChangedEvent struct {
	BaseEvent
	Entries []models.UploadEntry
}

// ConflictEvent is published when the conflict dialog changes.
// Name is the queue head; empty for a dismissal.
type ConflictEvent struct {
	BaseEvent
	Name    string
	Pending int
}

// SessionEvent is published on login and logout.
type SessionEvent struct {
	BaseEvent
	LoggedIn bool
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking.
// A full subscriber channel drops the event and bumps the drop counter.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		eb.send(ch, event)
	}
	for _, ch := range eb.all {
		eb.send(ch, event)
	}
}

func (eb *EventBus) send(ch chan Event, event Event) {
	select {
	case ch <- event:
	default:
		eb.droppedEvents.Add(1)
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishNotification is a convenience method for user-facing messages
func (eb *EventBus) PublishNotification(level Level, message string, err error) {
	eb.Publish(&NotificationEvent{
		BaseEvent: NewBase(EventNotification),
		Level:     level,
		Message:   message,
		Err:       err,
	})
}

// PublishUploads publishes a snapshot of the upload map
func (eb *EventBus) PublishUploads(entries []models.UploadEntry) {
	eb.Publish(&UploadsChangedEvent{
		BaseEvent: NewBase(EventUploadsChanged),
		Entries:   entries,
	})
}

// PublishConflict shows the dialog for name, or dismisses it when pending is zero
func (eb *EventBus) PublishConflict(name string, pending int) {
	t := EventConflictPrompt
	if pending == 0 {
		t = EventConflictDismissed
		name = ""
	}
	eb.Publish(&ConflictEvent{
		BaseEvent: NewBase(t),
		Name:      name,
		Pending:   pending,
	})
}

// Unsubscribe removes a subscription channel from a specific event type
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
