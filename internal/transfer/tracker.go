// Package transfer tracks and performs uploads into the filer.
package transfer

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spacefiler/spacefiler/internal/constants"
	"github.com/spacefiler/spacefiler/internal/events"
	"github.com/spacefiler/spacefiler/internal/logging"
	"github.com/spacefiler/spacefiler/internal/metrics"
	"github.com/spacefiler/spacefiler/internal/models"
)

// ErrUnknownUpload is returned for keys that are not (or no longer) tracked.
var ErrUnknownUpload = errors.New("upload not found")

// Tracker is the upload map. Every mutation replaces the whole map with an
// updated copy, bumps the map version and schedules one cleanup for that
// version. A cleanup for version v removes entries at "100%" whose last
// mutation was at or before v; an entry touched again later waits for its
// own cleanup. Cleanups never schedule further cleanups.
type Tracker struct {
	eventBus     *events.EventBus
	logger       *logging.Logger
	cleanupDelay time.Duration

	mu      sync.Mutex
	entries map[string]models.UploadEntry
	order   []string
	touched map[string]uint64 // key -> version of its last mutation
	version uint64
	timers  map[uint64]*time.Timer
	closed  bool
}

// NewTracker creates an empty upload map.
func NewTracker(eventBus *events.EventBus, logger *logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Tracker{
		eventBus:     eventBus,
		logger:       logger.Component("tracker"),
		cleanupDelay: constants.UploadCleanupDelay,
		entries:      make(map[string]models.UploadEntry),
		touched:      make(map[string]uint64),
		timers:       make(map[uint64]*time.Timer),
	}
}

// Add starts tracking a new upload of name at "0%" and returns its key.
// Keys are random, so two uploads of one file name never collide.
func (t *Tracker) Add(name string) string {
	key := uuid.NewString()
	t.mutate(key, func(next map[string]models.UploadEntry) bool {
		next[key] = models.UploadEntry{
			Key:    key,
			Name:   name,
			Value:  constants.UploadInitialValue,
			Status: models.UploadPending,
		}
		return true
	})
	return key
}

// Update replaces the entry stored under entry.Key. Updates for keys that
// are not tracked are ignored, so a cleaned-up entry never comes back.
func (t *Tracker) Update(entry models.UploadEntry) bool {
	return t.mutate(entry.Key, func(next map[string]models.UploadEntry) bool {
		if _, ok := next[entry.Key]; !ok {
			return false
		}
		next[entry.Key] = entry
		return true
	})
}

// Cancel invokes the cancel handle surfaced by the transfer. Cancellation
// is advisory: the entry stays until the transfer reports back.
func (t *Tracker) Cancel(key string) error {
	t.mu.Lock()
	entry, ok := t.entries[key]
	t.mu.Unlock()
	if !ok {
		return ErrUnknownUpload
	}
	if entry.Cancel == nil {
		return errors.New("upload has no cancel handle yet")
	}
	entry.Cancel()
	return nil
}

// Get returns the entry for key.
func (t *Tracker) Get(key string) (models.UploadEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	return e, ok
}

// Snapshot returns the entries in insertion order.
func (t *Tracker) Snapshot() []models.UploadEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Len returns the number of tracked uploads.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Close stops pending cleanups. Later mutations still apply but schedule
// nothing.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for v, timer := range t.timers {
		timer.Stop()
		delete(t.timers, v)
	}
}

func (t *Tracker) mutate(key string, apply func(next map[string]models.UploadEntry) bool) bool {
	t.mu.Lock()
	next := make(map[string]models.UploadEntry, len(t.entries)+1)
	for k, v := range t.entries {
		next[k] = v
	}
	if !apply(next) {
		t.mu.Unlock()
		return false
	}

	if _, existed := t.entries[key]; !existed {
		t.order = append(append([]string(nil), t.order...), key)
	}
	t.entries = next
	t.version++
	v := t.version
	t.touched[key] = v
	if !t.closed {
		t.timers[v] = time.AfterFunc(t.cleanupDelay, func() { t.cleanup(v) })
	}
	// Published under the lock so subscribers see snapshots in version order.
	t.publish(t.snapshotLocked())
	t.mu.Unlock()
	return true
}

func (t *Tracker) cleanup(v uint64) {
	t.mu.Lock()
	delete(t.timers, v)

	var done []string
	for k, e := range t.entries {
		if e.Value == constants.UploadDoneValue && t.touched[k] <= v {
			done = append(done, k)
		}
	}
	if len(done) == 0 {
		t.mu.Unlock()
		return
	}

	next := make(map[string]models.UploadEntry, len(t.entries))
	for k, e := range t.entries {
		next[k] = e
	}
	for _, k := range done {
		delete(next, k)
		delete(t.touched, k)
	}
	order := make([]string, 0, len(next))
	for _, k := range t.order {
		if _, ok := next[k]; ok {
			order = append(order, k)
		}
	}
	t.entries = next
	t.order = order
	t.publish(t.snapshotLocked())
	t.mu.Unlock()

	t.logger.Debug().Int("removed", len(done)).Uint64("version", v).Msg("Cleaned up finished uploads")
}

func (t *Tracker) snapshotLocked() []models.UploadEntry {
	out := make([]models.UploadEntry, 0, len(t.order))
	for _, k := range t.order {
		if e, ok := t.entries[k]; ok {
			out = append(out, e)
		}
	}
	return out
}

func (t *Tracker) publish(snapshot []models.UploadEntry) {
	metrics.SetTrackedUploads(len(snapshot))
	t.eventBus.PublishUploads(snapshot)
}
