// Package conflict gates uploads on name collisions. Files whose name
// already exists in the destination wait in a FIFO queue until the user
// replaces the existing item, keeps both, or skips the file.
package conflict

import (
	"context"
	"errors"
	"sync"

	"github.com/spacefiler/spacefiler/internal/constants"
	"github.com/spacefiler/spacefiler/internal/events"
	"github.com/spacefiler/spacefiler/internal/logging"
	"github.com/spacefiler/spacefiler/internal/metrics"
	"github.com/spacefiler/spacefiler/internal/models"
)

// ErrQueueEmpty is returned by a decision when nothing awaits one.
var ErrQueueEmpty = errors.New("no file is waiting for a decision")

// Checker asks the filer whether a name is taken in a folder.
type Checker interface {
	CheckFileExistence(ctx context.Context, folderID, fileName string) (bool, error)
}

// Uploader starts one upload and returns its tracking key.
type Uploader interface {
	Upload(ctx context.Context, file models.File, action string) (string, error)
}

// Locator supplies the destination of new uploads.
type Locator interface {
	Location() models.Location
}

// Resolver owns the conflict queue. Only the head of the queue is ever
// presented; every change of head is published on the event bus.
type Resolver struct {
	checker  Checker
	uploader Uploader
	locator  Locator
	eventBus *events.EventBus
	logger   *logging.Logger

	mu    sync.Mutex
	queue []models.File
}

// NewResolver creates a resolver with an empty queue.
func NewResolver(checker Checker, uploader Uploader, locator Locator, eventBus *events.EventBus, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Resolver{
		checker:  checker,
		uploader: uploader,
		locator:  locator,
		eventBus: eventBus,
		logger:   logger.Component("conflict"),
	}
}

// CheckExists reports whether file's name is taken at the current
// location. A taken name queues the file and presents the queue head.
// A failed check counts as "not taken".
func (r *Resolver) CheckExists(ctx context.Context, file models.File) bool {
	if !r.exists(ctx, file) {
		return false
	}
	r.enqueue(file)
	return true
}

func (r *Resolver) exists(ctx context.Context, file models.File) bool {
	target := r.locator.Location().Target()
	exists, err := r.checker.CheckFileExistence(ctx, target, file.Name())
	if err != nil {
		metrics.RecordConflictCheck("error")
		r.logger.Warn().Err(err).Str("file", file.Name()).Msg("Existence check failed, uploading anyway")
		return false
	}
	if exists {
		metrics.RecordConflictCheck("exists")
	} else {
		metrics.RecordConflictCheck("free")
	}
	return exists
}

func (r *Resolver) enqueue(files ...models.File) {
	if len(files) == 0 {
		return
	}
	r.mu.Lock()
	r.queue = append(r.queue, files...)
	head, pending := r.queue[0].Name(), len(r.queue)
	r.eventBus.PublishConflict(head, pending)
	r.mu.Unlock()
}

// HandleDrop checks every file at once. Free names upload immediately and
// concurrently; taken names are queued in the order they were dropped.
// It returns once all checks and immediate uploads are over, with the
// number of files left waiting for a decision.
func (r *Resolver) HandleDrop(ctx context.Context, files []models.File) (int, error) {
	taken := make([]bool, len(files))
	var (
		checks  sync.WaitGroup
		uploads sync.WaitGroup
		errMu   sync.Mutex
		errs    []error
	)

	for i, f := range files {
		checks.Add(1)
		go func(i int, f models.File) {
			defer checks.Done()
			if r.exists(ctx, f) {
				taken[i] = true
				return
			}
			uploads.Add(1)
			go func() {
				defer uploads.Done()
				if _, err := r.uploader.Upload(ctx, f, ""); err != nil {
					errMu.Lock()
					errs = append(errs, err)
					errMu.Unlock()
				}
			}()
		}(i, f)
	}
	checks.Wait()

	var deferred []models.File
	for i, f := range files {
		if taken[i] {
			deferred = append(deferred, f)
		}
	}
	r.enqueue(deferred...)

	uploads.Wait()
	return len(deferred), errors.Join(errs...)
}

// Replace uploads the queue head over the existing item.
func (r *Resolver) Replace(ctx context.Context) (string, error) {
	file, err := r.pop("replace")
	if err != nil {
		return "", err
	}
	return r.uploader.Upload(ctx, file, constants.ActionReplace)
}

// KeepBoth uploads the queue head as a new item next to the existing one.
func (r *Resolver) KeepBoth(ctx context.Context) (string, error) {
	file, err := r.pop("keep_both")
	if err != nil {
		return "", err
	}
	return r.uploader.Upload(ctx, file, "")
}

// Skip drops the queue head without uploading it.
func (r *Resolver) Skip() (models.File, error) {
	return r.pop("skip")
}

func (r *Resolver) pop(decision string) (models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.queue) == 0 {
		return nil, ErrQueueEmpty
	}
	head := r.queue[0]
	r.queue = append([]models.File(nil), r.queue[1:]...)

	if len(r.queue) == 0 {
		r.eventBus.PublishConflict("", 0)
	} else {
		r.eventBus.PublishConflict(r.queue[0].Name(), len(r.queue))
	}

	metrics.RecordConflictDecision(decision)
	r.logger.Debug().Str("file", head.Name()).Str("decision", decision).Int("pending", len(r.queue)).Msg("Conflict resolved")
	return head, nil
}

// Head returns the file currently presented for a decision.
func (r *Resolver) Head() (models.File, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return nil, false
	}
	return r.queue[0], true
}

// Pending returns the number of files awaiting a decision.
func (r *Resolver) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}
