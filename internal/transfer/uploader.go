package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/spacefiler/spacefiler/internal/api"
	"github.com/spacefiler/spacefiler/internal/constants"
	"github.com/spacefiler/spacefiler/internal/logging"
	"github.com/spacefiler/spacefiler/internal/metrics"
	"github.com/spacefiler/spacefiler/internal/models"
	"github.com/spacefiler/spacefiler/internal/notify"
)

// ErrNoDestination is returned when no space is open.
var ErrNoDestination = errors.New("no destination: open a space first")

// Transport performs one file transfer.
type Transport interface {
	UploadFile(ctx context.Context, req api.UploadRequest, progress api.ProgressFunc) (string, error)
}

// Navigation supplies the upload destination and refreshes the listing.
type Navigation interface {
	Location() models.Location
	Refresh(ctx context.Context) error
}

// Recognizer reports whether a file type is known to a collaborator app.
type Recognizer interface {
	Recognized(name string) bool
}

// Uploader sends files to the location that is current when each upload
// starts. Distinct uploads run independently.
type Uploader struct {
	transport  Transport
	tracker    *Tracker
	nav        Navigation
	notifier   *notify.Notifier
	recognizer Recognizer
	logger     *logging.Logger
}

// NewUploader wires an uploader. recognizer may be nil.
func NewUploader(transport Transport, tracker *Tracker, nav Navigation, notifier *notify.Notifier, recognizer Recognizer, logger *logging.Logger) *Uploader {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Uploader{
		transport:  transport,
		tracker:    tracker,
		nav:        nav,
		notifier:   notifier,
		recognizer: recognizer,
		logger:     logger.Component("uploader"),
	}
}

// Tracker returns the upload map.
func (u *Uploader) Tracker() *Tracker {
	return u.tracker
}

// Upload transfers file with action "" (keep both) or "replace" and returns
// the tracking key. Progress replaces the tracked entry on every callback.
// On success the listing of the location current at completion is
// refreshed. On failure the error is reported and the entry stays pending.
func (u *Uploader) Upload(ctx context.Context, file models.File, action string) (string, error) {
	loc := u.nav.Location()
	if loc.SpaceID == "" {
		u.notifier.Error("", ErrNoDestination)
		return "", ErrNoDestination
	}

	name := file.Name()
	if u.recognizer != nil && !u.recognizer.Recognized(name) {
		u.notifier.Warning(fmt.Sprintf("%s: no app opens .%s files", name, models.Extension(name)))
	}

	key := u.tracker.Add(name)
	u.notifier.Loading("Uploading now")

	log := u.logger.With().Str("key", key).Str("file", name).Str("action", action).Logger()
	log.Debug().Str("space_id", loc.SpaceID).Str("folder_id", loc.FolderID).Msg("Upload started")

	req := api.UploadRequest{
		SpaceID:  loc.SpaceID,
		FolderID: loc.FolderID,
		Action:   action,
		File:     file,
	}
	_, err := u.transport.UploadFile(ctx, req, func(value string, cancel context.CancelFunc, serverID string) {
		status := models.UploadPending
		if value == constants.UploadDoneValue {
			status = models.UploadDone
		}
		u.tracker.Update(models.UploadEntry{
			Key:    key,
			Name:   name,
			Value:  value,
			Status: status,
			Cancel: cancel,
			ID:     serverID,
		})
	})
	metrics.RecordUpload(action, file.Size(), err == nil)
	if err != nil {
		u.notifier.Error(fmt.Sprintf("Upload of %s failed: %v", name, err), err)
		return key, fmt.Errorf("upload of %s failed: %w", name, err)
	}

	log.Debug().Msg("Upload finished")
	if err := u.nav.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Msg("Failed to refresh listing after upload")
	}
	u.notifier.Success("Upload successfully")
	return key, nil
}
