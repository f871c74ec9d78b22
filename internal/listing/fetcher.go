package listing

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/spacefiler/spacefiler/internal/events"
	"github.com/spacefiler/spacefiler/internal/logging"
	"github.com/spacefiler/spacefiler/internal/metrics"
	"github.com/spacefiler/spacefiler/internal/models"
	"github.com/spacefiler/spacefiler/internal/notify"
	"github.com/spacefiler/spacefiler/internal/permissions"
)

// Lister returns the raw children of a folder.
type Lister interface {
	ListFolder(ctx context.Context, folderID string) ([]models.Item, error)
}

// Fetcher turns raw folder listings into sorted, permission-decorated ones.
type Fetcher struct {
	lister   Lister
	resolver permissions.Resolver
	notifier *notify.Notifier
	eventBus *events.EventBus
	logger   *logging.Logger

	group singleflight.Group
}

// NewFetcher creates a Fetcher. A nil resolver selects permissions.Default.
func NewFetcher(lister Lister, resolver permissions.Resolver, notifier *notify.Notifier, eventBus *events.EventBus, logger *logging.Logger) *Fetcher {
	if resolver == nil {
		resolver = permissions.Default
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Fetcher{
		lister:   lister,
		resolver: resolver,
		notifier: notifier,
		eventBus: eventBus,
		logger:   logger.Component("listing"),
	}
}

// FetchFileList lists folderID, attaches permissions and sorts by order.
// On failure the error is reported on the notification channel and the
// returned listing is nil. Concurrent fetches of one folder share a request.
func (f *Fetcher) FetchFileList(ctx context.Context, folderID string, order models.SortOrder) ([]models.Item, error) {
	f.eventBus.Publish(newLoadingEvent(folderID, true))
	defer f.eventBus.Publish(newLoadingEvent(folderID, false))

	v, err, shared := f.group.Do(folderID, func() (interface{}, error) {
		start := time.Now()
		items, err := f.lister.ListFolder(ctx, folderID)
		metrics.RecordListingFetch(time.Since(start), err == nil)
		return items, err
	})
	if err != nil {
		f.notifier.Error("", err)
		return nil, fmt.Errorf("failed to list folder %s: %w", folderID, err)
	}

	raw, _ := v.([]models.Item)
	items := permissions.Apply(f.resolver, raw, folderID)
	Sort(items, order)

	f.logger.Debug().
		Str("folder_id", folderID).
		Int("items", len(items)).
		Bool("shared", shared).
		Msg("Listing fetched")
	return items, nil
}
