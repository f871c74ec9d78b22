package listing

import "github.com/spacefiler/spacefiler/internal/events"

// EventListingLoading is published when a fetch starts and when it ends.
const EventListingLoading events.EventType = "listing_loading"

// LoadingEvent drives the loading indicator.
type LoadingEvent struct {
	events.BaseEvent
	FolderID string
	Loading  bool
}

func newLoadingEvent(folderID string, loading bool) *LoadingEvent {
	return &LoadingEvent{
		BaseEvent: events.NewBase(EventListingLoading),
		FolderID:  folderID,
		Loading:   loading,
	}
}
