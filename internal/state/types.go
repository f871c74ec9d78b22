// Package state provides observable state containers for the filer client.
// These containers emit events when state changes, allowing any frontend
// to subscribe and update its output accordingly.
package state

import (
	"github.com/spacefiler/spacefiler/internal/events"
	"github.com/spacefiler/spacefiler/internal/models"
)

// State event types
const (
	// File list events
	EventFileListChanged  events.EventType = "file_list_changed"
	EventFileListError    events.EventType = "file_list_error"
	EventSelectionChanged events.EventType = "selection_changed"
	EventSortChanged      events.EventType = "sort_changed"

	// Navigation events
	EventPathChanged   events.EventType = "path_changed"
	EventSpacesChanged events.EventType = "spaces_changed"
)

// FileListChangedEvent is published when the file list changes.
type FileListChangedEvent struct {
	events.BaseEvent
	Items    []models.Item
	FolderID string
}

// FileListErrorEvent is published when a file list load fails.
type FileListErrorEvent struct {
	events.BaseEvent
	FolderID string
	Error    error
}

// SelectionChangedEvent is published when the selection changes.
type SelectionChangedEvent struct {
	events.BaseEvent
	Selection   models.Selection
	Permissions models.Permissions
}

// SortChangedEvent is published when the sort order changes.
type SortChangedEvent struct {
	events.BaseEvent
	Order models.SortOrder
}

// PathChangedEvent is published after every path transition.
type PathChangedEvent struct {
	events.BaseEvent
	Path     models.Path
	Location models.Location
}

// SpacesChangedEvent is published when the space list is replaced.
type SpacesChangedEvent struct {
	events.BaseEvent
	Spaces []models.Space
}

// NewFileListChangedEvent creates a new FileListChangedEvent.
func NewFileListChangedEvent(folderID string, items []models.Item) *FileListChangedEvent {
	return &FileListChangedEvent{
		BaseEvent: events.NewBase(EventFileListChanged),
		Items:     items,
		FolderID:  folderID,
	}
}

// NewFileListErrorEvent creates a new FileListErrorEvent.
func NewFileListErrorEvent(folderID string, err error) *FileListErrorEvent {
	return &FileListErrorEvent{
		BaseEvent: events.NewBase(EventFileListError),
		FolderID:  folderID,
		Error:     err,
	}
}

// NewSelectionChangedEvent creates a new SelectionChangedEvent.
func NewSelectionChangedEvent(sel models.Selection, perms models.Permissions) *SelectionChangedEvent {
	return &SelectionChangedEvent{
		BaseEvent:   events.NewBase(EventSelectionChanged),
		Selection:   sel,
		Permissions: perms,
	}
}

// NewSortChangedEvent creates a new SortChangedEvent.
func NewSortChangedEvent(order models.SortOrder) *SortChangedEvent {
	return &SortChangedEvent{
		BaseEvent: events.NewBase(EventSortChanged),
		Order:     order,
	}
}

// NewPathChangedEvent creates a new PathChangedEvent.
func NewPathChangedEvent(path models.Path) *PathChangedEvent {
	return &PathChangedEvent{
		BaseEvent: events.NewBase(EventPathChanged),
		Path:      path,
		Location:  path.Location(),
	}
}

// NewSpacesChangedEvent creates a new SpacesChangedEvent.
func NewSpacesChangedEvent(spaces []models.Space) *SpacesChangedEvent {
	return &SpacesChangedEvent{
		BaseEvent: events.NewBase(EventSpacesChanged),
		Spaces:    spaces,
	}
}
