package state

import (
	"sync"

	"github.com/spacefiler/spacefiler/internal/events"
	"github.com/spacefiler/spacefiler/internal/listing"
	"github.com/spacefiler/spacefiler/internal/logging"
	"github.com/spacefiler/spacefiler/internal/models"
	"github.com/spacefiler/spacefiler/internal/permissions"
	"github.com/spacefiler/spacefiler/internal/session"
)

// FileListState is an observable file list container.
// It holds the current listing, the selection and the sort order, and
// publishes events on changes. Thread-safe for concurrent access.
type FileListState struct {
	// Event bus for publishing changes
	eventBus *events.EventBus

	// Sort order persistence; optional
	store  *session.State
	logger *logging.Logger

	// Current state
	items     []models.Item
	selected  models.Selection
	order     models.SortOrder
	folderID  string
	lastError error

	mu sync.RWMutex
}

// NewFileListState creates a new FileListState. The sort order is loaded
// from store when one is given.
func NewFileListState(eventBus *events.EventBus, store *session.State, logger *logging.Logger) *FileListState {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &FileListState{
		eventBus: eventBus,
		store:    store,
		logger:   logger.Component("filelist"),
		items:    make([]models.Item, 0),
		selected: make(models.Selection),
		order:    models.DefaultSortOrder,
	}
	if store != nil {
		order, err := store.SortOrder()
		if err != nil {
			s.logger.Warn().Err(err).Msg("Ignoring stored sort order")
		}
		s.order = order
	}
	return s
}

// GetItems returns a copy of the current items.
func (s *FileListState) GetItems() []models.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Item, len(s.items))
	copy(result, s.items)
	return result
}

// FolderID returns the id of the folder the items were listed from.
func (s *FileListState) FolderID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.folderID
}

// SetItems replaces the listing and publishes a change event. The items are
// re-sorted by the current order. A nil listing is stored as empty.
func (s *FileListState) SetItems(folderID string, items []models.Item) {
	s.mu.Lock()
	s.items = listing.Sorted(items, s.order)
	s.folderID = folderID
	s.lastError = nil
	itemsCopy := make([]models.Item, len(s.items))
	copy(itemsCopy, s.items)
	s.mu.Unlock()

	s.eventBus.Publish(NewFileListChangedEvent(folderID, itemsCopy))
}

// SetError records a failed load and publishes an error event.
func (s *FileListState) SetError(folderID string, err error) {
	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()

	if err != nil {
		s.eventBus.Publish(NewFileListErrorEvent(folderID, err))
	}
}

// GetError returns the last error.
func (s *FileListState) GetError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// ToggleSelect adds the item to the selection, or removes it if present.
func (s *FileListState) ToggleSelect(item models.Item) {
	s.mu.Lock()
	next := s.selected.Clone()
	if _, ok := next[item.ItemID]; ok {
		delete(next, item.ItemID)
	} else {
		next[item.ItemID] = models.SelectionEntry{
			IsFolder:    item.IsFolder,
			ItemName:    item.ItemName,
			Permissions: item.Permissions,
		}
	}
	s.selected = next
	s.mu.Unlock()

	s.publishSelection(next)
}

// Select adds an item to the selection.
func (s *FileListState) Select(item models.Item) {
	s.mu.Lock()
	next := s.selected.Clone()
	next[item.ItemID] = models.SelectionEntry{
		IsFolder:    item.IsFolder,
		ItemName:    item.ItemName,
		Permissions: item.Permissions,
	}
	s.selected = next
	s.mu.Unlock()

	s.publishSelection(next)
}

// Deselect removes an item from the selection.
func (s *FileListState) Deselect(id string) {
	s.mu.Lock()
	next := s.selected.Clone()
	delete(next, id)
	s.selected = next
	s.mu.Unlock()

	s.publishSelection(next)
}

// ClearSelection clears all selections.
func (s *FileListState) ClearSelection() {
	s.mu.Lock()
	s.selected = make(models.Selection)
	s.mu.Unlock()

	s.publishSelection(models.Selection{})
}

func (s *FileListState) publishSelection(sel models.Selection) {
	s.eventBus.Publish(NewSelectionChangedEvent(sel, permissions.ResolveSelection(sel)))
}

// IsSelected returns whether an item is selected.
func (s *FileListState) IsSelected(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.selected[id]
	return ok
}

// Selection returns a copy of the selection.
func (s *FileListState) Selection() models.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected.Clone()
}

// SelectedPermissions aggregates the permissions of the selection.
func (s *FileListState) SelectedPermissions() models.Permissions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return permissions.ResolveSelection(s.selected)
}

// SetSort updates the sort order and re-sorts the loaded list in place.
// Nothing is re-fetched. The order is persisted when a store is configured.
func (s *FileListState) SetSort(order models.SortOrder) {
	order = order.Normalize()

	s.mu.Lock()
	s.order = order
	listing.Sort(s.items, order)
	itemsCopy := make([]models.Item, len(s.items))
	copy(itemsCopy, s.items)
	folderID := s.folderID
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveSortOrder(order); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to persist sort order")
		}
	}

	s.eventBus.Publish(NewSortChangedEvent(order))
	s.eventBus.Publish(NewFileListChangedEvent(folderID, itemsCopy))
}

// GetSort returns the current sort order.
func (s *FileListState) GetSort() models.SortOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.order
}

// Clear clears all items and selection.
func (s *FileListState) Clear() {
	s.mu.Lock()
	s.items = make([]models.Item, 0)
	s.selected = make(models.Selection)
	s.lastError = nil
	folderID := s.folderID
	s.mu.Unlock()

	s.eventBus.Publish(NewFileListChangedEvent(folderID, []models.Item{}))
	s.publishSelection(models.Selection{})
}

// FindByID finds an item by ID.
func (s *FileListState) FindByID(id string) (models.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if item.ItemID == id {
			return item, true
		}
	}
	return models.Item{}, false
}

// FindByName finds the first item with the given name.
func (s *FileListState) FindByName(name string) (models.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if item.ItemName == name {
			return item, true
		}
	}
	return models.Item{}, false
}

// Count returns the number of items.
func (s *FileListState) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
