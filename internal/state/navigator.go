package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spacefiler/spacefiler/internal/events"
	"github.com/spacefiler/spacefiler/internal/logging"
	"github.com/spacefiler/spacefiler/internal/models"
	"github.com/spacefiler/spacefiler/internal/session"
)

var (
	ErrNotFolder       = errors.New("item is not a folder")
	ErrNoLocation      = errors.New("no folder is open")
	ErrUnknownSpace    = errors.New("unknown space")
	ErrInvalidPathStep = errors.New("breadcrumb index out of range")
)

// ListFetcher produces a sorted, decorated listing or a nil listing and an
// error (already reported to the user).
type ListFetcher interface {
	FetchFileList(ctx context.Context, folderID string, order models.SortOrder) ([]models.Item, error)
}

// Navigator owns the space list and the breadcrumb path. The location that
// receives uploads is always derived from the path. Every path transition
// fetches the new listing first, then writes the path, clears the selection
// and persists the path.
type Navigator struct {
	fetcher  ListFetcher
	list     *FileListState
	store    *session.State
	eventBus *events.EventBus
	logger   *logging.Logger

	mu     sync.RWMutex
	spaces []models.Space
	path   models.Path
}

// NewNavigator creates a navigator with an empty path.
func NewNavigator(fetcher ListFetcher, list *FileListState, store *session.State, eventBus *events.EventBus, logger *logging.Logger) *Navigator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Navigator{
		fetcher:  fetcher,
		list:     list,
		store:    store,
		eventBus: eventBus,
		logger:   logger.Component("navigator"),
	}
}

// List returns the listing container driven by this navigator.
func (n *Navigator) List() *FileListState {
	return n.list
}

// Path returns a copy of the breadcrumb path.
func (n *Navigator) Path() models.Path {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.path.Clone()
}

// Location derives the current location from the path.
func (n *Navigator) Location() models.Location {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.path.Location()
}

// Spaces returns a copy of the space list.
func (n *Navigator) Spaces() []models.Space {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]models.Space, len(n.spaces))
	copy(out, n.spaces)
	return out
}

// Space looks a space up by id.
func (n *Navigator) Space(id string) (models.Space, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, s := range n.spaces {
		if s.ID == id {
			return s, true
		}
	}
	if s, ok := models.SpecialSpace(id); ok {
		return s, true
	}
	return models.Space{}, false
}

// SetSpaces replaces and persists the space list.
func (n *Navigator) SetSpaces(spaces []models.Space) error {
	cp := make([]models.Space, len(spaces))
	copy(cp, spaces)

	n.mu.Lock()
	n.spaces = cp
	n.mu.Unlock()

	n.eventBus.Publish(NewSpacesChangedEvent(cp))
	if err := n.store.SaveSpaces(cp); err != nil {
		return fmt.Errorf("failed to persist spaces: %w", err)
	}
	return nil
}

// SwitchSpace lists the space root and, on success, resets the path to the
// single space segment. On failure the path is left as it was.
func (n *Navigator) SwitchSpace(ctx context.Context, space models.Space) error {
	items, err := n.fetch(ctx, space.ID)
	if err != nil {
		return err
	}
	n.commit(items, func(models.Path) models.Path {
		return models.Path{{ID: space.ID, Name: space.Caption}}
	})
	return nil
}

// SwitchSpaceByID resolves id against the space list and switches to it.
func (n *Navigator) SwitchSpaceByID(ctx context.Context, id string) error {
	space, ok := n.Space(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSpace, id)
	}
	return n.SwitchSpace(ctx, space)
}

// OpenFolder lists the folder, then enters it. Opening the space itself
// collapses the path to the root. On failure the path is left as it was.
func (n *Navigator) OpenFolder(ctx context.Context, item models.Item) error {
	if !item.IsFolder {
		return fmt.Errorf("%w: %s", ErrNotFolder, item.ItemName)
	}
	items, err := n.fetch(ctx, item.ItemID)
	if err != nil {
		return err
	}
	n.commit(items, func(cur models.Path) models.Path {
		return cur.Enter(item.Segment())
	})
	return nil
}

// JumpTo re-opens the breadcrumb at index: the path is truncated before
// index and path[index] is appended again.
func (n *Navigator) JumpTo(ctx context.Context, index int) error {
	snapshot := n.Path()
	next, ok := snapshot.JumpTo(index)
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidPathStep, index)
	}

	items, err := n.fetch(ctx, next[len(next)-1].ID)
	if err != nil {
		return err
	}
	n.commit(items, func(models.Path) models.Path {
		return next
	})
	return nil
}

// Refresh re-lists the current location. The result is dropped if the user
// navigated elsewhere while it was in flight.
func (n *Navigator) Refresh(ctx context.Context) error {
	id := n.Location().CurrentID
	if id == "" {
		return ErrNoLocation
	}
	items, err := n.fetch(ctx, id)
	if err != nil {
		return err
	}
	if n.Location().CurrentID != id {
		n.logger.Debug().Str("folder_id", id).Msg("Dropping stale refresh")
		return nil
	}
	n.list.SetItems(id, items)
	return nil
}

// Restore rebuilds the location persisted by an earlier session. It reports
// false when no space list was persisted. Special spaces are restored by
// switching to them; other paths are restored as stored and their last
// segment is listed. A failed listing is reported and the partial state kept.
func (n *Navigator) Restore(ctx context.Context) (bool, error) {
	spaces, ok, err := n.store.Spaces()
	if err != nil {
		return false, fmt.Errorf("failed to read stored spaces: %w", err)
	}
	if !ok {
		return false, nil
	}
	n.mu.Lock()
	n.spaces = spaces
	n.mu.Unlock()
	n.eventBus.Publish(NewSpacesChangedEvent(n.Spaces()))

	path, ok, err := n.store.Path()
	if err != nil {
		n.logger.Warn().Err(err).Msg("Ignoring stored path")
	}
	if !ok || err != nil {
		if len(spaces) == 0 {
			return true, nil
		}
		return true, n.SwitchSpace(ctx, spaces[0])
	}

	last, _ := path.Last()
	if models.RestoresBySwitch(last.ID) {
		space, _ := models.SpecialSpace(last.ID)
		return true, n.SwitchSpace(ctx, space)
	}

	n.setPath(path)
	items, err := n.fetch(ctx, last.ID)
	if err != nil {
		return true, err
	}
	n.list.SetItems(last.ID, items)
	return true, nil
}

func (n *Navigator) fetch(ctx context.Context, folderID string) ([]models.Item, error) {
	items, err := n.fetcher.FetchFileList(ctx, folderID, n.list.GetSort())
	if err != nil {
		n.list.SetError(folderID, err)
		return nil, err
	}
	return items, nil
}

// commit installs a fetched listing and the path computed from the current
// one. The selection is always cleared.
func (n *Navigator) commit(items []models.Item, next func(cur models.Path) models.Path) {
	n.mu.Lock()
	path := next(n.path).Clone()
	n.path = path
	n.mu.Unlock()

	n.list.SetItems(path.Location().CurrentID, items)
	n.afterPathChange(path)
}

func (n *Navigator) setPath(path models.Path) {
	path = path.Clone()
	n.mu.Lock()
	n.path = path
	n.mu.Unlock()
	n.afterPathChange(path)
}

func (n *Navigator) afterPathChange(path models.Path) {
	n.list.ClearSelection()
	if err := n.store.SavePath(path); err != nil {
		n.logger.Warn().Err(err).Msg("Failed to persist path")
	}
	n.eventBus.Publish(NewPathChangedEvent(path))
}
