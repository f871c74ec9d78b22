package session

import (
	"github.com/spacefiler/spacefiler/internal/constants"
	"github.com/spacefiler/spacefiler/internal/models"
)

// State gives typed access to the persisted keys.
type State struct {
	store Store
}

// NewState wraps a Store.
func NewState(store Store) *State {
	return &State{store: store}
}

// Store returns the underlying store.
func (s *State) Store() Store {
	return s.store
}

// Spaces returns the persisted space list; ok is false when none was saved.
func (s *State) Spaces() ([]models.Space, bool, error) {
	var spaces []models.Space
	ok, err := getJSON(s.store, ScopeSession, constants.KeySpaces, &spaces)
	return spaces, ok, err
}

func (s *State) SaveSpaces(spaces []models.Space) error {
	return putJSON(s.store, ScopeSession, constants.KeySpaces, spaces)
}

// Path returns the persisted breadcrumb trail.
func (s *State) Path() (models.Path, bool, error) {
	var path models.Path
	ok, err := getJSON(s.store, ScopeSession, constants.KeyPath, &path)
	return path, ok && len(path) > 0, err
}

// SavePath persists a non-empty path. An empty path is never written.
func (s *State) SavePath(path models.Path) error {
	if len(path) == 0 {
		return nil
	}
	return putJSON(s.store, ScopeSession, constants.KeyPath, path)
}

// LoggedIn reports the persisted login flag.
func (s *State) LoggedIn() (bool, error) {
	data, ok, err := s.store.Get(ScopeSession, constants.KeyLoginState)
	if err != nil || !ok {
		return false, err
	}
	return string(data) == "1", nil
}

func (s *State) SetLoggedIn(loggedIn bool) error {
	if !loggedIn {
		return s.store.Delete(ScopeSession, constants.KeyLoginState)
	}
	return s.store.Put(ScopeSession, constants.KeyLoginState, []byte("1"))
}

// CollabApps returns the cached collaborator-app registry.
func (s *State) CollabApps() (models.CollabRegistry, bool, error) {
	var apps models.CollabRegistry
	ok, err := getJSON(s.store, ScopeLocal, constants.KeyCollabApps, &apps)
	return apps, ok, err
}

func (s *State) SaveCollabApps(apps models.CollabRegistry) error {
	return putJSON(s.store, ScopeLocal, constants.KeyCollabApps, apps)
}

// SortOrder returns the persisted listing order, or the default.
func (s *State) SortOrder() (models.SortOrder, error) {
	order := models.DefaultSortOrder
	if _, err := getJSON(s.store, ScopeLocal, constants.KeySort, &order); err != nil {
		return models.DefaultSortOrder, err
	}
	return order.Normalize(), nil
}

func (s *State) SaveSortOrder(order models.SortOrder) error {
	return putJSON(s.store, ScopeLocal, constants.KeySort, order.Normalize())
}

// ClearAll wipes both scopes.
func (s *State) ClearAll() error {
	for _, scope := range scopes {
		if err := s.store.Clear(scope); err != nil {
			return err
		}
	}
	return nil
}
