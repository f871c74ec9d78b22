package session

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/spacefiler/spacefiler/internal/constants"
	"github.com/spacefiler/spacefiler/internal/events"
	"github.com/spacefiler/spacefiler/internal/logging"
	"github.com/spacefiler/spacefiler/internal/models"
)

// Directory is the part of the filer API the session context reads from.
type Directory interface {
	Discovery(ctx context.Context) (models.CollabRegistry, error)
	Users(ctx context.Context) ([]models.User, error)
}

// Context is the per-session shared state: collaborator apps, the user
// directory and the login flag. Build one at startup with NewContext and
// call Teardown at logout.
type Context struct {
	state    *State
	dir      Directory
	eventBus *events.EventBus
	logger   *logging.Logger

	group singleflight.Group

	mu       sync.RWMutex
	coolApps models.CollabRegistry
	users    []models.User
	isLogin  bool
}

// NewContext creates a session context. Call Load before use.
func NewContext(state *State, dir Directory, eventBus *events.EventBus, logger *logging.Logger) *Context {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Context{
		state:    state,
		dir:      dir,
		eventBus: eventBus,
		logger:   logger.Component("session"),
	}
}

// Load restores the login flag and the collaborator apps. The apps come from
// the local cache when present and from the discovery endpoint otherwise;
// a failed discovery is logged and leaves the registry empty.
func (c *Context) Load(ctx context.Context) {
	loggedIn, err := c.state.LoggedIn()
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to read login state")
	}
	c.mu.Lock()
	c.isLogin = loggedIn
	c.mu.Unlock()

	if _, err := c.CoolApps(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Error fetching collaborator apps")
	}
	if loggedIn {
		c.refreshUsers(ctx)
	}
}

// CoolApps returns the collaborator-app registry, fetching and caching it
// on first use. Concurrent callers share one fetch.
func (c *Context) CoolApps(ctx context.Context) (models.CollabRegistry, error) {
	c.mu.RLock()
	apps := c.coolApps
	c.mu.RUnlock()
	if apps != nil {
		return apps, nil
	}

	v, err, _ := c.group.Do(constants.KeyCollabApps, func() (interface{}, error) {
		cached, ok, err := c.state.CollabApps()
		if err != nil {
			c.logger.Warn().Err(err).Msg("Ignoring cached collaborator apps")
		}
		if ok && err == nil {
			return cached, nil
		}

		fetched, err := c.dir.Discovery(ctx)
		if err != nil {
			return nil, err
		}
		if fetched == nil {
			fetched = models.CollabRegistry{}
		}
		if err := c.state.SaveCollabApps(fetched); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache collaborator apps")
		}
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}

	apps = v.(models.CollabRegistry)
	c.mu.Lock()
	c.coolApps = apps
	c.mu.Unlock()
	return apps, nil
}

// SetLogin records the login flag. Turning it on fetches the user directory.
func (c *Context) SetLogin(ctx context.Context, loggedIn bool) error {
	if err := c.state.SetLoggedIn(loggedIn); err != nil {
		return err
	}
	c.mu.Lock()
	c.isLogin = loggedIn
	if !loggedIn {
		c.users = nil
	}
	c.mu.Unlock()

	if loggedIn {
		c.refreshUsers(ctx)
	}
	c.eventBus.Publish(&events.SessionEvent{
		BaseEvent: events.NewBase(events.EventSessionChanged),
		LoggedIn:  loggedIn,
	})
	return nil
}

func (c *Context) refreshUsers(ctx context.Context) {
	users, err := c.dir.Users(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Error fetching users")
		return
	}
	c.mu.Lock()
	c.users = users
	c.mu.Unlock()
}

// IsLogin reports whether the session is signed in.
func (c *Context) IsLogin() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isLogin
}

// Users returns a copy of the user directory.
func (c *Context) Users() []models.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.User, len(c.users))
	copy(out, c.users)
	return out
}

// Extensions lists the recognized upload extensions: "txt" followed by the
// extensions of every collaborator app, ordered by app key, without duplicates.
func (c *Context) Extensions() []string {
	c.mu.RLock()
	apps := c.coolApps
	c.mu.RUnlock()

	keys := make([]string, 0, len(apps))
	for k := range apps {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := map[string]bool{constants.DefaultExtension: true}
	exts := []string{constants.DefaultExtension}
	for _, k := range keys {
		for _, ext := range apps[k].Extensions {
			ext = strings.ToLower(strings.TrimPrefix(ext, "."))
			if ext == "" || seen[ext] {
				continue
			}
			seen[ext] = true
			exts = append(exts, ext)
		}
	}
	return exts
}

// Recognized reports whether a file name has a recognized extension.
func (c *Context) Recognized(name string) bool {
	ext := models.Extension(name)
	for _, e := range c.Extensions() {
		if e == ext {
			return true
		}
	}
	return false
}

// State returns the persisted-state accessor.
func (c *Context) State() *State {
	return c.state
}

// Teardown clears every persisted value and resets the in-memory session.
func (c *Context) Teardown() error {
	c.mu.Lock()
	c.coolApps = nil
	c.users = nil
	c.isLogin = false
	c.mu.Unlock()
	c.group.Forget(constants.KeyCollabApps)
	return c.state.ClearAll()
}
