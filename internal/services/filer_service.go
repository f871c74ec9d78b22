// Package services wires the filer core together for any frontend: the API
// client, persisted session, navigation, listing, uploads and conflicts.
package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spacefiler/spacefiler/internal/api"
	"github.com/spacefiler/spacefiler/internal/config"
	"github.com/spacefiler/spacefiler/internal/conflict"
	"github.com/spacefiler/spacefiler/internal/events"
	"github.com/spacefiler/spacefiler/internal/listing"
	"github.com/spacefiler/spacefiler/internal/logging"
	"github.com/spacefiler/spacefiler/internal/models"
	"github.com/spacefiler/spacefiler/internal/notify"
	"github.com/spacefiler/spacefiler/internal/permissions"
	"github.com/spacefiler/spacefiler/internal/session"
	"github.com/spacefiler/spacefiler/internal/state"
	"github.com/spacefiler/spacefiler/internal/transfer"
)

// ErrNotLoggedIn is returned by operations that need a signed-in session.
var ErrNotLoggedIn = errors.New("not logged in: run 'spacefiler login' first")

// FilerService is the composition root of one client session.
type FilerService struct {
	store    session.Store
	jar      *session.PersistentJar
	client   *api.Client
	eventBus *events.EventBus
	notifier *notify.Notifier
	logger   *logging.Logger

	session  *session.Context
	fetcher  *listing.Fetcher
	files    *state.FileListState
	nav      *state.Navigator
	tracker  *transfer.Tracker
	uploader *transfer.Uploader
	resolver *conflict.Resolver
}

// NewFilerService opens the persisted state file named by cfg and builds a
// service on it.
func NewFilerService(cfg *config.Config, eventBus *events.EventBus, logger *logging.Logger) (*FilerService, error) {
	path := cfg.ResolvedStatePath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	store, err := session.OpenBoltStore(path)
	if err != nil {
		return nil, err
	}
	svc, err := NewFilerServiceWithStore(cfg, store, eventBus, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return svc, nil
}

// NewFilerServiceWithStore builds a service on an already opened store.
func NewFilerServiceWithStore(cfg *config.Config, store session.Store, eventBus *events.EventBus, logger *logging.Logger) (*FilerService, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	jar, err := session.NewPersistentJar(store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	client, err := api.NewClient(cfg, jar, logger)
	if err != nil {
		return nil, err
	}

	st := session.NewState(store)
	notifier := notify.NewNotifier(eventBus, logger)
	fetcher := listing.NewFetcher(client, permissions.Default, notifier, eventBus, logger)
	files := state.NewFileListState(eventBus, st, logger)
	nav := state.NewNavigator(fetcher, files, st, eventBus, logger)
	sc := session.NewContext(st, client, eventBus, logger)
	tracker := transfer.NewTracker(eventBus, logger)
	uploader := transfer.NewUploader(client, tracker, nav, notifier, sc, logger)
	resolver := conflict.NewResolver(client, uploader, nav, eventBus, logger)

	return &FilerService{
		store:    store,
		jar:      jar,
		client:   client,
		eventBus: eventBus,
		notifier: notifier,
		logger:   logger.Component("filer"),
		session:  sc,
		fetcher:  fetcher,
		files:    files,
		nav:      nav,
		tracker:  tracker,
		uploader: uploader,
		resolver: resolver,
	}, nil
}

func (s *FilerService) Client() *api.Client { return s.client }
func (s *FilerService) EventBus() *events.EventBus { return s.eventBus }
func (s *FilerService) Notifier() *notify.Notifier { return s.notifier }
func (s *FilerService) Session() *session.Context { return s.session }
func (s *FilerService) Files() *state.FileListState { return s.files }
func (s *FilerService) Navigator() *state.Navigator { return s.nav }
func (s *FilerService) Tracker() *transfer.Tracker { return s.tracker }
func (s *FilerService) Uploader() *transfer.Uploader { return s.uploader }
func (s *FilerService) Conflicts() *conflict.Resolver { return s.resolver }
func (s *FilerService) Fetcher() *listing.Fetcher { return s.fetcher }

// Start loads the session context and, when signed in, restores the last
// location or loads the space list afresh.
func (s *FilerService) Start(ctx context.Context) error {
	s.session.Load(ctx)
	if !s.session.IsLogin() {
		return ErrNotLoggedIn
	}

	restored, err := s.nav.Restore(ctx)
	if err != nil {
		// Partial state is kept; the listing error was already reported.
		s.logger.Warn().Err(err).Msg("Restore incomplete")
		return nil
	}
	if !restored {
		return s.LoadSpaces(ctx)
	}
	return nil
}

// Login signs in, marks the session as logged in and loads the spaces.
func (s *FilerService) Login(ctx context.Context, username, password string) error {
	if err := s.client.SignIn(ctx, username, password); err != nil {
		s.notifier.Error("", err)
		return fmt.Errorf("sign-in failed: %w", err)
	}
	if err := s.session.SetLogin(ctx, true); err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	if _, err := s.session.CoolApps(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Error fetching collaborator apps")
	}
	return s.LoadSpaces(ctx)
}

// Logout signs out and wipes every persisted value. With force the local
// state is wiped even if the server cannot be reached.
func (s *FilerService) Logout(ctx context.Context, force bool) error {
	if err := s.client.SignOut(ctx); err != nil {
		if !force {
			s.notifier.Error("", err)
			return fmt.Errorf("sign-out failed: %w", err)
		}
		s.logger.Warn().Err(err).Msg("Sign-out failed, clearing local state anyway")
	}

	if err := s.jar.Reset(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to clear cookies")
	}
	if err := s.session.Teardown(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	s.eventBus.Publish(&events.SessionEvent{
		BaseEvent: events.NewBase(events.EventSessionChanged),
		LoggedIn:  false,
	})
	return nil
}

// LoadSpaces fetches the space list, drops shared spaces, appends the
// special spaces, persists the result and opens the first space.
func (s *FilerService) LoadSpaces(ctx context.Context) error {
	tuples, err := s.client.GetSpaces(ctx)
	if err != nil {
		if api.IsUnauthorized(err) {
			err = fmt.Errorf("%w: %v", ErrNotLoggedIn, err)
		}
		s.notifier.Error("", err)
		return err
	}

	spaces := models.BuildSpaceList(tuples)
	if err := s.nav.SetSpaces(spaces); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist spaces")
	}
	if len(spaces) == 0 {
		return nil
	}
	return s.nav.SwitchSpace(ctx, spaces[0])
}

// UploadFiles runs a drop of local files through the conflict gate and
// returns the number of files waiting for a decision.
func (s *FilerService) UploadFiles(ctx context.Context, files []models.File) (int, error) {
	if s.nav.Location().SpaceID == "" {
		return 0, transfer.ErrNoDestination
	}
	return s.resolver.HandleDrop(ctx, files)
}

// Close stops pending cleanups and closes the state file.
func (s *FilerService) Close() error {
	s.tracker.Close()
	return s.store.Close()
}
