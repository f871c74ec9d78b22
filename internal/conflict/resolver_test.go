package conflict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/spacefiler/spacefiler/internal/api"
	"github.com/spacefiler/spacefiler/internal/config"
	"github.com/spacefiler/spacefiler/internal/events"
	"github.com/spacefiler/spacefiler/internal/models"
	"github.com/spacefiler/spacefiler/internal/transfer"
)

type staticLocator models.Location

func (l staticLocator) Location() models.Location { return models.Location(l) }

type recordedUpload struct {
	name   string
	action string
}

type fakeUploader struct {
	mu    sync.Mutex
	calls []recordedUpload
}

func (f *fakeUploader) Upload(ctx context.Context, file models.File, action string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedUpload{file.Name(), action})
	return fmt.Sprintf("key-%d", len(f.calls)), nil
}

type fakeChecker struct {
	taken map[string]bool
	err   error
	delay map[string]time.Duration
	seen  []string
	mu    sync.Mutex
}

func (f *fakeChecker) CheckFileExistence(ctx context.Context, folderID, name string) (bool, error) {
	f.mu.Lock()
	f.seen = append(f.seen, folderID)
	f.mu.Unlock()
	time.Sleep(f.delay[name])
	return f.taken[name], f.err
}

func mem(name string) models.File {
	return &models.MemFile{FileName: name, Data: []byte(name)}
}

func nextConflictEvent(t *testing.T, ch <-chan events.Event) *events.ConflictEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e.(*events.ConflictEvent)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for conflict event")
		return nil
	}
}

func TestCheckExistsTargetsFolderOrSpace(t *testing.T) {
	checker := &fakeChecker{taken: map[string]bool{}}

	NewResolver(checker, nil, staticLocator{SpaceID: "s1", FolderID: "f1"}, nil, nil).CheckExists(context.Background(), mem("a"))
	NewResolver(checker, nil, staticLocator{SpaceID: "s1"}, nil, nil).CheckExists(context.Background(), mem("a"))

	if checker.seen[0] != "f1" || checker.seen[1] != "s1" {
		t.Errorf("checked folders %v, want [f1 s1]", checker.seen)
	}
}

func TestCheckExistsFailsOpen(t *testing.T) {
	checker := &fakeChecker{err: errors.New("timeout"), taken: map[string]bool{"a": true}}
	r := NewResolver(checker, nil, staticLocator{SpaceID: "s1"}, nil, nil)

	if r.CheckExists(context.Background(), mem("a")) {
		t.Error("failed check must report not-exists")
	}
	if r.Pending() != 0 {
		t.Error("failed check must not queue the file")
	}
}

func TestConflictQueueIsFIFO(t *testing.T) {
	bus := events.NewEventBus(100)
	defer bus.Close()
	prompts := bus.Subscribe(events.EventConflictPrompt)
	dismissals := bus.Subscribe(events.EventConflictDismissed)

	// Later files answer first; presentation order must still follow the drop.
	checker := &fakeChecker{
		taken: map[string]bool{"one": true, "two": true, "three": true},
		delay: map[string]time.Duration{"one": 60 * time.Millisecond, "two": 30 * time.Millisecond},
	}
	uploader := &fakeUploader{}
	r := NewResolver(checker, uploader, staticLocator{SpaceID: "s1"}, bus, nil)

	deferred, err := r.HandleDrop(context.Background(), []models.File{mem("one"), mem("two"), mem("three")})
	if err != nil || deferred != 3 {
		t.Fatalf("HandleDrop = %d, %v", deferred, err)
	}
	if e := nextConflictEvent(t, prompts); e.Name != "one" || e.Pending != 3 {
		t.Errorf("first prompt = %+v", e)
	}

	r.Replace(context.Background())
	if e := nextConflictEvent(t, prompts); e.Name != "two" {
		t.Errorf("second prompt = %+v", e)
	}
	r.KeepBoth(context.Background())
	if e := nextConflictEvent(t, prompts); e.Name != "three" {
		t.Errorf("third prompt = %+v", e)
	}
	r.Replace(context.Background())
	nextConflictEvent(t, dismissals)

	want := []recordedUpload{{"one", "replace"}, {"two", ""}, {"three", "replace"}}
	for i, w := range want {
		if uploader.calls[i] != w {
			t.Errorf("upload %d = %+v, want %+v", i, uploader.calls[i], w)
		}
	}
	if r.Pending() != 0 {
		t.Errorf("Pending = %d after three decisions", r.Pending())
	}
	if _, err := r.Replace(context.Background()); !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("Replace on empty queue = %v", err)
	}
}

func TestSkipDropsHead(t *testing.T) {
	checker := &fakeChecker{taken: map[string]bool{"a": true}}
	uploader := &fakeUploader{}
	r := NewResolver(checker, uploader, staticLocator{SpaceID: "s1"}, nil, nil)

	r.CheckExists(context.Background(), mem("a"))
	f, err := r.Skip()
	if err != nil || f.Name() != "a" {
		t.Fatalf("Skip = %v, %v", f, err)
	}
	if len(uploader.calls) != 0 {
		t.Error("Skip must not upload")
	}
}

// fakeFiler is a minimal filer server for the drop scenario.
type fakeFiler struct {
	mu      sync.Mutex
	actions map[string]string
}

func (f *fakeFiler) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/filer/check_file_existence", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			FolderID string `json:"folder_id"`
			FileName string `json:"file_name"`
			FileType string `json:"file_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad existence request: %v", err)
			return
		}
		json.NewEncoder(w).Encode(map[string]bool{"exists": req.FileName == "report.txt"})
	})
	mux.HandleFunc("/filer/upload", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("bad upload: %v", err)
			return
		}
		_, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("upload without file: %v", err)
			return
		}
		f.mu.Lock()
		f.actions[hdr.Filename] = r.FormValue("action")
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"item_id": "id-" + hdr.Filename})
	})
	return mux
}

func (f *fakeFiler) action(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.actions[name]
	return a, ok
}

type refreshingLocator struct {
	staticLocator
}

func (refreshingLocator) Refresh(ctx context.Context) error { return nil }

func TestDropScenarioReportAndPhoto(t *testing.T) {
	filer := &fakeFiler{actions: map[string]string{}}
	srv := httptest.NewServer(filer.handler(t))
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.BaseURL = srv.URL
	client, err := api.NewClient(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	bus := events.NewEventBus(100)
	defer bus.Close()
	prompts := bus.Subscribe(events.EventConflictPrompt)
	dismissals := bus.Subscribe(events.EventConflictDismissed)

	loc := refreshingLocator{staticLocator{SpaceID: "s1", FolderID: "f1", CurrentID: "f1"}}
	tracker := transfer.NewTracker(bus, nil)
	defer tracker.Close()
	uploader := transfer.NewUploader(client, tracker, loc, nil, nil, nil)
	r := NewResolver(client, uploader, loc, bus, nil)

	deferred, err := r.HandleDrop(context.Background(), []models.File{mem("report.txt"), mem("photo.png")})
	if err != nil || deferred != 1 {
		t.Fatalf("HandleDrop = %d, %v", deferred, err)
	}

	// photo.png went straight through and reached 100%.
	snap := tracker.Snapshot()
	if len(snap) != 1 || snap[0].Name != "photo.png" || snap[0].Value != "100%" || snap[0].ID != "id-photo.png" {
		t.Errorf("tracker = %+v", snap)
	}
	if action, ok := filer.action("photo.png"); !ok || action != "" {
		t.Errorf("photo.png action = %q, %v", action, ok)
	}

	// report.txt waits with the dialog showing its name.
	if e := nextConflictEvent(t, prompts); e.Name != "report.txt" {
		t.Errorf("prompt = %+v", e)
	}
	if _, ok := filer.action("report.txt"); ok {
		t.Error("report.txt uploaded before a decision")
	}

	key, err := r.Replace(context.Background())
	if err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	nextConflictEvent(t, dismissals)
	if action, _ := filer.action("report.txt"); action != "replace" {
		t.Errorf("report.txt action = %q, want replace", action)
	}
	if key == snap[0].Key {
		t.Error("replace reused the photo's tracking key")
	}
	if r.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", r.Pending())
	}
}
