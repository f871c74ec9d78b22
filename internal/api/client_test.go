package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spacefiler/spacefiler/internal/config"
	"github.com/spacefiler/spacefiler/internal/models"
)

func newTestClient(t *testing.T, srv *httptest.Server, retries int) *Client {
	t.Helper()
	cfg := config.NewConfig()
	cfg.BaseURL = srv.URL
	cfg.MaxRetries = retries
	jar, _ := cookiejar.New(nil)
	client, err := NewClient(cfg, jar, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

// TestNewClientRejectsEmptyBaseURL verifies that NewClient fails with a clear error
// instead of creating a client that fails on every request.
func TestNewClientRejectsEmptyBaseURL(t *testing.T) {
	cfg := config.NewConfig()
	cfg.BaseURL = ""

	_, err := NewClient(cfg, nil, nil)
	if err == nil {
		t.Fatal("NewClient() should return error for empty BaseURL")
	}
	if !strings.Contains(err.Error(), "filer base URL is empty") {
		t.Errorf("NewClient() error = %q, want error containing 'filer base URL is empty'", err.Error())
	}
}

func TestGetSpaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/filer/space" {
			t.Errorf("path = %q, want /filer/space", r.URL.Path)
		}
		io.WriteString(w, `[["s1","Mine","normal"],["s2","Shared","share"]]`)
	}))
	defer srv.Close()

	tuples, err := newTestClient(t, srv, 0).GetSpaces(context.Background())
	if err != nil {
		t.Fatalf("GetSpaces() error = %v", err)
	}
	if len(tuples) != 2 {
		t.Fatalf("got %d tuples, want 2", len(tuples))
	}
	if tuples[1].Space().Class != models.SpaceClassShare {
		t.Errorf("tuple[1] class = %q, want share", tuples[1].Space().Class)
	}
}

func TestListFolderEscapesID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/filer/list/a%2Fb" {
			t.Errorf("escaped path = %q, want /filer/list/a%%2Fb", r.URL.EscapedPath())
		}
		io.WriteString(w, `[{"item_id":"i1","item_name":"x.txt","is_folder":false,"modified_time":"2024-01-01","space_id":"s1"}]`)
	}))
	defer srv.Close()

	items, err := newTestClient(t, srv, 0).ListFolder(context.Background(), "a/b")
	if err != nil {
		t.Fatalf("ListFolder() error = %v", err)
	}
	if len(items) != 1 || items[0].ItemName != "x.txt" || items[0].SpaceID != "s1" {
		t.Errorf("ListFolder() = %+v", items)
	}
}

func TestCheckFileExistenceRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if body["folder_id"] != "f1" || body["file_name"] != "report.txt" || body["file_type"] != "." {
			t.Errorf("body = %v", body)
		}
		io.WriteString(w, `{"exists":true}`)
	}))
	defer srv.Close()

	exists, err := newTestClient(t, srv, 0).CheckFileExistence(context.Background(), "f1", "report.txt")
	if err != nil {
		t.Fatalf("CheckFileExistence() error = %v", err)
	}
	if !exists {
		t.Error("exists = false, want true")
	}
}

func TestNoAutomaticRetryByDefault(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, 0).ListFolder(context.Background(), "s1")
	if err == nil {
		t.Fatal("expected error for 500")
	}
	if StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("StatusCode(err) = %d, want 500", StatusCode(err))
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1", got)
	}
}

func TestRateLimitSpacesCalls(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		io.WriteString(w, `{"exists":false}`)
	}))
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.BaseURL = srv.URL
	cfg.RateLimit = 20
	cfg.RateBurst = 1
	client, err := NewClient(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := client.CheckFileExistence(context.Background(), "f1", "a.txt"); err != nil {
			t.Fatalf("CheckFileExistence() error = %v", err)
		}
	}
	// burst of 1 then two tokens at 20/sec
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("3 calls took %v, want >= ~100ms", elapsed)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server hit %d times, want 3", got)
	}
}

func TestConflictStatusIsFileExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	err := newTestClient(t, srv, 0).SignIn(context.Background(), "a", "b")
	if !errors.Is(err, ErrFileAlreadyExists) {
		t.Errorf("errors.Is(%v, ErrFileAlreadyExists) = false", err)
	}
	if !IsFileExistsError(err) {
		t.Error("IsFileExistsError() = false for 409")
	}
}

func TestIsUnauthorized(t *testing.T) {
	if !IsUnauthorized(&APIError{StatusCode: 401}) {
		t.Error("401 should be unauthorized")
	}
	if IsUnauthorized(errors.New("plain")) {
		t.Error("plain error should not be unauthorized")
	}
}

func TestSignInCookieIsReused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/signin":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		case "/filer/users":
			c, err := r.Cookie("session")
			if err != nil || c.Value != "abc" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			io.WriteString(w, `[{"id":"u1","username":"alice"}]`)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv, 0)
	if err := client.SignIn(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	users, err := client.Users(context.Background())
	if err != nil {
		t.Fatalf("Users() error = %v", err)
	}
	if len(users) != 1 || users[0].Username != "alice" {
		t.Errorf("Users() = %+v", users)
	}
}

func TestUploadFile(t *testing.T) {
	payload := strings.Repeat("x", 64*1024)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		if got := r.FormValue("space_id"); got != "s1" {
			t.Errorf("space_id = %q, want s1", got)
		}
		if got := r.FormValue("folder_id"); got != "f1" {
			t.Errorf("folder_id = %q, want f1", got)
		}
		if got := r.FormValue("action"); got != "replace" {
			t.Errorf("action = %q, want replace", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		if hdr.Filename != "big.bin" || len(data) != len(payload) {
			t.Errorf("file = %s (%d bytes)", hdr.Filename, len(data))
		}
		io.WriteString(w, `{"item_id":"srv-42"}`)
	}))
	defer srv.Close()

	var mu sync.Mutex
	var values []string
	var lastID string
	progress := func(value string, cancel context.CancelFunc, id string) {
		mu.Lock()
		defer mu.Unlock()
		if cancel == nil {
			t.Error("progress callback without cancel handle")
		}
		values = append(values, value)
		lastID = id
	}

	id, err := newTestClient(t, srv, 0).UploadFile(context.Background(), UploadRequest{
		SpaceID:  "s1",
		FolderID: "f1",
		Action:   "replace",
		File:     &models.MemFile{FileName: "big.bin", Data: []byte(payload)},
	}, progress)
	if err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}
	if id != "srv-42" {
		t.Errorf("id = %q, want srv-42", id)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(values) < 2 {
		t.Fatalf("got %d progress calls, want at least 2", len(values))
	}
	if values[0] != "0%" {
		t.Errorf("first progress = %q, want 0%%", values[0])
	}
	if values[len(values)-1] != "100%" || lastID != "srv-42" {
		t.Errorf("last progress = %q id %q, want 100%% with srv-42", values[len(values)-1], lastID)
	}
	for _, v := range values[:len(values)-1] {
		if v == "100%" {
			t.Error("100% reported before the server answered")
		}
	}
}

func TestUploadFileServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		http.Error(w, "quota exceeded", http.StatusInsufficientStorage)
	}))
	defer srv.Close()

	var sawDone bool
	_, err := newTestClient(t, srv, 0).UploadFile(context.Background(), UploadRequest{
		SpaceID: "s1",
		File:    &models.MemFile{FileName: "a.txt", Data: []byte("hi")},
	}, func(value string, _ context.CancelFunc, _ string) {
		if value == "100%" {
			sawDone = true
		}
	})
	if StatusCode(err) != http.StatusInsufficientStorage {
		t.Errorf("err = %v, want 507 APIError", err)
	}
	if sawDone {
		t.Error("failed upload must not report 100%")
	}
}
