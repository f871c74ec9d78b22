package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spacefiler/spacefiler/internal/models"
	"github.com/spacefiler/spacefiler/internal/session"
	"github.com/spacefiler/spacefiler/internal/state"
)

func TestAddCommands(t *testing.T) {
	root := NewRootCmd()
	AddCommands(root)

	want := []string{"login", "logout", "spaces", "cd", "pwd", "ls", "info", "upload", "watch", "apps", "users", "config", "completion"}
	found := make(map[string]bool)
	for _, c := range root.Commands() {
		found[c.Name()] = true
	}
	for _, name := range want {
		if !found[name] {
			t.Errorf("command %q not registered", name)
		}
	}

	for _, flag := range []string{"config", "server", "verbose", "debug"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		cmd  string
		flag string
		def  string
	}{
		{"logout", "force", "false"},
		{"ls", "sort", "name"},
		{"ls", "desc", "false"},
		{"cd", "crumb", "0"},
		{"cd", "space", ""},
		{"upload", "on-conflict", "ask"},
		{"watch", "on-conflict", "skip"},
		{"spaces", "reload", "false"},
	}

	root := NewRootCmd()
	AddCommands(root)
	for _, tt := range tests {
		cmd, _, err := root.Find([]string{tt.cmd})
		if err != nil {
			t.Fatalf("Find(%s) failed: %v", tt.cmd, err)
		}
		f := cmd.Flags().Lookup(tt.flag)
		if f == nil {
			t.Errorf("%s: --%s missing", tt.cmd, tt.flag)
			continue
		}
		if f.DefValue != tt.def {
			t.Errorf("%s --%s default = %q, want %q", tt.cmd, tt.flag, f.DefValue, tt.def)
		}
	}
}

func TestParseConflictPolicy(t *testing.T) {
	tests := map[string]ConflictDecision{
		"":          DecisionAsk,
		"ask":       DecisionAsk,
		"replace":   DecisionReplace,
		"Overwrite": DecisionReplace,
		"keep":      DecisionKeepBoth,
		"keep-both": DecisionKeepBoth,
		"skip":      DecisionSkip,
	}
	for in, want := range tests {
		got, err := parseConflictPolicy(in)
		if err != nil || got != want {
			t.Errorf("parseConflictPolicy(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
	if _, err := parseConflictPolicy("merge"); err == nil {
		t.Error("invalid policy accepted")
	}
}

func TestPromptConflictRetriesInvalidInput(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("9\nx\n2\n"))
	var out bytes.Buffer

	got, err := promptConflict(in, &out, "report.txt", "/Home", 1)
	if err != nil {
		t.Fatalf("promptConflict failed: %v", err)
	}
	if got != DecisionKeepBoth {
		t.Errorf("decision = %v, want keep both", got)
	}
	if n := strings.Count(out.String(), "Invalid choice"); n != 2 {
		t.Errorf("printed %d invalid-choice notices, want 2", n)
	}
	if !strings.Contains(out.String(), "File 'report.txt' already exists in '/Home'") {
		t.Errorf("prompt text missing:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "1 more waiting") {
		t.Error("pending count not shown")
	}
}

func TestPromptConflictEOF(t *testing.T) {
	in := bufio.NewReader(strings.NewReader(""))
	if _, err := promptConflict(in, &bytes.Buffer{}, "a.txt", "/", 0); err == nil {
		t.Error("EOF without an answer should fail")
	}
	// A final answer without a newline is still accepted.
	in = bufio.NewReader(strings.NewReader("1"))
	got, err := promptConflict(in, &bytes.Buffer{}, "a.txt", "/", 0)
	if err != nil || got != DecisionReplace {
		t.Errorf("got %v, %v, want replace", got, err)
	}
}

type fakeQueue struct {
	files     []models.File
	decisions []string
	failOn    string
}

func (q *fakeQueue) Head() (models.File, bool) {
	if len(q.files) == 0 {
		return nil, false
	}
	return q.files[0], true
}

func (q *fakeQueue) Pending() int { return len(q.files) }

func (q *fakeQueue) pop(decision string) (models.File, error) {
	if len(q.files) == 0 {
		return nil, errors.New("empty")
	}
	f := q.files[0]
	q.files = q.files[1:]
	q.decisions = append(q.decisions, decision+":"+f.Name())
	return f, nil
}

func (q *fakeQueue) Replace(ctx context.Context) (string, error) {
	f, err := q.pop("replace")
	if err == nil && f.Name() == q.failOn {
		return "key-" + f.Name(), errors.New("upload failed")
	}
	return "key", err
}

func (q *fakeQueue) KeepBoth(ctx context.Context) (string, error) {
	_, err := q.pop("keep")
	return "key", err
}

func (q *fakeQueue) Skip() (models.File, error) {
	return q.pop("skip")
}

type recordingSink struct{ keys []string }

func (s *recordingSink) Fail(key string, err error) { s.keys = append(s.keys, key) }

func memFiles(names ...string) []models.File {
	out := make([]models.File, len(names))
	for i, n := range names {
		out[i] = &models.MemFile{FileName: n}
	}
	return out
}

func TestResolveConflictsPrompted(t *testing.T) {
	q := &fakeQueue{files: memFiles("a.txt", "b.txt", "c.txt")}
	in := bufio.NewReader(strings.NewReader("1\n3\n2\n"))

	if err := resolveConflicts(context.Background(), q, DecisionAsk, in, &bytes.Buffer{}, "/Home", nil); err != nil {
		t.Fatalf("resolveConflicts failed: %v", err)
	}
	want := []string{"replace:a.txt", "skip:b.txt", "keep:c.txt"}
	if strings.Join(q.decisions, ",") != strings.Join(want, ",") {
		t.Errorf("decisions = %v, want %v", q.decisions, want)
	}
}

func TestResolveConflictsPolicyCollectsFailures(t *testing.T) {
	q := &fakeQueue{files: memFiles("a.txt", "b.txt"), failOn: "a.txt"}
	sink := &recordingSink{}

	err := resolveConflicts(context.Background(), q, DecisionReplace, nil, &bytes.Buffer{}, "/Home", sink)
	if err == nil || !strings.Contains(err.Error(), "a.txt") {
		t.Errorf("err = %v, want failure naming a.txt", err)
	}
	if len(q.files) != 0 {
		t.Error("a failed upload must not stall the queue")
	}
	if len(sink.keys) != 1 || sink.keys[0] != "key-a.txt" {
		t.Errorf("failed keys = %v", sink.keys)
	}
}

func TestResolveConflictsCancelled(t *testing.T) {
	q := &fakeQueue{files: memFiles("a.txt")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := resolveConflicts(ctx, q, DecisionSkip, nil, &bytes.Buffer{}, "/", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestFindSpace(t *testing.T) {
	spaces := []models.Space{
		{ID: "s1", Caption: "Home", Class: models.SpaceClassNormal},
		{ID: "home", Caption: "Other", Class: models.SpaceClassNormal},
		{ID: "trash", Caption: "Trash", Class: models.SpaceClassSpecial},
	}
	if s, ok := findSpace(spaces, "home"); !ok || s.ID != "home" {
		t.Errorf("id match must win over caption: got %+v", s)
	}
	if s, ok := findSpace(spaces, "TRASH"); !ok || s.ID != "trash" {
		t.Errorf("caption match ignoring case failed: got %+v", s)
	}
	if _, ok := findSpace(spaces, "nope"); ok {
		t.Error("unknown space matched")
	}
}

func TestParseSortOrder(t *testing.T) {
	cur := models.SortOrder{Field: models.SortByName, Order: models.SortDesc}

	got, err := parseSortOrder("time", true, cur)
	if err != nil || got.Field != models.SortByModifiedTime || got.Order != models.SortDesc {
		t.Errorf("parseSortOrder(time, desc) = %+v, %v", got, err)
	}
	got, _ = parseSortOrder("name", false, cur)
	if got.Order != models.SortAsc {
		t.Errorf("parseSortOrder(name, asc) = %+v", got)
	}
	if _, err := parseSortOrder("size", false, cur); err == nil {
		t.Error("unknown sort key accepted")
	}
}

func TestPrintItems(t *testing.T) {
	var out bytes.Buffer
	printItems(&out, []models.Item{
		{ItemID: "f1", ItemName: "docs", IsFolder: true, Permissions: models.Permissions{Readable: true, Writable: true}},
		{ItemID: "i1", ItemName: "a.txt", ModifiedTime: "2024-01-01", Permissions: models.Permissions{Readable: true}},
	})
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[1], "docs/") || !strings.Contains(lines[1], "rw") {
		t.Errorf("folder line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "r-") || !strings.Contains(lines[2], "2024-01-01") {
		t.Errorf("file line = %q", lines[2])
	}

	out.Reset()
	printItems(&out, nil)
	if out.String() != "(empty)\n" {
		t.Errorf("empty listing printed %q", out.String())
	}
}

type treeFetcher map[string][]models.Item

func (f treeFetcher) FetchFileList(ctx context.Context, folderID string, order models.SortOrder) ([]models.Item, error) {
	items, ok := f[folderID]
	if !ok {
		return nil, errors.New("not found")
	}
	return items, nil
}

func newTestNavigator(t *testing.T) *state.Navigator {
	t.Helper()
	tree := treeFetcher{
		"s1": {{ItemID: "f1", ItemName: "docs", IsFolder: true, SpaceID: "s1"}, {ItemID: "i1", ItemName: "a.txt", SpaceID: "s1"}},
		"f1": {{ItemID: "f2", ItemName: "2024", IsFolder: true, SpaceID: "s1"}},
		"f2": {},
		"s2": {{ItemID: "f9", ItemName: "reports", IsFolder: true, SpaceID: "s2"}},
		"f9": {},
	}
	st := session.NewState(session.NewMemoryStore())
	nav := state.NewNavigator(tree, state.NewFileListState(nil, st, nil), st, nil, nil)
	nav.SetSpaces([]models.Space{
		{ID: "s1", Caption: "Home", Class: models.SpaceClassNormal},
		{ID: "s2", Caption: "Team", Class: models.SpaceClassNormal},
	})
	if err := nav.SwitchSpaceByID(context.Background(), "s1"); err != nil {
		t.Fatalf("SwitchSpaceByID failed: %v", err)
	}
	return nav
}

func TestChangeDir(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		target string
		want   string
	}{
		{"docs", "/Home/docs"},
		{"docs/2024", "/Home/docs/2024"},
		{"docs/2024/..", "/Home/docs"},
		{"./docs/", "/Home/docs"},
		{"..", "/Home"},
		{"/Team/reports", "/Team/reports"},
		{"/s2", "/Team"},
		{"/", "/Home"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			nav := newTestNavigator(t)
			if err := changeDir(ctx, nav, tt.target); err != nil {
				t.Fatalf("changeDir(%q) failed: %v", tt.target, err)
			}
			if got := nav.Path().String(); got != tt.want {
				t.Errorf("path = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestChangeDirErrors(t *testing.T) {
	ctx := context.Background()
	nav := newTestNavigator(t)

	if err := changeDir(ctx, nav, "missing"); err == nil {
		t.Error("unknown folder accepted")
	}
	if err := changeDir(ctx, nav, "a.txt"); !errors.Is(err, state.ErrNotFolder) {
		t.Errorf("opening a file: err = %v, want ErrNotFolder", err)
	}
	if err := changeDir(ctx, nav, "/Nowhere"); !errors.Is(err, state.ErrUnknownSpace) {
		t.Errorf("unknown space: err = %v, want ErrUnknownSpace", err)
	}
	// Steps before the failing one stay applied.
	if err := changeDir(ctx, nav, "docs/missing"); err == nil {
		t.Error("missing nested folder accepted")
	}
	if got := nav.Path().String(); got != "/Home/docs" {
		t.Errorf("path after partial cd = %s, want /Home/docs", got)
	}
}
