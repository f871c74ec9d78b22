package listing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spacefiler/spacefiler/internal/events"
	"github.com/spacefiler/spacefiler/internal/models"
	"github.com/spacefiler/spacefiler/internal/notify"
)

func names(items []models.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ItemName
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSortByNameCollates(t *testing.T) {
	items := []models.Item{{ItemName: "b"}, {ItemName: "a"}, {ItemName: "A"}}
	Sort(items, models.SortOrder{Field: models.SortByName, Order: models.SortAsc})

	if got, want := names(items), []string{"a", "A", "b"}; !equal(got, want) {
		t.Errorf("Sort = %v, want %v", got, want)
	}
}

func TestSortFoldersFirst(t *testing.T) {
	items := []models.Item{
		{ItemName: "zeta.txt"},
		{ItemName: "beta", IsFolder: true},
		{ItemName: "alpha.txt"},
		{ItemName: "gamma", IsFolder: true},
	}

	tests := []struct {
		order models.SortOrder
		want  []string
	}{
		{models.SortOrder{Field: models.SortByName, Order: models.SortAsc}, []string{"beta", "gamma", "alpha.txt", "zeta.txt"}},
		{models.SortOrder{Field: models.SortByName, Order: models.SortDesc}, []string{"gamma", "beta", "zeta.txt", "alpha.txt"}},
	}

	for _, tt := range tests {
		got := names(Sorted(items, tt.order))
		if !equal(got, tt.want) {
			t.Errorf("Sorted(%+v) = %v, want %v", tt.order, got, tt.want)
		}
	}
}

func TestSortByModifiedTime(t *testing.T) {
	items := []models.Item{
		{ItemName: "new", ModifiedTime: "2024-03-01T10:00:00Z"},
		{ItemName: "old", ModifiedTime: "2023-01-01T10:00:00Z"},
		{ItemName: "mid", ModifiedTime: "2023-06-15T08:30:00Z"},
	}

	asc := names(Sorted(items, models.SortOrder{Field: models.SortByModifiedTime, Order: models.SortAsc}))
	if want := []string{"old", "mid", "new"}; !equal(asc, want) {
		t.Errorf("asc = %v, want %v", asc, want)
	}
	desc := names(Sorted(items, models.SortOrder{Field: models.SortByModifiedTime, Order: models.SortDesc}))
	if want := []string{"new", "mid", "old"}; !equal(desc, want) {
		t.Errorf("desc = %v, want %v", desc, want)
	}
}

func TestSortIsStable(t *testing.T) {
	items := []models.Item{
		{ItemID: "1", ItemName: "same"},
		{ItemID: "2", ItemName: "same"},
		{ItemID: "3", ItemName: "same"},
	}
	for _, order := range []models.SortDirection{models.SortAsc, models.SortDesc} {
		got := Sorted(items, models.SortOrder{Field: models.SortByName, Order: order})
		for i, it := range got {
			if it.ItemID != items[i].ItemID {
				t.Errorf("%s: position %d has %s, want %s", order, i, it.ItemID, items[i].ItemID)
			}
		}
	}
}

type fakeLister struct {
	calls atomic.Int32
	items []models.Item
	err   error
	gate  chan struct{}
}

func (f *fakeLister) ListFolder(ctx context.Context, folderID string) ([]models.Item, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.items, f.err
}

func TestFetchFileListDecorates(t *testing.T) {
	lister := &fakeLister{items: []models.Item{
		{ItemID: "i2", ItemName: "b.txt", SpaceID: "other"},
		{ItemID: "i1", ItemName: "a.txt", SpaceID: "f1"},
		{ItemID: "i3", ItemName: "sub", IsFolder: true, SpaceID: "f1"},
	}}
	f := NewFetcher(lister, nil, nil, nil, nil)

	items, err := f.FetchFileList(context.Background(), "f1", models.DefaultSortOrder)
	if err != nil {
		t.Fatalf("FetchFileList failed: %v", err)
	}
	if got, want := names(items), []string{"sub", "a.txt", "b.txt"}; !equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	for _, it := range items {
		if !it.Permissions.Readable {
			t.Errorf("%s not readable", it.ItemName)
		}
		if want := it.SpaceID == "f1"; it.Permissions.Writable != want {
			t.Errorf("%s writable = %v, want %v", it.ItemName, it.Permissions.Writable, want)
		}
	}
	if lister.items[0].Permissions.Readable {
		t.Error("fetcher mutated the lister's slice")
	}
}

func TestFetchFileListFailure(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	notices := bus.Subscribe(events.EventNotification)

	f := NewFetcher(&fakeLister{err: errors.New("boom")}, nil, notify.NewNotifier(bus, nil), bus, nil)

	items, err := f.FetchFileList(context.Background(), "f1", models.DefaultSortOrder)
	if err == nil || items != nil {
		t.Fatalf("FetchFileList = %v, %v; want nil listing and error", items, err)
	}

	select {
	case e := <-notices:
		if ne := e.(*events.NotificationEvent); ne.Level != events.LevelError {
			t.Errorf("Level = %s, want error", ne.Level)
		}
	case <-time.After(time.Second):
		t.Fatal("failure was not reported")
	}
}

func TestFetchFileListLoadingEvents(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(EventListingLoading)

	f := NewFetcher(&fakeLister{}, nil, nil, bus, nil)
	if _, err := f.FetchFileList(context.Background(), "f1", models.DefaultSortOrder); err != nil {
		t.Fatalf("FetchFileList failed: %v", err)
	}

	for _, want := range []bool{true, false} {
		select {
		case e := <-ch:
			if le := e.(*LoadingEvent); le.Loading != want || le.FolderID != "f1" {
				t.Errorf("got %+v, want loading=%v", le, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for loading event")
		}
	}
}

func TestFetchFileListCollapsesConcurrentCalls(t *testing.T) {
	lister := &fakeLister{items: []models.Item{{ItemID: "a", ItemName: "a"}}, gate: make(chan struct{})}
	f := NewFetcher(lister, nil, nil, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := f.FetchFileList(context.Background(), "f1", models.DefaultSortOrder)
			if err != nil || len(items) != 1 {
				t.Errorf("FetchFileList = %v, %v", items, err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(lister.gate)
	wg.Wait()

	if got := lister.calls.Load(); got != 1 {
		t.Errorf("lister called %d times, want 1", got)
	}
}
