package transfer

import (
	"testing"
	"time"

	"github.com/spacefiler/spacefiler/internal/events"
	"github.com/spacefiler/spacefiler/internal/models"
)

func newTestTracker(delay time.Duration) *Tracker {
	t := NewTracker(nil, nil)
	t.cleanupDelay = delay
	return t
}

func TestTrackerAdd(t *testing.T) {
	tr := newTestTracker(time.Hour)
	defer tr.Close()

	k1 := tr.Add("report.txt")
	k2 := tr.Add("report.txt")
	if k1 == k2 {
		t.Fatal("two uploads of one name share a key")
	}

	e, ok := tr.Get(k1)
	if !ok || e.Value != "0%" || e.Status != models.UploadPending || e.Name != "report.txt" {
		t.Errorf("new entry = %+v", e)
	}

	snap := tr.Snapshot()
	if len(snap) != 2 || snap[0].Key != k1 || snap[1].Key != k2 {
		t.Errorf("Snapshot order = %+v", snap)
	}
}

func TestTrackerUpdateUnknownKeyIgnored(t *testing.T) {
	tr := newTestTracker(time.Hour)
	defer tr.Close()

	if tr.Update(models.UploadEntry{Key: "nope", Value: "100%"}) {
		t.Error("Update of an untracked key should be ignored")
	}
	if tr.Len() != 0 {
		t.Errorf("Len = %d, want 0", tr.Len())
	}
}

func TestTrackerCleanupRemovesFinishedOnce(t *testing.T) {
	bus := events.NewEventBus(100)
	defer bus.Close()
	ch := bus.Subscribe(events.EventUploadsChanged)

	tr := NewTracker(bus, nil)
	tr.cleanupDelay = 30 * time.Millisecond
	defer tr.Close()

	done := tr.Add("a.txt")
	pending := tr.Add("b.txt")
	tr.Update(models.UploadEntry{Key: done, Name: "a.txt", Value: "100%", Status: models.UploadDone, ID: "srv1"})
	tr.Update(models.UploadEntry{Key: pending, Name: "b.txt", Value: "40%", Status: models.UploadPending})

	time.Sleep(150 * time.Millisecond)

	if _, ok := tr.Get(done); ok {
		t.Error("finished entry was not cleaned up")
	}
	if _, ok := tr.Get(pending); !ok {
		t.Error("pending entry must never be cleaned up")
	}

	// A late callback for the removed entry does not resurrect it.
	tr.Update(models.UploadEntry{Key: done, Name: "a.txt", Value: "100%"})
	if _, ok := tr.Get(done); ok {
		t.Error("removed entry reappeared")
	}

	// Four mutations plus exactly one removal.
	var snapshots int
	removals := 0
	prev := -1
	for {
		select {
		case e := <-ch:
			snapshots++
			n := len(e.(*events.UploadsChangedEvent).Entries)
			if prev != -1 && n < prev {
				removals++
			}
			prev = n
			continue
		default:
		}
		break
	}
	if snapshots != 5 || removals != 1 {
		t.Errorf("got %d snapshots with %d removals, want 5 and 1", snapshots, removals)
	}
}

func TestTrackerLaterMutationWaitsForOwnCleanup(t *testing.T) {
	tr := newTestTracker(100 * time.Millisecond)
	defer tr.Close()

	key := tr.Add("a.txt")
	tr.Update(models.UploadEntry{Key: key, Value: "100%", Status: models.UploadDone})
	time.Sleep(50 * time.Millisecond)
	tr.Update(models.UploadEntry{Key: key, Value: "100%", Status: models.UploadDone, ID: "srv1"})

	// The timers of the first two mutations have fired by now, the third has not.
	time.Sleep(75 * time.Millisecond)
	if _, ok := tr.Get(key); !ok {
		t.Fatal("entry removed by a cleanup older than its last mutation")
	}

	time.Sleep(150 * time.Millisecond)
	if _, ok := tr.Get(key); ok {
		t.Error("entry not removed by its own cleanup")
	}
}

func TestTrackerCancel(t *testing.T) {
	tr := newTestTracker(time.Hour)
	defer tr.Close()

	key := tr.Add("a.txt")
	if err := tr.Cancel(key); err == nil {
		t.Error("Cancel without a handle should fail")
	}

	called := false
	tr.Update(models.UploadEntry{Key: key, Value: "10%", Cancel: func() { called = true }})
	if err := tr.Cancel(key); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if !called {
		t.Error("cancel handle was not invoked")
	}
	if err := tr.Cancel("missing"); err != ErrUnknownUpload {
		t.Errorf("Cancel(missing) = %v", err)
	}
}

func TestTrackerClosedSchedulesNothing(t *testing.T) {
	tr := newTestTracker(10 * time.Millisecond)
	tr.Close()

	key := tr.Add("a.txt")
	tr.Update(models.UploadEntry{Key: key, Value: "100%"})
	time.Sleep(50 * time.Millisecond)
	if _, ok := tr.Get(key); !ok {
		t.Error("closed tracker still cleaned up")
	}
}
