// Package progress renders the filer core's events on a terminal: upload
// bars, the listing spinner and notification lines.
package progress

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/spacefiler/spacefiler/internal/events"
	"github.com/spacefiler/spacefiler/internal/listing"
)

const spinnerTick = 100 * time.Millisecond

// Spinner shows an indeterminate indicator while a listing fetch is in flight.
type Spinner struct {
	out io.Writer

	mu     sync.Mutex
	bar    *progressbar.ProgressBar
	stop   chan struct{}
	active int // overlapping fetches
}

// NewSpinner creates a spinner writing to out.
func NewSpinner(out io.Writer) *Spinner {
	return &Spinner{out: out}
}

// Run follows listing loading events until ctx is done or ch closes.
func (s *Spinner) Run(ctx context.Context, ch <-chan events.Event) {
	defer s.stopAll()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if loading, ok := ev.(*listing.LoadingEvent); ok {
				s.Set(loading.FolderID, loading.Loading)
			}
		}
	}
}

// Set starts or stops the indicator for one fetch.
func (s *Spinner) Set(folderID string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !loading {
		if s.active == 0 {
			return
		}
		s.active--
		if s.active == 0 {
			s.finishLocked()
		}
		return
	}

	s.active++
	if s.bar != nil {
		s.bar.Describe("Loading " + folderID)
		return
	}
	s.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(s.out),
		progressbar.OptionSetDescription("Loading "+folderID),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(spinnerTick),
	)
	s.stop = make(chan struct{})
	go tick(s.bar, s.stop)
}

// Active reports whether a fetch is in flight.
func (s *Spinner) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active > 0
}

func (s *Spinner) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = 0
	s.finishLocked()
}

func (s *Spinner) finishLocked() {
	if s.bar == nil {
		return
	}
	close(s.stop)
	_ = s.bar.Finish()
	s.bar = nil
	s.stop = nil
}

func tick(bar *progressbar.ProgressBar, stop <-chan struct{}) {
	ticker := time.NewTicker(spinnerTick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = bar.Add(1)
		}
	}
}
