package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/spacefiler/spacefiler/internal/constants"
	"github.com/spacefiler/spacefiler/internal/events"
	"github.com/spacefiler/spacefiler/internal/models"
)

// UploadUI renders upload-map snapshots as one progress bar per entry.
// On a non-terminal output it prints one line when an upload starts and
// one when it finishes.
type UploadUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool

	mu       sync.Mutex
	bars     map[string]*uploadBar // entry key -> bar
	finished int
}

type uploadBar struct {
	bar  *mpb.Bar
	name string
	done bool
}

// NewUploadUI creates a renderer writing to stderr.
func NewUploadUI() *UploadUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))
	if isTerminal {
		enableANSIOnWindows(os.Stderr)
	}
	return newUploadUI(os.Stderr, isTerminal)
}

func newUploadUI(out io.Writer, isTerminal bool) *UploadUI {
	var p *mpb.Progress
	if isTerminal {
		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(constants.ProgressRefreshRate),
			mpb.WithWidth(80),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}
	return &UploadUI{
		progress:   p,
		out:        out,
		isTerminal: isTerminal,
		bars:       make(map[string]*uploadBar),
	}
}

// Run renders every UploadsChangedEvent from ch until ctx is done or ch closes.
func (u *UploadUI) Run(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if changed, ok := ev.(*events.UploadsChangedEvent); ok {
				u.Apply(changed.Entries)
			}
		}
	}
}

// Apply reconciles the bars with a snapshot of the upload map.
func (u *UploadUI) Apply(entries []models.UploadEntry) {
	u.mu.Lock()
	defer u.mu.Unlock()

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		seen[e.Key] = true
		b, ok := u.bars[e.Key]
		if !ok {
			b = u.addBar(e)
			u.bars[e.Key] = b
		}
		if b.done {
			continue
		}
		pct := percent(e.Value)
		if b.bar != nil {
			b.bar.SetCurrent(int64(pct))
		}
		if e.Status == models.UploadDone || pct >= 100 {
			b.done = true
			u.finished++
			u.printf("✓ %s (FileID: %s)\n", truncatePath(b.name, 2), e.ID)
		}
	}

	// Entries only leave the map through cleanup, which keeps finished ones.
	for key, b := range u.bars {
		if seen[key] {
			continue
		}
		if !b.done && b.bar != nil {
			b.bar.Abort(true)
		}
		delete(u.bars, key)
	}
}

// Fail marks an upload as failed. Its bar stays visible.
func (u *UploadUI) Fail(key string, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	b, ok := u.bars[key]
	if !ok || b.done {
		return
	}
	b.done = true
	if b.bar != nil {
		b.bar.Abort(false)
	}
	u.printf("✗ %s: %v\n", truncatePath(b.name, 2), err)
}

// Finished returns how many uploads reached 100%.
func (u *UploadUI) Finished() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.finished
}

// Close aborts bars that will never finish and waits for the renderer.
func (u *UploadUI) Close() {
	u.mu.Lock()
	for _, b := range u.bars {
		if !b.done && b.bar != nil {
			b.bar.Abort(false)
		}
		b.done = true
	}
	u.mu.Unlock()
	u.progress.Wait()
}

// Writer returns an io.Writer that prints above the bars.
func (u *UploadUI) Writer() io.Writer {
	if u.isTerminal {
		return u.progress
	}
	return u.out
}

func (u *UploadUI) addBar(e models.UploadEntry) *uploadBar {
	b := &uploadBar{name: e.Name}
	if !u.isTerminal {
		fmt.Fprintf(u.out, "Uploading %s\n", truncatePath(e.Name, 2))
		return b
	}
	name := truncatePath(e.Name, 2)
	b.bar = u.progress.New(100,
		mpb.BarStyle().
			Lbound("[").
			Filler("█").
			Tip("█").
			Padding("░").
			Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(name, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.BarRemoveOnComplete(),
	)
	return b
}

// printf writes through mpb while bars are live so they are not torn.
func (u *UploadUI) printf(format string, args ...interface{}) {
	fmt.Fprintf(u.Writer(), format, args...)
}

// percent parses "42%"; anything unparsable counts as zero.
func percent(value string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(value), "%"))
	if err != nil || n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// truncatePath truncates a file path to show only the last N components
// Example: truncatePath("/a/b/c/d/file.txt", 3) → "…/c/d/file.txt"
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return filepath.Base(path)
	}
	relevant := parts[len(parts)-maxComponents:]
	return "…/" + strings.Join(relevant, "/")
}

func enableANSIOnWindows(f *os.File) {
	if runtime.GOOS == "windows" {
		enableWindowsANSI(f)
	}
}
