package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"sync"

	"github.com/spacefiler/spacefiler/internal/constants"
	"github.com/spacefiler/spacefiler/internal/models"
	"github.com/spacefiler/spacefiler/internal/version"
)

// ProgressFunc receives upload progress as "N%". cancel aborts the transfer;
// serverID is only set on the final "100%" call.
type ProgressFunc func(value string, cancel context.CancelFunc, serverID string)

// UploadRequest addresses one file transfer.
type UploadRequest struct {
	SpaceID  string
	FolderID string
	Action   string // "" or "replace"
	File     models.File
}

type uploadResponse struct {
	ItemID string `json:"item_id"`
}

// progressReporter turns byte counts into monotonic percentage callbacks.
type progressReporter struct {
	mu     sync.Mutex
	total  int64
	done   int64
	last   int
	cancel context.CancelFunc
	fn     ProgressFunc
}

func (p *progressReporter) report(percent int, serverID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if percent <= p.last {
		return
	}
	p.last = percent
	if p.fn != nil {
		p.fn(fmt.Sprintf("%d%%", percent), p.cancel, serverID)
	}
}

func (p *progressReporter) add(n int) {
	p.mu.Lock()
	p.done += int64(n)
	done, total := p.done, p.total
	p.mu.Unlock()

	percent := constants.UploadMaxInFlightPercent
	if total > 0 && done < total {
		percent = int(done * 100 / total)
	}
	if percent > constants.UploadMaxInFlightPercent {
		percent = constants.UploadMaxInFlightPercent
	}
	p.report(percent, "")
}

// countingReader reports every read to the progress reporter.
type countingReader struct {
	r io.Reader
	p *progressReporter
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	if n > 0 {
		c.p.add(n)
	}
	return n, err
}

// UploadFile streams a file to POST /filer/upload as multipart form data and
// returns the server id of the stored item.
//
// Progress is reported from bytes written into the request body and held at
// 99% until the server answers; the final "100%" call carries the server id.
func (c *Client) UploadFile(ctx context.Context, req UploadRequest, progress ProgressFunc) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	src, err := req.File.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", req.File.Name(), err)
	}
	defer src.Close()

	reporter := &progressReporter{
		total:  req.File.Size(),
		last:   -1,
		cancel: cancel,
		fn:     progress,
	}
	reporter.report(0, "")

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUploadForm(mw, req, &countingReader{r: src, p: reporter}))
	}()

	httpReq, err := nethttp.NewRequestWithContext(ctx, "POST", c.baseURL+"/filer/upload", pr)
	if err != nil {
		pr.Close()
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())

	c.logger.Debug().Str("file", req.File.Name()).Str("space", req.SpaceID).Str("folder", req.FolderID).
		Str("action", req.Action).Msg("Upload started")

	resp, err := c.plainClient.Do(httpReq)
	if err != nil {
		pr.Close()
		return "", fmt.Errorf("upload of %s failed: %w", req.File.Name(), err)
	}
	defer resp.Body.Close()
	c.observe(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newAPIError("POST", "/filer/upload", resp)
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}

	reporter.report(100, out.ItemID)
	return out.ItemID, nil
}

func writeUploadForm(mw *multipart.Writer, req UploadRequest, body io.Reader) error {
	fields := [][2]string{
		{"space_id", req.SpaceID},
		{"folder_id", req.FolderID},
		{"action", req.Action},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}

	part, err := mw.CreateFormFile("file", req.File.Name())
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, body); err != nil {
		return err
	}
	return mw.Close()
}
