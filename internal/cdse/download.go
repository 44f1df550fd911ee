package cdse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Download streams the archive of p to dest. The transfer goes to a
// temporary file in dest's directory that is renamed on success and
// removed on failure. It returns the number of bytes written.
func (c *Client) Download(ctx context.Context, p Product, dest string) (int64, error) {
	if !c.Authenticated() {
		return 0, fmt.Errorf("%w: %w", ErrDownload, ErrNotAuthenticated)
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("%w: failed to create %s: %v", ErrDownload, dir, err)
	}

	src := c.downloadURL(p.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", userAgent)

	c.logger.InfoContext(ctx, "downloading product",
		slog.String("name", p.Name),
		slog.String("id", p.ID),
		slog.Int64("content_length", p.ContentLength),
		slog.String("dest", dest),
	)
	started := time.Now()

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrDownload, p.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.ErrorContext(ctx, "download service returned non-200 status",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(body)),
		)
		err := fmt.Errorf("%w: %s: download service returned status %d: %s", ErrDownload, p.Name, resp.StatusCode, string(body))
		if rejected(resp.StatusCode) {
			err = fmt.Errorf("%w: %w", ErrAuthentication, err)
		}
		return 0, err
	}

	expected := resp.ContentLength
	if expected <= 0 {
		expected = p.ContentLength
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer func() {
		// no-op after a successful rename
		os.Remove(tmp.Name())
	}()

	var w io.Writer = tmp
	var bar *progressbar.ProgressBar
	if c.progress != nil {
		total := expected
		if total <= 0 {
			total = -1
		}
		bar = progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(c.progress),
			progressbar.OptionSetDescription(filepath.Base(dest)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
		w = io.MultiWriter(tmp, bar)
	}

	n, copyErr := io.Copy(w, resp.Body)
	closeErr := tmp.Close()
	if bar != nil {
		_ = bar.Finish()
	}

	switch {
	case copyErr != nil:
		return n, fmt.Errorf("%w: %s after %d bytes: %v", ErrDownload, p.Name, n, copyErr)
	case closeErr != nil:
		return n, fmt.Errorf("%w: %v", ErrDownload, closeErr)
	case expected > 0 && n != expected:
		return n, fmt.Errorf("%w: %s: received %d of %d bytes", ErrDownload, p.Name, n, expected)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return n, fmt.Errorf("%w: %v", ErrDownload, err)
	}

	c.logger.InfoContext(ctx, "download complete",
		slog.String("name", p.Name),
		slog.Int64("bytes", n),
		slog.Duration("elapsed", time.Since(started)),
	)
	return n, nil
}
