// Package fetch downloads artifacts with retry and mirror fallback.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const defaultUserAgent = "hostkit/1.0"

// HTTPError reports a response that cannot be used as a download.
type HTTPError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("download %s: %s", e.URL, e.Status)
	}
	return fmt.Sprintf("download %s: unexpected status %s", e.URL, e.Status)
}

// Temporary reports whether retrying the same URL may succeed.
func (e *HTTPError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// AllMirrorsFailedError is returned once every mirror has been tried.
type AllMirrorsFailedError struct {
	Dest string
	Errs []error
}

func (e *AllMirrorsFailedError) Error() string {
	msg := fmt.Sprintf("all %d mirror(s) failed for %s", len(e.Errs), filepath.Base(e.Dest))
	if n := len(e.Errs); n > 0 {
		msg += ": " + e.Errs[n-1].Error()
	}
	return msg
}

func (e *AllMirrorsFailedError) Unwrap() []error { return e.Errs }

// Fetcher streams HTTP downloads to disk.
type Fetcher struct {
	Client    *http.Client
	Logger    *zap.Logger
	UserAgent string
	// Attempts bounds the tries per mirror for transient failures.
	Attempts int
	// NewBackOff returns the retry schedule used for each URL.
	NewBackOff func() backoff.BackOff
	// Progress, when set, receives a copy of the body. A returned io.Closer is
	// closed when the transfer ends.
	Progress func(name string, size int64) io.Writer
}

// New returns a Fetcher with an HTTP client bounded by timeout.
func New(logger *zap.Logger, timeout time.Duration, attempts int, userAgent string) *Fetcher {
	return &Fetcher{
		Client:    &http.Client{Timeout: timeout},
		Logger:    logger,
		UserAgent: userAgent,
		Attempts:  attempts,
	}
}

// Fetch downloads url to dest. An existing dest is treated as complete and
// no request is made. The body is written to dest.part and renamed into
// place once fully received.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		f.logger().Debug("download already present", zap.String("dest", dest))
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("prepare download destination: %w", err)
	}

	part := dest + ".part"
	attempts := f.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, f.download(ctx, url, part)
	},
		backoff.WithBackOff(f.backOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			f.logger().Warn("download failed, retrying",
				zap.String("url", url), zap.Error(err), zap.Duration("wait", wait))
		}),
	)
	if err != nil {
		_ = os.Remove(part)
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		return err
	}
	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("finalize download: %w", err)
	}
	return nil
}

func (f *Fetcher) download(ctx context.Context, url, part string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	ua := f.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)

	resp, err := f.client().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		herr := &HTTPError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
		if herr.Temporary() {
			return herr
		}
		return backoff.Permanent(herr)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return backoff.Permanent(&HTTPError{URL: url, StatusCode: 0, Status: "response has no body"})
	}

	out, err := os.OpenFile(part, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create %s: %w", part, err))
	}

	var sink io.Writer = out
	if f.Progress != nil {
		if pw := f.Progress(pathBase(url), resp.ContentLength); pw != nil {
			sink = io.MultiWriter(out, pw)
			if closer, ok := pw.(io.Closer); ok {
				defer closer.Close()
			}
		}
	}

	if _, err := io.Copy(sink, resp.Body); err != nil {
		out.Close()
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return fmt.Errorf("write %s: %w", filepath.Base(part), err)
	}
	if err := out.Close(); err != nil {
		return backoff.Permanent(fmt.Errorf("close %s: %w", part, err))
	}
	return nil
}

// FetchWithMirrors tries each URL in order until one succeeds and returns the
// URL that produced dest. A dest that already exists short-circuits and is
// attributed to the primary URL. Any residue of a failed attempt is removed before the next
// mirror is tried.
func (f *Fetcher) FetchWithMirrors(ctx context.Context, urls []string, dest string) (string, error) {
	if len(urls) == 0 {
		return "", fmt.Errorf("no download sources for %s", filepath.Base(dest))
	}
	if _, err := os.Stat(dest); err == nil {
		f.logger().Debug("download already present", zap.String("dest", dest))
		return urls[0], nil
	}

	var errs []error
	for i, u := range urls {
		err := f.Fetch(ctx, u, dest)
		if err == nil {
			if i > 0 {
				f.logger().Info("downloaded from mirror", zap.String("url", u), zap.Int("mirror", i))
			}
			return u, nil
		}
		_ = os.Remove(dest)
		_ = os.Remove(dest + ".part")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		f.logger().Warn("mirror failed", zap.String("url", u), zap.Error(err))
		errs = append(errs, err)
	}
	return "", &AllMirrorsFailedError{Dest: dest, Errs: errs}
}

// IsHTTPStatus reports whether err carries an HTTPError with the given status.
func IsHTTPStatus(err error, status int) bool {
	var herr *HTTPError
	return errors.As(err, &herr) && herr.StatusCode == status
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f *Fetcher) backOff() backoff.BackOff {
	if f.NewBackOff != nil {
		return f.NewBackOff()
	}
	return backoff.NewExponentialBackOff()
}

func (f *Fetcher) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}

// pathBase extracts the file name from a URL without its query.
func pathBase(url string) string {
	if idx := strings.IndexAny(url, "?#"); idx >= 0 {
		url = url[:idx]
	}
	if idx := strings.LastIndexByte(url, '/'); idx >= 0 {
		return url[idx+1:]
	}
	return url
}

// FileName returns the scratch file name used for url.
func FileName(url string) (string, error) {
	base := pathBase(url)
	if base == "" || base == "." || base == ".." {
		return "", fmt.Errorf("infer file name from url: %s", url)
	}
	return base, nil
}
