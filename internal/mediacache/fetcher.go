package mediacache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/hangeul/internal/assessment"
)

// ErrTooLarge is returned when an asset exceeds the size limit.
var ErrTooLarge = errors.New("asset exceeds size limit")

// FetcherOptions configures an HTTPFetcher.
type FetcherOptions struct {
	// Dir is the parent of the per-cache temp directory. Empty = os.TempDir().
	Dir      string
	MaxBytes int64
	Timeout  time.Duration
	Client   *http.Client
}

// HTTPFetcher downloads assets into a private temp directory. Files are
// written under a temporary name and renamed once complete, so a partial
// download is never visible.
type HTTPFetcher struct {
	dir      string
	maxBytes int64
	timeout  time.Duration
	client   *http.Client
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates the cache directory and returns a fetcher.
func NewHTTPFetcher(opts FetcherOptions) (*HTTPFetcher, error) {
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create media dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(opts.Dir, "hangeul-media-*")
	if err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPFetcher{
		dir:      dir,
		maxBytes: opts.MaxBytes,
		timeout:  opts.Timeout,
		client:   client,
	}, nil
}

// Dir returns the directory holding downloaded files.
func (f *HTTPFetcher) Dir() string { return f.dir }

// Fetch downloads rawURL and returns the local path.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, mediaType assessment.MediaType) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	tmp, err := os.CreateTemp(f.dir, ".part-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	n, err := io.Copy(tmp, body)
	if err != nil {
		cleanup()
		return "", fmt.Errorf("download: %w", err)
	}
	if f.maxBytes > 0 && n > f.maxBytes {
		cleanup()
		return "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	final := filepath.Join(f.dir, uuid.NewString()+extension(u.Path, mediaType))
	if err := os.Rename(tmpPath, final); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename: %w", err)
	}
	return final, nil
}

// Close removes the cache directory and everything in it.
func (f *HTTPFetcher) Close() error {
	return os.RemoveAll(f.dir)
}

func extension(p string, mt assessment.MediaType) string {
	if ext := strings.ToLower(path.Ext(p)); ext != "" && len(ext) <= 5 {
		return ext
	}
	switch mt {
	case assessment.MediaAudio:
		return ".mp3"
	case assessment.MediaVideo:
		return ".mp4"
	default:
		return ".img"
	}
}
