package snapshot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/saleswire/agentsync/internal/types"
)

// NetworkError marks a failed snapshot acquisition. The scheduler retries
// at the next tick; no backoff state is kept across runs.
type NetworkError struct {
	Kind types.SyncKind
	URL  string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("failed to download %s snapshot from %s: %v", e.Kind, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

const downloadMaxElapsed = 2 * time.Minute

// HTTPSource downloads snapshots from the upstream export endpoint:
// GET {base}/export/{kind}, with ?user= appended for tenant kinds.
type HTTPSource struct {
	baseURL string
	token   string
	client  *http.Client
	log     *slog.Logger
}

// NewHTTPSource builds a source against the given base URL. token may be
// empty for unauthenticated upstreams.
func NewHTTPSource(baseURL, token string, timeout time.Duration, log *slog.Logger) *HTTPSource {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &HTTPSource{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

func newDownloadBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = downloadMaxElapsed
	return backoff.WithMaxRetries(bo, 2)
}

// Download fetches the export for kind into a temp file and returns its
// path. Transient failures are retried up to three attempts; a 4xx status
// aborts immediately.
func (s *HTTPSource) Download(ctx context.Context, kind types.SyncKind, userID string) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", &NetworkError{Kind: kind, URL: s.baseURL, Err: err}
	}
	u = u.JoinPath("export", string(kind))
	if userID != "" {
		q := u.Query()
		q.Set("user", userID)
		u.RawQuery = q.Encode()
	}
	target := u.String()

	var path string
	attempt := 0
	op := func() error {
		attempt++
		p, err := s.fetch(ctx, target)
		if err != nil {
			s.log.Debug("snapshot download attempt failed", "kind", kind, "attempt", attempt, "error", err)
			return err
		}
		path = p
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(newDownloadBackoff(), ctx)); err != nil {
		return "", &NetworkError{Kind: kind, URL: target, Err: err}
	}
	return path, nil
}

func (s *HTTPSource) fetch(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", backoff.Permanent(err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Client errors will not heal on retry.
		return "", backoff.Permanent(fmt.Errorf("upstream returned %s", resp.Status))
	default:
		return "", fmt.Errorf("upstream returned %s", resp.Status)
	}

	f, err := os.CreateTemp("", "agentsync-*.jsonl")
	if err != nil {
		return "", backoff.Permanent(err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
