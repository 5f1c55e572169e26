package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"media-insights-go/internal/logger"
)

// HTTPStore downloads keys from <baseURL>/<key>.
type HTTPStore struct {
	baseURL      string
	client       *http.Client
	maxRetryTime time.Duration
	log          *logrus.Entry
}

func NewHTTPStore(baseURL string, timeout, maxRetryTime time.Duration) *HTTPStore {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if maxRetryTime <= 0 {
		maxRetryTime = 12 * time.Second
	}
	return &HTTPStore{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: timeout},
		maxRetryTime: maxRetryTime,
		log:          logger.Component("blob-http"),
	}
}

func (s *HTTPStore) objectURL(key string) string {
	parts := strings.Split(strings.TrimPrefix(key, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/" + strings.Join(parts, "/")
}

// Download retries transport errors and 5xx responses; 404 maps to
// ErrNotFound and other 4xx fail at once.
func (s *HTTPStore) Download(ctx context.Context, key string) ([]byte, error) {
	u := s.objectURL(key)
	var data []byte
	var lastErr error

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			s.log.WithError(err).Warn("blob download failed, retrying")
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			switch {
			case resp.StatusCode == http.StatusNotFound:
				lastErr = fmt.Errorf("%w: %s", ErrNotFound, key)
				return backoff.Permanent(lastErr)
			case resp.StatusCode >= 500:
				lastErr = fmt.Errorf("server error %d: %s", resp.StatusCode, string(b))
				return lastErr
			default:
				lastErr = fmt.Errorf("download failed %d: %s", resp.StatusCode, string(b))
				return backoff.Permanent(lastErr)
			}
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			lastErr = err
			return err
		}
		data = body
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = s.maxRetryTime
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return nil, lastErr
	}
	s.log.WithFields(logrus.Fields{"key": key, "size": humanize.IBytes(uint64(len(data)))}).Debug("blob downloaded")
	return data, nil
}

// Size issues a HEAD request and reads Content-Length.
func (s *HTTPStore) Size(ctx context.Context, key string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.objectURL(key), nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("head %s: status %d", key, resp.StatusCode)
	}
	if resp.ContentLength < 0 {
		return 0, fmt.Errorf("head %s: no content length", key)
	}
	return resp.ContentLength, nil
}
