// Package catalog looks up content entries in the remote workshop catalog.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/potooio/curator/internal/types"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultRateLimit = 10 // requests/second
	userAgent        = "curator/v1"
	maxBodyBytes     = 4 << 20
)

// Client looks up catalog entries by id.
type Client interface {
	GetEntryByID(ctx context.Context, id int64) (*GetEntryResult, error)
}

// GetEntryResult mirrors the catalog response envelope. Data.Entry is nil
// when the catalog has no entry with the requested id.
type GetEntryResult struct {
	Data GetEntryData `json:"data"`
}

// GetEntryData holds the entry payload.
type GetEntryData struct {
	Entry *types.EntryDetails `json:"entry"`
}

// ErrRateLimitDeadline is returned when the rate limiter cannot admit a
// request before the context deadline. It wraps context.DeadlineExceeded.
var ErrRateLimitDeadline = fmt.Errorf("catalog rate limit wait exceeds deadline: %w", context.DeadlineExceeded)

// StatusError is returned for non-2xx catalog responses other than 404.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog returned HTTP %d for %s", e.StatusCode, e.URL)
}

// HTTPClientConfig configures an HTTPClient.
type HTTPClientConfig struct {
	BaseURL        string
	TimeoutSeconds int
	// RateLimit is the maximum requests per second; 0 uses the default.
	RateLimit float64
	AuthToken string
}

// HTTPClient implements Client over a JSON HTTP API: GET {base}/entries/{id}.
type HTTPClient struct {
	httpClient *http.Client
	logger     *zap.Logger
	baseURL    string
	authToken  string
	limiter    *rate.Limiter
}

// NewHTTPClient validates cfg and returns an HTTPClient.
func NewHTTPClient(logger *zap.Logger, cfg HTTPClientConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("catalog URL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("catalog URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("catalog URL must include a host")
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = defaultTimeout
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}

	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("catalog"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		authToken:  cfg.AuthToken,
		limiter:    rate.NewLimiter(rate.Limit(limit), max(1, int(limit))),
	}, nil
}

// GetEntryByID implements Client. A 404 yields a result with a nil entry.
func (c *HTTPClient) GetEntryByID(ctx context.Context, id int64) (*GetEntryResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		catalogRequestsTotal.WithLabelValues("cancelled").Inc()
		if ctx.Err() == nil {
			// The limiter refuses up front when the wait would outlive the deadline.
			return nil, fmt.Errorf("get entry %d: %w", id, ErrRateLimitDeadline)
		}
		return nil, err
	}

	endpoint := c.baseURL + "/entries/" + strconv.FormatInt(id, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	catalogRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		catalogRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("get entry %d: %w", id, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		catalogRequestsTotal.WithLabelValues("not_found").Inc()
		return &GetEntryResult{}, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		catalogRequestsTotal.WithLabelValues("error").Inc()
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: endpoint}
	}

	var result GetEntryResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&result); err != nil {
		catalogRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode entry %d: %w", id, err)
	}

	catalogRequestsTotal.WithLabelValues("success").Inc()
	c.logger.Debug("Fetched catalog entry",
		zap.Int64("workshop_id", id),
		zap.Bool("found", result.Data.Entry != nil),
	)
	return &result, nil
}
