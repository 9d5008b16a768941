package notifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/potooio/curator/internal/types"
)

const (
	defaultWebhookTimeout    = 10 * time.Second
	defaultWebhookWorkers    = 3
	defaultWebhookBufferSize = 100
	maxRetries               = 2
	retryBackoff             = time.Second
	userAgent                = "curator/v1"

	// EnvelopeType is the webhook payload type for install outcomes.
	EnvelopeType = "curator.install.outcome"
)

// Values accepted by WebhookReporterConfig.ReportOn.
const (
	ReportOnAll      = "all"
	ReportOnFailures = "failures"
)

// WebhookEnvelope is the JSON payload POSTed to webhook endpoints.
type WebhookEnvelope struct {
	// Type identifies the notification kind.
	Type string `json:"type"`
	// SchemaVersion allows consumers to detect breaking changes.
	SchemaVersion string `json:"schemaVersion"`
	// Timestamp is the RFC3339 time the notification was sent.
	Timestamp string `json:"timestamp"`
	// Data contains the install outcome.
	Data ReportData `json:"data"`
}

// webhookWork is an internal message sent to the worker pool.
type webhookWork struct {
	ctx      context.Context
	envelope WebhookEnvelope
}

// WebhookReporter implements Reporter for generic HTTP POST webhooks.
type WebhookReporter struct {
	httpClient *http.Client
	logger     *zap.Logger
	url        string
	authToken  string
	reportOn   string
	sendCh     chan webhookWork
	wg         sync.WaitGroup
}

// WebhookReporterConfig holds the configuration for creating a WebhookReporter.
type WebhookReporterConfig struct {
	URL                string
	TimeoutSeconds     int
	InsecureSkipVerify bool
	// ReportOn is "all" (default) or "failures".
	ReportOn string
	// AuthToken is sent as a bearer token when non-empty.
	AuthToken string
}

// NewWebhookReporter creates a WebhookReporter. Returns an error if the URL is invalid.
func NewWebhookReporter(logger *zap.Logger, cfg WebhookReporterConfig) (*WebhookReporter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("webhook URL must include a host")
	}

	reportOn := cfg.ReportOn
	switch reportOn {
	case "":
		reportOn = ReportOnAll
	case ReportOnAll, ReportOnFailures:
	default:
		return nil, fmt.Errorf("webhook reportOn must be %q or %q, got %q", ReportOnAll, ReportOnFailures, reportOn)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = defaultWebhookTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // user-configured
		logger.Warn("Webhook TLS certificate verification is disabled, this is insecure",
			zap.String("url", RedactURL(cfg.URL)))
	}

	return &WebhookReporter{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger:    logger.Named("webhook-reporter"),
		url:       cfg.URL,
		authToken: cfg.AuthToken,
		reportOn:  reportOn,
		sendCh:    make(chan webhookWork, defaultWebhookBufferSize),
	}, nil
}

// Name implements Reporter.
func (wr *WebhookReporter) Name() string { return "webhook" }

// ShouldReport implements Reporter.
func (wr *WebhookReporter) ShouldReport(status types.OutcomeStatus) bool {
	if wr.reportOn == ReportOnFailures {
		return status == types.OutcomeFailed
	}
	return true
}

// Start implements Reporter. Launches background workers to drain the send channel.
func (wr *WebhookReporter) Start(ctx context.Context) {
	for i := 0; i < defaultWebhookWorkers; i++ {
		wr.wg.Add(1)
		go wr.worker(ctx)
	}
	wr.logger.Info("Webhook reporter started",
		zap.String("url", RedactURL(wr.url)),
		zap.Int("workers", defaultWebhookWorkers),
		zap.String("report_on", wr.reportOn),
	)
}

// Close waits for all workers to finish draining queued outcomes.
// Call after the context passed to Start is cancelled.
func (wr *WebhookReporter) Close() {
	wr.wg.Wait()
}

// Report implements Reporter. Enqueues the outcome for async delivery. A done
// ctx does not reject the outcome: cancelled installs report on a cancelled
// context and must still be delivered.
func (wr *WebhookReporter) Report(ctx context.Context, data ReportData) error {
	envelope := WebhookEnvelope{
		Type:          EnvelopeType,
		SchemaVersion: "1",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Data:          data,
	}

	select {
	case wr.sendCh <- webhookWork{ctx: ctx, envelope: envelope}:
		return nil
	default:
		webhookSendTotal.WithLabelValues("dropped").Inc()
		wr.logger.Warn("Webhook send buffer full, dropping outcome",
			zap.Int64("workshop_id", data.EntryID))
		return fmt.Errorf("webhook send buffer full")
	}
}

func (wr *WebhookReporter) worker(ctx context.Context) {
	defer wr.wg.Done()
	for {
		select {
		case work, ok := <-wr.sendCh:
			if !ok {
				return
			}
			wr.deliver(work, false)
		case <-ctx.Done():
			wr.drain()
			return
		}
	}
}

// drain delivers whatever is still buffered once the reporter is stopping.
func (wr *WebhookReporter) drain() {
	for {
		select {
		case work := <-wr.sendCh:
			wr.deliver(work, true)
		default:
			return
		}
	}
}

// deliver posts one envelope. The install's context is usually done by now
// (cancelled installs in particular), so only its values are kept.
func (wr *WebhookReporter) deliver(work webhookWork, draining bool) {
	ctx := context.WithoutCancel(work.ctx)
	if draining {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wr.httpClient.Timeout)
		defer cancel()
	}

	err := wr.send(ctx, work.envelope)
	if err == nil {
		return
	}
	fields := []zap.Field{
		zap.String("url", RedactURL(wr.url)),
		zap.Int64("workshop_id", work.envelope.Data.EntryID),
		zap.String("status", string(work.envelope.Data.Status)),
		zap.Error(err),
	}
	if draining {
		wr.logger.Warn("Webhook delivery failed during shutdown", fields...)
		return
	}
	wr.logger.Error("Webhook delivery failed", fields...)
}

// send posts the envelope, retrying transient failures with exponential backoff.
func (wr *WebhookReporter) send(ctx context.Context, envelope WebhookEnvelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		webhookSendTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	key := idempotencyKey(envelope.Data)

	attempt := 1
	for {
		err = wr.post(ctx, body, key)
		if err == nil {
			return nil
		}
		if !isRetryable(err) || attempt > maxRetries {
			break
		}

		wr.logger.Debug("Webhook delivery attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		wait := time.NewTimer(retryBackoff << (attempt - 1))
		select {
		case <-wait.C:
		case <-ctx.Done():
			wait.Stop()
			webhookSendTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("waiting to retry: %w", ctx.Err())
		}
		webhookSendTotal.WithLabelValues("retry").Inc()
		attempt++
	}

	webhookSendTotal.WithLabelValues("error").Inc()
	if attempt > 1 {
		return fmt.Errorf("gave up after %d attempts: %w", attempt, err)
	}
	return err
}

// post performs one delivery attempt.
func (wr *WebhookReporter) post(ctx context.Context, body []byte, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wr.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	// Same key on every retry so receivers can drop repeats.
	req.Header.Set("Idempotency-Key", key)
	if wr.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+wr.authToken)
	}

	start := time.Now()
	resp, err := wr.httpClient.Do(req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		webhookSendDuration.WithLabelValues("error").Observe(elapsed)
		return &deliveryError{err: err, retryable: true}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		webhookSendTotal.WithLabelValues("success").Inc()
		webhookSendDuration.WithLabelValues("success").Observe(elapsed)
		return nil
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		webhookSendDuration.WithLabelValues("error").Observe(elapsed)
		return &deliveryError{statusCode: resp.StatusCode, retryable: true}
	default:
		webhookSendDuration.WithLabelValues("error").Observe(elapsed)
		return &deliveryError{statusCode: resp.StatusCode}
	}
}

// idempotencyKey identifies one outcome of one release install.
func idempotencyKey(d ReportData) string {
	return fmt.Sprintf("%d-%d-%s-%d", d.EntryID, d.ReleaseID, d.Status, d.FinishedAt.UnixNano())
}

// deliveryError is a failed attempt. statusCode is zero for transport errors.
type deliveryError struct {
	statusCode int
	err        error
	retryable  bool
}

func (e *deliveryError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("webhook returned HTTP %d", e.statusCode)
}

func (e *deliveryError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var de *deliveryError
	if errors.As(err, &de) {
		return de.retryable
	}
	return true
}

// RedactURL masks credentials in a URL for safe logging.
// It redacts userinfo passwords and query parameter values.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	redacted := u.Redacted()
	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			q.Set(key, "REDACTED")
		}
		r, err := url.Parse(redacted)
		if err != nil {
			return redacted
		}
		r.RawQuery = q.Encode()
		return r.String()
	}
	return redacted
}
