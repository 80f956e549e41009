package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"imgpub/internal/config"
	"imgpub/internal/domain/models"
	"imgpub/internal/metrics"
)

const maxResponseBytes = 1 << 20

// File is one artifact to publish.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// GatewayError describes one failed attempt.
type GatewayError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway %s answered %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gateway %s: %v", e.Endpoint, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Unavailable reports whether the gateway signalled 500 or 503.
func (e *GatewayError) Unavailable() bool {
	return e.StatusCode == http.StatusInternalServerError || e.StatusCode == http.StatusServiceUnavailable
}

func (e *GatewayError) transient() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// PublishError is returned once every attempt has failed.
type PublishError struct {
	Attempts int
	Last     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *PublishError) Unwrap() error { return e.Last }

// Client publishes files with retries on the primary gateway and a one-shot
// failover to the backup gateway whenever the primary answers 500 or 503.
type Client struct {
	HTTPClient     *http.Client
	MaxRetries     uint64
	BackoffUnit    time.Duration
	PrimaryTimeout time.Duration
	BackupTimeout  time.Duration
	log            *zap.SugaredLogger
}

// NewClient creates a Client configured from c.
func NewClient(c *config.Config, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	retries := c.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		HTTPClient:     &http.Client{},
		MaxRetries:     uint64(retries),
		BackoffUnit:    c.RetryBackoff,
		PrimaryTimeout: c.PrimaryTimeout,
		BackupTimeout:  c.BackupTimeout,
		log:            log,
	}
}

// linearBackoff waits attempt*unit before the next attempt.
func linearBackoff(unit time.Duration) retry.Backoff {
	var attempt int64
	return retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return time.Duration(attempt) * unit, false
	})
}

// Publish uploads file. All retry and failover state is local to the call.
func (c *Client) Publish(ctx context.Context, s Settings, file File) (*models.PublishResult, error) {
	if strings.TrimSpace(s.GatewayURL) == "" {
		return nil, ErrNotConfigured
	}

	attempts := 0
	var last error
	backoff := retry.WithMaxRetries(c.MaxRetries, linearBackoff(c.BackoffUnit))

	res, err := retry.DoValue(ctx, backoff, func(ctx context.Context) (*models.PublishResult, error) {
		attempts++
		res, err := c.attempt(ctx, s.GatewayURL, c.PrimaryTimeout, s, file)
		if err == nil {
			res.Endpoint = models.EndpointPrimary
			return res, nil
		}
		last = err
		c.log.Warnw("primary gateway attempt failed", "attempt", attempts, "endpoint", s.GatewayURL, "error", err)

		var gwErr *GatewayError
		if errors.As(err, &gwErr) && gwErr.Unavailable() && s.BackupURL != "" {
			metrics.FailoversTotal.Inc()
			attempts++
			res, berr := c.attempt(ctx, s.BackupURL, c.BackupTimeout, s, file)
			if berr == nil {
				res.Endpoint = models.EndpointBackup
				c.log.Infow("published through backup gateway", "endpoint", s.BackupURL)
				return res, nil
			}
			last = berr
			c.log.Warnw("backup gateway attempt failed", "endpoint", s.BackupURL, "error", berr)
		}

		if errors.As(err, &gwErr) && !gwErr.transient() {
			return nil, err
		}
		return nil, retry.RetryableError(err)
	})
	if err != nil {
		if last == nil {
			last = err
		}
		return nil, &PublishError{Attempts: attempts, Last: last}
	}
	return res, nil
}

func (c *Client) attempt(ctx context.Context, endpoint string, timeout time.Duration, s Settings, file File) (*models.PublishResult, error) {
	res, err := c.post(ctx, endpoint, timeout, s, file)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.PublishAttemptsTotal.WithLabelValues(endpoint, outcome).Inc()
	return res, err
}

func (c *Client) post(ctx context.Context, endpoint string, timeout time.Duration, s Settings, file File) (*models.PublishResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, contentType, err := multipartBody(file)
	if err != nil {
		return nil, &GatewayError{Endpoint: endpoint, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, &GatewayError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &GatewayError{Endpoint: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &GatewayError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &GatewayError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: errors.New(snippet(raw))}
	}

	cid, size, err := parseResponse(raw)
	if err != nil {
		return nil, &GatewayError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: err}
	}
	if size <= 0 {
		size = int64(len(file.Data))
	}
	return &models.PublishResult{
		Status:     models.StatusSuccess,
		ContentID:  cid,
		NativeURI:  "ipfs://" + cid,
		GatewayURL: MirrorURL(s.MirrorBase, cid),
		ByteSize:   size,
		Filename:   file.Name,
	}, nil
}

// MirrorURL returns the HTTP mirror address of cid.
func MirrorURL(base, cid string) string {
	return strings.TrimRight(base, "/") + "/" + cid
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func multipartBody(file File) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(file.Name)))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	if s == "" {
		return "empty response"
	}
	return s
}
