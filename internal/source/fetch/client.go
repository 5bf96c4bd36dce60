package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/GriffinCanCode/microhost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/microhost/internal/shared/paths"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// AppHeader carries the owning application's name on every retrieval so
// origin servers can attribute traffic to a micro app.
const AppHeader = "X-Micro-App"

var (
	ErrStatus         = errors.New("unexpected HTTP status")
	ErrUnsupportedURL = errors.New("unsupported URL")
)

// Error is a retrieval failure for one URL
type Error struct {
	URL    string
	App    string
	Status int // 0 when no response was received
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s (app %s): %v: %d", e.URL, e.App, e.Err, e.Status)
	}
	return fmt.Sprintf("fetch %s (app %s): %v", e.URL, e.App, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Options configures a Client
type Options struct {
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 = unlimited
	UserAgent string
	Breaker   resilience.Settings
	Logger    *zap.Logger
}

// Client retrieves resource text over HTTP. Retrieval is single-shot: there
// is no retry, a failed URL stays failed until a caller asks again.
type Client struct {
	resty    *resty.Client
	limiter  *rate.Limiter
	breakers *resilience.Group
	logger   *zap.Logger
}

// NewClient creates a retrieval client
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "microhost/1.0"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Pooled transport from go-retryablehttp; its retry loop is not used
	pooled := retryablehttp.NewClient()
	pooled.Logger = nil

	restyClient := resty.New().
		SetTransport(pooled.HTTPClient.Transport).
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "text/css,application/javascript,text/javascript,text/html,*/*;q=0.1")

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		resty:    restyClient,
		limiter:  limiter,
		breakers: resilience.NewGroup(opts.Breaker),
		logger:   logger,
	}
}

// Fetch retrieves url on behalf of appName and returns its body decoded to
// UTF-8.
func (c *Client) Fetch(ctx context.Context, rawURL, appName string) (string, error) {
	if !paths.IsFetchable(rawURL) {
		return "", &Error{URL: rawURL, App: appName, Err: ErrUnsupportedURL}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &Error{URL: rawURL, App: appName, Err: err}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", &Error{URL: rawURL, App: appName, Err: fmt.Errorf("rate limit: %w", err)}
	}

	breaker := c.breakers.For(u.Host)
	if err := breaker.Allow(); err != nil {
		return "", &Error{URL: rawURL, App: appName, Err: err}
	}

	start := time.Now()
	resp, err := c.resty.R().
		SetContext(ctx).
		SetHeader(AppHeader, appName).
		Get(rawURL)

	// client errors mean the origin is up; only transport errors and 5xx count
	breaker.Record(ctx.Err() != nil || (err == nil && resp.StatusCode() < 500))

	if err != nil {
		return "", &Error{URL: rawURL, App: appName, Err: err}
	}
	if resp.IsError() {
		return "", &Error{URL: rawURL, App: appName, Status: resp.StatusCode(), Err: ErrStatus}
	}

	body, err := decode(resp.Body(), resp.Header().Get("Content-Type"))
	if err != nil {
		return "", &Error{URL: rawURL, App: appName, Status: resp.StatusCode(), Err: err}
	}

	c.logger.Debug("fetched resource",
		zap.String("app", appName),
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode()),
		zap.Int("bytes", len(resp.Body())),
		zap.Duration("took", time.Since(start)),
	)
	return body, nil
}

// Breakers exposes per-origin breaker states
func (c *Client) Breakers() map[string]resilience.State {
	return c.breakers.States()
}

// decode converts body to UTF-8 when the response declares another charset
func decode(body []byte, contentType string) (string, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return string(body), nil
	}
	label := strings.ToLower(strings.TrimSpace(params["charset"]))
	if label == "" || label == "utf-8" || label == "utf8" {
		return string(body), nil
	}

	r, err := charset.NewReaderLabel(label, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("decode %s body: %w", label, err)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode %s body: %w", label, err)
	}
	return string(decoded), nil
}
