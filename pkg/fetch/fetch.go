// Package fetch implements the shared evidence fetcher used by the source
// locator and every detector.
//
// The fetcher wraps plain HTTP GETs with three behaviors no caller should
// re-implement:
//
//   - response caching (200 and 404 outcomes, TTL-bounded, keyed by
//     method + URL + request headers)
//   - retry with exponential backoff for rate limits and transient failures
//   - single-flight collapsing, so concurrent identical requests from
//     independent detectors share one network call
//
// Outcomes are reported as a [Status] rather than an error: detectors treat
// NotFound as "no candidate" and any failure status as "contribute
// nothing", so a fetcher error never aborts a resolution.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/reportpath/reportpath/pkg/cache"
)

// Status classifies the outcome of one fetch.
type Status int

const (
	// StatusOK means the resource was retrieved (HTTP 2xx).
	StatusOK Status = iota
	// StatusNotFound means the resource does not exist (HTTP 404/410).
	StatusNotFound
	// StatusRateLimited means the server throttled us and retries were
	// exhausted (HTTP 429 or 403 with a zero rate-limit remaining header).
	StatusRateLimited
	// StatusTransient means a network failure or 5xx persisted through
	// all retry attempts.
	StatusTransient
	// StatusPermanent means a non-retryable failure (malformed request,
	// 4xx other than rate limiting).
	StatusPermanent
)

// String returns a short lowercase label, used in evidence records and logs.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not-found"
	case StatusRateLimited:
		return "rate-limited"
	case StatusTransient:
		return "transient-error"
	case StatusPermanent:
		return "permanent-error"
	default:
		return "unknown"
	}
}

// Result is the outcome of one fetch. Body is only populated for StatusOK.
type Result struct {
	URL       string
	Status    Status
	Code      int    // HTTP status code, 0 if the request never completed
	Body      []byte // response body for StatusOK, nil otherwise
	Cached    bool   // served from cache without a network call
	FetchedAt time.Time
}

// OK reports whether the resource was retrieved.
func (r *Result) OK() bool { return r != nil && r.Status == StatusOK }

// Request describes one fetch. Redirects are followed unless
// NoFollowRedirects is set (some probes treat a redirect as a miss).
type Request struct {
	URL               string
	Headers           map[string]string
	NoFollowRedirects bool
}

// cachedResponse is the wire format stored in the cache. Both hits and
// 404s are cached so that warm-cache resolutions issue no network calls.
type cachedResponse struct {
	Code int    `json:"code"`
	Body []byte `json:"body,omitempty"`
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(c *http.Client) Option { return func(f *Fetcher) { f.client = c } }

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option { return func(f *Fetcher) { f.policy = p } }

// WithTTL sets the cache TTL for fetched responses.
func WithTTL(ttl time.Duration) Option { return func(f *Fetcher) { f.ttl = ttl } }

// WithHeaders sets default headers applied to every request.
func WithHeaders(h map[string]string) Option { return func(f *Fetcher) { f.headers = h } }

// WithLogger sets the logger. Defaults to log.Default().
func WithLogger(l *log.Logger) Option { return func(f *Fetcher) { f.logger = l } }

// WithUserAgent sets the User-Agent header for all requests.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if f.headers == nil {
			f.headers = map[string]string{}
		}
		f.headers["User-Agent"] = ua
	}
}

// Fetcher is the shared retrieval capability. Construct one per process
// with [New] and inject it into the locator and detectors; all methods are
// safe for concurrent use.
type Fetcher struct {
	client  *http.Client
	cache   cache.Cache
	ttl     time.Duration
	policy  RetryPolicy
	headers map[string]string
	logger  *log.Logger
	group   singleflight.Group
}

const defaultTimeout = 10 * time.Second

// New creates a Fetcher backed by the given cache.
// Pass cache.NewNullCache() to disable caching.
func New(c cache.Cache, opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: defaultTimeout},
		cache:  c,
		ttl:    24 * time.Hour,
		policy: DefaultRetryPolicy(),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get fetches url with the fetcher's default headers.
func (f *Fetcher) Get(ctx context.Context, url string) (*Result, error) {
	return f.Do(ctx, Request{URL: url})
}

// GetJSON fetches url and decodes a StatusOK body into v.
// The result is returned unchanged for evidence recording; v is only
// populated when res.OK().
func (f *Fetcher) GetJSON(ctx context.Context, url string, v any) (*Result, error) {
	res, err := f.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if res.OK() {
		if err := json.Unmarshal(res.Body, v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", url, err)
		}
	}
	return res, nil
}

// Do performs one fetch with caching, retry, and single-flight collapsing.
// The returned error is non-nil only for context cancellation or an
// unbuildable request; every HTTP-level outcome is encoded in Result.Status.
func (f *Fetcher) Do(ctx context.Context, req Request) (*Result, error) {
	key := f.key(req)

	if data, ok, _ := f.cache.Get(ctx, key); ok {
		var stored cachedResponse
		if err := json.Unmarshal(data, &stored); err == nil {
			f.logger.Debug("cache hit", "url", req.URL)
			return &Result{
				URL:       req.URL,
				Status:    statusFor(stored.Code),
				Code:      stored.Code,
				Body:      stored.Body,
				Cached:    true,
				FetchedAt: time.Now(),
			}, nil
		}
		_ = f.cache.Delete(ctx, key)
	}

	v, err, _ := f.group.Do(key, func() (any, error) {
		return f.fetch(ctx, key, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (f *Fetcher) fetch(ctx context.Context, key string, req Request) (*Result, error) {
	res := &Result{URL: req.URL, FetchedAt: time.Now()}

	err := f.policy.Retry(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
		if err != nil {
			res.Status = StatusPermanent
			return err
		}
		for k, v := range f.headers {
			httpReq.Header.Set(k, v)
		}
		for k, v := range req.Headers {
			httpReq.Header.Set(k, v)
		}

		client := f.client
		if req.NoFollowRedirects {
			c := *f.client
			c.CheckRedirect = func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			}
			client = &c
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			res.Status = StatusTransient
			return Retryable(err)
		}
		defer resp.Body.Close()

		res.Code = resp.StatusCode
		res.Status = statusFor(resp.StatusCode)
		if resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0" {
			// GitHub reports an exhausted rate limit as 403.
			res.Status = StatusRateLimited
		}

		switch res.Status {
		case StatusOK:
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
			if err != nil {
				res.Status = StatusTransient
				return Retryable(err)
			}
			res.Body = body
			return nil
		case StatusRateLimited:
			f.logger.Debug("rate limited", "url", req.URL, "code", resp.StatusCode)
			return &RetryableError{
				Err:   fmt.Errorf("rate limited: %s", req.URL),
				After: retryAfter(resp),
			}
		case StatusTransient:
			return Retryable(fmt.Errorf("status %d: %s", resp.StatusCode, req.URL))
		default:
			return nil // NotFound and Permanent are final outcomes
		}
	})

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Retries exhausted or the request could not be built. The caller
		// gets the status; the error itself is only worth a debug line.
		f.logger.Debug("fetch failed", "url", req.URL, "status", res.Status.String(), "err", err)
	}

	if res.Status == StatusOK || res.Status == StatusNotFound {
		if data, err := json.Marshal(cachedResponse{Code: res.Code, Body: res.Body}); err == nil {
			_ = f.cache.Set(ctx, key, data, f.ttl)
		}
	}
	return res, nil
}

// maxBodySize caps response bodies; policy files and API payloads are small
// and scraping targets do not need more than this.
const maxBodySize = 2 << 20

// key builds the stable cache / single-flight key for a request:
// method, URL, redirect mode, and sorted request-specific headers.
// Authorization is excluded so authenticated and anonymous runs share
// cached public responses.
func (f *Fetcher) key(req Request) string {
	parts := []string{"GET", req.URL}
	if req.NoFollowRedirects {
		parts = append(parts, "noredirect")
	}
	headers := make([]string, 0, len(req.Headers))
	for k, v := range req.Headers {
		if strings.EqualFold(k, "Authorization") {
			continue
		}
		headers = append(headers, strings.ToLower(k)+"="+v)
	}
	sort.Strings(headers)
	return strings.Join(append(parts, headers...), "\n")
}

func statusFor(code int) Status {
	switch {
	case code >= 200 && code < 300:
		return StatusOK
	case code == http.StatusNotFound || code == http.StatusGone:
		return StatusNotFound
	case code == http.StatusTooManyRequests:
		return StatusRateLimited
	case code >= 500:
		return StatusTransient
	default:
		return StatusPermanent
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
