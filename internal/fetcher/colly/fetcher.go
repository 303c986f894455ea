// Package collyfetcher implements catalog.Fetcher using gocolly with a proxy
// escalation ladder: a bounded number of rotated proxies, then one direct try.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/net/proxy"
	"h12.io/socks"

	"github.com/JakeFAU/distro-catalog-crawler/internal/catalog"
	"github.com/JakeFAU/distro-catalog-crawler/internal/metrics"
)

const (
	egressDirect = "direct"

	defaultTimeout          = 30 * time.Second
	defaultProxyTimeout     = 8 * time.Second
	defaultMaxProxyAttempts = 5
)

// Config controls collector behavior.
type Config struct {
	UserAgent        string
	Timeout          time.Duration
	ProxyTimeout     time.Duration
	MaxProxyAttempts int
}

// Fetcher implements catalog.Fetcher using a fresh Colly collector per attempt.
type Fetcher struct {
	cfg    Config
	logger *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type attemptResult struct {
	status int
	body   []byte
	url    string
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ProxyTimeout <= 0 {
		cfg.ProxyTimeout = defaultProxyTimeout
	}
	if cfg.MaxProxyAttempts <= 0 {
		cfg.MaxProxyAttempts = defaultMaxProxyAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{cfg: cfg, logger: logger}
}

// Fetch tries up to min(MaxProxyAttempts, pool size) proxies from the request's
// rotator, then once directly. Only the direct failure is surfaced.
func (f *Fetcher) Fetch(ctx context.Context, request catalog.FetchRequest) (catalog.FetchResponse, error) {
	start := time.Now()
	attempts := 0

	if request.Proxies != nil {
		budget := min(f.cfg.MaxProxyAttempts, request.Proxies.Len())
		for i := 0; i < budget; i++ {
			candidate, ok := request.Proxies.Next()
			if !ok {
				break
			}
			attempts++
			res, err := f.attempt(ctx, request.URL, &candidate, f.cfg.ProxyTimeout)
			if err == nil {
				return f.response(res, candidate.String(), attempts, start), nil
			}
			f.logger.Debug("proxy attempt failed",
				zap.String("url", request.URL),
				zap.String("proxy", candidate.String()),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				return catalog.FetchResponse{}, &catalog.FetchError{URL: request.URL, Egress: candidate.String(), Err: ctx.Err()}
			}
		}
	}

	timeout := request.Timeout
	if timeout <= 0 {
		timeout = f.cfg.Timeout
	}
	attempts++
	res, err := f.attempt(ctx, request.URL, nil, timeout)
	if err != nil {
		fetchErr := &catalog.FetchError{URL: request.URL, Egress: egressDirect, Err: err}
		var se *statusError
		if errors.As(err, &se) {
			fetchErr.StatusCode = se.code
		}
		f.logger.Warn("fetch failed",
			zap.String("url", request.URL),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return catalog.FetchResponse{}, fetchErr
	}
	return f.response(res, egressDirect, attempts, start), nil
}

func (f *Fetcher) response(res attemptResult, egress string, attempts int, start time.Time) catalog.FetchResponse {
	return catalog.FetchResponse{
		URL:        res.url,
		StatusCode: res.status,
		Body:       res.body,
		Egress:     egress,
		Attempts:   attempts,
		Duration:   time.Since(start),
	}
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// attempt performs one GET through the given egress (nil means direct).
func (f *Fetcher) attempt(ctx context.Context, target string, egress *catalog.ProxyCandidate, timeout time.Duration) (attemptResult, error) {
	kind := egressDirect
	if egress != nil {
		kind = string(egress.Scheme)
	}

	transport, err := newHTTPTransport(egress, timeout)
	if err != nil {
		metrics.ObserveFetchAttempt(kind, "error", 0)
		return attemptResult{}, err
	}
	defer transport.CloseIdleConnections()

	collector := f.buildCollector(ctx, transport, timeout)
	var (
		result   attemptResult
		fetchErr error
	)
	f.configureCollectorHooks(collector, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, target, &fetchErr); err != nil {
		metrics.ObserveFetchAttempt(kind, "error", 0)
		return attemptResult{}, err
	}
	if result.status < http.StatusOK || result.status >= http.StatusMultipleChoices {
		metrics.ObserveFetchAttempt(kind, "status", len(result.body))
		return attemptResult{}, &statusError{code: result.status}
	}
	metrics.ObserveFetchAttempt(kind, "success", len(result.body))
	return result, nil
}

// buildCollector binds requests to ctx so cancellation aborts the attempt in flight.
func (f *Fetcher) buildCollector(ctx context.Context, transport http.RoundTripper, timeout time.Duration) *colly.Collector {
	collector := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit(), colly.StdlibContext(ctx))
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	collector.WithTransport(transport)
	collector.SetRequestTimeout(timeout)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, result *attemptResult, fetchErr *error) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = attemptResult{
			status: r.StatusCode,
			body:   append([]byte(nil), r.Body...),
			url:    r.Request.URL.String(),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, target string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport(egress *catalog.ProxyCandidate, timeout time.Duration) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   min(timeout, 15*time.Second),
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
	}
	if egress == nil {
		return transport, nil
	}

	switch egress.Scheme {
	case catalog.SchemeHTTP:
		transport.Proxy = http.ProxyURL(&url.URL{Scheme: "http", Host: egress.Address})
	case catalog.SchemeSOCKS5:
		d, err := proxy.SOCKS5("tcp", egress.Address, nil, dialer)
		if err != nil {
			return nil, fmt.Errorf("socks5 dialer %s: %w", egress.Address, err)
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks5 dialer %s: no context support", egress.Address)
		}
		transport.DialContext = cd.DialContext
	case catalog.SchemeSOCKS4:
		// socks4a lets the proxy resolve the catalog hostname.
		dial := socks.Dial(fmt.Sprintf("socks4a://%s?timeout=%s", egress.Address, timeout))
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dial(network, addr)
		}
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", egress.Scheme)
	}
	return transport, nil
}
