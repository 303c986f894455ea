package proxypool

import (
	"bufio"
	"bytes"
	"context"
	"math/rand/v2"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog-crawler/internal/catalog"
	"github.com/JakeFAU/distro-catalog-crawler/internal/metrics"
)

// Source is one plain-text, newline-delimited host:port list.
type Source struct {
	Scheme catalog.ProxyScheme
	URL    string
}

// Config controls how a pool is assembled.
type Config struct {
	Sources      []Source
	PerSourceCap int
	PoolSize     int
	Timeout      time.Duration
}

// Loader fetches proxy lists directly (never through a proxy) and builds pools.
type Loader struct {
	cfg     Config
	fetcher catalog.Fetcher
	shuffle func(n int, swap func(i, j int))
	logger  *zap.Logger
}

// NewLoader constructs a Loader. A nil shuffle uses math/rand/v2.
func NewLoader(cfg Config, fetcher catalog.Fetcher, shuffle func(n int, swap func(i, j int)), logger *zap.Logger) *Loader {
	if cfg.PerSourceCap <= 0 {
		cfg.PerSourceCap = 50
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 30
	}
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{cfg: cfg, fetcher: fetcher, shuffle: shuffle, logger: logger}
}

// SourcesFromMap turns a scheme→URL map into a deterministic Source list,
// dropping unknown schemes.
func SourcesFromMap(m map[string]string) []Source {
	sources := make([]Source, 0, len(m))
	for scheme, url := range m {
		s := catalog.ProxyScheme(strings.ToLower(strings.TrimSpace(scheme)))
		if !s.Valid() || strings.TrimSpace(url) == "" {
			continue
		}
		sources = append(sources, Source{Scheme: s, URL: url})
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Scheme < sources[j].Scheme })
	return sources
}

// Load fetches every source, tags entries with the source scheme, shuffles the
// combined set, and keeps a bounded prefix. Unreachable or malformed sources are
// skipped; Load never fails and may return an empty pool.
func (l *Loader) Load(ctx context.Context) *Pool {
	var all []catalog.ProxyCandidate
	for _, src := range l.cfg.Sources {
		entries, err := l.loadSource(ctx, src)
		if err != nil {
			l.logger.Warn("proxy source skipped",
				zap.String("scheme", string(src.Scheme)),
				zap.String("url", src.URL),
				zap.Error(err),
			)
			metrics.SetProxySourceEntries(string(src.Scheme), 0)
			continue
		}
		metrics.SetProxySourceEntries(string(src.Scheme), len(entries))
		l.logger.Info("proxy source loaded",
			zap.String("scheme", string(src.Scheme)),
			zap.Int("entries", len(entries)),
		)
		all = append(all, entries...)
	}

	l.shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	if len(all) > l.cfg.PoolSize {
		all = all[:l.cfg.PoolSize]
	}
	metrics.SetProxyPoolSize(len(all))
	l.logger.Info("proxy pool ready", zap.Int("size", len(all)))
	return New(all)
}

func (l *Loader) loadSource(ctx context.Context, src Source) ([]catalog.ProxyCandidate, error) {
	resp, err := l.fetcher.Fetch(ctx, catalog.FetchRequest{URL: src.URL, Timeout: l.cfg.Timeout})
	if err != nil {
		return nil, err
	}
	return ParseList(resp.Body, src.Scheme, l.cfg.PerSourceCap), nil
}

// ParseList extracts up to limit host:port entries from a plain-text list.
// Blank lines, comments, and malformed entries are ignored. A leading
// scheme:// prefix is stripped; the declared scheme always wins.
func ParseList(body []byte, scheme catalog.ProxyScheme, limit int) []catalog.ProxyCandidate {
	var out []catalog.ProxyCandidate
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		if limit > 0 && len(out) >= limit {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.Index(line, "://"); idx >= 0 {
			line = line[idx+3:]
		}
		if fields := strings.Fields(line); len(fields) > 0 {
			line = fields[0]
		}
		if !validAddress(line) {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, catalog.ProxyCandidate{Scheme: scheme, Address: line})
	}
	return out
}

func validAddress(addr string) bool {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n > 0 && n <= 65535
}
