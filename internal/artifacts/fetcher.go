package artifacts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/acitrack/internal/platform/observability"
)

// DefaultCacheTTL is how long a cached artifact counts as fresh.
const DefaultCacheTTL = 10 * time.Minute

// StoreErrorWarning is sent in X-Error when stale content replaces a failed read.
const StoreErrorWarning = "Drive API unavailable"

// Legacy flat artifact keys.
const (
	LegacyReport     = "report"
	LegacyManifest   = "manifest"
	LegacyNew        = "new"
	LegacyMustReads  = "must_reads_json"
	LegacyMustMD     = "must_reads_md"
	LegacySummaries  = "summaries"
	LegacyDBSnapshot = "db_snapshot"
)

// LegacyFiles maps legacy keys to the flat file names at the store root.
var LegacyFiles = map[string]string{
	LegacyReport:     "latest_report.md",
	LegacyManifest:   "latest_manifest.json",
	LegacyNew:        "latest_new.csv",
	LegacyMustReads:  "latest_must_reads.json",
	LegacyMustMD:     "latest_must_reads.md",
	LegacySummaries:  "latest_summaries.json",
	LegacyDBSnapshot: "latest_db.sqlite.gz",
}

// legacyOrder fixes the order of the status listing.
var legacyOrder = []string{
	LegacyReport, LegacyManifest, LegacyNew, LegacyMustReads, LegacyMustMD, LegacySummaries, LegacyDBSnapshot,
}

// Cache outcomes, used as metric labels.
const (
	cacheHit   = "hit"
	cacheMiss  = "miss"
	cacheStale = "stale"
)

// Fetched is artifact content with its cache state.
type Fetched struct {
	Content []byte
	Stale   bool
	// Warning is set when stale content was served because the store failed.
	Warning string
}

// CachedFetcher reads flat artifacts through a TTL cache and falls back to
// stale content when the store cannot answer.
type CachedFetcher struct {
	store  Store
	cache  Cache
	ttl    time.Duration
	now    func() time.Time
	logger *zerolog.Logger
}

// NewCachedFetcher creates a fetcher. A zero ttl selects DefaultCacheTTL.
func NewCachedFetcher(store Store, cache Cache, ttl time.Duration, logger *zerolog.Logger) *CachedFetcher {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &CachedFetcher{store: store, cache: cache, ttl: ttl, now: time.Now, logger: logger}
}

// TTL returns the freshness window.
func (f *CachedFetcher) TTL() time.Duration {
	return f.ttl
}

func (f *CachedFetcher) fresh(e *Entry) bool {
	return e != nil && f.now().Before(e.CachedAt.Add(f.ttl))
}

// Get returns the named file. Fresh cache entries are served directly;
// otherwise the store is read and the cache refreshed. A missing object or a
// store failure falls back to any cached entry, marked stale.
func (f *CachedFetcher) Get(ctx context.Context, name string) (*Fetched, error) {
	cached, err := f.cache.Get(ctx, name)
	if err != nil {
		f.logger.Warn().Err(err).Str("file", name).Msg("artifact cache read failed")

		cached = nil
	}

	if f.fresh(cached) {
		observability.ArtifactCacheEvents.WithLabelValues(cacheHit).Inc()
		return &Fetched{Content: cached.Content}, nil
	}

	observability.ArtifactCacheEvents.WithLabelValues(cacheMiss).Inc()

	content, err := f.store.Get(ctx, name)
	if err == nil {
		if setErr := f.cache.Set(ctx, name, Entry{Content: content, CachedAt: f.now()}); setErr != nil {
			f.logger.Warn().Err(setErr).Str("file", name).Msg("artifact cache write failed")
		}

		return &Fetched{Content: content}, nil
	}

	notFound := errors.Is(err, ErrArtifactNotFound)

	if cached != nil {
		observability.ArtifactCacheEvents.WithLabelValues(cacheStale).Inc()
		f.logger.Warn().Err(err).Str("file", name).Msg("serving stale artifact")

		out := &Fetched{Content: cached.Content, Stale: true}
		if !notFound {
			out.Warning = StoreErrorWarning
		}

		return out, nil
	}

	if notFound {
		return nil, fmt.Errorf("file '%s' not found in artifact store: %w", name, ErrArtifactNotFound)
	}

	return nil, fmt.Errorf("artifact store unavailable and no cached content for '%s': %w: %w", name, ErrArtifactUnavailable, err)
}

// CacheStatus describes the cached copy of an artifact.
type CacheStatus struct {
	Cached     bool       `json:"cached"`
	CachedAt   *time.Time `json:"cached_at,omitempty"`
	IsValid    *bool      `json:"is_valid,omitempty"`
	TTLMinutes *int       `json:"ttl_minutes,omitempty"`
}

// ArtifactStatus describes one legacy artifact.
type ArtifactStatus struct {
	Filename  string      `json:"filename"`
	Available bool        `json:"available"`
	Error     string      `json:"error,omitempty"`
	Cache     CacheStatus `json:"cache"`
}

// StatusReport is the body of the artifacts status endpoint.
type StatusReport struct {
	Status          string                    `json:"status"`
	Backend         string                    `json:"backend"`
	CacheTTLMinutes int                       `json:"cache_ttl_minutes"`
	Artifacts       map[string]ArtifactStatus `json:"artifacts"`
}

// Status checks every legacy artifact in the store and the cache.
func (f *CachedFetcher) Status(ctx context.Context) StatusReport {
	ttlMinutes := int(f.ttl / time.Minute)

	report := StatusReport{
		Status:          "ok",
		Backend:         f.store.Backend(),
		CacheTTLMinutes: ttlMinutes,
		Artifacts:       make(map[string]ArtifactStatus, len(legacyOrder)),
	}

	for _, key := range legacyOrder {
		name := LegacyFiles[key]
		st := ArtifactStatus{Filename: name}

		available, err := f.store.Exists(ctx, name)
		if err != nil {
			st.Error = err.Error()
		}

		st.Available = available

		if e, cerr := f.cache.Get(ctx, name); cerr == nil && e != nil {
			at := e.CachedAt
			valid := f.fresh(e)
			st.Cache = CacheStatus{Cached: true, CachedAt: &at, IsValid: &valid, TTLMinutes: &ttlMinutes}
		}

		report.Artifacts[key] = st
	}

	return report
}
