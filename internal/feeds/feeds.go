// Package feeds pulls publication metadata from RSS/Atom feeds (PubMed
// searches, preprint servers, journal TOCs) into the publications table as
// unscored rows.
package feeds

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/lueurxax/acitrack/internal/core/domain"
	"github.com/lueurxax/acitrack/internal/platform/htmlutils"
	"github.com/lueurxax/acitrack/internal/platform/observability"
)

const (
	SourceTypeFeed = "feed"

	idPrefix        = "feed-"
	wwwPrefix       = "www."
	trackingPrefix  = "utm_"
	idHashBytes     = 12
	maxSummaryRunes = 2000
	maxAuthors      = 10

	metricKind      = "feed"
	outcomeInserted = "inserted"
	outcomeUpdated  = "updated"
	outcomeError    = "error"
	outcomeSkipped  = "skipped"

	errFmtFetchFeed = "fetch feed: %w"
	errFmtParseFeed = "parse feed: %w"
)

var (
	ErrEmptyURL = errors.New("feed url is required")

	doiRegex  = regexp.MustCompile(`(?i)\b(10\.\d{4,9}/[^\s"<>]+)`)
	pmidRegex = regexp.MustCompile(`pubmed\.ncbi\.nlm\.nih\.gov/(\d+)`)
)

// Fetcher downloads the raw feed document.
type Fetcher interface {
	FetchFeed(ctx context.Context, rawURL string) ([]byte, error)
}

// Store is where parsed entries land.
type Store interface {
	UpsertPublication(ctx context.Context, p *domain.Publication) (bool, error)
}

// Result counts what one feed pull did.
type Result struct {
	Feed     string `json:"feed"`
	Entries  int    `json:"entries"`
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
	Skipped  int    `json:"skipped"`
	Errors   int    `json:"errors"`
}

type Ingester struct {
	fetcher Fetcher
	parser  *gofeed.Parser
	store   Store
	logger  *zerolog.Logger
}

func NewIngester(fetcher Fetcher, store Store, logger *zerolog.Logger) *Ingester {
	return &Ingester{
		fetcher: fetcher,
		parser:  gofeed.NewParser(),
		store:   store,
		logger:  logger,
	}
}

// Ingest fetches feedURL and upserts every entry. source labels the rows
// (falls back to the feed title). With dryRun nothing is written.
func (i *Ingester) Ingest(ctx context.Context, feedURL, source string, dryRun bool) (Result, error) {
	if strings.TrimSpace(feedURL) == "" {
		return Result{}, ErrEmptyURL
	}

	body, err := i.fetcher.FetchFeed(ctx, feedURL)
	if err != nil {
		return Result{}, fmt.Errorf(errFmtFetchFeed, err)
	}

	feed, err := i.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf(errFmtParseFeed, err)
	}

	if source == "" {
		source = strings.TrimSpace(feed.Title)
	}

	res := Result{Feed: source, Entries: len(feed.Items)}
	observability.FeedItemsParsed.WithLabelValues(source).Add(float64(len(feed.Items)))

	for _, item := range feed.Items {
		pub, ok := ToPublication(item, source)
		if !ok {
			res.Skipped++
			observability.IngestItems.WithLabelValues(metricKind, outcomeSkipped).Inc()

			continue
		}

		if dryRun {
			i.logger.Info().Str("publication_id", pub.PublicationID).Str("title", pub.Title).Msg("dry run: would upsert")
			res.Inserted++

			continue
		}

		inserted, err := i.store.UpsertPublication(ctx, pub)
		if err != nil {
			res.Errors++
			observability.IngestItems.WithLabelValues(metricKind, outcomeError).Inc()
			i.logger.Warn().Err(err).Str("publication_id", pub.PublicationID).Msg("feed entry upsert failed")

			continue
		}

		if inserted {
			res.Inserted++
			observability.IngestItems.WithLabelValues(metricKind, outcomeInserted).Inc()
		} else {
			res.Updated++
			observability.IngestItems.WithLabelValues(metricKind, outcomeUpdated).Inc()
		}
	}

	i.logger.Info().
		Str("feed", source).
		Int("entries", res.Entries).
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Int("skipped", res.Skipped).
		Int("errors", res.Errors).
		Msg("feed ingested")

	return res, nil
}

// ToPublication maps a feed entry to an unscored publication. Entries with
// neither a title nor a stable identifier are rejected.
func ToPublication(item *gofeed.Item, source string) (*domain.Publication, bool) {
	title := htmlutils.StripHTMLTags(item.Title)
	if title == "" {
		return nil, false
	}

	doi := findDOI(item)
	pmid := findPMID(item.Link)

	id := PublicationID(doi, item.Link, item.GUID)
	if id == "" {
		return nil, false
	}

	summary := item.Description
	if summary == "" {
		summary = item.Content
	}

	return &domain.Publication{
		PublicationID: id,
		Title:         title,
		Authors:       authors(item),
		Source:        source,
		PublishedDate: publishedDate(item),
		URL:           item.Link,
		DOI:           doi,
		PMID:          pmid,
		SourceType:    SourceTypeFeed,
		Summary:       htmlutils.Truncate(htmlutils.ToText(summary), maxSummaryRunes),
	}, true
}

// PublicationID derives a stable id: DOI when known, else the canonical
// link, else GUID.
func PublicationID(doi, link, guid string) string {
	key := strings.ToLower(strings.TrimSpace(doi))
	if key == "" {
		key = CanonicalLink(link)
	}

	if key == "" {
		key = strings.TrimSpace(guid)
	}

	if key == "" {
		return ""
	}

	h := sha256.Sum256([]byte(key))

	return idPrefix + hex.EncodeToString(h[:idHashBytes])
}

// CanonicalLink normalizes a link so the same article reached through
// different feeds hashes to one id: lowercase host without "www.", no
// fragment, no utm_* parameters, no trailing slash.
func CanonicalLink(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), wwwPrefix)
	u.Fragment = ""
	u.RawFragment = ""

	q := u.Query()
	for k := range q {
		if strings.HasPrefix(strings.ToLower(k), trackingPrefix) {
			q.Del(k)
		}
	}

	u.RawQuery = q.Encode()

	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
		u.RawPath = ""
	}

	return u.String()
}

func authors(item *gofeed.Item) string {
	names := make([]string, 0, len(item.Authors))

	for _, a := range item.Authors {
		if a != nil && strings.TrimSpace(a.Name) != "" {
			names = append(names, strings.TrimSpace(a.Name))
		}
	}

	// The RSS translator keeps only the first dc:creator.
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > len(names) {
		names = names[:0]

		for _, c := range item.DublinCoreExt.Creator {
			if c = strings.TrimSpace(c); c != "" {
				names = append(names, c)
			}
		}
	}

	if len(names) > maxAuthors {
		names = append(names[:maxAuthors], "et al.")
	}

	return strings.Join(names, ", ")
}

func publishedDate(item *gofeed.Item) string {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC().Format(time.DateOnly)
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC().Format(time.DateOnly)
	}

	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Date) > 0 {
		if t, err := dateparse.ParseAny(item.DublinCoreExt.Date[0]); err == nil {
			return t.Format(time.DateOnly)
		}
	}

	return ""
}

func findDOI(item *gofeed.Item) string {
	candidates := []string{item.Link, item.GUID}

	if item.DublinCoreExt != nil {
		candidates = append(candidates, item.DublinCoreExt.Identifier...)
	}

	for _, c := range candidates {
		if m := doiRegex.FindStringSubmatch(c); m != nil {
			return strings.TrimRight(m[1], ".,;")
		}
	}

	return ""
}

func findPMID(link string) string {
	if m := pmidRegex.FindStringSubmatch(link); m != nil {
		return m[1]
	}

	return ""
}
