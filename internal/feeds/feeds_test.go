package feeds

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/acitrack/internal/core/domain"
	"github.com/lueurxax/acitrack/internal/core/ports/mocks"
	"github.com/lueurxax/acitrack/internal/webfetch"
)

const pubmedRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>PubMed: breath cancer</title>
  <item>
    <title>Breath VOCs for early lung cancer detection</title>
    <link>https://pubmed.ncbi.nlm.nih.gov/40000001/</link>
    <guid isPermaLink="false">pubmed:40000001</guid>
    <description>&lt;p&gt;We profiled &lt;b&gt;exhaled&lt;/b&gt; breath.&lt;/p&gt;</description>
    <dc:creator>Doe J</dc:creator>
    <dc:creator>Roe R</dc:creator>
    <dc:identifier>doi:10.1000/breath.2026.1</dc:identifier>
    <pubDate>Mon, 09 Feb 2026 08:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Canine olfaction screening</title>
    <link>https://www.biorxiv.org/content/10.1101/2026.01.05.123456v1</link>
    <dc:date>2026-01-05</dc:date>
  </item>
  <item>
    <title></title>
    <link>https://example.org/untitled</link>
  </item>
</channel>
</rss>`

type staticFetcher struct {
	body string
	err  error
}

func (f staticFetcher) FetchFeed(context.Context, string) ([]byte, error) {
	return []byte(f.body), f.err
}

func TestIngest(t *testing.T) {
	store := mocks.NewStore()
	logger := zerolog.Nop()
	ing := NewIngester(staticFetcher{body: pubmedRSS}, store, &logger)

	res, err := ing.Ingest(context.Background(), "https://pubmed.example/rss", "", false)
	require.NoError(t, err)
	assert.Equal(t, Result{Feed: "PubMed: breath cancer", Entries: 3, Inserted: 2, Skipped: 1}, res)

	id := PublicationID("10.1000/breath.2026.1", "", "")

	pub, err := store.GetPublication(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, pub)

	assert.Equal(t, "Breath VOCs for early lung cancer detection", pub.Title)
	assert.Equal(t, "Doe J, Roe R", pub.Authors)
	assert.Equal(t, "2026-02-09", pub.PublishedDate)
	assert.Equal(t, "40000001", pub.PMID)
	assert.Equal(t, "10.1000/breath.2026.1", pub.DOI)
	assert.Equal(t, "We profiled exhaled breath.", pub.Summary)
	assert.Equal(t, SourceTypeFeed, pub.SourceType)
	assert.Nil(t, pub.FinalRelevancyScore)

	res, err = ing.Ingest(context.Background(), "https://pubmed.example/rss", "PubMed", false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated, "re-ingesting updates rows in place")
}

func TestIngest_KeepsExistingScores(t *testing.T) {
	store := mocks.NewStore()
	logger := zerolog.Nop()

	id := PublicationID("10.1000/breath.2026.1", "", "")
	_, err := store.UpsertPublication(context.Background(), &domain.Publication{
		PublicationID:       id,
		Title:               "Scored earlier",
		FinalRelevancyScore: domain.IntPtr(88),
	})
	require.NoError(t, err)

	_, err = NewIngester(staticFetcher{body: pubmedRSS}, store, &logger).
		Ingest(context.Background(), "https://pubmed.example/rss", "PubMed", false)
	require.NoError(t, err)

	pub, err := store.GetPublication(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, pub.FinalRelevancyScore)
	assert.Equal(t, 88, *pub.FinalRelevancyScore)
}

func TestIngest_DryRun(t *testing.T) {
	store := mocks.NewStore()
	logger := zerolog.Nop()

	res, err := NewIngester(staticFetcher{body: pubmedRSS}, store, &logger).
		Ingest(context.Background(), "https://pubmed.example/rss", "PubMed", true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)

	stats, err := store.PublicationStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestIngest_Errors(t *testing.T) {
	logger := zerolog.Nop()
	store := mocks.NewStore()

	_, err := NewIngester(staticFetcher{}, store, &logger).Ingest(context.Background(), " ", "", false)
	require.ErrorIs(t, err, ErrEmptyURL)

	boom := errors.New("boom")
	_, err = NewIngester(staticFetcher{err: boom}, store, &logger).Ingest(context.Background(), "https://x", "", false)
	require.ErrorIs(t, err, boom)

	_, err = NewIngester(staticFetcher{body: "not a feed"}, store, &logger).Ingest(context.Background(), "https://x", "", false)
	require.Error(t, err)
}

func TestIngest_OverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(pubmedRSS))
	}))
	defer srv.Close()

	logger := zerolog.Nop()
	store := mocks.NewStore()
	fetcher := webfetch.New(webfetch.Options{RPS: 100})

	res, err := NewIngester(fetcher, store, &logger).Ingest(context.Background(), srv.URL, "PubMed", false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
}

func TestToPublication(t *testing.T) {
	tests := []struct {
		name   string
		item   *gofeed.Item
		wantOK bool
		wantID string
	}{
		{
			name:   "doi in link",
			item:   &gofeed.Item{Title: "T", Link: "https://doi.org/10.1234/ABC.5."},
			wantOK: true,
			wantID: PublicationID("10.1234/abc.5", "", ""),
		},
		{
			name:   "link only",
			item:   &gofeed.Item{Title: "T", Link: "https://journal.example/a/1"},
			wantOK: true,
			wantID: PublicationID("", "https://journal.example/a/1", ""),
		},
		{
			name:   "guid only",
			item:   &gofeed.Item{Title: "T", GUID: "urn:x:1"},
			wantOK: true,
			wantID: PublicationID("", "", "urn:x:1"),
		},
		{
			name: "no identifier",
			item: &gofeed.Item{Title: "T"},
		},
		{
			name: "no title",
			item: &gofeed.Item{Link: "https://journal.example/a/2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub, ok := ToPublication(tt.item, "src")
			require.Equal(t, tt.wantOK, ok)

			if ok {
				assert.Equal(t, tt.wantID, pub.PublicationID)
				assert.Equal(t, "src", pub.Source)
			}
		})
	}
}

func TestCanonicalLink(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"not a url", "not a url"},
		{"https://WWW.Journal.example/a/1/", "https://journal.example/a/1"},
		{"https://journal.example/a/1?utm_source=rss&id=7#section", "https://journal.example/a/1?id=7"},
		{"https://journal.example/", "https://journal.example/"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalLink(tt.in), tt.in)
	}

	assert.Equal(t,
		PublicationID("", "https://www.journal.example/a/1?utm_medium=feed", ""),
		PublicationID("", "https://journal.example/a/1", ""),
	)
}
