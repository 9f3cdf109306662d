package webfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchHTML(t *testing.T) {
	var gotUA, gotAccept string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte("<html><title>ok</title></html>"))
	}))
	defer srv.Close()

	f := New(Options{RPS: 100, UserAgent: "test-agent"})

	body, err := f.FetchHTML(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<title>ok</title>")
	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, acceptHTML, gotAccept)

	_, err = f.FetchFeed(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, acceptFeed, gotAccept)
}

func TestFetch_StatusNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := New(Options{RPS: 100}).FetchHTML(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrHTTPStatusNotOK)
	assert.Contains(t, err.Error(), "403")
}

func TestFetch_BodyIsCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", maxBodySizeBytes+100)))
	}))
	defer srv.Close()

	body, err := New(Options{RPS: 100}).FetchHTML(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, body, maxBodySizeBytes)
}

func TestFetch_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{}).FetchHTML(ctx, "http://example.invalid")
	require.Error(t, err)
}

func TestHostLimiterIsShared(t *testing.T) {
	f := New(Options{})

	a := f.hostLimiter(hostOf("https://PubMed.ncbi.nlm.nih.gov/1"))
	b := f.hostLimiter(hostOf("https://pubmed.ncbi.nlm.nih.gov/2"))
	c := f.hostLimiter(hostOf("https://www.biorxiv.org/x"))

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}
