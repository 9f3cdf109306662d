package abstracts

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/acitrack/internal/core/domain"
	"github.com/lueurxax/acitrack/internal/core/ports/mocks"
)

type fakeFetcher map[string]string

func (f fakeFetcher) FetchHTML(_ context.Context, rawURL string) ([]byte, error) {
	body, ok := f[rawURL]
	if !ok {
		return nil, errors.New("HTTP status not OK: 404")
	}

	return []byte(body), nil
}

func TestEnrich(t *testing.T) {
	store := mocks.NewStore()
	logger := zerolog.Nop()

	store.SetCalibrationSource("pub-1", domain.CalibrationSource{Title: "One", URL: "https://a.example/1"})

	filled := store.AddCalibrationItem(domain.CalibrationItem{PublicationID: "pub-1", URL: "https://a.example/1"})
	store.AddCalibrationItem(domain.CalibrationItem{PublicationID: "pub-2", URL: "https://a.example/2"})
	store.AddCalibrationItem(domain.CalibrationItem{PublicationID: "pub-3", URL: "https://a.example/missing"})
	store.AddCalibrationItem(domain.CalibrationItem{PublicationID: "pub-4"})
	store.AddCalibrationItem(domain.CalibrationItem{PublicationID: "pub-5", URL: "https://a.example/5", Abstract: "done"})

	fetcher := fakeFetcher{
		"https://a.example/1": `<meta name="citation_abstract" content="` + longAbstract + `">`,
		"https://a.example/2": `<html><head><title>No abstract here</title></head></html>`,
	}

	svc := NewService(store, fetcher, &logger)

	res, err := svc.Enrich(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, Result{Checked: 3, Filled: 1, NotFound: 1, Failed: 1}, res)

	item, err := store.GetCalibrationItem(context.Background(), filled)
	require.NoError(t, err)
	assert.Equal(t, longAbstract, item.Abstract)

	pub, err := store.GetPublication(context.Background(), "pub-1")
	require.NoError(t, err)
	assert.Equal(t, longAbstract, pub.RawText)

	res, err = svc.Enrich(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Checked, "filled items are not revisited")
}

func TestEnrich_RespectsLimit(t *testing.T) {
	store := mocks.NewStore()
	logger := zerolog.Nop()

	for i := 0; i < 3; i++ {
		store.AddCalibrationItem(domain.CalibrationItem{PublicationID: "p", URL: "https://a.example/x"})
	}

	res, err := NewService(store, fakeFetcher{}, &logger).Enrich(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 2, res.Failed)
}
