// Package abstracts fills in missing abstracts for calibration items by
// reading the publication's landing page.
package abstracts

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lueurxax/acitrack/internal/core/domain"
	"github.com/lueurxax/acitrack/internal/platform/observability"
)

const (
	DefaultLimit = 50

	metricKind       = "abstract"
	outcomeFilled    = "filled"
	outcomeNoContent = "no_abstract"
	outcomeError     = "error"
)

// Store is the persistence the enricher needs.
type Store interface {
	ListItemsMissingAbstract(ctx context.Context, limit int) ([]domain.CalibrationItem, error)
	SetCalibrationAbstract(ctx context.Context, itemID, abstract string) error
	// SetPublicationRawText must leave existing text alone.
	SetPublicationRawText(ctx context.Context, publicationID, text string) error
}

// PageFetcher downloads a landing page.
type PageFetcher interface {
	FetchHTML(ctx context.Context, rawURL string) ([]byte, error)
}

// Result summarises an enrichment pass.
type Result struct {
	Checked  int `json:"checked"`
	Filled   int `json:"filled"`
	NotFound int `json:"not_found"`
	Failed   int `json:"failed"`
}

type Service struct {
	store   Store
	fetcher PageFetcher
	logger  *zerolog.Logger
}

func NewService(store Store, fetcher PageFetcher, logger *zerolog.Logger) *Service {
	return &Service{store: store, fetcher: fetcher, logger: logger}
}

// Enrich processes up to limit items that have a URL and no abstract. A page
// that cannot be fetched is counted and skipped; only store failures abort.
func (s *Service) Enrich(ctx context.Context, limit int) (Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	items, err := s.store.ListItemsMissingAbstract(ctx, limit)
	if err != nil {
		return Result{}, fmt.Errorf("list items missing abstract: %w", err)
	}

	var res Result

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("enrich abstracts: %w", err)
		}

		res.Checked++

		outcome, err := s.enrichItem(ctx, item)
		observability.IngestItems.WithLabelValues(metricKind, outcome).Inc()

		switch {
		case err != nil && outcome == outcomeError:
			res.Failed++

			s.logger.Warn().Err(err).Str("url", item.URL).Str("publication_id", item.PublicationID).Msg("abstract fetch failed")
		case err != nil:
			return res, err
		case outcome == outcomeFilled:
			res.Filled++
		default:
			res.NotFound++
		}
	}

	s.logger.Info().
		Int("checked", res.Checked).
		Int("filled", res.Filled).
		Int("not_found", res.NotFound).
		Int("failed", res.Failed).
		Msg("abstract enrichment finished")

	return res, nil
}

func (s *Service) enrichItem(ctx context.Context, item domain.CalibrationItem) (string, error) {
	body, err := s.fetcher.FetchHTML(ctx, item.URL)
	if err != nil {
		return outcomeError, fmt.Errorf("fetch %s: %w", item.URL, err)
	}

	page := Extract(body, item.URL)
	if page.Abstract == "" {
		return outcomeNoContent, nil
	}

	if err := s.store.SetCalibrationAbstract(ctx, item.ID, page.Abstract); err != nil {
		return outcomeFilled, fmt.Errorf("store abstract: %w", err)
	}

	text := page.Text
	if text == "" {
		text = page.Abstract
	}

	if err := s.store.SetPublicationRawText(ctx, item.PublicationID, text); err != nil {
		return outcomeFilled, fmt.Errorf("store raw text: %w", err)
	}

	return outcomeFilled, nil
}
