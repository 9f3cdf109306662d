package calibration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lueurxax/acitrack/internal/core/domain"
	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
	"github.com/lueurxax/acitrack/internal/core/mustreads"
	"github.com/lueurxax/acitrack/internal/core/ports"
)

// Defaults for seeding and listing.
const (
	DefaultSeedMode  = domain.ModeTriModelDaily
	DefaultItemLimit = 100
	MaxItemLimit     = 1000

	mustReadsTagSource = "mustreads"
	noIDsMessage       = "No publication IDs found in must-reads"
)

// Store is what the calibration service needs from persistence.
type Store interface {
	ports.CalibrationStore
	ports.RunStore
}

// Service implements seeding, sampling and submission of calibration items.
type Service struct {
	store   Store
	sampler *Sampler
	logger  *zerolog.Logger
}

// NewService creates a calibration service.
func NewService(store Store, logger *zerolog.Logger) *Service {
	return &Service{store: store, sampler: NewSampler(store), logger: logger}
}

// SeedRequest lists publications to queue for rating.
type SeedRequest struct {
	PublicationIDs []string    `json:"publication_ids"`
	RunID          string      `json:"run_id,omitempty"`
	Mode           string      `json:"mode,omitempty"`
	Tags           domain.Tags `json:"tags,omitempty"`
}

// SeedResult counts new and pre-existing items.
type SeedResult struct {
	Seeded          int    `json:"seeded"`
	SkippedExisting int    `json:"skipped_existing"`
	Message         string `json:"message,omitempty"`
}

// SeedMustReadsRequest seeds from the must-reads of a run.
type SeedMustReadsRequest struct {
	RunID string      `json:"run_id,omitempty"`
	Mode  string      `json:"mode,omitempty"`
	Tags  domain.Tags `json:"tags,omitempty"`
}

// Validate checks the seed request shape.
func (r SeedRequest) Validate() error {
	if len(r.PublicationIDs) == 0 {
		return fmt.Errorf("publication_ids must contain at least one id: %w", apperrors.ErrValidation)
	}

	for _, id := range r.PublicationIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("publication_ids must not contain empty ids: %w", apperrors.ErrValidation)
		}
	}

	return nil
}

// Seed upserts calibration items. Existing items are not duplicated; when tags
// are given they are merged into the existing tag map.
func (s *Service) Seed(ctx context.Context, req SeedRequest) (*SeedResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	mode := req.Mode
	if mode == "" {
		mode = DefaultSeedMode
	}

	res := &SeedResult{}

	for _, pubID := range req.PublicationIDs {
		existing, err := s.store.GetCalibrationItemByPublication(ctx, pubID)
		if err != nil {
			return nil, fmt.Errorf("lookup calibration item %s: %w", pubID, err)
		}

		if existing != nil {
			if len(req.Tags) > 0 {
				if err := s.store.MergeCalibrationTags(ctx, pubID, req.Tags); err != nil {
					return nil, fmt.Errorf("merge tags for %s: %w", pubID, err)
				}
			}

			res.SkippedExisting++

			continue
		}

		created, err := s.insertFromSource(ctx, pubID, req.RunID, mode, req.Tags)
		if err != nil {
			return nil, err
		}

		if created {
			res.Seeded++
		} else {
			res.SkippedExisting++
		}
	}

	s.logger.Info().
		Int("seeded", res.Seeded).
		Int("skipped_existing", res.SkippedExisting).
		Msg("calibration items seeded")

	return res, nil
}

func (s *Service) insertFromSource(ctx context.Context, pubID, runID, mode string, tags domain.Tags) (bool, error) {
	src, err := s.store.CalibrationSource(ctx, pubID, runID)
	if err != nil {
		return false, fmt.Errorf("load publication details for %s: %w", pubID, err)
	}

	if src == nil {
		src = &domain.CalibrationSource{}
	}

	item := &domain.CalibrationItem{
		PublicationID:       pubID,
		Mode:                firstNonEmpty(mode, src.Mode),
		RunID:               firstNonEmpty(runID, src.RunID),
		Source:              src.Source,
		PublishedDate:       src.PublishedDate,
		Title:               src.Title,
		URL:                 src.URL,
		FinalRelevancyScore: src.FinalRelevancyScore,
		FinalSummary:        src.FinalSummary,
		Tags:                tags,
	}

	// A concurrent seed may have created the row since the lookup; the store
	// merges tags in that case and reports created=false.
	created, err := s.store.InsertCalibrationItem(ctx, item)
	if err != nil {
		return false, fmt.Errorf("insert calibration item %s: %w", pubID, err)
	}

	return created, nil
}

// SeedFromMustReads seeds every publication listed in a run's must-reads.
// Without a run id the latest run for the mode is used.
func (s *Service) SeedFromMustReads(ctx context.Context, req SeedMustReadsRequest) (*SeedResult, error) {
	mode := req.Mode
	if mode == "" {
		mode = DefaultSeedMode
	}

	runID := req.RunID
	if runID == "" {
		run, err := s.store.LatestRun(ctx, mode)
		if err != nil {
			return nil, fmt.Errorf("load latest run: %w", err)
		}

		if run == nil {
			return nil, fmt.Errorf("no runs found for mode=%s: %w", mode, apperrors.ErrNotFound)
		}

		runID = run.RunID
	}

	set, err := s.store.GetMustReads(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load must-reads: %w", err)
	}

	if set == nil {
		return nil, fmt.Errorf("no must-reads found for run_id=%s: %w", runID, apperrors.ErrNotFound)
	}

	ids, err := mustreads.PublicationIDs(set.Document)
	if err != nil {
		return nil, fmt.Errorf("parse must-reads for %s: %w", runID, err)
	}

	if len(ids) == 0 {
		return &SeedResult{Message: noIDsMessage}, nil
	}

	tags := domain.Tags{}.Merge(req.Tags)
	tags[domain.TagSource] = mustReadsTagSource
	tags[domain.TagRunID] = runID

	return s.Seed(ctx, SeedRequest{PublicationIDs: ids, RunID: runID, Mode: mode, Tags: tags})
}

// Next returns the next unrated item for evaluator.
func (s *Service) Next(ctx context.Context, evaluator string, strategy Strategy) (*domain.CalibrationItem, error) {
	return s.sampler.Next(ctx, evaluator, strategy)
}

// Submit records a rating. It fails with ErrValidation for bad fields,
// ErrInvalidID for a malformed item id, ErrNotFound for an unknown item and
// ErrConflict when the evaluator already rated the item.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	itemID, err := req.ItemUUID()
	if err != nil {
		return nil, err
	}

	item, err := s.store.GetCalibrationItem(ctx, itemID.String())
	if err != nil {
		return nil, fmt.Errorf("load calibration item: %w", err)
	}

	if item == nil {
		return nil, fmt.Errorf("calibration item not found: %s: %w", req.CalibrationItemID, apperrors.ErrNotFound)
	}

	if err := s.store.InsertEvaluation(ctx, req.evaluation(itemID)); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("you have already rated this item: %w", err)
		}

		return nil, fmt.Errorf("save evaluation: %w", err)
	}

	s.logger.Info().
		Str("calibration_item_id", item.ID).
		Str("evaluator", req.Evaluator).
		Int("human_score", *req.HumanScore).
		Msg("calibration rating recorded")

	return &SubmitResult{Status: "ok", LLMScore: item.FinalRelevancyScore}, nil
}

// Stats returns progress counters for evaluator, or overall when evaluator is empty.
func (s *Service) Stats(ctx context.Context, evaluator string) (*Stats, error) {
	counts, err := s.store.CalibrationCounts(ctx, evaluator)
	if err != nil {
		return nil, fmt.Errorf("load calibration counts: %w", err)
	}

	st := BuildStats(counts, evaluator)

	return &st, nil
}

// ListItems pages calibration items, newest first.
func (s *Service) ListItems(ctx context.Context, limit, offset int, goldOnly bool) ([]domain.CalibrationItem, int, error) {
	if limit < 1 || limit > MaxItemLimit {
		return nil, 0, fmt.Errorf("limit must be between 1 and %d: %w", MaxItemLimit, apperrors.ErrValidation)
	}

	if offset < 0 {
		return nil, 0, fmt.Errorf("offset must not be negative: %w", apperrors.ErrValidation)
	}

	items, total, err := s.store.ListCalibrationItems(ctx, limit, offset, goldOnly)
	if err != nil {
		return nil, 0, fmt.Errorf("list calibration items: %w", err)
	}

	return items, total, nil
}

// Export returns every evaluation joined with its item.
func (s *Service) Export(ctx context.Context) ([]domain.EvaluationExportRow, error) {
	rows, err := s.store.ExportEvaluations(ctx)
	if err != nil {
		return nil, fmt.Errorf("export evaluations: %w", err)
	}

	return rows, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
