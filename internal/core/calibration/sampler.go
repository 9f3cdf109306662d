package calibration

import (
	"context"
	"fmt"
	"strings"

	"github.com/lueurxax/acitrack/internal/core/domain"
	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
	"github.com/lueurxax/acitrack/internal/core/ports"
)

// Sampler draws the next unrated calibration item for an evaluator.
// Every draw goes to the store, so items rated since the previous call are
// never offered again.
type Sampler struct {
	store ports.CalibrationStore
}

// NewSampler creates a sampler over store.
func NewSampler(store ports.CalibrationStore) *Sampler {
	return &Sampler{store: store}
}

// Next returns an unrated item for evaluator, or nil when the evaluator has
// rated everything.
func (s *Sampler) Next(ctx context.Context, evaluator string, strategy Strategy) (*domain.CalibrationItem, error) {
	if strings.TrimSpace(evaluator) == "" {
		return nil, fmt.Errorf("evaluator is required: %w", apperrors.ErrValidation)
	}

	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}

	var attempts []ports.SampleFilter

	switch strategy {
	case StrategyGoldFirst:
		attempts = []ports.SampleFilter{{GoldOnly: true}, {}}
	case StrategyRandom:
		attempts = []ports.SampleFilter{{}}
	default:
		attempts = balancedAttempts()
	}

	for _, f := range attempts {
		f.Evaluator = evaluator

		item, err := s.store.RandomUnratedItem(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("sample calibration item: %w", err)
		}

		if item != nil {
			return item, nil
		}
	}

	return nil, nil //nolint:nilnil // nil item means nothing left to rate
}

// balancedAttempts walks the buckets in fixed order and returns the first
// non-empty one. It then tries unscored items, then anything left.
func balancedAttempts() []ports.SampleFilter {
	out := make([]ports.SampleFilter, 0, len(Buckets)+2)

	for _, b := range Buckets {
		lo, hi := b.Min, b.Max
		out = append(out, ports.SampleFilter{ScoreMin: &lo, ScoreMax: &hi})
	}

	return append(out, ports.SampleFilter{NullScore: true}, ports.SampleFilter{})
}
