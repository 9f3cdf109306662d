package calibration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/acitrack/internal/core/domain"
	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
	"github.com/lueurxax/acitrack/internal/core/ports/mocks"
)

const (
	evalAlice = "alice"
	evalBob   = "bob"
)

func scorep(v float64) *float64 {
	return &v
}

func seedItems(store *mocks.Store, items ...domain.CalibrationItem) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, store.AddCalibrationItem(it))
	}

	return ids
}

func rate(t *testing.T, store *mocks.Store, itemID, evaluator string) {
	t.Helper()

	require.NoError(t, store.InsertEvaluation(context.Background(), &domain.HumanEvaluation{
		CalibrationItemID: itemID,
		Evaluator:         evaluator,
		HumanScore:        50,
		Reasoning:         "ok",
	}))
}

func TestSampler_UnknownStrategyRejected(t *testing.T) {
	sampler := NewSampler(mocks.NewStore())

	_, err := sampler.Next(context.Background(), evalAlice, Strategy("round_robin"))

	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestSampler_EvaluatorRequired(t *testing.T) {
	sampler := NewSampler(mocks.NewStore())

	_, err := sampler.Next(context.Background(), " ", StrategyRandom)

	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestSampler_NeverReturnsRatedItems(t *testing.T) {
	for _, strategy := range []Strategy{StrategyBalanced, StrategyGoldFirst, StrategyRandom} {
		t.Run(string(strategy), func(t *testing.T) {
			store := mocks.NewStore()
			seedItems(store,
				domain.CalibrationItem{PublicationID: "p1", FinalRelevancyScore: scorep(10)},
				domain.CalibrationItem{PublicationID: "p2", FinalRelevancyScore: scorep(90), Tags: domain.Tags{domain.TagGold: true}},
				domain.CalibrationItem{PublicationID: "p3"},
				domain.CalibrationItem{PublicationID: "p4", FinalRelevancyScore: scorep(55)},
			)

			sampler := NewSampler(store)
			ctx := context.Background()
			seen := map[string]bool{}

			for i := 0; i < 4; i++ {
				item, err := sampler.Next(ctx, evalAlice, strategy)
				require.NoError(t, err)
				require.NotNil(t, item)
				require.False(t, seen[item.ID], "item %s returned twice", item.PublicationID)

				seen[item.ID] = true
				rate(t, store, item.ID, evalAlice)
			}

			item, err := sampler.Next(ctx, evalAlice, strategy)
			require.NoError(t, err)
			assert.Nil(t, item)

			// Another evaluator still sees the pool.
			item, err = sampler.Next(ctx, evalBob, strategy)
			require.NoError(t, err)
			assert.NotNil(t, item)
		})
	}
}

func TestSampler_GoldFirstPrefersGold(t *testing.T) {
	store := mocks.NewStore()
	ids := seedItems(store,
		domain.CalibrationItem{PublicationID: "plain-1"},
		domain.CalibrationItem{PublicationID: "gold-1", Tags: domain.Tags{domain.TagGold: true}},
		domain.CalibrationItem{PublicationID: "plain-2"},
		domain.CalibrationItem{PublicationID: "not-gold", Tags: domain.Tags{domain.TagGold: false}},
	)

	sampler := NewSampler(store)

	item, err := sampler.Next(context.Background(), evalAlice, StrategyGoldFirst)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, ids[1], item.ID)

	rate(t, store, item.ID, evalAlice)

	item, err = sampler.Next(context.Background(), evalAlice, StrategyGoldFirst)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.NotEqual(t, "gold-1", item.PublicationID)
}

func TestSampler_BalancedFirstNonEmptyBucket(t *testing.T) {
	store := mocks.NewStore()
	seedItems(store,
		domain.CalibrationItem{PublicationID: "unscored"},
		domain.CalibrationItem{PublicationID: "hundred", FinalRelevancyScore: scorep(100)},
		domain.CalibrationItem{PublicationID: "mid", FinalRelevancyScore: scorep(45)},
	)

	sampler := NewSampler(store)
	ctx := context.Background()

	var order []string

	for {
		item, err := sampler.Next(ctx, evalAlice, StrategyBalanced)
		require.NoError(t, err)

		if item == nil {
			break
		}

		order = append(order, item.PublicationID)
		rate(t, store, item.ID, evalAlice)
	}

	assert.Equal(t, []string{"mid", "hundred", "unscored"}, order)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyBalanced, s)

	s, err = ParseStrategy("gold_first")
	require.NoError(t, err)
	assert.Equal(t, StrategyGoldFirst, s)

	_, err = ParseStrategy("GOLD_FIRST")
	assert.Error(t, err)
}
