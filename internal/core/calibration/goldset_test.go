package calibration

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/acitrack/internal/core/domain"
)

func candidates(scores ...float64) []domain.GoldCandidate {
	out := make([]domain.GoldCandidate, len(scores))
	for i, s := range scores {
		out[i] = domain.GoldCandidate{PublicationID: fmt.Sprintf("pub-%02d", i), Score: s}
	}

	return out
}

func TestPickGoldSet_TwoPerBucket(t *testing.T) {
	cands := candidates(5, 12, 18, 25, 33, 38, 41, 50, 59, 61, 70, 79, 80, 90, 100)

	picks := PickGoldSet(cands, DefaultGoldPerBucket, DefaultGoldSeed)
	require.Len(t, picks, 10)

	perBucket := map[string]int{}
	seen := map[string]bool{}

	for _, p := range picks {
		perBucket[p.Bucket]++
		assert.False(t, seen[p.PublicationID])
		seen[p.PublicationID] = true
	}

	for _, b := range goldBuckets {
		assert.Equal(t, 2, perBucket[b.Label], b.Label)
	}

	for i := 1; i < len(picks); i++ {
		assert.GreaterOrEqual(t, picks[i-1].Score, picks[i].Score)
	}
}

func TestPickGoldSet_Deterministic(t *testing.T) {
	cands := candidates(1, 2, 3, 21, 22, 23, 41, 42, 43, 61, 62, 63, 81, 82, 83)

	a := PickGoldSet(cands, 2, 7)
	b := PickGoldSet(cands, 2, 7)

	assert.Equal(t, a, b)
}

func TestPickGoldSet_FillsShortBucketByNearestScore(t *testing.T) {
	// Nothing in 80-100: the two scores closest to 95 fill it.
	cands := candidates(79, 10, 60, 78)

	picks := PickGoldSet(cands, 2, DefaultGoldSeed)

	var top []float64

	for _, p := range picks {
		if p.Bucket == "80-100" {
			top = append(top, p.Score)
		}
	}

	assert.ElementsMatch(t, []float64{79, 78}, top)
}

func TestPickGoldSet_ScalesFractionalScores(t *testing.T) {
	picks := PickGoldSet(candidates(0.95), 1, DefaultGoldSeed)

	require.Len(t, picks, 1)
	assert.Equal(t, "80-100", picks[0].Bucket)
	assert.InDelta(t, 95, picks[0].Score, 0.0001)
}

func TestGoldItem_Tags(t *testing.T) {
	item := GoldItem(GoldPick{GoldCandidate: domain.GoldCandidate{PublicationID: "p", Score: 88}, Bucket: "80-100"}, DefaultSeedMode, DefaultGoldSetName)

	assert.True(t, item.Tags.IsGold())
	assert.Equal(t, DefaultGoldSetName, item.Tags[domain.TagGoldSet])
	assert.Equal(t, "80-100", item.Tags[domain.TagBucket])
	require.NotNil(t, item.FinalRelevancyScore)
	assert.InDelta(t, 88, *item.FinalRelevancyScore, 0.0001)
}
