package calibration

import (
	"math"
	"math/rand"
	"sort"

	"github.com/lueurxax/acitrack/internal/core/domain"
)

// Gold set defaults.
const (
	DefaultGoldPerBucket = 2
	DefaultGoldSetName   = "v1"
	DefaultGoldSeed      = 42

	// Scores at or below this are treated as 0-1 fractions.
	fractionalScoreCeiling = 1.5
	topBucketTarget        = 95
)

// goldBuckets are visited top-down; the top bucket includes 100.
var goldBuckets = []Bucket{
	{Label: "80-100", Min: 80, Max: 100},
	{Label: "60-80", Min: 60, Max: 80},
	{Label: "40-60", Min: 40, Max: 60},
	{Label: "20-40", Min: 20, Max: 40},
	{Label: "0-20", Min: 0, Max: 20},
}

// GoldPick is a candidate chosen for the gold set.
type GoldPick struct {
	domain.GoldCandidate
	Bucket string
}

// ScaleScore maps 0-1 fractional scores onto 0-100.
func ScaleScore(score float64) float64 {
	if score <= fractionalScoreCeiling {
		return score * 100
	}

	return score
}

// PickGoldSet picks perBucket candidates from every score bucket using a seeded
// source, so the same candidates and seed always give the same picks. A bucket
// with too few members is topped up with the remaining candidates closest to
// the bucket midpoint. Results are ordered by score descending.
func PickGoldSet(candidates []domain.GoldCandidate, perBucket int, seed int64) []GoldPick {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible selection, not security sensitive

	remaining := make([]domain.GoldCandidate, len(candidates))
	copy(remaining, candidates)

	for i := range remaining {
		remaining[i].Score = ScaleScore(remaining[i].Score)
	}

	sort.SliceStable(remaining, func(i, j int) bool { return remaining[i].PublicationID < remaining[j].PublicationID })

	var picks []GoldPick

	for i, b := range goldBuckets {
		top := i == 0

		var inBucket, rest []domain.GoldCandidate

		for _, c := range remaining {
			if goldBucketContains(b, c.Score, top) {
				inBucket = append(inBucket, c)
			} else {
				rest = append(rest, c)
			}
		}

		var chosen []domain.GoldCandidate

		if len(inBucket) >= perBucket {
			rng.Shuffle(len(inBucket), func(a, z int) { inBucket[a], inBucket[z] = inBucket[z], inBucket[a] })
			chosen = inBucket[:perBucket]
			rest = append(rest, inBucket[perBucket:]...)
		} else {
			chosen = inBucket
			need := perBucket - len(chosen)
			target := (b.Min + b.Max) / 2

			if top {
				target = topBucketTarget
			}

			sort.SliceStable(rest, func(a, z int) bool {
				return math.Abs(rest[a].Score-target) < math.Abs(rest[z].Score-target)
			})

			if need > len(rest) {
				need = len(rest)
			}

			chosen = append(chosen, rest[:need]...)
			rest = rest[need:]
		}

		for _, c := range chosen {
			picks = append(picks, GoldPick{GoldCandidate: c, Bucket: b.Label})
		}

		remaining = rest
		sort.SliceStable(remaining, func(a, z int) bool { return remaining[a].PublicationID < remaining[z].PublicationID })
	}

	sort.SliceStable(picks, func(i, j int) bool { return picks[i].Score > picks[j].Score })

	return picks
}

func goldBucketContains(b Bucket, score float64, top bool) bool {
	if top {
		return score >= b.Min && score <= b.Max
	}

	return b.Contains(score)
}

// GoldTags builds the tag map stored on a gold item.
func GoldTags(setName, bucket string) domain.Tags {
	return domain.Tags{
		domain.TagGold:    true,
		domain.TagGoldSet: setName,
		domain.TagBucket:  bucket,
	}
}

// GoldItem converts a pick into a calibration item for insertion.
func GoldItem(p GoldPick, mode, setName string) *domain.CalibrationItem {
	score := p.Score

	return &domain.CalibrationItem{
		PublicationID:       p.PublicationID,
		Mode:                mode,
		RunID:               p.RunID,
		Source:              p.Source,
		PublishedDate:       p.PublishedDate,
		Title:               p.Title,
		FinalRelevancyScore: &score,
		FinalSummary:        p.FinalSummary,
		Tags:                GoldTags(setName, p.Bucket),
	}
}
