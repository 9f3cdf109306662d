// Package calibration selects publications for human rating and records the ratings.
package calibration

import (
	"fmt"

	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
)

// Strategy picks which unrated item an evaluator sees next.
type Strategy string

// Known strategies.
const (
	StrategyBalanced  Strategy = "balanced"
	StrategyGoldFirst Strategy = "gold_first"
	StrategyRandom    Strategy = "random"
)

// DefaultStrategy is used when the caller does not name one.
const DefaultStrategy = StrategyBalanced

// ParseStrategy validates a strategy name. An empty name selects the default.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(name); s {
	case "":
		return DefaultStrategy, nil
	case StrategyBalanced, StrategyGoldFirst, StrategyRandom:
		return s, nil
	default:
		return "", fmt.Errorf("unknown strategy %q: %w", name, apperrors.ErrValidation)
	}
}

// Bucket is a half-open LLM score range [Min, Max).
type Bucket struct {
	Label string
	Min   float64
	Max   float64
}

// Contains reports whether score falls inside the bucket.
func (b Bucket) Contains(score float64) bool {
	return score >= b.Min && score < b.Max
}

// Buckets are the score strata used by the balanced strategy and by stats.
// The upper bound of the last bucket is 101 so that a score of 100 lands in it.
var Buckets = []Bucket{
	{Label: "0-20", Min: 0, Max: 20},
	{Label: "20-40", Min: 20, Max: 40},
	{Label: "40-60", Min: 40, Max: 60},
	{Label: "60-80", Min: 60, Max: 80},
	{Label: "80-100", Min: 80, Max: 101},
}
