package calibration

import (
	"math"

	"github.com/lueurxax/acitrack/internal/core/domain"
)

// Stats summarises rating progress, overall or for one evaluator.
type Stats struct {
	TotalItems   int            `json:"total_items"`
	TotalRated   int            `json:"total_rated"`
	Remaining    int            `json:"remaining"`
	AvgScore     *float64       `json:"avg_score"`
	Distribution map[string]int `json:"distribution"`
	GoldTotal    int            `json:"gold_total"`
	GoldRated    int            `json:"gold_rated"`
	Evaluator    *string        `json:"evaluator"`
}

// BuildStats derives Stats from raw counters.
func BuildStats(c *domain.CalibrationCounts, evaluator string) Stats {
	st := Stats{
		TotalItems:   c.TotalItems,
		TotalRated:   c.TotalRated,
		Distribution: Distribution(c.HumanScores),
		GoldTotal:    c.GoldTotal,
		GoldRated:    c.GoldRated,
	}

	if evaluator != "" {
		e := evaluator
		st.Evaluator = &e
		st.Remaining = c.TotalItems - c.TotalRated
	} else {
		st.Remaining = c.TotalItems - c.DistinctRated
	}

	if len(c.HumanScores) > 0 {
		var sum int
		for _, s := range c.HumanScores {
			sum += s
		}

		avg := math.Round(float64(sum)/float64(len(c.HumanScores))*100) / 100
		if avg != 0 {
			st.AvgScore = &avg
		}
	}

	return st
}

// Distribution histograms human scores into the fixed buckets.
func Distribution(scores []int) map[string]int {
	out := make(map[string]int, len(Buckets))
	for _, b := range Buckets {
		out[b.Label] = 0
	}

	for _, s := range scores {
		for _, b := range Buckets {
			if b.Contains(float64(s)) {
				out[b.Label]++

				break
			}
		}
	}

	return out
}
