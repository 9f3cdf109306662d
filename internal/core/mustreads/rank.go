package mustreads

import (
	"fmt"
	"sort"

	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
)

// Query defaults and bounds.
const (
	DefaultLimit        = 5
	MaxLimit            = 100
	DefaultMinRelevance = 30
)

const unscoredRank = -1

// Options controls FilterAndSort.
type Options struct {
	MinRelevance int
	// IncludeZero disables the relevance filter entirely.
	IncludeZero bool
	Limit       int
}

// DefaultOptions returns the query defaults.
func DefaultOptions() Options {
	return Options{MinRelevance: DefaultMinRelevance, Limit: DefaultLimit}
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if o.Limit < 1 || o.Limit > MaxLimit {
		return fmt.Errorf("limit must be between 1 and %d: %w", MaxLimit, apperrors.ErrValidation)
	}

	if o.MinRelevance < 0 || o.MinRelevance > 100 {
		return fmt.Errorf("min_relevance must be between 0 and 100: %w", apperrors.ErrValidation)
	}

	return nil
}

// FilterAndSort drops records below the relevance threshold (unless IncludeZero),
// orders the rest and truncates to the limit. Ordering is relevance descending with
// unscored last, then published date descending with unparsable dates oldest, then
// publication id and title ascending. The input slice is not modified.
func FilterAndSort(records []Record, opts Options) []Record {
	out := make([]Record, 0, len(records))

	for _, r := range records {
		if !opts.IncludeZero && (r.RelevancyScore == nil || *r.RelevancyScore < opts.MinRelevance) {
			continue
		}

		out = append(out, r)
	}

	SortRecords(out)

	if opts.Limit >= 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}

	return out
}

// SortRecords orders records in place by the composite ranking key.
func SortRecords(records []Record) {
	type key struct {
		score int
		date  int64
		id    string
		title string
	}

	keys := make([]key, len(records))

	for i, r := range records {
		k := key{score: unscoredRank, id: r.PublicationID(), title: r.Title()}
		if r.RelevancyScore != nil {
			k.score = *r.RelevancyScore
		}

		if t := r.PublishedAt(); !t.IsZero() {
			k.date = t.Unix()
		}

		keys[i] = k
	}

	idx := make([]int, len(records))
	for i := range idx {
		idx[i] = i
	}

	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]

		switch {
		case ka.score != kb.score:
			return ka.score > kb.score
		case ka.date != kb.date:
			return ka.date > kb.date
		case ka.id != kb.id:
			return ka.id < kb.id
		default:
			return ka.title < kb.title
		}
	})

	sorted := make([]Record, len(records))
	for i, j := range idx {
		sorted[i] = records[j]
	}

	copy(records, sorted)
}
