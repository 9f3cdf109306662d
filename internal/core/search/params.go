package search

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
)

// Search bounds.
const (
	DefaultLimit = 10
	MaxLimit     = 100
	minScore     = 0
	maxScore     = 100

	dateLayout = "2006-01-02"
)

// Params is a semantic search request. Zero values mean "not set"; Limit 0
// selects DefaultLimit.
type Params struct {
	Query          string
	Limit          int
	MinRelevancy   *int
	MinCredibility *int
	DateFrom       string
	DateTo         string
}

type validated struct {
	query          string
	limit          int
	minRelevancy   *int
	minCredibility *int
	dateFrom       *time.Time
	dateBefore     *time.Time
}

// Validate checks ranges and date layouts without touching any dependency.
func (p Params) Validate() error {
	_, err := p.validate()

	return err
}

func (p Params) validate() (validated, error) {
	v := validated{
		query:          strings.TrimSpace(p.Query),
		limit:          p.Limit,
		minRelevancy:   p.MinRelevancy,
		minCredibility: p.MinCredibility,
	}

	if v.query == "" {
		return v, fmt.Errorf("query parameter 'q' is required: %w", apperrors.ErrValidation)
	}

	if v.limit == 0 {
		v.limit = DefaultLimit
	}

	if v.limit < 1 || v.limit > MaxLimit {
		return v, fmt.Errorf("limit must be between 1 and %d: %w", MaxLimit, apperrors.ErrValidation)
	}

	if err := checkScore("min_relevancy", p.MinRelevancy); err != nil {
		return v, err
	}

	if err := checkScore("min_credibility", p.MinCredibility); err != nil {
		return v, err
	}

	var err error

	if v.dateFrom, err = parseDate("date_from", p.DateFrom); err != nil {
		return v, err
	}

	if v.dateBefore, err = parseDate("date_to", p.DateTo); err != nil {
		return v, err
	}

	// date_to covers the whole day.
	if v.dateBefore != nil {
		next := v.dateBefore.AddDate(0, 0, 1)
		v.dateBefore = &next
	}

	return v, nil
}

func checkScore(name string, v *int) error {
	if v != nil && (*v < minScore || *v > maxScore) {
		return fmt.Errorf("%s must be between %d and %d: %w", name, minScore, maxScore, apperrors.ErrValidation)
	}

	return nil
}

func parseDate(name, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil //nolint:nilnil
	}

	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s format, use YYYY-MM-DD: %w", name, apperrors.ErrInvalidDate)
	}

	return &t, nil
}
