package mustreads

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lueurxax/acitrack/internal/core/domain"
)

// Normalize produces a Record with every canonical field present. It never
// fails: missing scores stay nil (unscored), present scores are truncated to
// integers and clamped to [0,100], and unparsable values become nil. Reasons
// are collapsed onto a single line and signal maps of the wrong shape become
// empty. Normalizing the Map of a normalized record yields the same record.
func Normalize(raw map[string]any) Record {
	rec := Record{
		Fields: make(map[string]any, len(raw)),
	}

	for k, v := range raw {
		if _, ok := canonicalFields[k]; !ok {
			rec.Fields[k] = v
		}
	}

	rec.RelevancyScore = parseScore(raw[FieldRelevancyScore])
	rec.RelevancyReason = collapseWhitespace(raw[FieldRelevancyReason])
	rec.Signals = asObject(raw[FieldSignals])

	rec.CredibilityScore = parseScore(raw[FieldCredibilityScore])
	rec.CredibilityReason = collapseWhitespace(raw[FieldCredibilityReason])
	rec.CredibilityConfidence = optionalString(raw, FieldCredibilityConfidence, nil)
	rec.CredibilitySignals = asObject(raw[FieldCredibilitySignals])

	def := DefaultScoringVersion
	rec.ScoredAt = optionalString(raw, FieldScoredAt, nil)
	rec.ScoringVersion = optionalString(raw, FieldScoringVersion, &def)
	rec.ScoringModel = optionalString(raw, FieldScoringModel, nil)

	return rec
}

// NormalizeAll normalizes every record in order.
func NormalizeAll(raw []map[string]any) []Record {
	out := make([]Record, 0, len(raw))
	for _, r := range raw {
		out = append(out, Normalize(r))
	}

	return out
}

// parseScore converts a loosely typed score into a clamped integer.
// Booleans are not scores.
func parseScore(v any) *int {
	var n int

	switch s := v.(type) {
	case nil, bool:
		return nil
	case int:
		n = s
	case int32:
		n = int(s)
	case int64:
		n = clampInt64(s)
	case float32:
		return parseFloatScore(float64(s))
	case float64:
		return parseFloatScore(s)
	case json.Number:
		i, err := s.Int64()
		if err != nil {
			f, ferr := s.Float64()
			if ferr != nil {
				return nil
			}

			return parseFloatScore(f)
		}

		n = clampInt64(i)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil
		}

		n = clampInt64(i)
	default:
		return nil
	}

	n = domain.ClampScore(n)

	return &n
}

func parseFloatScore(f float64) *int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}

	n := domain.ClampScore(int(math.Max(math.Min(math.Trunc(f), math.MaxInt32), math.MinInt32)))

	return &n
}

func clampInt64(i int64) int {
	if i > math.MaxInt32 {
		return math.MaxInt32
	}

	if i < math.MinInt32 {
		return math.MinInt32
	}

	return int(i)
}

func collapseWhitespace(v any) string {
	var s string

	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s = t
	default:
		s = fmt.Sprint(t)
	}

	return strings.Join(strings.Fields(s), " ")
}

func asObject(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok || m == nil {
		return map[string]any{}
	}

	return m
}

// optionalString keeps explicit nulls, applies def only when the key is absent
// and renders non-string values as text.
func optionalString(raw map[string]any, key string, def *string) *string {
	v, present := raw[key]
	if !present {
		return def
	}

	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return &t
	default:
		s := fmt.Sprint(t)

		return &s
	}
}
