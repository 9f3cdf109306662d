package mustreads

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPubID = "pub-001"
	testTitle = "Acoustic cardiac imaging"
)

func TestNormalize_AddsMissingFields(t *testing.T) {
	rec := Normalize(map[string]any{FieldPublicationID: testPubID, FieldTitle: testTitle})

	assert.Nil(t, rec.RelevancyScore)
	assert.Nil(t, rec.CredibilityScore)
	assert.Empty(t, rec.RelevancyReason)
	assert.Empty(t, rec.CredibilityReason)
	assert.NotNil(t, rec.Signals)
	assert.NotNil(t, rec.CredibilitySignals)
	assert.Nil(t, rec.CredibilityConfidence)
	assert.Nil(t, rec.ScoredAt)
	assert.Nil(t, rec.ScoringModel)
	require.NotNil(t, rec.ScoringVersion)
	assert.Equal(t, DefaultScoringVersion, *rec.ScoringVersion)

	m := rec.Map()
	for key := range canonicalFields {
		_, ok := m[key]
		assert.True(t, ok, "missing %s", key)
	}

	assert.Equal(t, testPubID, m[FieldPublicationID])
}

func TestNormalize_Scores(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *int
	}{
		{name: "int in range", in: 85, want: intp(85)},
		{name: "float truncated", in: 85.9, want: intp(85)},
		{name: "above range", in: 150.0, want: intp(100)},
		{name: "below range", in: -7.0, want: intp(0)},
		{name: "numeric string", in: " 42 ", want: intp(42)},
		{name: "fractional string", in: "42.5", want: nil},
		{name: "garbage string", in: "high", want: nil},
		{name: "bool", in: true, want: nil},
		{name: "json number", in: json.Number("77"), want: intp(77)},
		{name: "object", in: map[string]any{"v": 1}, want: nil},
		{name: "null", in: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Normalize(map[string]any{FieldRelevancyScore: tt.in, FieldCredibilityScore: tt.in})
			assert.Equal(t, tt.want, rec.RelevancyScore)
			assert.Equal(t, tt.want, rec.CredibilityScore)
		})
	}
}

func TestNormalize_CollapsesReasons(t *testing.T) {
	rec := Normalize(map[string]any{
		FieldRelevancyReason:   "  Strong\n\tsignal   for\r\nACI  ",
		FieldCredibilityReason: nil,
	})

	assert.Equal(t, "Strong signal for ACI", rec.RelevancyReason)
	assert.Empty(t, rec.CredibilityReason)
}

func TestNormalize_SignalsWrongShape(t *testing.T) {
	rec := Normalize(map[string]any{
		FieldSignals:            []any{"a", "b"},
		FieldCredibilitySignals: "peer reviewed",
	})

	assert.Empty(t, rec.Signals)
	assert.Empty(t, rec.CredibilitySignals)
}

func TestNormalize_ExplicitNullsKept(t *testing.T) {
	rec := Normalize(map[string]any{FieldScoringVersion: nil, FieldScoringModel: "gpt-4o"})

	assert.Nil(t, rec.ScoringVersion)
	require.NotNil(t, rec.ScoringModel)
	assert.Equal(t, "gpt-4o", *rec.ScoringModel)
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []map[string]any{
		{},
		{FieldRelevancyScore: "300", FieldRelevancyReason: "a\n b", FieldSignals: 3},
		{FieldRelevancyScore: 12.7, FieldCredibilityScore: -1, FieldCredibilityConfidence: "high", "extra": []any{1.0}},
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once.Map())

		assert.Equal(t, once.Map(), twice.Map())
	}
}

func TestRecord_JSONRoundTrip(t *testing.T) {
	rec := Normalize(map[string]any{FieldPublicationID: testPubID, FieldRelevancyScore: 90.0})

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, testPubID, decoded.PublicationID())
	require.NotNil(t, decoded.RelevancyScore)
	assert.Equal(t, 90, *decoded.RelevancyScore)
}

func intp(v int) *int {
	return &v
}
