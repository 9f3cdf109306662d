package db

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
)

func TestMapPgError(t *testing.T) {
	err := mapPgError(&pgconn.PgError{Code: pgUniqueViolation}, "insert evaluation")
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	err = mapPgError(&pgconn.PgError{Code: pgForeignKeyViolation}, "insert evaluation")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	plain := errors.New("boom")
	err = mapPgError(plain, "insert evaluation")
	assert.True(t, errors.Is(err, plain))
	assert.False(t, errors.Is(err, apperrors.ErrConflict))
}

func TestFillFromReviews(t *testing.T) {
	c := EmbeddingCandidate{}

	fillFromReviews(&c,
		nil,
		[]byte(`not json`),
		[]byte(`{"summary":"From gemini","credibility_score":0}`),
		[]byte(`{"source":"PubMed","summary":"From gpt","credibility_score":72.4}`),
	)

	assert.Equal(t, "PubMed", c.Source)
	assert.Equal(t, "From gemini", c.FinalSummary)
	require.NotNil(t, c.CredibilityScore)
	assert.Equal(t, 72, *c.CredibilityScore)
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "ok", SanitizeUTF8("ok"))
	assert.Equal(t, "ab", SanitizeUTF8("a\xffb"))
}

func TestUUIDHelpers(t *testing.T) {
	id := "7f1c2d44-5a4b-4a9e-8c1e-3f0f2b6d9a10"

	assert.Equal(t, id, fromUUID(toUUID(id)))
	assert.False(t, toUUID("not-a-uuid").Valid)
}
