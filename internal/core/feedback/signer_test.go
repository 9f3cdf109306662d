package feedback

import (
	"context"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/acitrack/internal/core/ports/mocks"
)

const (
	testSecret       = "test-secret"
	fixtureCanonical = "e=2026-01-11&p=pub-123&t=1736035200&v=up&w=2026-01-05"
	fixtureSignature = "1c7759a2abaee58aec9daba5233341b87dbc2f33f220d188131cfca11f5312ec"
)

func fixtureParams() url.Values {
	return url.Values{
		ParamPublication: {"pub-123"},
		ParamWeekStart:   {"2026-01-05"},
		ParamWeekEnd:     {"2026-01-11"},
		ParamVote:        {"up"},
		ParamTimestamp:   {"1736035200"},
	}
}

func signedAt(s *Signer, vote string, ts time.Time) url.Values {
	params := fixtureParams()
	params.Set(ParamVote, vote)
	params.Set(ParamTimestamp, strconv.FormatInt(ts.Unix(), 10))
	params.Set(ParamSignature, s.Sign(params))

	return params
}

func fixedSigner(maxAge time.Duration, now time.Time) *Signer {
	s := NewSigner(testSecret, maxAge)
	s.now = func() time.Time { return now }

	return s
}

func TestCanonicalQueryFixture(t *testing.T) {
	assert.Equal(t, fixtureCanonical, CanonicalQuery(fixtureParams()))
	assert.Equal(t, fixtureSignature, NewSigner(testSecret, 0).Sign(fixtureParams()))
}

func TestCanonicalQuery_IgnoresSignatureAndExtras(t *testing.T) {
	params := fixtureParams()
	params.Set(ParamSignature, "abc")
	params.Set("utm_source", "email")

	assert.Equal(t, fixtureCanonical, CanonicalQuery(params))
}

func TestVerify(t *testing.T) {
	now := time.Date(2026, 1, 12, 12, 0, 0, 0, time.UTC)
	s := fixedSigner(time.Hour, now)

	tests := []struct {
		name   string
		params url.Values
		want   error
	}{
		{name: "bad signature", params: func() url.Values {
			p := signedAt(s, VoteUp, now)
			p.Set(ParamSignature, "0000000000000000000000000000000000000000000000000000000000000000")
			return p
		}(), want: ErrInvalidSignature},
		{name: "non-hex signature", params: func() url.Values {
			p := signedAt(s, VoteUp, now)
			p.Set(ParamSignature, "zz")
			return p
		}(), want: ErrInvalidSignature},
		{name: "tampered vote", params: func() url.Values {
			p := signedAt(s, VoteUp, now)
			p.Set(ParamVote, VoteDown)
			return p
		}(), want: ErrInvalidSignature},
		{name: "expired", params: signedAt(s, VoteUp, now.Add(-2*time.Hour)), want: ErrExpired},
		{name: "invalid vote", params: signedAt(s, "maybe", now), want: ErrInvalidVote},
		{name: "missing signature", params: fixtureParams(), want: ErrMissingParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Verify(tt.params)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	link, err := s.Verify(signedAt(s, VoteDown, now))
	require.NoError(t, err)
	assert.Equal(t, "pub-123", link.PublicationID)
	assert.Equal(t, VoteDown, link.Vote)
	assert.Equal(t, "2026-01-05", link.WeekStart.Format(dateLayout))
}

func TestVerify_NotConfigured(t *testing.T) {
	_, err := NewSigner("", 0).Verify(fixtureParams())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestBuildURL_RoundTrip(t *testing.T) {
	now := time.Now()
	s := NewSigner(testSecret, 0)

	raw, err := s.BuildURL("https://example.org/feedback", Link{
		PublicationID: "pub 1&2",
		WeekStart:     time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		WeekEnd:       time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC),
		Vote:          VoteUp,
		Timestamp:     now.Unix(),
	})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)

	link, err := s.Verify(u.Query())
	require.NoError(t, err)
	assert.Equal(t, "pub 1&2", link.PublicationID)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Invalid feedback signature.", UserMessage(ErrInvalidSignature))
	assert.Equal(t, "This feedback link has expired.", UserMessage(ErrExpired))
	assert.Equal(t, "Invalid vote value. Use 'up' or 'down'.", UserMessage(ErrInvalidVote))
}

func TestService_Record(t *testing.T) {
	now := time.Now()
	store := mocks.NewStore()
	logger := zerolog.Nop()
	signer := NewSigner(testSecret, 0)
	svc := NewService(signer, store, &logger)

	params := signedAt(signer, VoteDown, now)

	fb, err := svc.Record(context.Background(), params, Client{IP: "203.0.113.9", UserAgent: "feedback-test-agent/1.0"})
	require.NoError(t, err)
	assert.Equal(t, "pub-123", fb.PublicationID)

	saved := store.Feedback()
	require.Len(t, saved, 1)
	assert.Equal(t, VoteDown, saved[0].Vote)
	assert.Equal(t, "203.0.113.9", saved[0].SourceIP)
	assert.Equal(t, "feedback-test-agent/1.0", saved[0].UserAgent)
	assert.Equal(t, `{"t": `+strconv.FormatInt(now.Unix(), 10)+`}`, string(saved[0].Context))

	_, err = svc.Record(context.Background(), signedAt(signer, "maybe", now), Client{})
	assert.ErrorIs(t, err, ErrInvalidVote)
	assert.Len(t, store.Feedback(), 1)
}
