// Package feedback signs and verifies the thumbs up/down links embedded in
// weekly digest emails and records the resulting votes.
package feedback

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Query parameter names. Every name except ParamSignature is signed.
const (
	ParamPublication = "p"
	ParamWeekStart   = "w"
	ParamWeekEnd     = "e"
	ParamVote        = "v"
	ParamTimestamp   = "t"
	ParamSignature   = "s"
)

// Votes.
const (
	VoteUp   = "up"
	VoteDown = "down"
)

// DefaultMaxAge is how long a link stays valid (30 days).
const DefaultMaxAge = 30 * 24 * time.Hour

const dateLayout = "2006-01-02"

var signedParams = []string{ParamPublication, ParamWeekStart, ParamWeekEnd, ParamVote, ParamTimestamp}

var requiredParams = append(append([]string{}, signedParams...), ParamSignature)

// Verification errors.
var (
	ErrNotConfigured    = errors.New("feedback secret not configured")
	ErrMissingParams    = errors.New("missing feedback parameters")
	ErrInvalidSignature = errors.New("invalid feedback signature")
	ErrExpired          = errors.New("feedback link expired")
	ErrInvalidTimestamp = errors.New("invalid feedback timestamp")
	ErrInvalidVote      = errors.New("invalid vote value")
	ErrInvalidWeek      = errors.New("invalid week dates")
)

var userMessages = map[error]string{
	ErrNotConfigured:    "Feedback is not configured.",
	ErrMissingParams:    "Missing feedback parameters.",
	ErrInvalidSignature: "Invalid feedback signature.",
	ErrExpired:          "This feedback link has expired.",
	ErrInvalidTimestamp: "Invalid feedback timestamp.",
	ErrInvalidVote:      "Invalid vote value. Use 'up' or 'down'.",
	ErrInvalidWeek:      "Invalid week dates. Use YYYY-MM-DD.",
}

// UserMessage returns the sentence shown to whoever clicked the link.
func UserMessage(err error) string {
	for target, msg := range userMessages {
		if errors.Is(err, target) {
			return msg
		}
	}

	return "Unable to record feedback."
}

// Link is a verified feedback click.
type Link struct {
	PublicationID string
	WeekStart     time.Time
	WeekEnd       time.Time
	Vote          string
	Timestamp     int64
}

// Signer computes and checks link signatures.
type Signer struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewSigner creates a signer. A zero maxAge selects DefaultMaxAge.
func NewSigner(secret string, maxAge time.Duration) *Signer {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	return &Signer{secret: []byte(secret), maxAge: maxAge, now: time.Now}
}

// Configured reports whether a secret is set.
func (s *Signer) Configured() bool {
	return len(s.secret) > 0
}

// CanonicalQuery encodes the signed parameters sorted by key.
func CanonicalQuery(params url.Values) string {
	canonical := url.Values{}
	for _, key := range signedParams {
		canonical.Set(key, params.Get(key))
	}

	// Encode sorts by key.
	return canonical.Encode()
}

// Sign returns the hex HMAC-SHA256 of the canonical query.
func (s *Signer) Sign(params url.Values) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(CanonicalQuery(params)))

	return hex.EncodeToString(mac.Sum(nil))
}

// BuildURL returns base with the signed parameters and signature appended.
func (s *Signer) BuildURL(base string, link Link) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	params := url.Values{}
	params.Set(ParamPublication, link.PublicationID)
	params.Set(ParamWeekStart, link.WeekStart.Format(dateLayout))
	params.Set(ParamWeekEnd, link.WeekEnd.Format(dateLayout))
	params.Set(ParamVote, link.Vote)
	params.Set(ParamTimestamp, strconv.FormatInt(link.Timestamp, 10))
	params.Set(ParamSignature, s.Sign(params))

	u.RawQuery = params.Encode()

	return u.String(), nil
}

// Verify checks signature, age, vote and dates, in that order.
func (s *Signer) Verify(params url.Values) (*Link, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	for _, key := range requiredParams {
		if strings.TrimSpace(params.Get(key)) == "" {
			return nil, ErrMissingParams
		}
	}

	got, err := hex.DecodeString(params.Get(ParamSignature))
	if err != nil {
		return nil, ErrInvalidSignature
	}

	want, _ := hex.DecodeString(s.Sign(params))
	if !hmac.Equal(got, want) {
		return nil, ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(params.Get(ParamTimestamp), 10, 64)
	if err != nil {
		return nil, ErrInvalidTimestamp
	}

	if s.now().Sub(time.Unix(ts, 0)) > s.maxAge {
		return nil, ErrExpired
	}

	vote := params.Get(ParamVote)
	if vote != VoteUp && vote != VoteDown {
		return nil, ErrInvalidVote
	}

	weekStart, err := time.Parse(dateLayout, params.Get(ParamWeekStart))
	if err != nil {
		return nil, ErrInvalidWeek
	}

	weekEnd, err := time.Parse(dateLayout, params.Get(ParamWeekEnd))
	if err != nil {
		return nil, ErrInvalidWeek
	}

	return &Link{
		PublicationID: params.Get(ParamPublication),
		WeekStart:     weekStart,
		WeekEnd:       weekEnd,
		Vote:          vote,
		Timestamp:     ts,
	}, nil
}
