package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/lueurxax/acitrack/internal/core/domain"
	"github.com/lueurxax/acitrack/internal/core/ports"
)

// Client identifies who clicked a link.
type Client struct {
	IP        string
	UserAgent string
}

// Service verifies links and stores the votes they carry.
type Service struct {
	signer *Signer
	store  ports.FeedbackStore
	logger *zerolog.Logger
}

// NewService creates a feedback service.
func NewService(signer *Signer, store ports.FeedbackStore, logger *zerolog.Logger) *Service {
	return &Service{signer: signer, store: store, logger: logger}
}

// Signer exposes the link signer.
func (s *Service) Signer() *Signer {
	return s.signer
}

// Record verifies params and stores the vote.
func (s *Service) Record(ctx context.Context, params url.Values, client Client) (*domain.Feedback, error) {
	link, err := s.signer.Verify(params)
	if err != nil {
		s.logger.Debug().Err(err).Str("publication_id", params.Get(ParamPublication)).Msg("feedback link rejected")
		return nil, err
	}

	fb := &domain.Feedback{
		WeekStart:     link.WeekStart,
		WeekEnd:       link.WeekEnd,
		PublicationID: link.PublicationID,
		Vote:          link.Vote,
		SourceIP:      client.IP,
		UserAgent:     client.UserAgent,
		Context:       json.RawMessage(fmt.Sprintf(`{"t": %d}`, link.Timestamp)),
	}

	if err := s.store.SaveFeedback(ctx, fb); err != nil {
		return nil, fmt.Errorf("save feedback: %w", err)
	}

	s.logger.Info().
		Str("publication_id", fb.PublicationID).
		Str("vote", fb.Vote).
		Msg("digest feedback recorded")

	return fb, nil
}
