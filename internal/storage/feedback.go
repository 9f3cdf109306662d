package db

import (
	"context"

	"github.com/lueurxax/acitrack/internal/core/domain"
)

// SaveFeedback stores a digest feedback vote.
func (db *DB) SaveFeedback(ctx context.Context, fb *domain.Feedback) error {
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO weekly_digest_feedback (week_start, week_end, publication_id, vote, source_ip, user_agent, context)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, fb.WeekStart, fb.WeekEnd, fb.PublicationID, fb.Vote, toText(fb.SourceIP), toText(fb.UserAgent),
		toJSONB(fb.Context)).Scan(&fb.ID, &fb.CreatedAt)
	if err != nil {
		return mapPgError(err, "save feedback")
	}

	return nil
}
