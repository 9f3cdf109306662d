package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lueurxax/acitrack/internal/core/feedback"
)

var errNoFeedbackSecret = errors.New("DIGEST_FEEDBACK_SECRET is not set")

var feedbackLink struct {
	publication string
	vote        string
	weekStart   string
	baseURL     string
}

var feedbackLinkCmd = &cobra.Command{
	Use:   "feedback-link",
	Short: "Print a signed digest feedback link",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Feedback.Secret == "" {
			return errNoFeedbackSecret
		}

		start := weekStart(time.Now().UTC())

		if feedbackLink.weekStart != "" {
			t, err := time.Parse(time.DateOnly, feedbackLink.weekStart)
			if err != nil {
				return fmt.Errorf("invalid --week-start: %w", err)
			}

			start = t
		}

		base := feedbackLink.baseURL
		if base == "" {
			base = cfg.Feedback.BaseURL
		}

		signer := feedback.NewSigner(cfg.Feedback.Secret, cfg.Feedback.MaxAge())

		link, err := signer.BuildURL(base, feedback.Link{
			PublicationID: feedbackLink.publication,
			WeekStart:     start,
			WeekEnd:       start.AddDate(0, 0, 6),
			Vote:          feedbackLink.vote,
			Timestamp:     time.Now().Unix(),
		})
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), link)

		return nil
	},
}

// weekStart returns the Monday of t's week.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7

	return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
}

func init() {
	f := feedbackLinkCmd.Flags()
	f.StringVar(&feedbackLink.publication, "publication", "", "publication id")
	f.StringVar(&feedbackLink.vote, "vote", feedback.VoteUp, "vote (up or down)")
	f.StringVar(&feedbackLink.weekStart, "week-start", "", "digest week start (YYYY-MM-DD, defaults to this Monday)")
	f.StringVar(&feedbackLink.baseURL, "base-url", "", "feedback endpoint (defaults to FEEDBACK_BASE_URL)")
	_ = feedbackLinkCmd.MarkFlagRequired("publication")

	rootCmd.AddCommand(feedbackLinkCmd)
}
