package calibration

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lueurxax/acitrack/internal/core/domain"
	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
)

// SubmitRequest is a human rating for one calibration item.
type SubmitRequest struct {
	CalibrationItemID string  `json:"calibration_item_id"`
	Evaluator         string  `json:"evaluator"`
	HumanScore        *int    `json:"human_score"`
	Reasoning         string  `json:"reasoning"`
	Confidence        *string `json:"confidence"`
}

// SubmitResult echoes the LLM score so the UI can show the comparison.
type SubmitResult struct {
	Status   string   `json:"status"`
	LLMScore *float64 `json:"llm_score"`
}

// Validate checks field shape and ranges. The item id format is checked separately
// by ItemUUID because a malformed id is reported differently from a bad field.
func (r SubmitRequest) Validate() error {
	if strings.TrimSpace(r.CalibrationItemID) == "" {
		return fmt.Errorf("calibration_item_id is required: %w", apperrors.ErrValidation)
	}

	if strings.TrimSpace(r.Evaluator) == "" {
		return fmt.Errorf("evaluator must not be empty: %w", apperrors.ErrValidation)
	}

	if r.HumanScore == nil {
		return fmt.Errorf("human_score is required: %w", apperrors.ErrValidation)
	}

	if *r.HumanScore < domain.MinScore || *r.HumanScore > domain.MaxScore {
		return fmt.Errorf("human_score must be between %d and %d: %w", domain.MinScore, domain.MaxScore, apperrors.ErrValidation)
	}

	if strings.TrimSpace(r.Reasoning) == "" {
		return fmt.Errorf("reasoning must not be empty: %w", apperrors.ErrValidation)
	}

	if r.Confidence != nil {
		switch *r.Confidence {
		case domain.ConfidenceLow, domain.ConfidenceMedium, domain.ConfidenceHigh:
		default:
			return fmt.Errorf("confidence must be low, medium or high: %w", apperrors.ErrValidation)
		}
	}

	return nil
}

// ItemUUID parses the calibration item id.
func (r SubmitRequest) ItemUUID() (uuid.UUID, error) {
	id, err := uuid.Parse(r.CalibrationItemID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid calibration_item_id format: %w", apperrors.ErrInvalidID)
	}

	return id, nil
}

func (r SubmitRequest) evaluation(itemID uuid.UUID) *domain.HumanEvaluation {
	eval := &domain.HumanEvaluation{
		CalibrationItemID: itemID.String(),
		Evaluator:         r.Evaluator,
		HumanScore:        *r.HumanScore,
		Reasoning:         r.Reasoning,
	}

	if r.Confidence != nil {
		eval.Confidence = *r.Confidence
	}

	return eval
}
