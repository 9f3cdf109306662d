package calibration

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/lueurxax/acitrack/internal/core/domain"
	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
)

// ExportFormat selects the export encoding.
type ExportFormat string

// Supported export formats.
const (
	ExportCSV   ExportFormat = "csv"
	ExportJSONL ExportFormat = "jsonl"
)

var exportHeader = []string{
	"publication_id", "title", "source", "final_relevancy_score", "human_score",
	"reasoning", "evaluator", "confidence", "created_at", "tags",
}

// ParseExportFormat validates a format name; empty selects CSV.
func ParseExportFormat(name string) (ExportFormat, error) {
	switch f := ExportFormat(name); f {
	case "":
		return ExportCSV, nil
	case ExportCSV, ExportJSONL:
		return f, nil
	default:
		return "", fmt.Errorf("format must be csv or jsonl: %w", apperrors.ErrValidation)
	}
}

// Filename is the attachment name for the format.
func (f ExportFormat) Filename() string {
	return "calibration_export." + string(f)
}

// ContentType is the media type for the format.
func (f ExportFormat) ContentType() string {
	if f == ExportJSONL {
		return "application/x-ndjson"
	}

	return "text/csv"
}

type exportRecord struct {
	PublicationID       string      `json:"publication_id"`
	Title               string      `json:"title"`
	Source              string      `json:"source"`
	FinalRelevancyScore *float64    `json:"final_relevancy_score"`
	HumanScore          int         `json:"human_score"`
	Reasoning           string      `json:"reasoning"`
	Evaluator           string      `json:"evaluator"`
	Confidence          *string     `json:"confidence"`
	CreatedAt           string      `json:"created_at"`
	Tags                domain.Tags `json:"tags"`
}

func toExportRecord(r domain.EvaluationExportRow) exportRecord {
	rec := exportRecord{
		PublicationID:       r.PublicationID,
		Title:               r.Title,
		Source:              r.Source,
		FinalRelevancyScore: r.FinalRelevancyScore,
		HumanScore:          r.HumanScore,
		Reasoning:           r.Reasoning,
		Evaluator:           r.Evaluator,
		CreatedAt:           r.CreatedAt.UTC().Format(time.RFC3339),
		Tags:                r.Tags,
	}

	if r.Confidence != "" {
		c := r.Confidence
		rec.Confidence = &c
	}

	return rec
}

// WriteExport encodes rows in the given format.
func WriteExport(w io.Writer, format ExportFormat, rows []domain.EvaluationExportRow) error {
	if format == ExportJSONL {
		return writeJSONL(w, rows)
	}

	return writeCSV(w, rows)
}

func writeCSV(w io.Writer, rows []domain.EvaluationExportRow) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range rows {
		score := ""
		if r.FinalRelevancyScore != nil {
			score = strconv.FormatFloat(*r.FinalRelevancyScore, 'f', -1, 64)
		}

		tags := ""
		if len(r.Tags) > 0 {
			b, err := json.Marshal(r.Tags)
			if err != nil {
				return fmt.Errorf("encode tags: %w", err)
			}

			tags = string(b)
		}

		record := []string{
			r.PublicationID, r.Title, r.Source, score, strconv.Itoa(r.HumanScore),
			r.Reasoning, r.Evaluator, r.Confidence, r.CreatedAt.UTC().Format(time.RFC3339), tags,
		}

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	return nil
}

func writeJSONL(w io.Writer, rows []domain.EvaluationExportRow) error {
	enc := json.NewEncoder(w)

	for _, r := range rows {
		if err := enc.Encode(toExportRecord(r)); err != nil {
			return fmt.Errorf("write jsonl row: %w", err)
		}
	}

	return nil
}
