// Package ports provides domain-centric interfaces for external dependencies.
// These interfaces follow the ports and adapters (hexagonal) architecture pattern,
// allowing business logic to remain independent of infrastructure concerns.
package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lueurxax/acitrack/internal/core/domain"
)

// RunStore handles pipeline runs and their must-reads documents.
type RunStore interface {
	// LatestRun returns the run with the greatest started_at for mode, or nil.
	LatestRun(ctx context.Context, mode string) (*domain.Run, error)
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	UpsertRun(ctx context.Context, run *domain.Run) (bool, error)
	GetMustReads(ctx context.Context, runID string) (*domain.MustReadSet, error)
	SaveMustReads(ctx context.Context, runID, mode string, document json.RawMessage) error
}

// EventStore handles per-run tri-model evaluation events.
type EventStore interface {
	UpsertTriModelEvent(ctx context.Context, event *domain.TriModelEvent) (bool, error)
}

// PublicationStore handles the canonical publications table.
type PublicationStore interface {
	UpsertPublication(ctx context.Context, pub *domain.Publication) (bool, error)
	GetPublication(ctx context.Context, publicationID string) (*domain.Publication, error)
	ListPublicationsByScoringRun(ctx context.Context, runID string) ([]domain.Publication, error)
	ListTopPublicationsSince(ctx context.Context, since time.Time, limit int) ([]domain.Publication, error)
	CountScoredPublicationsSince(ctx context.Context, since time.Time) (int, error)
}

// VectorFilter restricts a nearest-neighbour query.
type VectorFilter struct {
	MinRelevancy   *int
	MinCredibility *int
	DateFrom       *time.Time
	// DateBefore is exclusive.
	DateBefore     *time.Time
	ExcludeID      string
}

// VectorStore handles stored publication embeddings.
type VectorStore interface {
	// VectorExtensionAvailable reports whether the database can store and compare vectors.
	VectorExtensionAvailable(ctx context.Context) (bool, error)
	CountEmbeddings(ctx context.Context) (int, error)
	UpsertEmbedding(ctx context.Context, emb *domain.PublicationEmbedding) (bool, error)
	GetEmbeddingVector(ctx context.Context, publicationID string) ([]float32, error)
	SearchByVector(ctx context.Context, vector []float32, filter VectorFilter, limit int) ([]domain.VectorMatch, error)
}

// SampleFilter narrows the pool a calibration item is drawn from.
// The pool always excludes items the evaluator has already rated.
type SampleFilter struct {
	Evaluator string
	GoldOnly  bool
	// ScoreMin and ScoreMax bound the LLM score as [ScoreMin, ScoreMax).
	ScoreMin  *float64
	ScoreMax  *float64
	NullScore bool
}

// CalibrationStore handles calibration items and human evaluations.
type CalibrationStore interface {
	GetCalibrationItem(ctx context.Context, id string) (*domain.CalibrationItem, error)
	GetCalibrationItemByPublication(ctx context.Context, publicationID string) (*domain.CalibrationItem, error)
	CalibrationSource(ctx context.Context, publicationID, runID string) (*domain.CalibrationSource, error)
	// InsertCalibrationItem creates the item, or merges tags into the existing one.
	// It reports whether a new row was created.
	InsertCalibrationItem(ctx context.Context, item *domain.CalibrationItem) (bool, error)
	MergeCalibrationTags(ctx context.Context, publicationID string, tags domain.Tags) error
	RandomUnratedItem(ctx context.Context, filter SampleFilter) (*domain.CalibrationItem, error)
	// InsertEvaluation fails with ErrNotFound for an unknown item and ErrConflict
	// when the evaluator has already rated it.
	InsertEvaluation(ctx context.Context, eval *domain.HumanEvaluation) error
	CalibrationCounts(ctx context.Context, evaluator string) (*domain.CalibrationCounts, error)
	ExportEvaluations(ctx context.Context) ([]domain.EvaluationExportRow, error)
	ListCalibrationItems(ctx context.Context, limit, offset int, goldOnly bool) ([]domain.CalibrationItem, int, error)
}

// FeedbackStore persists digest feedback votes.
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, fb *domain.Feedback) error
}

// StatsReader provides aggregate numbers for reporting endpoints.
type StatsReader interface {
	PublicationStats(ctx context.Context) (*domain.PublicationStats, error)
	EmbeddingStats(ctx context.Context) (*domain.EmbeddingStats, error)
}

// Store is everything the HTTP layer needs from persistence.
type Store interface {
	RunStore
	EventStore
	PublicationStore
	VectorStore
	CalibrationStore
	FeedbackStore
	StatsReader
	Ping(ctx context.Context) error
}
