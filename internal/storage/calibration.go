package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/acitrack/internal/core/domain"
	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
	"github.com/lueurxax/acitrack/internal/core/ports"
)

const calibrationItemColumns = `ci.id, ci.publication_id, ci.mode, ci.run_id, ci.source, ci.published_date, ci.title,
	ci.abstract, ci.url, ci.final_relevancy_score, ci.final_summary, ci.tags, ci.created_at, ci.updated_at`

// goldPredicate matches both boolean and string "true" gold tags.
const goldPredicate = `COALESCE(ci.tags->>'gold', 'false') = 'true'`

func scanCalibrationItem(row pgx.Row) (*domain.CalibrationItem, error) {
	var (
		it                                        domain.CalibrationItem
		id                                        pgtype.UUID
		mode, runID, source, title, abstract, url pgtype.Text
		summary                                   pgtype.Text
		published                                 pgtype.Timestamptz
		score                                     pgtype.Float8
		tags                                      []byte
	)

	err := row.Scan(&id, &it.PublicationID, &mode, &runID, &source, &published, &title,
		&abstract, &url, &score, &summary, &tags, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}

	it.ID = fromUUID(id)
	it.Mode = fromText(mode)
	it.RunID = fromText(runID)
	it.Source = fromText(source)
	it.PublishedDate = fromTimestamptzPtr(published)
	it.Title = fromText(title)
	it.Abstract = fromText(abstract)
	it.URL = fromText(url)
	it.FinalRelevancyScore = fromFloat8Ptr(score)
	it.FinalSummary = fromText(summary)

	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &it.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}

	return &it, nil
}

func (db *DB) getCalibrationItem(ctx context.Context, where string, arg any) (*domain.CalibrationItem, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+calibrationItemColumns+` FROM calibration_items ci WHERE `+where, arg)

	it, err := scanCalibrationItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil //nolint:nilnil // nil item means not found
	}

	if err != nil {
		return nil, fmt.Errorf("get calibration item: %w", err)
	}

	return it, nil
}

// GetCalibrationItem returns an item by id. Malformed ids are reported as not found.
func (db *DB) GetCalibrationItem(ctx context.Context, id string) (*domain.CalibrationItem, error) {
	uid := toUUID(id)
	if !uid.Valid {
		return nil, nil //nolint:nilnil // malformed id cannot match a row
	}

	return db.getCalibrationItem(ctx, "ci.id = $1", uid)
}

func (db *DB) GetCalibrationItemByPublication(ctx context.Context, publicationID string) (*domain.CalibrationItem, error) {
	return db.getCalibrationItem(ctx, "ci.publication_id = $1", publicationID)
}

// CalibrationSource gathers display details for a publication: the newest
// tri-model event (optionally for one run), then the publications row, then
// the stored embedding.
func (db *DB) CalibrationSource(ctx context.Context, publicationID, runID string) (*domain.CalibrationSource, error) {
	var (
		eventTitle, eventRun, eventMode pgtype.Text
		eventScore                      pgtype.Float8
		pubTitle, pubSource, pubDate    pgtype.Text
		pubURL, pubRun, pubSummary      pgtype.Text
		pubScore                        pgtype.Int4
		embSummary, embSource           pgtype.Text
		embDate                         pgtype.Timestamptz
	)

	err := db.Pool.QueryRow(ctx, `
		SELECT e.title, e.run_id, e.mode, e.final_relevancy_score,
		       p.title, p.source, p.published_date, COALESCE(p.canonical_url, p.url), p.latest_run_id,
		       p.final_summary, p.final_relevancy_score,
		       pe.final_summary, pe.source, pe.published_date
		FROM (SELECT $1::text AS publication_id) k
		LEFT JOIN LATERAL (
			SELECT title, run_id, mode, final_relevancy_score
			FROM tri_model_events
			WHERE publication_id = k.publication_id AND ($2 = '' OR run_id = $2)
			ORDER BY created_at DESC
			LIMIT 1
		) e ON TRUE
		LEFT JOIN publications p ON p.publication_id = k.publication_id
		LEFT JOIN publication_embeddings pe ON pe.publication_id = k.publication_id
	`, publicationID, runID).Scan(
		&eventTitle, &eventRun, &eventMode, &eventScore,
		&pubTitle, &pubSource, &pubDate, &pubURL, &pubRun, &pubSummary, &pubScore,
		&embSummary, &embSource, &embDate,
	)
	if err != nil {
		return nil, fmt.Errorf("get calibration source: %w", err)
	}

	src := &domain.CalibrationSource{
		Title:               firstText(eventTitle, pubTitle),
		Source:              firstText(pubSource, embSource),
		URL:                 fromText(pubURL),
		FinalRelevancyScore: fromFloat8Ptr(eventScore),
		FinalSummary:        firstText(embSummary, pubSummary),
		RunID:               firstText(eventRun, pubRun),
		Mode:                fromText(eventMode),
	}

	if src.FinalRelevancyScore == nil && pubScore.Valid {
		src.FinalRelevancyScore = domain.Float64Ptr(float64(pubScore.Int32))
	}

	if pubDate.Valid {
		if t, err := dateparse.ParseAny(pubDate.String); err == nil {
			src.PublishedDate = &t
		}
	}

	if src.PublishedDate == nil {
		src.PublishedDate = fromTimestamptzPtr(embDate)
	}

	return src, nil
}

func firstText(values ...pgtype.Text) string {
	for _, v := range values {
		if v.Valid && v.String != "" {
			return v.String
		}
	}

	return ""
}

// InsertCalibrationItem creates the item, or merges tags into the existing one.
// On return item holds the stored row.
func (db *DB) InsertCalibrationItem(ctx context.Context, item *domain.CalibrationItem) (bool, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	tags, err := encodeTags(item.Tags)
	if err != nil {
		return false, err
	}

	row := db.Pool.QueryRow(ctx, `
		INSERT INTO calibration_items AS ci (
			id, publication_id, mode, run_id, source, published_date, title, abstract, url,
			final_relevancy_score, final_summary, tags
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (publication_id) DO UPDATE SET
			tags = COALESCE(ci.tags, '{}'::jsonb) || EXCLUDED.tags,
			updated_at = NOW()
		RETURNING `+calibrationItemColumns+`, (xmax = 0)
	`,
		toUUID(item.ID), item.PublicationID, toText(item.Mode), toText(item.RunID), toText(item.Source),
		toTimestamptzPtr(item.PublishedDate), toText(item.Title), toText(item.Abstract), toText(item.URL),
		toFloat8Ptr(item.FinalRelevancyScore), toText(item.FinalSummary), tags,
	)

	var inserted bool

	stored, err := scanCalibrationItem(insertedRow{row: row, inserted: &inserted})
	if err != nil {
		return false, mapPgError(err, "insert calibration item")
	}

	*item = *stored

	return inserted, nil
}

// insertedRow appends the trailing "was inserted" column to a calibration item scan.
type insertedRow struct {
	row      pgx.Row
	inserted *bool
}

func (r insertedRow) Scan(dest ...any) error {
	return r.row.Scan(append(dest, r.inserted)...)
}

func encodeTags(tags domain.Tags) ([]byte, error) {
	if len(tags) == 0 {
		return []byte("{}"), nil
	}

	b, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}

	return b, nil
}

// MergeCalibrationTags overlays tags onto the item for a publication.
func (db *DB) MergeCalibrationTags(ctx context.Context, publicationID string, tags domain.Tags) error {
	b, err := encodeTags(tags)
	if err != nil {
		return err
	}

	ct, err := db.Pool.Exec(ctx, `
		UPDATE calibration_items
		SET tags = COALESCE(tags, '{}'::jsonb) || $2::jsonb, updated_at = NOW()
		WHERE publication_id = $1
	`, publicationID, b)
	if err != nil {
		return fmt.Errorf("merge calibration tags: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return fmt.Errorf("calibration item for %s: %w", publicationID, apperrors.ErrNotFound)
	}

	return nil
}

// RandomUnratedItem picks a random item matching the filter that the
// evaluator has not rated. The exclusion is evaluated inside the query, so
// it always reflects committed ratings.
func (db *DB) RandomUnratedItem(ctx context.Context, f ports.SampleFilter) (*domain.CalibrationItem, error) {
	q := psql.Select(calibrationItemColumns).
		From("calibration_items ci").
		Where(`NOT EXISTS (
			SELECT 1 FROM human_evaluations he
			WHERE he.calibration_item_id = ci.id AND he.evaluator = ?
		)`, f.Evaluator)

	if f.GoldOnly {
		q = q.Where(goldPredicate)
	}

	if f.NullScore {
		q = q.Where(sq.Eq{"ci.final_relevancy_score": nil})
	}

	if f.ScoreMin != nil {
		q = q.Where(sq.GtOrEq{"ci.final_relevancy_score": *f.ScoreMin})
	}

	if f.ScoreMax != nil {
		q = q.Where(sq.Lt{"ci.final_relevancy_score": *f.ScoreMax})
	}

	sqlStr, args, err := q.OrderBy("random()").Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sample query: %w", err)
	}

	it, err := scanCalibrationItem(db.Pool.QueryRow(ctx, sqlStr, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil //nolint:nilnil // nil item means pool exhausted
	}

	if err != nil {
		return nil, fmt.Errorf("sample calibration item: %w", err)
	}

	return it, nil
}

// InsertEvaluation stores a rating. The (item, evaluator) unique constraint
// makes concurrent duplicates fail with ErrConflict, and the item foreign key
// turns unknown items into ErrNotFound.
func (db *DB) InsertEvaluation(ctx context.Context, e *domain.HumanEvaluation) error {
	itemID := toUUID(e.CalibrationItemID)
	if !itemID.Valid {
		return fmt.Errorf("calibration item %s: %w", e.CalibrationItemID, apperrors.ErrNotFound)
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO human_evaluations (id, calibration_item_id, evaluator, human_score, reasoning, confidence)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, toUUID(e.ID), itemID, e.Evaluator, e.HumanScore, SanitizeUTF8(e.Reasoning), toText(e.Confidence)).Scan(&e.CreatedAt)
	if err != nil {
		return mapPgError(err, "insert evaluation")
	}

	return nil
}

// CalibrationCounts computes stats counters, optionally scoped to one evaluator.
func (db *DB) CalibrationCounts(ctx context.Context, evaluator string) (*domain.CalibrationCounts, error) {
	c := &domain.CalibrationCounts{}

	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE `+goldPredicate+`)
		FROM calibration_items ci
	`).Scan(&c.TotalItems, &c.GoldTotal)
	if err != nil {
		return nil, fmt.Errorf("count calibration items: %w", err)
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT he.calibration_item_id, he.human_score, `+goldPredicate+`
		FROM human_evaluations he
		JOIN calibration_items ci ON ci.id = he.calibration_item_id
		WHERE $1 = '' OR he.evaluator = $1
	`, evaluator)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	distinct := make(map[[16]byte]struct{})

	for rows.Next() {
		var (
			itemID pgtype.UUID
			score  int
			gold   bool
		)

		if err := rows.Scan(&itemID, &score, &gold); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}

		c.TotalRated++
		c.HumanScores = append(c.HumanScores, score)
		distinct[itemID.Bytes] = struct{}{}

		if gold {
			c.GoldRated++
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}

	c.DistinctRated = len(distinct)

	return c, nil
}

// ExportEvaluations joins evaluations with their items ordered by publication and time.
func (db *DB) ExportEvaluations(ctx context.Context) ([]domain.EvaluationExportRow, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT ci.publication_id, ci.title, ci.source, ci.final_relevancy_score,
		       he.human_score, he.reasoning, he.evaluator, he.confidence, he.created_at, ci.tags
		FROM human_evaluations he
		JOIN calibration_items ci ON ci.id = he.calibration_item_id
		ORDER BY ci.publication_id, he.created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query export: %w", err)
	}
	defer rows.Close()

	var out []domain.EvaluationExportRow

	for rows.Next() {
		var (
			r                         domain.EvaluationExportRow
			title, source, confidence pgtype.Text
			score                     pgtype.Float8
			tags                      []byte
		)

		if err := rows.Scan(&r.PublicationID, &title, &source, &score, &r.HumanScore, &r.Reasoning,
			&r.Evaluator, &confidence, &r.CreatedAt, &tags); err != nil {
			return nil, fmt.Errorf("scan export row: %w", err)
		}

		r.Title = fromText(title)
		r.Source = fromText(source)
		r.Confidence = fromText(confidence)
		r.FinalRelevancyScore = fromFloat8Ptr(score)

		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &r.Tags); err != nil {
				return nil, fmt.Errorf("decode tags: %w", err)
			}
		}

		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate export rows: %w", err)
	}

	return out, nil
}

// ListCalibrationItems pages items newest first and returns the total count.
func (db *DB) ListCalibrationItems(ctx context.Context, limit, offset int, goldOnly bool) ([]domain.CalibrationItem, int, error) {
	count := psql.Select("COUNT(*)").From("calibration_items ci")
	list := psql.Select(calibrationItemColumns).From("calibration_items ci").
		OrderBy("ci.created_at DESC", "ci.id").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	if goldOnly {
		count = count.Where(goldPredicate)
		list = list.Where(goldPredicate)
	}

	countSQL, countArgs, err := count.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}

	var total int
	if err := db.Pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count calibration items: %w", err)
	}

	listSQL, listArgs, err := list.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	rows, err := db.Pool.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list calibration items: %w", err)
	}
	defer rows.Close()

	items := []domain.CalibrationItem{}

	for rows.Next() {
		it, err := scanCalibrationItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan calibration item: %w", err)
		}

		items = append(items, *it)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate calibration items: %w", err)
	}

	return items, total, nil
}
