package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lueurxax/acitrack/internal/core/domain"
	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
	"github.com/lueurxax/acitrack/internal/core/ports"
)

var _ ports.Store = (*Store)(nil)

// Store is a thread-safe in-memory implementation of ports.Store.
type Store struct {
	mu sync.RWMutex

	runs         map[string]domain.Run
	mustReads    map[string]domain.MustReadSet
	events       map[string]domain.TriModelEvent
	publications map[string]domain.Publication
	embeddings   map[string]domain.PublicationEmbedding
	items        map[string]domain.CalibrationItem
	evaluations  []domain.HumanEvaluation
	feedback     []domain.Feedback

	rng *rand.Rand

	// VectorExtension controls VectorExtensionAvailable.
	VectorExtension bool

	// PingFn allows overriding Ping behavior.
	PingFn func(ctx context.Context) error

	// SearchByVectorFn allows overriding SearchByVector behavior.
	SearchByVectorFn func(ctx context.Context, vector []float32, filter ports.VectorFilter, limit int) ([]domain.VectorMatch, error)
}

// NewStore creates an empty store with vector support enabled.
func NewStore() *Store {
	return &Store{
		runs:            make(map[string]domain.Run),
		mustReads:       make(map[string]domain.MustReadSet),
		events:          make(map[string]domain.TriModelEvent),
		publications:    make(map[string]domain.Publication),
		embeddings:      make(map[string]domain.PublicationEmbedding),
		items:           make(map[string]domain.CalibrationItem),
		rng:             rand.New(rand.NewSource(1)), //nolint:gosec // deterministic test source
		VectorExtension: true,
	}
}

// Ping reports store health.
func (s *Store) Ping(ctx context.Context) error {
	if s.PingFn != nil {
		return s.PingFn(ctx)
	}

	return nil
}

// Runs

// LatestRun returns the run for mode with the greatest StartedAt.
func (s *Store) LatestRun(_ context.Context, mode string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Run

	for _, r := range s.runs {
		if r.Mode != mode {
			continue
		}

		if latest == nil || startedAt(r).After(startedAt(*latest)) {
			run := r
			latest = &run
		}
	}

	return latest, nil
}

func startedAt(r domain.Run) time.Time {
	if r.StartedAt == nil {
		return time.Time{}
	}

	return *r.StartedAt
}

// GetRun returns a run by id, or nil.
func (s *Store) GetRun(_ context.Context, runID string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[runID]
	if !ok {
		return nil, nil //nolint:nilnil // nil run means not found
	}

	return &r, nil
}

// UpsertRun stores a run and reports whether it was new.
func (s *Store) UpsertRun(_ context.Context, run *domain.Run) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.runs[run.RunID]
	s.runs[run.RunID] = *run

	return !exists, nil
}

// GetMustReads returns the must-reads document for a run, or nil.
func (s *Store) GetMustReads(_ context.Context, runID string) (*domain.MustReadSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.mustReads[runID]
	if !ok {
		return nil, nil //nolint:nilnil // nil set means not found
	}

	return &m, nil
}

// SaveMustReads stores the must-reads document for a run.
func (s *Store) SaveMustReads(_ context.Context, runID, mode string, document json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mustReads[runID] = domain.MustReadSet{RunID: runID, Mode: mode, Document: document, UpdatedAt: time.Now()}

	return nil
}

// Events

// UpsertTriModelEvent stores an event keyed by (run, publication).
func (s *Store) UpsertTriModelEvent(_ context.Context, event *domain.TriModelEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := event.RunID + "\x00" + event.PublicationID
	_, exists := s.events[key]

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	s.events[key] = *event

	return !exists, nil
}

// Publications

// UpsertPublication stores a publication and reports whether it was new.
func (s *Store) UpsertPublication(_ context.Context, pub *domain.Publication) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.publications[pub.PublicationID]

	p := *pub
	now := time.Now()

	if exists {
		p.CreatedAt = prev.CreatedAt

		if p.FinalRelevancyScore == nil {
			keepScoring(&p, prev)
		}
	} else {
		p.CreatedAt = now
	}

	p.UpdatedAt = now
	s.publications[p.PublicationID] = p

	return !exists, nil
}

// keepScoring copies scoring columns from prev, mirroring the SQL upsert
// which never lets a metadata-only row erase scores.
func keepScoring(p *domain.Publication, prev domain.Publication) {
	p.FinalRelevancyScore = prev.FinalRelevancyScore
	p.FinalRelevancyReason = prev.FinalRelevancyReason
	p.ClaudeScore = prev.ClaudeScore
	p.GeminiScore = prev.GeminiScore
	p.AgreementLevel = prev.AgreementLevel
	p.CredibilityScore = prev.CredibilityScore
	p.CredibilityReason = prev.CredibilityReason
	p.ScoringRunID = prev.ScoringRunID
	p.ScoringUpdatedAt = prev.ScoringUpdatedAt
}

// GetPublication returns a publication by id, or nil.
func (s *Store) GetPublication(_ context.Context, publicationID string) (*domain.Publication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.publications[publicationID]
	if !ok {
		return nil, nil //nolint:nilnil // nil publication means not found
	}

	return &p, nil
}

// ListPublicationsByScoringRun returns publications scored by runID, best first.
func (s *Store) ListPublicationsByScoringRun(_ context.Context, runID string) ([]domain.Publication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Publication

	for _, p := range s.publications {
		if p.ScoringRunID == runID {
			out = append(out, p)
		}
	}

	sortPublications(out)

	return out, nil
}

// ListTopPublicationsSince returns scored publications updated since the cutoff, best first.
func (s *Store) ListTopPublicationsSince(_ context.Context, since time.Time, limit int) ([]domain.Publication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.scoredSinceLocked(since)
	sortPublications(out)

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// CountScoredPublicationsSince counts scored publications updated since the cutoff.
func (s *Store) CountScoredPublicationsSince(_ context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.scoredSinceLocked(since)), nil
}

func (s *Store) scoredSinceLocked(since time.Time) []domain.Publication {
	var out []domain.Publication

	for _, p := range s.publications {
		if p.FinalRelevancyScore == nil {
			continue
		}

		ts := p.UpdatedAt
		if p.ScoringUpdatedAt != nil {
			ts = *p.ScoringUpdatedAt
		}

		if !ts.Before(since) {
			out = append(out, p)
		}
	}

	return out
}

func sortPublications(pubs []domain.Publication) {
	sort.SliceStable(pubs, func(i, j int) bool {
		si, sj := scoreOrMinus(pubs[i].FinalRelevancyScore), scoreOrMinus(pubs[j].FinalRelevancyScore)
		if si != sj {
			return si > sj
		}

		return pubs[i].PublicationID < pubs[j].PublicationID
	})
}

func scoreOrMinus(v *int) int {
	if v == nil {
		return -1
	}

	return *v
}

// Embeddings

// VectorExtensionAvailable returns the VectorExtension field.
func (s *Store) VectorExtensionAvailable(_ context.Context) (bool, error) {
	return s.VectorExtension, nil
}

// CountEmbeddings returns the number of stored vectors.
func (s *Store) CountEmbeddings(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.embeddings), nil
}

// UpsertEmbedding stores a vector and reports whether it was new.
func (s *Store) UpsertEmbedding(_ context.Context, emb *domain.PublicationEmbedding) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.embeddings[emb.PublicationID]
	s.embeddings[emb.PublicationID] = *emb

	return !exists, nil
}

// GetEmbeddingVector returns the stored vector for a publication, or nil.
func (s *Store) GetEmbeddingVector(_ context.Context, publicationID string) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.embeddings[publicationID]
	if !ok {
		return nil, nil
	}

	return e.Embedding, nil
}

// SearchByVector ranks stored vectors by L2 distance after applying the filter.
func (s *Store) SearchByVector(ctx context.Context, vector []float32, filter ports.VectorFilter, limit int) ([]domain.VectorMatch, error) {
	if s.SearchByVectorFn != nil {
		return s.SearchByVectorFn(ctx, vector, filter, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.VectorMatch

	for _, e := range s.embeddings {
		if !matchesVectorFilter(e, filter) {
			continue
		}

		out = append(out, domain.VectorMatch{
			PublicationID:       e.PublicationID,
			Title:               e.Title,
			Source:              e.Source,
			PublishedDate:       e.PublishedDate,
			FinalRelevancyScore: e.FinalRelevancyScore,
			CredibilityScore:    e.CredibilityScore,
			FinalSummary:        e.FinalSummary,
			Distance:            l2(vector, e.Embedding),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}

		return out[i].PublicationID < out[j].PublicationID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func matchesVectorFilter(e domain.PublicationEmbedding, f ports.VectorFilter) bool {
	if f.ExcludeID != "" && e.PublicationID == f.ExcludeID {
		return false
	}

	if f.MinRelevancy != nil && (e.FinalRelevancyScore == nil || *e.FinalRelevancyScore < *f.MinRelevancy) {
		return false
	}

	if f.MinCredibility != nil && (e.CredibilityScore == nil || *e.CredibilityScore < *f.MinCredibility) {
		return false
	}

	if f.DateFrom != nil && (e.PublishedDate == nil || e.PublishedDate.Before(*f.DateFrom)) {
		return false
	}

	if f.DateBefore != nil && (e.PublishedDate == nil || !e.PublishedDate.Before(*f.DateBefore)) {
		return false
	}

	return true
}

func l2(a, b []float32) float64 {
	var sum float64

	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}

	return math.Sqrt(sum)
}

// Calibration

// AddCalibrationItem inserts an item directly and returns its id.
func (s *Store) AddCalibrationItem(item domain.CalibrationItem) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	s.items[item.ID] = item

	return item.ID
}

// SetCalibrationSource registers what CalibrationSource returns for a publication.
func (s *Store) SetCalibrationSource(publicationID string, src domain.CalibrationSource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.publications[publicationID]
	p.PublicationID = publicationID
	p.Title = src.Title
	p.Source = src.Source
	p.URL = src.URL
	p.FinalSummary = src.FinalSummary
	p.LatestRunID = src.RunID

	if src.PublishedDate != nil {
		p.PublishedDate = src.PublishedDate.Format(time.DateOnly)
	}

	if src.FinalRelevancyScore != nil {
		p.FinalRelevancyScore = domain.IntPtr(int(math.Round(*src.FinalRelevancyScore)))
	}

	s.publications[publicationID] = p
}

// GetCalibrationItem returns an item by id, or nil.
func (s *Store) GetCalibrationItem(_ context.Context, id string) (*domain.CalibrationItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[id]
	if !ok {
		return nil, nil //nolint:nilnil // nil item means not found
	}

	return &it, nil
}

// GetCalibrationItemByPublication returns the item for a publication, or nil.
func (s *Store) GetCalibrationItemByPublication(_ context.Context, publicationID string) (*domain.CalibrationItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.itemByPublicationLocked(publicationID)
	if !ok {
		return nil, nil //nolint:nilnil // nil item means not found
	}

	return &it, nil
}

func (s *Store) itemByPublicationLocked(publicationID string) (domain.CalibrationItem, bool) {
	for _, it := range s.items {
		if it.PublicationID == publicationID {
			return it, true
		}
	}

	return domain.CalibrationItem{}, false
}

// CalibrationSource builds seed details from stored publications.
func (s *Store) CalibrationSource(_ context.Context, publicationID, _ string) (*domain.CalibrationSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.publications[publicationID]
	if !ok {
		return &domain.CalibrationSource{}, nil
	}

	src := &domain.CalibrationSource{
		Title:        p.Title,
		Source:       p.Source,
		URL:          p.BestURL(),
		FinalSummary: p.FinalSummary,
		RunID:        p.LatestRunID,
	}

	if p.FinalRelevancyScore != nil {
		src.FinalRelevancyScore = domain.Float64Ptr(float64(*p.FinalRelevancyScore))
	}

	if t, err := time.Parse(time.DateOnly, p.PublishedDate); err == nil {
		src.PublishedDate = &t
	}

	return src, nil
}

// InsertCalibrationItem creates the item or merges tags into the existing one.
func (s *Store) InsertCalibrationItem(_ context.Context, item *domain.CalibrationItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.itemByPublicationLocked(item.PublicationID); ok {
		existing.Tags = existing.Tags.Merge(item.Tags)
		s.items[existing.ID] = existing
		*item = existing

		return false, nil
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	s.items[item.ID] = *item

	return true, nil
}

// MergeCalibrationTags overlays tags onto the item for a publication.
func (s *Store) MergeCalibrationTags(_ context.Context, publicationID string, tags domain.Tags) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.itemByPublicationLocked(publicationID)
	if !ok {
		return fmt.Errorf("calibration item for %s: %w", publicationID, apperrors.ErrNotFound)
	}

	it.Tags = it.Tags.Merge(tags)
	s.items[it.ID] = it

	return nil
}

// RandomUnratedItem picks a random item matching the filter that the evaluator has not rated.
func (s *Store) RandomUnratedItem(_ context.Context, filter ports.SampleFilter) (*domain.CalibrationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rated := make(map[string]struct{})

	for _, e := range s.evaluations {
		if e.Evaluator == filter.Evaluator {
			rated[e.CalibrationItemID] = struct{}{}
		}
	}

	var pool []domain.CalibrationItem

	for _, it := range s.items {
		if _, ok := rated[it.ID]; ok {
			continue
		}

		if matchesSampleFilter(it, filter) {
			pool = append(pool, it)
		}
	}

	if len(pool) == 0 {
		return nil, nil //nolint:nilnil // nil item means pool exhausted
	}

	sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
	picked := pool[s.rng.Intn(len(pool))]

	return &picked, nil
}

func matchesSampleFilter(it domain.CalibrationItem, f ports.SampleFilter) bool {
	if f.GoldOnly && !it.Tags.IsGold() {
		return false
	}

	if f.NullScore && it.FinalRelevancyScore != nil {
		return false
	}

	if f.ScoreMin != nil || f.ScoreMax != nil {
		if it.FinalRelevancyScore == nil {
			return false
		}

		score := *it.FinalRelevancyScore
		if f.ScoreMin != nil && score < *f.ScoreMin {
			return false
		}

		if f.ScoreMax != nil && score >= *f.ScoreMax {
			return false
		}
	}

	return true
}

// InsertEvaluation stores an evaluation, enforcing item existence and (item, evaluator) uniqueness.
func (s *Store) InsertEvaluation(_ context.Context, eval *domain.HumanEvaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[eval.CalibrationItemID]; !ok {
		return fmt.Errorf("calibration item %s: %w", eval.CalibrationItemID, apperrors.ErrNotFound)
	}

	for _, e := range s.evaluations {
		if e.CalibrationItemID == eval.CalibrationItemID && e.Evaluator == eval.Evaluator {
			return fmt.Errorf("evaluation by %s: %w", eval.Evaluator, apperrors.ErrConflict)
		}
	}

	if eval.ID == "" {
		eval.ID = uuid.NewString()
	}

	eval.CreatedAt = time.Now()
	s.evaluations = append(s.evaluations, *eval)

	return nil
}

// Evaluations returns a copy of every stored evaluation.
func (s *Store) Evaluations() []domain.HumanEvaluation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.HumanEvaluation(nil), s.evaluations...)
}

// CalibrationCounts computes stats counters, optionally scoped to one evaluator.
func (s *Store) CalibrationCounts(_ context.Context, evaluator string) (*domain.CalibrationCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := &domain.CalibrationCounts{TotalItems: len(s.items)}

	for _, it := range s.items {
		if it.Tags.IsGold() {
			c.GoldTotal++
		}
	}

	distinct := make(map[string]struct{})

	for _, e := range s.evaluations {
		if evaluator != "" && e.Evaluator != evaluator {
			continue
		}

		c.TotalRated++
		c.HumanScores = append(c.HumanScores, e.HumanScore)
		distinct[e.CalibrationItemID] = struct{}{}

		if s.items[e.CalibrationItemID].Tags.IsGold() {
			c.GoldRated++
		}
	}

	c.DistinctRated = len(distinct)

	return c, nil
}

// ExportEvaluations joins evaluations with their items ordered by publication and time.
func (s *Store) ExportEvaluations(_ context.Context) ([]domain.EvaluationExportRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.EvaluationExportRow, 0, len(s.evaluations))

	for _, e := range s.evaluations {
		it := s.items[e.CalibrationItemID]
		rows = append(rows, domain.EvaluationExportRow{
			PublicationID:       it.PublicationID,
			Title:               it.Title,
			Source:              it.Source,
			FinalRelevancyScore: it.FinalRelevancyScore,
			HumanScore:          e.HumanScore,
			Reasoning:           e.Reasoning,
			Evaluator:           e.Evaluator,
			Confidence:          e.Confidence,
			CreatedAt:           e.CreatedAt,
			Tags:                it.Tags,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].PublicationID != rows[j].PublicationID {
			return rows[i].PublicationID < rows[j].PublicationID
		}

		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})

	return rows, nil
}

// ListCalibrationItems pages items newest first.
func (s *Store) ListCalibrationItems(_ context.Context, limit, offset int, goldOnly bool) ([]domain.CalibrationItem, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []domain.CalibrationItem

	for _, it := range s.items {
		if goldOnly && !it.Tags.IsGold() {
			continue
		}

		all = append(all, it)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}

		return all[i].ID < all[j].ID
	})

	total := len(all)

	if offset >= total {
		return []domain.CalibrationItem{}, total, nil
	}

	end := offset + limit
	if end > total {
		end = total
	}

	return all[offset:end], total, nil
}

// ListItemsMissingAbstract returns items with a URL and no abstract, oldest first.
func (s *Store) ListItemsMissingAbstract(_ context.Context, limit int) ([]domain.CalibrationItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.CalibrationItem

	for _, it := range s.items {
		if it.URL != "" && it.Abstract == "" {
			out = append(out, it)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}

		return out[i].ID < out[j].ID
	})

	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// SetCalibrationAbstract stores an abstract on an existing item.
func (s *Store) SetCalibrationAbstract(_ context.Context, itemID, abstract string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[itemID]
	if !ok {
		return fmt.Errorf("calibration item %s: %w", itemID, apperrors.ErrNotFound)
	}

	it.Abstract = abstract
	it.UpdatedAt = time.Now()
	s.items[itemID] = it

	return nil
}

// SetPublicationRawText fills raw text when the publication has none.
func (s *Store) SetPublicationRawText(_ context.Context, publicationID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.publications[publicationID]
	if !ok || p.RawText != "" {
		return nil
	}

	p.RawText = text
	s.publications[publicationID] = p

	return nil
}

// Feedback

// SaveFeedback stores a feedback vote.
func (s *Store) SaveFeedback(_ context.Context, fb *domain.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fb.ID = int64(len(s.feedback) + 1)
	fb.CreatedAt = time.Now()
	s.feedback = append(s.feedback, *fb)

	return nil
}

// Feedback returns a copy of stored feedback votes.
func (s *Store) Feedback() []domain.Feedback {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.Feedback(nil), s.feedback...)
}

// Stats

// PublicationStats aggregates stored publications.
func (s *Store) PublicationStats(_ context.Context) (*domain.PublicationStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &domain.PublicationStats{Total: len(s.publications)}

	var relSum, credSum float64

	for _, p := range s.publications {
		if p.FinalRelevancyScore != nil {
			st.Scored++
			relSum += float64(*p.FinalRelevancyScore)
		}

		if p.CredibilityScore != nil {
			st.WithCredibility++
			credSum += float64(*p.CredibilityScore)
		}

		switch p.AgreementLevel {
		case domain.AgreementHigh:
			st.HighAgreement++
		case domain.AgreementModerate:
			st.ModerateAgreement++
		case domain.AgreementLow:
			st.LowAgreement++
		}

		if p.ScoringUpdatedAt != nil && (st.LatestScoredAt == nil || p.ScoringUpdatedAt.After(*st.LatestScoredAt)) {
			t := *p.ScoringUpdatedAt
			st.LatestScoredAt = &t
		}
	}

	if st.Scored > 0 {
		st.AvgRelevancy = domain.Float64Ptr(relSum / float64(st.Scored))
	}

	if st.WithCredibility > 0 {
		st.AvgCredibility = domain.Float64Ptr(credSum / float64(st.WithCredibility))
	}

	return st, nil
}

// EmbeddingStats aggregates stored vectors.
func (s *Store) EmbeddingStats(_ context.Context) (*domain.EmbeddingStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &domain.EmbeddingStats{Total: len(s.embeddings)}
	models := make(map[string]struct{})

	for _, e := range s.embeddings {
		if e.EmbeddingModel != "" {
			models[e.EmbeddingModel] = struct{}{}
		}

		if st.LatestEmbedded == nil || e.EmbeddedAt.After(*st.LatestEmbedded) {
			t := e.EmbeddedAt
			st.LatestEmbedded = &t
		}
	}

	for m := range models {
		st.Models = append(st.Models, m)
	}

	sort.Strings(st.Models)

	return st, nil
}
