package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"campuschat/internal/index"
	"campuschat/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

type fakeCacheStore struct {
	mu      sync.Mutex
	entries map[string]*models.CachedResponse
	puts    int
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{entries: make(map[string]*models.CachedResponse)}
}

func (f *fakeCacheStore) Get(ctx context.Context, fingerprint string) (*models.CachedResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cached, ok := f.entries[fingerprint]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *cached
	return &copied, nil
}

func (f *fakeCacheStore) Put(ctx context.Context, cached *models.CachedResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *cached
	f.entries[cached.Fingerprint] = &copied
	f.puts++
	return nil
}

func (f *fakeCacheStore) Delete(ctx context.Context, fingerprint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, fingerprint)
	return nil
}

func (f *fakeCacheStore) DeleteLanguage(ctx context.Context, language string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var dropped int64
	for fp, cached := range f.entries {
		if cached.Language == language {
			delete(f.entries, fp)
			dropped++
		}
	}
	return dropped, nil
}

func (f *fakeCacheStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var dropped int64
	for fp, cached := range f.entries {
		if cached.Expired(now) {
			delete(f.entries, fp)
			dropped++
		}
	}
	return dropped, nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.ChatSession
	turns    map[uuid.UUID][]*models.ConversationTurn
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: make(map[uuid.UUID]*models.ChatSession),
		turns:    make(map[uuid.UUID][]*models.ConversationTurn),
	}
}

func (f *fakeSessionStore) Create(ctx context.Context, session *models.ChatSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *session
	f.sessions[session.ID] = &copied
	return nil
}

func (f *fakeSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *session
	return &copied, nil
}

func (f *fakeSessionStore) AppendTurn(ctx context.Context, turn *models.ConversationTurn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[turn.SessionID]
	if !ok || !session.IsActive {
		return pgx.ErrNoRows
	}
	session.TotalTurns++
	session.UpdatedAt = time.Now()
	turn.TurnNumber = session.TotalTurns
	copied := *turn
	f.turns[turn.SessionID] = append(f.turns[turn.SessionID], &copied)
	return nil
}

func (f *fakeSessionStore) ListTurns(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.ConversationTurn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	turns := f.turns[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]*models.ConversationTurn, 0, len(turns))
	for _, turn := range turns {
		copied := *turn
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeSessionStore) Close(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok || !session.IsActive {
		return false, nil
	}
	session.IsActive = false
	return true, nil
}

func (f *fakeSessionStore) CloseIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var closed int64
	for _, session := range f.sessions {
		if session.IsActive && session.UpdatedAt.Before(cutoff) {
			session.IsActive = false
			closed++
		}
	}
	return closed, nil
}

type fakeCorrectionStore struct {
	mu          sync.Mutex
	corrections map[uuid.UUID]*models.ManualCorrection
}

func newFakeCorrectionStore() *fakeCorrectionStore {
	return &fakeCorrectionStore{corrections: make(map[uuid.UUID]*models.ManualCorrection)}
}

func (f *fakeCorrectionStore) Create(ctx context.Context, correction *models.ManualCorrection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *correction
	f.corrections[correction.ID] = &copied
	return nil
}

func (f *fakeCorrectionStore) Update(ctx context.Context, correction *models.ManualCorrection) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.corrections[correction.ID]; !ok {
		return false, nil
	}
	copied := *correction
	f.corrections[correction.ID] = &copied
	return true, nil
}

func (f *fakeCorrectionStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.corrections[id]; !ok {
		return false, nil
	}
	delete(f.corrections, id)
	return true, nil
}

func (f *fakeCorrectionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.ManualCorrection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	correction, ok := f.corrections[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *correction
	return &copied, nil
}

func (f *fakeCorrectionStore) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*models.ManualCorrection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ManualCorrection
	for _, correction := range f.corrections {
		if activeOnly && !correction.IsActive {
			continue
		}
		copied := *correction
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeCorrectionStore) FindExact(ctx context.Context, question, language string) (*models.ManualCorrection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, correction := range f.corrections {
		if correction.IsActive &&
			correction.MatchRule == models.MatchExact &&
			correction.Language == language &&
			strings.EqualFold(correction.Question, question) {
			copied := *correction
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// fakeIndex returns canned results per collection and records writes.
type fakeIndex struct {
	mu        sync.Mutex
	results   map[string][]index.Result
	upserted  map[string][]index.Entry
	deleted   map[string][]map[string]string
	searchErr error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		results:  make(map[string][]index.Result),
		upserted: make(map[string][]index.Entry),
		deleted:  make(map[string][]map[string]string),
	}
}

func (f *fakeIndex) Upsert(ctx context.Context, collection string, entries []index.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted[collection] = append(f.upserted[collection], entries...)
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, collection, query string, topK int, where map[string]string) ([]index.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	results := f.results[collection]
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (f *fakeIndex) Delete(ctx context.Context, collection string, where map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted[collection] = append(f.deleted[collection], where)
	return nil
}

func (f *fakeIndex) Ping(ctx context.Context) error {
	return nil
}

type fakeFeedbackStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*models.Feedback
}

func newFakeFeedbackStore() *fakeFeedbackStore {
	return &fakeFeedbackStore{entries: make(map[uuid.UUID]*models.Feedback)}
}

func (f *fakeFeedbackStore) Upsert(ctx context.Context, feedback *models.Feedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *feedback
	f.entries[feedback.ResponseID] = &copied
	return nil
}

func (f *fakeFeedbackStore) GetByResponseID(ctx context.Context, responseID uuid.UUID) (*models.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	feedback, ok := f.entries[responseID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *feedback
	return &copied, nil
}

type fakeAnalyticsStore struct {
	mu      sync.Mutex
	records []*models.QueryAnalytics
}

func (f *fakeAnalyticsStore) Insert(ctx context.Context, record *models.QueryAnalytics) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *record
	f.records = append(f.records, &copied)
	return nil
}
