package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"campuschat/internal/index"
	"campuschat/internal/models"
	"campuschat/pkg/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOllama mimics the generate endpoint, counting calls.
type fakeOllama struct {
	server *httptest.Server
	calls  int64
	answer string
	fail   bool
}

func newFakeOllama(answer string) *fakeOllama {
	f := &fakeOllama{answer: answer}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if f.fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		atomic.AddInt64(&f.calls, 1)

		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		if req.Stream {
			// Two fragments then the done marker.
			half := len(f.answer) / 2
			fmt.Fprintf(w, `{"response":%q,"done":false}`+"\n", f.answer[:half])
			fmt.Fprintf(w, `{"response":%q,"done":false}`+"\n", f.answer[half:])
			fmt.Fprintln(w, `{"response":"","done":true}`)
			return
		}
		_ = json.NewEncoder(w).Encode(generateResponse{Response: f.answer, Done: true})
	}))
	return f
}

type fakeMatcher struct {
	correction *models.ManualCorrection
}

func (f *fakeMatcher) Match(ctx context.Context, question, language string) (*models.ManualCorrection, error) {
	return f.correction, nil
}

type chatFixture struct {
	chat      *ChatService
	ollama    *fakeOllama
	idx       *fakeIndex
	cacheSt   *fakeCacheStore
	matcher   *fakeMatcher
	analytics *fakeAnalyticsStore
	feedback  *fakeFeedbackStore
	sessions  *fakeSessionStore
}

func newChatFixture(t *testing.T, answer string) *chatFixture {
	t.Helper()

	ollama := newFakeOllama(answer)
	t.Cleanup(ollama.server.Close)

	idx := newFakeIndex()
	cacheStore := newFakeCacheStore()
	sessionStore := newFakeSessionStore()
	matcher := &fakeMatcher{}
	feedback := newFakeFeedbackStore()
	analytics := &fakeAnalyticsStore{}

	llm := NewLLMService(&config.OllamaConfig{
		BaseURL:           ollama.server.URL,
		Model:             "test-model",
		GenerationTimeout: 5 * time.Second,
	}, testLogger())

	chat := NewChatService(
		NewSessionService(sessionStore, &config.SessionConfig{ContextTurns: 3, TTL: time.Hour}, testLogger()),
		NewRetrievalService(idx, &config.RetrievalConfig{TopK: 5, MinRelevance: 60, Timeout: time.Second}, testLogger()),
		matcher,
		NewCacheService(cacheStore, time.Hour, testLogger()),
		llm,
		feedback,
		analytics,
		testLogger(),
	)

	return &chatFixture{
		chat:      chat,
		ollama:    ollama,
		idx:       idx,
		cacheSt:   cacheStore,
		matcher:   matcher,
		analytics: analytics,
		feedback:  feedback,
		sessions:  sessionStore,
	}
}

func (f *chatFixture) withKnowledge() {
	f.idx.results[index.CollectionChunks] = []index.Result{{
		ID:         "chunk-1",
		Text:       "Admission to the university starts on June 20 and lasts until August 15.",
		Similarity: 0.9,
		Metadata:   map[string]string{"document_id": "d1", "title": "Admission guide"},
	}}
}

const domainQuestion = "When does university admission start this year for bachelor students?"

func TestAskValidation(t *testing.T) {
	f := newChatFixture(t, "answer")
	ctx := context.Background()

	t.Run("empty question", func(t *testing.T) {
		_, err := f.chat.Ask(ctx, "", "", "en", "   ")
		assert.ErrorIs(t, err, ErrEmptyQuestion)
	})

	t.Run("too long question", func(t *testing.T) {
		_, err := f.chat.Ask(ctx, "", "", "en", strings.Repeat("a", MaxQuestionLen+1))
		assert.ErrorIs(t, err, ErrQuestionTooLong)
	})

}

func TestAskStaleSessionStartsFresh(t *testing.T) {
	f := newChatFixture(t, "answer")
	ctx := context.Background()

	t.Run("unknown id", func(t *testing.T) {
		stale := uuid.New()
		result, err := f.chat.Ask(ctx, stale.String(), "user-1", "en", "Hello")
		require.NoError(t, err)
		assert.NotEqual(t, stale, result.SessionID)
		assert.Equal(t, 1, result.TurnNumber)
	})

	t.Run("malformed id", func(t *testing.T) {
		result, err := f.chat.Ask(ctx, "not-a-uuid", "user-1", "en", "Hello")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, result.SessionID)
	})
}

func TestAskGreeting(t *testing.T) {
	f := newChatFixture(t, "never generated")

	result, err := f.chat.Ask(context.Background(), "", "user-1", "en", "Hello")
	require.NoError(t, err)

	assert.Equal(t, greetingReplies["en"], result.Answer)
	assert.Zero(t, atomic.LoadInt64(&f.ollama.calls))
	assert.NotEqual(t, uuid.Nil, result.ResponseID)
	assert.Equal(t, 1, result.TurnNumber)
}

func TestAskOutOfDomain(t *testing.T) {
	f := newChatFixture(t, "never generated")

	result, err := f.chat.Ask(context.Background(), "", "user-1", "en",
		"Please give me a detailed recipe for cooking plov with lamb and carrots at home tonight")
	require.NoError(t, err)

	assert.Equal(t, outOfDomainMessages["en"], result.Answer)
	assert.Zero(t, atomic.LoadInt64(&f.ollama.calls))
}

func TestAskCorrectionOverride(t *testing.T) {
	f := newChatFixture(t, "never generated")
	f.withKnowledge()
	f.matcher.correction = &models.ManualCorrection{
		Question: "When does admission start?",
		Answer:   "Admission starts on June 20.",
	}

	result, err := f.chat.Ask(context.Background(), "", "user-1", "en", domainQuestion)
	require.NoError(t, err)

	assert.Equal(t, "Admission starts on June 20.", result.Answer)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "correction", result.Sources[0].Type)
	assert.Zero(t, atomic.LoadInt64(&f.ollama.calls))
}

func TestAskGeneratesAndCaches(t *testing.T) {
	f := newChatFixture(t, "Admission starts on June 20 and runs through August 15.")
	f.withKnowledge()
	ctx := context.Background()

	first, err := f.chat.Ask(ctx, "", "user-1", "en", domainQuestion)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "Admission starts on June 20 and runs through August 15.", first.Answer)
	require.Len(t, first.Sources, 1)
	assert.Equal(t, "Admission guide", first.Sources[0].Title)
	assert.InDelta(t, 0.9, first.Confidence, 0.001)

	second, err := f.chat.Ask(ctx, "", "user-2", "en", domainQuestion)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, int64(1), atomic.LoadInt64(&f.ollama.calls))
}

func TestAskNoContext(t *testing.T) {
	f := newChatFixture(t, "never generated")

	result, err := f.chat.Ask(context.Background(), "", "user-1", "en", domainQuestion)
	require.NoError(t, err)

	assert.Equal(t, noContextMessages["en"], result.Answer)
	assert.Zero(t, atomic.LoadInt64(&f.ollama.calls))
	assert.Zero(t, f.cacheSt.puts, "no-context answers must not be cached")
}

func TestAskGenerationFailureFallsBack(t *testing.T) {
	f := newChatFixture(t, "ignored")
	f.withKnowledge()
	f.ollama.fail = true

	result, err := f.chat.Ask(context.Background(), "", "user-1", "en", domainQuestion)
	require.NoError(t, err)

	assert.Equal(t, fallbackMessages["en"], result.Answer)
	assert.Zero(t, f.cacheSt.puts)

	require.NotEmpty(t, f.analytics.records)
	assert.True(t, f.analytics.records[len(f.analytics.records)-1].ErrorOccurred)
}

func TestStream(t *testing.T) {
	f := newChatFixture(t, "Admission starts on June 20.")
	f.withKnowledge()

	var events []StreamEvent
	err := f.chat.Stream(context.Background(), "", "user-1", "en", domainQuestion, func(event StreamEvent) error {
		events = append(events, event)
		return nil
	})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(events), 3)
	assert.NotEmpty(t, events[0].SessionID, "a fresh session announces its id first")

	var answer strings.Builder
	for _, event := range events[1 : len(events)-1] {
		require.NotEmpty(t, event.Chunk)
		answer.WriteString(event.Chunk)
	}
	assert.Equal(t, "Admission starts on June 20.", answer.String())

	done := events[len(events)-1]
	assert.True(t, done.Done)
	assert.NotEmpty(t, done.ResponseID)
	require.Len(t, done.Sources, 1)

	// Streamed answers land in the cache too.
	assert.Equal(t, 1, f.cacheSt.puts)
}

func TestStreamReusedSessionOmitsSessionID(t *testing.T) {
	f := newChatFixture(t, "Admission starts on June 20.")
	f.withKnowledge()
	ctx := context.Background()

	opened, err := f.chat.Ask(ctx, "", "user-1", "en", "Hello")
	require.NoError(t, err)

	var events []StreamEvent
	err = f.chat.Stream(ctx, opened.SessionID.String(), "user-1", "en", domainQuestion, func(event StreamEvent) error {
		events = append(events, event)
		return nil
	})
	require.NoError(t, err)

	require.NotEmpty(t, events)
	for _, event := range events {
		assert.Empty(t, event.SessionID, "a reused session is already known to the client")
	}
	assert.True(t, events[len(events)-1].Done)
}

func TestStreamRecordsTurn(t *testing.T) {
	f := newChatFixture(t, "Short answer.")
	f.withKnowledge()

	var sessionID string
	err := f.chat.Stream(context.Background(), "", "user-1", "en", domainQuestion, func(event StreamEvent) error {
		if event.SessionID != "" {
			sessionID = event.SessionID
		}
		return nil
	})
	require.NoError(t, err)

	turns, err := f.chat.History(context.Background(), sessionID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, domainQuestion, turns[0].UserMessage)
	assert.Equal(t, "Short answer.", turns[0].BotResponse)
}

func TestSubmitFeedback(t *testing.T) {
	f := newChatFixture(t, "answer")

	result, err := f.chat.Ask(context.Background(), "", "user-1", "en", "Hello")
	require.NoError(t, err)

	t.Run("invalid rating", func(t *testing.T) {
		err := f.chat.SubmitFeedback(context.Background(), result.ResponseID, "meh", "")
		assert.ErrorIs(t, err, ErrInvalidRating)
	})

	t.Run("rating is upserted", func(t *testing.T) {
		require.NoError(t, f.chat.SubmitFeedback(context.Background(), result.ResponseID, models.RatingNegative, "wrong"))
		require.NoError(t, f.chat.SubmitFeedback(context.Background(), result.ResponseID, models.RatingPositive, "actually fine"))

		saved, err := f.feedback.GetByResponseID(context.Background(), result.ResponseID)
		require.NoError(t, err)
		assert.Equal(t, models.RatingPositive, saved.Rating)
		assert.Equal(t, "actually fine", saved.Comment)
	})
}

func TestCloseSession(t *testing.T) {
	f := newChatFixture(t, "answer")
	ctx := context.Background()

	result, err := f.chat.Ask(ctx, "", "user-1", "en", "Hello")
	require.NoError(t, err)

	require.NoError(t, f.chat.CloseSession(ctx, result.SessionID.String()))

	// A closed session id behaves like a stale one, the conversation restarts.
	next, err := f.chat.Ask(ctx, result.SessionID.String(), "user-1", "en", "Hi")
	require.NoError(t, err)
	assert.NotEqual(t, result.SessionID, next.SessionID)
	assert.Equal(t, 1, next.TurnNumber)
}
