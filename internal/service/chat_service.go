package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"campuschat/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CorrectionMatcher interface {
	Match(ctx context.Context, question, language string) (*models.ManualCorrection, error)
}

type FeedbackStore interface {
	Upsert(ctx context.Context, feedback *models.Feedback) error
	GetByResponseID(ctx context.Context, responseID uuid.UUID) (*models.Feedback, error)
}

type AnalyticsStore interface {
	Insert(ctx context.Context, record *models.QueryAnalytics) error
}

// AskResult is one complete answer. ResponseID identifies the stored turn
// and is what feedback refers to.
type AskResult struct {
	SessionID  uuid.UUID       `json:"session_id"`
	ResponseID uuid.UUID       `json:"response_id"`
	TurnNumber int             `json:"turn_number"`
	Answer     string          `json:"answer"`
	Language   string          `json:"language"`
	Sources    []models.Source `json:"sources,omitempty"`
	Confidence float64         `json:"confidence"`
	Cached     bool            `json:"cached"`
}

// StreamEvent is one NDJSON line of a streamed answer. Exactly one of the
// event kinds is populated per line: {session_id} when a new session was
// created, {chunk} per answer fragment, {done: true, ...} as the terminator,
// {error} on failure.
type StreamEvent struct {
	SessionID  string          `json:"session_id,omitempty"`
	Chunk      string          `json:"chunk,omitempty"`
	Done       bool            `json:"done,omitempty"`
	ResponseID string          `json:"response_id,omitempty"`
	Sources    []models.Source `json:"sources,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	Cached     bool            `json:"cached,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// ChatService orchestrates a question through the answer pipeline:
// greeting and domain gates, correction overrides, response cache,
// retrieval and finally generation.
type ChatService struct {
	sessions    *SessionService
	retrieval   *RetrievalService
	corrections CorrectionMatcher
	cache       *CacheService
	llm         *LLMService
	feedback    FeedbackStore
	analytics   AnalyticsStore
	logger      *zap.Logger
}

func NewChatService(
	sessions *SessionService,
	retrieval *RetrievalService,
	corrections CorrectionMatcher,
	cache *CacheService,
	llm *LLMService,
	feedback FeedbackStore,
	analytics AnalyticsStore,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		sessions:    sessions,
		retrieval:   retrieval,
		corrections: corrections,
		cache:       cache,
		llm:         llm,
		feedback:    feedback,
		analytics:   analytics,
		logger:      logger,
	}
}

var greetings = map[string]bool{
	"salom": true, "assalomu alaykum": true, "salom alaykum": true,
	"привет": true, "здравствуйте": true, "добрый день": true, "добрый вечер": true,
	"hello": true, "hi": true, "hey": true, "good morning": true, "good afternoon": true,
}

var greetingReplies = map[string]string{
	"uz": "Salom! Men universitet bo'yicha savollarga javob beruvchi yordamchiman. Sizga qanday yordam bera olaman?",
	"ru": "Здравствуйте! Я помощник по вопросам об университете. Чем могу помочь?",
	"en": "Hello! I am the university assistant. How can I help you?",
}

func isGreeting(question string) bool {
	return greetings[strings.TrimRight(normalizeQuestion(question), "!.?")]
}

// Ask answers one question and records the turn.
func (s *ChatService) Ask(ctx context.Context, sessionID, userID, language, question string) (*AskResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if utf8.RuneCountInString(question) > MaxQuestionLen {
		return nil, ErrQuestionTooLong
	}

	session, _, err := s.sessions.Resolve(ctx, sessionID, userID, language)
	if err != nil {
		return nil, err
	}
	lang := resolveLanguage(language, question)

	started := time.Now()
	answer, err := s.answer(ctx, session, lang, question)
	if err != nil {
		return nil, err
	}

	turn, err := s.sessions.AppendTurn(ctx, session, question, answer.text, answer.metadata())
	if err != nil {
		return nil, err
	}
	s.record(ctx, session.ID, question, lang, started, answer)

	return &AskResult{
		SessionID:  session.ID,
		ResponseID: turn.ID,
		TurnNumber: turn.TurnNumber,
		Answer:     answer.text,
		Language:   lang,
		Sources:    answer.sources,
		Confidence: answer.confidence,
		Cached:     answer.cached,
	}, nil
}

// Stream answers a question chunk by chunk, emitting one event per NDJSON
// line. A cancelled ctx stops generation; whatever was already produced is
// still recorded as a partial turn.
func (s *ChatService) Stream(ctx context.Context, sessionID, userID, language, question string, emit func(StreamEvent) error) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return ErrEmptyQuestion
	}
	if utf8.RuneCountInString(question) > MaxQuestionLen {
		return ErrQuestionTooLong
	}

	session, created, err := s.sessions.Resolve(ctx, sessionID, userID, language)
	if err != nil {
		return err
	}
	lang := resolveLanguage(language, question)
	started := time.Now()

	// The session id is announced only when a new session was started; a
	// reused session is already known to the client.
	if created {
		if err := emit(StreamEvent{SessionID: session.ID.String()}); err != nil {
			return err
		}
	}

	// Short-circuit paths produce the whole answer at once.
	if answer, ok := s.shortCircuit(ctx, session, lang, question); ok {
		if err := emit(StreamEvent{Chunk: answer.text}); err != nil {
			return err
		}
		return s.finishStream(ctx, session, question, lang, started, answer, emit)
	}

	chunks, err := s.retrieval.Retrieve(ctx, question, lang)
	if err != nil {
		s.logger.Error("Retrieval failed", zap.Error(err))
		answer := &answerOutcome{text: s.llm.FallbackMessage(lang), failed: true}
		if err := emit(StreamEvent{Chunk: answer.text}); err != nil {
			return err
		}
		return s.finishStream(ctx, session, question, lang, started, answer, emit)
	}
	if len(chunks) == 0 {
		answer := &answerOutcome{text: s.llm.NoContextMessage(lang)}
		if err := emit(StreamEvent{Chunk: answer.text}); err != nil {
			return err
		}
		return s.finishStream(ctx, session, question, lang, started, answer, emit)
	}

	history, err := s.sessions.BuildContext(ctx, session)
	if err != nil {
		s.logger.Warn("Failed to build history", zap.Error(err))
	}
	prompt := s.llm.BuildPrompt(lang, s.retrieval.BuildContext(chunks), history, question)

	answer := &answerOutcome{
		sources:    s.retrieval.Sources(chunks),
		confidence: s.retrieval.Confidence(chunks),
	}

	text, genErr := s.llm.GenerateStream(ctx, prompt, func(fragment string) error {
		return emit(StreamEvent{Chunk: fragment})
	})
	answer.text = text

	switch {
	case genErr == nil:
		s.cache.Store(ctx, &models.CachedResponse{
			Fingerprint: Fingerprint(lang, question),
			Question:    question,
			Language:    lang,
			Answer:      text,
			Sources:     answer.sources,
			Confidence:  answer.confidence,
		})
	case errors.Is(genErr, context.Canceled) && text != "":
		answer.partial = true
	default:
		s.logger.Error("Generation failed", zap.Error(genErr))
		answer.failed = true
		if text == "" {
			answer.text = s.llm.FallbackMessage(lang)
			if err := emit(StreamEvent{Chunk: answer.text}); err != nil {
				return err
			}
		}
	}

	return s.finishStream(ctx, session, question, lang, started, answer, emit)
}

// SubmitFeedback records a rating for a stored answer.
func (s *ChatService) SubmitFeedback(ctx context.Context, responseID uuid.UUID, rating models.Rating, comment string) error {
	if rating != models.RatingPositive && rating != models.RatingNegative {
		return ErrInvalidRating
	}

	now := time.Now()
	return s.feedback.Upsert(ctx, &models.Feedback{
		ResponseID: responseID,
		Rating:     rating,
		Comment:    sanitizeUTF8(comment),
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func (s *ChatService) History(ctx context.Context, sessionID string, limit int) ([]*models.ConversationTurn, error) {
	return s.sessions.History(ctx, sessionID, limit)
}

func (s *ChatService) CloseSession(ctx context.Context, sessionID string) error {
	return s.sessions.Close(ctx, sessionID)
}

// answerOutcome carries an answer plus everything the turn record needs.
type answerOutcome struct {
	text       string
	sources    []models.Source
	confidence float64
	cached     bool
	failed     bool
	partial    bool
}

func (a *answerOutcome) metadata() models.TurnMetadata {
	return models.TurnMetadata{
		Sources:    a.sources,
		Confidence: a.confidence,
		Cached:     a.cached,
		Error:      a.failed,
		Partial:    a.partial,
	}
}

// shortCircuit handles the paths that never reach retrieval: greetings,
// off-topic questions, manual corrections and cache hits.
func (s *ChatService) shortCircuit(ctx context.Context, session *models.ChatSession, lang, question string) (*answerOutcome, bool) {
	if isGreeting(question) {
		return &answerOutcome{text: greetingReplies[lang], confidence: 1}, true
	}
	if !s.retrieval.InDomain(question) {
		return &answerOutcome{text: s.llm.OutOfDomainMessage(lang)}, true
	}

	correction, err := s.corrections.Match(ctx, question, lang)
	if err != nil {
		s.logger.Warn("Correction lookup failed", zap.Error(err))
	} else if correction != nil {
		return &answerOutcome{
			text:       correction.Answer,
			sources:    []models.Source{{Title: correction.Question, Relevance: 100, Type: "correction"}},
			confidence: 1,
		}, true
	}

	if cached, ok := s.cache.Lookup(ctx, Fingerprint(lang, question)); ok {
		return &answerOutcome{
			text:       cached.Answer,
			sources:    cached.Sources,
			confidence: cached.Confidence,
			cached:     true,
		}, true
	}

	return nil, false
}

// answer resolves the full non-streaming pipeline.
func (s *ChatService) answer(ctx context.Context, session *models.ChatSession, lang, question string) (*answerOutcome, error) {
	if outcome, ok := s.shortCircuit(ctx, session, lang, question); ok {
		return outcome, nil
	}

	fingerprint := Fingerprint(lang, question)
	var outcome *answerOutcome

	cached, fromCache, err := s.cache.GetOrGenerate(ctx, fingerprint, func() (*models.CachedResponse, error) {
		generated, err := s.generate(ctx, session, lang, question)
		if err != nil {
			return nil, err
		}
		outcome = generated
		return &models.CachedResponse{
			Fingerprint: fingerprint,
			Question:    question,
			Language:    lang,
			Answer:      generated.text,
			Sources:     generated.sources,
			Confidence:  generated.confidence,
		}, nil
	})
	if err != nil {
		if errors.Is(err, errNoContext) {
			return &answerOutcome{text: s.llm.NoContextMessage(lang)}, nil
		}
		// Degrade to the localized fallback rather than surfacing a 5xx.
		s.logger.Error("Answer generation failed", zap.Error(err))
		return &answerOutcome{text: s.llm.FallbackMessage(lang), failed: true}, nil
	}

	if outcome != nil && !fromCache {
		return outcome, nil
	}
	return &answerOutcome{
		text:       cached.Answer,
		sources:    cached.Sources,
		confidence: cached.Confidence,
		cached:     fromCache,
	}, nil
}

// errNoContext marks the no-relevant-knowledge path so it skips the cache.
var errNoContext = errors.New("no relevant context")

// generate is the retrieval-grounded generation path. A question with no
// relevant knowledge gets the localized no-context answer and is not
// cached.
func (s *ChatService) generate(ctx context.Context, session *models.ChatSession, lang, question string) (*answerOutcome, error) {
	chunks, err := s.retrieval.Retrieve(ctx, question, lang)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, errNoContext
	}

	history, err := s.sessions.BuildContext(ctx, session)
	if err != nil {
		s.logger.Warn("Failed to build history", zap.Error(err))
	}

	prompt := s.llm.BuildPrompt(lang, s.retrieval.BuildContext(chunks), history, question)
	text, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return &answerOutcome{
		text:       text,
		sources:    s.retrieval.Sources(chunks),
		confidence: s.retrieval.Confidence(chunks),
	}, nil
}

func (s *ChatService) finishStream(ctx context.Context, session *models.ChatSession, question, lang string, started time.Time, answer *answerOutcome, emit func(StreamEvent) error) error {
	// Persist with a fresh context so a dropped client still gets its turn
	// recorded.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	turn, err := s.sessions.AppendTurn(persistCtx, session, question, answer.text, answer.metadata())
	if err != nil {
		s.logger.Error("Failed to record streamed turn", zap.Error(err))
		return emit(StreamEvent{Error: "failed to record turn"})
	}
	s.record(persistCtx, session.ID, question, lang, started, answer)

	return emit(StreamEvent{
		Done:       true,
		ResponseID: turn.ID.String(),
		Sources:    answer.sources,
		Confidence: answer.confidence,
		Cached:     answer.cached,
	})
}

func (s *ChatService) record(ctx context.Context, sessionID uuid.UUID, question, lang string, started time.Time, answer *answerOutcome) {
	record := &models.QueryAnalytics{
		ID:             uuid.New(),
		SessionID:      sessionID,
		Query:          sanitizeUTF8(question),
		Language:       lang,
		ResponseTimeMs: time.Since(started).Milliseconds(),
		WasCached:      answer.cached,
		Confidence:     answer.confidence,
		SourcesFound:   len(answer.sources) > 0,
		ErrorOccurred:  answer.failed,
		CreatedAt:      time.Now(),
	}
	if err := s.analytics.Insert(ctx, record); err != nil {
		s.logger.Warn("Failed to record query analytics", zap.Error(err))
	}
}
