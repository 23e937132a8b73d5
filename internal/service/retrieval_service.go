package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"campuschat/internal/index"
	"campuschat/internal/models"
	"campuschat/pkg/config"

	"go.uber.org/zap"
)

// RetrievedChunk is one knowledge base fragment scored against a question.
type RetrievedChunk struct {
	DocumentID string
	Title      string
	Text       string
	Relevance  float64 // 0-100
	IngestedAt string  // RFC3339, tie-break only
}

type RetrievalService struct {
	index  index.Adapter
	config *config.RetrievalConfig
	logger *zap.Logger
}

func NewRetrievalService(idx index.Adapter, cfg *config.RetrievalConfig, logger *zap.Logger) *RetrievalService {
	return &RetrievalService{
		index:  idx,
		config: cfg,
		logger: logger,
	}
}

// domainKeywords mark a question as being about the university. The lists
// mix all three languages on purpose; users code-switch constantly.
var domainKeywords = []string{
	"universitet", "университет", "university",
	"qabul", "поступление", "admission", "abituriyent", "абитуриент",
	"fakultet", "факультет", "faculty", "kafedra", "кафедра",
	"talaba", "студент", "student", "o'qish", "обучение", "study",
	"kontrakt", "контракт", "contract", "stipendiya", "стипендия", "scholarship",
	"imtihon", "экзамен", "exam", "test", "dars", "занятие", "lesson",
	"diplom", "диплом", "diploma", "magistratura", "магистратура", "master",
	"bakalavr", "бакалавр", "bachelor", "yotoqxona", "общежитие", "dormitory",
	"grant", "грант", "hujjat", "документ", "document",
	"semestr", "семестр", "semester", "kurs", "курс", "course",
	"o'qituvchi", "преподаватель", "teacher", "rektor", "ректор", "dekan", "декан",
	"kampus", "кампус", "campus", "kutubxona", "библиотека", "library",
}

// blockedTopics are always refused regardless of wording.
var blockedTopics = []string{
	"siyosat", "политика", "politics", "saylov", "выборы", "election",
	"din ", "религия", "religion",
	"qimor", "казино", "casino", "stavka", "ставки", "betting",
	"giyohvand", "наркотик", "drugs",
}

// InDomain decides whether a question is about the university at all.
// Short questions pass through so follow-ups like "а сколько стоит?" keep
// working inside a session.
func (s *RetrievalService) InDomain(question string) bool {
	q := " " + strings.ToLower(question) + " "

	for _, topic := range blockedTopics {
		if strings.Contains(q, topic) {
			return false
		}
	}
	for _, keyword := range domainKeywords {
		if strings.Contains(q, keyword) {
			return true
		}
	}

	return len(strings.Fields(question)) <= 6
}

// Retrieve finds chunks relevant to the question in the requested language.
// Only chunks at or above the configured relevance threshold survive.
func (s *RetrievalService) Retrieve(ctx context.Context, question, language string) ([]RetrievedChunk, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	results, err := s.index.Search(ctx, index.CollectionChunks, question, s.config.TopK, map[string]string{"lang": language})
	if err != nil {
		// A slow index degrades to an ungrounded answer, not a failure.
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("Knowledge search timed out", zap.String("language", language))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to search knowledge base: %w", err)
	}

	var chunks []RetrievedChunk
	for _, result := range results {
		relevance := result.Similarity * 100
		if relevance < s.config.MinRelevance {
			continue
		}
		chunks = append(chunks, RetrievedChunk{
			DocumentID: result.Metadata["document_id"],
			Title:      result.Metadata["title"],
			Text:       result.Text,
			Relevance:  relevance,
			IngestedAt: result.Metadata["ingested_at"],
		})
	}

	// Equal relevance resolves in favor of the freshest document. RFC3339
	// timestamps compare correctly as strings.
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Relevance != chunks[j].Relevance {
			return chunks[i].Relevance > chunks[j].Relevance
		}
		return chunks[i].IngestedAt > chunks[j].IngestedAt
	})

	s.logger.Debug("Knowledge search completed",
		zap.String("language", language),
		zap.Int("candidates", len(results)),
		zap.Int("kept", len(chunks)),
	)

	return chunks, nil
}

// BuildContext renders retrieved chunks into the prompt context block.
func (s *RetrievalService) BuildContext(chunks []RetrievedChunk) string {
	var b strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s\n%s", i+1, chunk.Title, chunk.Text)
	}
	return b.String()
}

// Sources converts retrieved chunks to answer source attributions, one per
// document, keeping the best relevance when several chunks share a source.
func (s *RetrievalService) Sources(chunks []RetrievedChunk) []models.Source {
	seen := make(map[string]int)
	var sources []models.Source
	for _, chunk := range chunks {
		if idx, ok := seen[chunk.DocumentID]; ok {
			if chunk.Relevance > sources[idx].Relevance {
				sources[idx].Relevance = chunk.Relevance
			}
			continue
		}
		seen[chunk.DocumentID] = len(sources)
		sources = append(sources, models.Source{
			Title:     chunk.Title,
			Relevance: chunk.Relevance,
			Type:      "document",
		})
	}
	return sources
}

// Confidence is the top source relevance scaled to 0-1, zero without sources.
func (s *RetrievalService) Confidence(chunks []RetrievedChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	return chunks[0].Relevance / 100
}
