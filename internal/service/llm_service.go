package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"campuschat/pkg/config"

	"go.uber.org/zap"
)

// LLMService wraps the Ollama HTTP API for answer generation. Embeddings go
// through the vector index, not through here.
type LLMService struct {
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

func NewLLMService(cfg *config.OllamaConfig, logger *zap.Logger) *LLMService {
	return &LLMService{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		timeout: cfg.GenerationTimeout,
		httpClient: &http.Client{
			Timeout: cfg.GenerationTimeout + 10*time.Second,
		},
		logger: logger,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate produces a complete answer in one call.
func (s *LLMService) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.post(ctx, generateRequest{Model: s.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode generation response: %w", err)
	}

	answer := strings.TrimSpace(parsed.Response)
	if answer == "" {
		return "", fmt.Errorf("model returned an empty answer")
	}
	return answer, nil
}

// GenerateStream produces the answer token by token, invoking emit for each
// fragment. Stops early when ctx is cancelled or emit returns an error; the
// text emitted so far is returned either way.
func (s *LLMService) GenerateStream(ctx context.Context, prompt string, emit func(chunk string) error) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.post(ctx, generateRequest{Model: s.model, Prompt: prompt, Stream: true})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var part generateResponse
		if err := json.Unmarshal(line, &part); err != nil {
			return full.String(), fmt.Errorf("failed to decode stream line: %w", err)
		}

		if part.Response != "" {
			full.WriteString(part.Response)
			if err := emit(part.Response); err != nil {
				return full.String(), err
			}
		}
		if part.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("generation stream broke: %w", err)
	}

	return full.String(), nil
}

func (s *LLMService) post(ctx context.Context, payload generateRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", ErrModelUnavailable, resp.StatusCode)
	}
	return resp, nil
}

// Ping checks that the Ollama server answers at all.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrModelUnavailable, resp.StatusCode)
	}
	return nil
}

var promptTemplates = map[string]string{
	"uz": `Siz universitet haqida savollarga javob beradigan yordamchisiz. Faqat quyidagi kontekstdagi ma'lumotlarga tayaning. Kontekstda javob bo'lmasa, bilmasligingizni ayting va qabulxonaga murojaat qilishni tavsiya eting. Javobni o'zbek tilida yozing.

KONTEKST:
%s
%s
SAVOL: %s

JAVOB:`,
	"ru": `Вы помощник, отвечающий на вопросы об университете. Опирайтесь только на сведения из контекста ниже. Если в контексте нет ответа, честно скажите об этом и посоветуйте обратиться в приёмную комиссию. Отвечайте по-русски.

КОНТЕКСТ:
%s
%s
ВОПРОС: %s

ОТВЕТ:`,
	"en": `You are an assistant answering questions about the university. Rely only on the information in the context below. If the context does not contain the answer, say so honestly and suggest contacting the admissions office. Answer in English.

CONTEXT:
%s
%s
QUESTION: %s

ANSWER:`,
}

var historyHeaders = map[string]string{
	"uz": "OLDINGI SUHBAT:",
	"ru": "ПРЕДЫДУЩИЙ ДИАЛОГ:",
	"en": "PREVIOUS CONVERSATION:",
}

// BuildPrompt assembles the grounded generation prompt. History may be
// empty; context never is on this code path.
func (s *LLMService) BuildPrompt(language, contextText, history, question string) string {
	tpl, ok := promptTemplates[language]
	if !ok {
		tpl = promptTemplates["uz"]
	}

	historyBlock := ""
	if history != "" {
		historyBlock = "\n" + historyHeaders[language] + "\n" + history + "\n"
	}

	return fmt.Sprintf(tpl, contextText, historyBlock, question)
}

var fallbackMessages = map[string]string{
	"uz": "Kechirasiz, hozircha bu savolga javob bera olmayman. Iltimos, birozdan so'ng qayta urinib ko'ring yoki qabulxonaga murojaat qiling.",
	"ru": "Извините, сейчас я не могу ответить на этот вопрос. Попробуйте позже или обратитесь в приёмную комиссию.",
	"en": "Sorry, I cannot answer this question right now. Please try again later or contact the admissions office.",
}

// FallbackMessage is the localized answer used when generation fails.
func (s *LLMService) FallbackMessage(language string) string {
	if msg, ok := fallbackMessages[language]; ok {
		return msg
	}
	return fallbackMessages["uz"]
}

var noContextMessages = map[string]string{
	"uz": "Kechirasiz, bu savol bo'yicha ma'lumot topa olmadim. Savolni boshqacha ifodalab ko'ring yoki qabulxonaga murojaat qiling.",
	"ru": "Извините, я не нашёл информации по этому вопросу. Попробуйте переформулировать вопрос или обратитесь в приёмную комиссию.",
	"en": "Sorry, I could not find any information on this question. Try rephrasing it or contact the admissions office.",
}

// NoContextMessage is the localized answer when retrieval finds nothing
// above the relevance threshold.
func (s *LLMService) NoContextMessage(language string) string {
	if msg, ok := noContextMessages[language]; ok {
		return msg
	}
	return noContextMessages["uz"]
}

var outOfDomainMessages = map[string]string{
	"uz": "Men faqat universitet, qabul va o'qish bo'yicha savollarga javob beraman. Universitet haqida nimani bilmoqchisiz?",
	"ru": "Я отвечаю только на вопросы об университете, поступлении и обучении. Что вы хотите узнать об университете?",
	"en": "I only answer questions about the university, admissions and studies. What would you like to know about the university?",
}

// OutOfDomainMessage is the localized refusal for off-topic questions.
func (s *LLMService) OutOfDomainMessage(language string) string {
	if msg, ok := outOfDomainMessages[language]; ok {
		return msg
	}
	return outOfDomainMessages["uz"]
}
