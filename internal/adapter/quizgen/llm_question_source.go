package quizgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"adaptive-quiz/internal/domain"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"
)

const generationPrompt = `You are an expert quiz generator. Create %d quiz questions about the subject %q from the text below.

Respond with ONLY a JSON array. Each element must look like:
{
  "topic": "short topic name",
  "difficulty": "beginner" | "intermediate" | "advanced" | "expert",
  "type": "multiple_choice" | "true_false" | "short_answer",
  "prompt": "the question text",
  "options": ["only", "for", "multiple", "choice"],
  "correct_answer": "for multiple choice, the exact text of one option; for true_false, true or false",
  "explanation": "one or two sentences"
}
%s
Text:
%s`

// LLMQuestionSource generates questions with a language model.
type LLMQuestionSource struct {
	model       llms.Model
	logger      *zap.Logger
	temperature float64
}

// NewLLMQuestionSource creates a new instance of LLMQuestionSource.
func NewLLMQuestionSource(model llms.Model, logger *zap.Logger) (*LLMQuestionSource, error) {
	if model == nil {
		return nil, errors.New("language model cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMQuestionSource{model: model, logger: logger, temperature: 0.2}, nil
}

type generatedQuestion struct {
	Topic         string   `json:"topic"`
	Difficulty    string   `json:"difficulty"`
	Type          string   `json:"type"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// Generate asks the model for questions. Entries that do not form a valid
// question are skipped, so the result may be shorter than requested.
func (s *LLMQuestionSource) Generate(ctx context.Context, text string, cfg domain.SourceConfig) ([]*domain.Question, error) {
	if cfg.QuestionCount <= 0 {
		return nil, nil
	}
	subject := strings.TrimSpace(cfg.Subject)
	if subject == "" {
		subject = "General"
	}

	prompt := fmt.Sprintf(generationPrompt, cfg.QuestionCount, subject, constraints(cfg), text)
	s.logger.Debug("Requesting questions from model", zap.Int("count", cfg.QuestionCount), zap.String("subject", subject))

	raw, err := llms.GenerateFromSinglePrompt(ctx, s.model, prompt, llms.WithTemperature(s.temperature))
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	body, err := extractJSONArray(raw)
	if err != nil {
		s.logger.Error("Model response has no JSON array", zap.String("response", truncate(raw, 200)))
		return nil, err
	}
	var entries []generatedQuestion
	if err := json.Unmarshal([]byte(body), &entries); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}

	questions := make([]*domain.Question, 0, len(entries))
	for i, e := range entries {
		q, err := e.toQuestion(subject, cfg)
		if err != nil {
			s.logger.Warn("Skipping invalid generated question", zap.Int("position", i), zap.Error(err))
			continue
		}
		questions = append(questions, q)
		if len(questions) == cfg.QuestionCount {
			break
		}
	}
	s.logger.Info("Generated questions", zap.Int("requested", cfg.QuestionCount), zap.Int("accepted", len(questions)))
	return questions, nil
}

func constraints(cfg domain.SourceConfig) string {
	var b strings.Builder
	if len(cfg.Topics) > 0 {
		fmt.Fprintf(&b, "Use only these topics: %s.\n", strings.Join(cfg.Topics, ", "))
	}
	if len(cfg.DifficultyLevels) > 0 {
		levels := make([]string, len(cfg.DifficultyLevels))
		for i, d := range cfg.DifficultyLevels {
			levels[i] = string(d)
		}
		fmt.Fprintf(&b, "Use only these difficulties: %s.\n", strings.Join(levels, ", "))
	}
	return b.String()
}

func (e generatedQuestion) toQuestion(subject string, cfg domain.SourceConfig) (*domain.Question, error) {
	difficulty, err := domain.ParseDifficulty(e.Difficulty)
	if err != nil {
		return nil, err
	}
	topic := strings.TrimSpace(e.Topic)
	if topic == "" && len(cfg.Topics) > 0 {
		topic = cfg.Topics[0]
	}
	qtype := domain.QuestionType(strings.ToLower(strings.TrimSpace(e.Type)))
	var options []string
	if qtype == domain.MultipleChoice {
		options = e.Options
	}

	q := domain.NewQuestion(subject, topic, difficulty, qtype, strings.TrimSpace(e.Prompt),
		options, strings.TrimSpace(e.CorrectAnswer), strings.TrimSpace(e.Explanation))
	q.AIGenerated = true
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

// extractJSONArray drops any <think> block and returns the outermost array.
func extractJSONArray(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if start := strings.Index(s, "<think>"); start != -1 {
		if end := strings.Index(s, "</think>"); end > start {
			s = s[:start] + s[end+len("</think>"):]
		}
	}
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start == -1 || end <= start {
		return "", errors.New("no JSON array found in model response")
	}
	return s[start : end+1], nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ domain.QuestionSource = (*LLMQuestionSource)(nil)

// NewOllamaQuestionSource connects to an Ollama server.
func NewOllamaQuestionSource(server, model string, timeout time.Duration, logger *zap.Logger) (*LLMQuestionSource, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(server),
		ollama.WithModel(model),
		ollama.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return NewLLMQuestionSource(llm, logger)
}
