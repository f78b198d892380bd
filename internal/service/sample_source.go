package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"adaptive-quiz/internal/domain"
)

const (
	maxKeyTerms    = 10
	defaultSubject = "General"
	fallbackTerm   = "concept"
)

var (
	wordPattern = regexp.MustCompile(`\b[a-zA-Z]{3,}\b`)

	stopWords = map[string]struct{}{
		"the": {}, "and": {}, "but": {}, "for": {}, "with": {}, "are": {}, "was": {}, "were": {},
		"been": {}, "being": {}, "have": {}, "has": {}, "had": {}, "does": {}, "did": {},
		"will": {}, "would": {}, "could": {}, "should": {}, "this": {}, "that": {}, "from": {},
	}
)

// SampleSource builds questions from the key terms of a text without any
// external service. Apart from ids and timestamps its output depends only
// on its input.
type SampleSource struct{}

func NewSampleSource() *SampleSource {
	return &SampleSource{}
}

func (s *SampleSource) Generate(_ context.Context, text string, cfg domain.SourceConfig) ([]*domain.Question, error) {
	subject := strings.TrimSpace(cfg.Subject)
	if subject == "" {
		subject = defaultSubject
	}
	count := cfg.QuestionCount
	if count <= 0 {
		return nil, nil
	}

	terms := extractKeyTerms(text)
	if len(terms) == 0 {
		terms = []string{fallbackTerm}
	}

	questions := make([]*domain.Question, 0, count)
	for i := 0; i < count; i++ {
		term := terms[i%len(terms)]
		topic := titleCase(term)
		if len(cfg.Topics) > 0 {
			topic = cfg.Topics[i%len(cfg.Topics)]
		}

		var q *domain.Question
		if i%2 == 0 {
			options := []string{
				fmt.Sprintf("It is fundamental to understanding %s", subject),
				fmt.Sprintf("It has no relevance to %s", subject),
				fmt.Sprintf("It only applies in advanced %s", subject),
				fmt.Sprintf("It is outdated in modern %s", subject),
			}
			correct := options[0]
			if cfg.RandomizeOptions {
				options = rotate(options, i/2)
			}
			q = domain.NewQuestion(subject, topic, pickDifficulty(cfg.DifficultyLevels, i, domain.Intermediate),
				domain.MultipleChoice,
				fmt.Sprintf("What is the significance of %s in the context of %s? (#%d)", term, subject, i+1),
				options, correct,
				fmt.Sprintf("The term %s is significant in %s based on the provided text.", term, subject))
		} else {
			q = domain.NewQuestion(subject, topic, pickDifficulty(cfg.DifficultyLevels, i, domain.Beginner),
				domain.TrueFalse,
				fmt.Sprintf("%s is a fundamental concept in %s. (#%d)", titleCase(term), subject, i+1),
				nil, "true",
				fmt.Sprintf("Based on the provided text, %s is relevant to %s.", term, subject))
		}
		q.AIGenerated = true
		questions = append(questions, q)
	}
	return questions, nil
}

func extractKeyTerms(text string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
		if len(terms) == maxKeyTerms {
			break
		}
	}
	return terms
}

func pickDifficulty(levels []domain.Difficulty, i int, fallback domain.Difficulty) domain.Difficulty {
	if len(levels) == 0 {
		return fallback
	}
	return levels[i%len(levels)]
}

func rotate(in []string, n int) []string {
	out := make([]string, len(in))
	for i := range in {
		out[i] = in[(i+n)%len(in)]
	}
	return out
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
