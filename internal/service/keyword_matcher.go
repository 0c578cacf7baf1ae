package service

import (
	"context"
	"strings"

	"prepdeck/internal/model"
)

// KeywordMatcher is the deterministic fallback capability. A phrase counts
// as covered when at least half of its significant tokens appear in the
// answer; confidence scales with the overlap ratio.
type KeywordMatcher struct{}

// NewKeywordMatcher creates the fallback matcher.
func NewKeywordMatcher() *KeywordMatcher {
	return &KeywordMatcher{}
}

func (m *KeywordMatcher) Match(ctx context.Context, req *MatchRequest) (*MatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	answerTokens := make(map[string]bool)
	for _, tok := range model.Tokenize(req.AnswerText) {
		answerTokens[tok] = true
	}
	answerLower := strings.ToLower(req.AnswerText)

	judge := func(phrases []string) []PhraseVerdict {
		verdicts := make([]PhraseVerdict, 0, len(phrases))
		for _, phrase := range phrases {
			verdicts = append(verdicts, judgePhrase(phrase, answerTokens, answerLower))
		}
		return verdicts
	}

	return &MatchResult{
		MustHave:   judge(req.MustHave),
		GoodToHave: judge(req.GoodToHave),
		RedFlags:   judge(req.RedFlags),
	}, nil
}

func judgePhrase(phrase string, answerTokens map[string]bool, answerLower string) PhraseVerdict {
	tokens := model.Tokenize(phrase)
	if len(tokens) == 0 {
		// Phrase of stop words only; fall back to substring presence.
		covered := strings.Contains(answerLower, strings.ToLower(strings.TrimSpace(phrase)))
		confidence := 0.4
		if covered {
			confidence = 0.6
		}
		return PhraseVerdict{Phrase: phrase, Covered: covered, Confidence: confidence}
	}

	matched := 0
	for _, tok := range tokens {
		if answerTokens[tok] {
			matched++
		}
	}
	ratio := float64(matched) / float64(len(tokens))
	covered := ratio >= 0.5

	// Confidence grows with overlap but stays below the generative
	// matcher's ceiling.
	confidence := 0.35 + 0.55*ratio
	if !covered {
		confidence = 0.35 + 0.55*(1-ratio)
	}
	if confidence > 0.9 {
		confidence = 0.9
	}
	return PhraseVerdict{Phrase: phrase, Covered: covered, Confidence: confidence}
}
