package service

import "context"

// PhraseVerdict is the per-phrase outcome from a matching capability: did
// the answer cover the phrase, and how sure is the matcher.
type PhraseVerdict struct {
	Phrase     string  `json:"phrase"`
	Covered    bool    `json:"covered"`
	Confidence float64 `json:"confidence"` // in [0,1]
}

// MatchRequest carries one answer and the rubric phrases to check it
// against. For red flags "covered" means the answer asserts the
// misconception.
type MatchRequest struct {
	AnswerText string
	MustHave   []string
	GoodToHave []string
	RedFlags   []string
}

// MatchResult holds one verdict per requested phrase, in request order.
type MatchResult struct {
	MustHave   []PhraseVerdict
	GoodToHave []PhraseVerdict
	RedFlags   []PhraseVerdict
}

// Matcher is the pluggable semantic-matching capability. The generative
// implementation may fail or time out; the keyword implementation is
// deterministic and always available.
type Matcher interface {
	Match(ctx context.Context, req *MatchRequest) (*MatchResult, error)
}
