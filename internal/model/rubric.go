package model

import (
	"fmt"
	"strings"

	"prepdeck/internal/apperrors"
)

// Rubric bounds. A rubric outside these limits is rejected at construction
// time, not at evaluation time.
const (
	MinMustHave   = 3
	MaxMustHave   = 8
	MaxGoodToHave = 6
	MaxRedFlags   = 8
)

// Rubric is the immutable per-question scoring contract. mustHave phrases
// are mandatory for a correct answer, goodToHave earn bonus points, and
// redFlags describe misconceptions that cost points.
type Rubric struct {
	ID          string   `json:"id" bson:"_id,omitempty"`
	QuestionID  string   `json:"questionId" bson:"question_id"`
	MustHave    []string `json:"mustHave" bson:"must_have"`
	GoodToHave  []string `json:"goodToHave,omitempty" bson:"good_to_have,omitempty"`
	RedFlags    []string `json:"redFlags,omitempty" bson:"red_flags,omitempty"`
	IdealAnswer string   `json:"idealAnswer,omitempty" bson:"ideal_answer,omitempty"`
	Keywords    []string `json:"keywords,omitempty" bson:"keywords,omitempty"`
}

// NewRubric validates the phrase lists, derives the fallback keywords and
// returns an immutable rubric.
func NewRubric(questionID string, mustHave, goodToHave, redFlags []string, idealAnswer string) (*Rubric, error) {
	r := &Rubric{
		QuestionID:  questionID,
		MustHave:    mustHave,
		GoodToHave:  goodToHave,
		RedFlags:    redFlags,
		IdealAnswer: idealAnswer,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	r.Keywords = deriveKeywords(mustHave, goodToHave, redFlags)
	return r, nil
}

// Validate checks the rubric invariants.
func (r *Rubric) Validate() error {
	if len(r.MustHave) < MinMustHave || len(r.MustHave) > MaxMustHave {
		return apperrors.NewConfiguration(fmt.Sprintf("rubric needs %d-%d mustHave phrases, got %d", MinMustHave, MaxMustHave, len(r.MustHave)))
	}
	if len(r.GoodToHave) > MaxGoodToHave {
		return apperrors.NewConfiguration(fmt.Sprintf("rubric allows at most %d goodToHave phrases, got %d", MaxGoodToHave, len(r.GoodToHave)))
	}
	if len(r.RedFlags) > MaxRedFlags {
		return apperrors.NewConfiguration(fmt.Sprintf("rubric allows at most %d redFlags, got %d", MaxRedFlags, len(r.RedFlags)))
	}
	for _, group := range [][]string{r.MustHave, r.GoodToHave, r.RedFlags} {
		for _, phrase := range group {
			if strings.TrimSpace(phrase) == "" {
				return apperrors.NewConfiguration("rubric phrases must be non-empty")
			}
		}
	}
	return nil
}

// deriveKeywords flattens every rubric phrase into a deduplicated list of
// lowercase tokens, used by the fallback keyword matcher.
func deriveKeywords(groups ...[]string) []string {
	seen := make(map[string]bool)
	var keywords []string
	for _, group := range groups {
		for _, phrase := range group {
			for _, tok := range Tokenize(phrase) {
				if !seen[tok] {
					seen[tok] = true
					keywords = append(keywords, tok)
				}
			}
		}
	}
	return keywords
}

// Tokenize lowercases text and splits it into significant tokens (letters
// and digits only, short stop words removed).
func Tokenize(text string) []string {
	var tokens []string
	for _, raw := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(raw) <= 2 || stopWords[raw] {
			continue
		}
		tokens = append(tokens, raw)
	}
	return tokens
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "are": true, "from": true, "into": true, "when": true,
	"what": true, "how": true, "why": true, "its": true, "your": true,
	"use": true, "uses": true, "using": true, "can": true, "should": true,
}
