package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"

	"prepdeck/internal/apperrors"
	"prepdeck/internal/model"
	"prepdeck/internal/repository"
)

// SelectionCriteria narrows the question bank for one pick.
type SelectionCriteria struct {
	SessionID     string
	Domain        string
	Difficulty    model.Difficulty
	ExcludeIDs    []string
	CurrentTopic  string
	WeakTopics    []string
	QuestionCount int
}

// SelectorService picks the next question from the bank. Candidates are
// ranked in tiers (same topic as the current question, then weak topics,
// then the rest) and the pick within the winning tier is pseudo-random but
// seeded from the session, so replaying a session yields the same questions.
type SelectorService struct {
	questions repository.QuestionRepo
}

// NewSelectorService creates the selector.
func NewSelectorService(questions repository.QuestionRepo) *SelectorService {
	return &SelectorService{questions: questions}
}

// Select returns one eligible question, or NO_ELIGIBLE_QUESTIONS when the
// criteria exclude the whole bank.
func (s *SelectorService) Select(ctx context.Context, criteria *SelectionCriteria) (*model.Question, error) {
	candidates, err := s.questions.FindByCriteria(ctx, criteria.Domain, criteria.Difficulty, criteria.ExcludeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, apperrors.NewNoEligibleQuestions(
			fmt.Sprintf("no unasked %s questions left in domain %q", criteria.Difficulty, criteria.Domain))
	}

	tier := bestTier(candidates, criteria)

	// Stable order before the seeded pick, so the same state always
	// selects the same question regardless of store iteration order.
	sort.Slice(tier, func(i, j int) bool { return tier[i].ID < tier[j].ID })

	rng := rand.New(rand.NewSource(selectionSeed(criteria.SessionID, criteria.QuestionCount)))
	return tier[rng.Intn(len(tier))], nil
}

func bestTier(candidates []*model.Question, criteria *SelectionCriteria) []*model.Question {
	weak := make(map[string]bool, len(criteria.WeakTopics))
	for _, t := range criteria.WeakTopics {
		weak[t] = true
	}

	var sameTopic, weakTopic, rest []*model.Question
	for _, q := range candidates {
		switch {
		case criteria.CurrentTopic != "" && q.Topic == criteria.CurrentTopic:
			sameTopic = append(sameTopic, q)
		case weak[q.Topic]:
			weakTopic = append(weakTopic, q)
		default:
			rest = append(rest, q)
		}
	}

	if len(sameTopic) > 0 {
		return sameTopic
	}
	if len(weakTopic) > 0 {
		return weakTopic
	}
	return rest
}

func selectionSeed(sessionID string, questionCount int) int64 {
	h := fnv.New64a()
	h.Write([]byte(sessionID))
	return int64(h.Sum64()) + int64(questionCount)
}
