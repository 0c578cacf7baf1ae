package service

import (
	"prepdeck/internal/config"
	"prepdeck/internal/model"
)

// PolicyService decides what the session does after each evaluated answer.
// Decide is a pure function of its context: the rules are checked in a fixed
// order and the first matching rule wins, so identical inputs always produce
// the identical decision.
type PolicyService struct {
	cfg *config.PolicyConfig
}

// NewPolicyService creates the policy engine.
func NewPolicyService(cfg *config.PolicyConfig) *PolicyService {
	if cfg == nil {
		cfg = config.DefaultPolicyConfig()
	}
	return &PolicyService{cfg: cfg}
}

// Decide maps an evaluation outcome to the next session action.
func (s *PolicyService) Decide(pctx *model.PolicyContext) *model.PolicyDecision {
	if pctx.QuestionsAsked >= s.cfg.MaxQuestions {
		return &model.PolicyDecision{
			Action: model.ActionEndSession,
			Reason: "question budget exhausted",
		}
	}

	if pctx.ConsecutiveLowScores >= s.cfg.LowScoreStreakLimit {
		return &model.PolicyDecision{
			Action: model.ActionEndSession,
			Reason: "sustained underperformance",
		}
	}

	if pctx.LastScore < s.cfg.LowScoreThreshold {
		if pctx.FollowUpDepth < s.cfg.MaxFollowUpDepth && len(pctx.MissingCorePoints) > 0 {
			return &model.PolicyDecision{
				Action:      model.ActionFollowUp,
				Reason:      "core points missing, probing deeper",
				FocusPoints: capPoints(pctx.MissingCorePoints, s.cfg.FocusPointCap),
			}
		}
		if pctx.FollowUpDepth >= s.cfg.MaxFollowUpDepth {
			return &model.PolicyDecision{
				Action: model.ActionDecreaseDifficulty,
				Reason: "follow-ups exhausted without recovery",
			}
		}
	}

	if pctx.LastScore >= s.cfg.HighScoreThreshold && pctx.Difficulty != model.DifficultyHard {
		return &model.PolicyDecision{
			Action: model.ActionIncreaseDifficulty,
			Reason: "strong answer, raising the bar",
		}
	}

	return &model.PolicyDecision{
		Action: model.ActionNextQuestion,
		Reason: "steady progress",
	}
}

func capPoints(points []string, limit int) []string {
	if len(points) <= limit {
		return points
	}
	return points[:limit]
}
