package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"prepdeck/internal/apperrors"
	"prepdeck/internal/config"
	"prepdeck/internal/model"
)

// EvaluatorService scores one answer against one rubric. The semantic
// matching step runs against the primary (generative) capability with a
// timeout; any failure there is retried once against the deterministic
// fallback. Only when both fail does evaluation surface an error; a failed
// evaluation is never silently zero-scored.
type EvaluatorService struct {
	primary  Matcher // may be nil when no generative capability is configured
	fallback Matcher
	scoring  *config.ScoringConfig
	timeout  time.Duration
	logger   *zap.Logger
}

// NewEvaluatorService creates an evaluator. fallback must not be nil.
func NewEvaluatorService(primary, fallback Matcher, scoring *config.ScoringConfig, timeout time.Duration, logger *zap.Logger) *EvaluatorService {
	if scoring == nil {
		scoring = config.DefaultScoringConfig()
	}
	return &EvaluatorService{
		primary:  primary,
		fallback: fallback,
		scoring:  scoring,
		timeout:  timeout,
		logger:   logger,
	}
}

// Evaluate scores answerText against the rubric. auxiliaryText is an
// optional pre-rendered description of a non-text artifact (e.g. a
// whiteboard diagram) and is concatenated before analysis. An empty answer
// is a zero-coverage answer, not an error; a missing rubric is.
func (s *EvaluatorService) Evaluate(ctx context.Context, answerText string, rubric *model.Rubric, auxiliaryText string) (*model.EvaluationResult, error) {
	if rubric == nil {
		return nil, apperrors.NewConfiguration("no rubric available for evaluation")
	}
	if err := rubric.Validate(); err != nil {
		return nil, err
	}

	text := answerText
	if auxiliaryText != "" {
		text = strings.TrimSpace(answerText + "\n" + auxiliaryText)
	}

	match, err := s.match(ctx, &MatchRequest{
		AnswerText: text,
		MustHave:   rubric.MustHave,
		GoodToHave: rubric.GoodToHave,
		RedFlags:   rubric.RedFlags,
	})
	if err != nil {
		return nil, err
	}

	return s.score(rubric, match), nil
}

// match tries the primary capability under its own deadline, then the
// fallback. Errors from the primary are recovered locally; errors from the
// fallback surface with the taxonomy tag.
func (s *EvaluatorService) match(ctx context.Context, req *MatchRequest) (*MatchResult, error) {
	if s.primary != nil {
		mctx, cancel := context.WithTimeout(ctx, s.timeout)
		result, err := s.primary.Match(mctx, req)
		cancel()
		if err == nil {
			return result, nil
		}
		s.logger.Warn("primary matcher failed, retrying with fallback", zap.Error(err))
	}

	result, err := s.fallback.Match(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewEvaluationTimeout(err)
		}
		return nil, apperrors.NewEvaluationUnavailable(err)
	}
	return result, nil
}

func (s *EvaluatorService) score(rubric *model.Rubric, match *MatchResult) *model.EvaluationResult {
	var covered, missing, coveredGood, wrongClaims []string
	var confidences []float64

	for _, v := range match.MustHave {
		confidences = append(confidences, v.Confidence)
		if v.Covered {
			covered = append(covered, v.Phrase)
		} else {
			missing = append(missing, v.Phrase)
		}
	}
	for _, v := range match.GoodToHave {
		confidences = append(confidences, v.Confidence)
		if v.Covered {
			coveredGood = append(coveredGood, v.Phrase)
		}
	}
	for _, v := range match.RedFlags {
		confidences = append(confidences, v.Confidence)
		if v.Covered {
			wrongClaims = append(wrongClaims, v.Phrase)
		}
	}

	mustScore := float64(len(covered)) / float64(len(rubric.MustHave)) * s.scoring.MustWeight
	bonusScore := math.Min(float64(len(coveredGood))*s.scoring.BonusPerPoint, s.scoring.BonusCap)
	penalty := float64(len(wrongClaims)) * s.scoring.PenaltyPerFlag

	raw := mustScore + bonusScore - penalty
	if raw < 0 {
		raw = 0
	}
	if raw > 10 {
		raw = 10
	}
	score := math.Round(raw*10) / 10

	return &model.EvaluationResult{
		Score:       score,
		Grade:       model.GradeForScore(score),
		Covered:     covered,
		CoveredGood: coveredGood,
		Missing:     missing,
		WrongClaims: wrongClaims,
		Confidence:  mean(confidences),
		Breakdown: model.ScoreBreakdown{
			MustScore:  mustScore,
			BonusScore: bonusScore,
			Penalty:    penalty,
			RawScore:   raw,
		},
		Coverage:      float64(len(covered)) / float64(len(rubric.MustHave)),
		Feedback:      buildFeedback(covered, missing, wrongClaims),
		NeedsFollowUp: len(missing) > 0 && score < s.scoring.FollowUpScoreThreshold,
		CreatedAt:     time.Now(),
	}
}

// buildFeedback synthesizes a short deterministic summary: affirmation,
// then up to three missing points, then any wrong claims.
func buildFeedback(covered, missing, wrongClaims []string) string {
	var parts []string

	if len(covered) > 0 {
		parts = append(parts, "You covered "+joinPhrases(covered, 3)+" well.")
	} else {
		parts = append(parts, "The answer did not address the core points of this question.")
	}
	if len(missing) > 0 {
		parts = append(parts, "Make sure to also discuss "+joinPhrases(missing, 3)+".")
	}
	if len(wrongClaims) > 0 {
		parts = append(parts, "Careful: the answer suggests a misconception around "+joinPhrases(wrongClaims, 3)+".")
	}

	return strings.Join(parts, " ")
}

func joinPhrases(phrases []string, limit int) string {
	if len(phrases) > limit {
		phrases = phrases[:limit]
	}
	switch len(phrases) {
	case 0:
		return ""
	case 1:
		return phrases[0]
	case 2:
		return phrases[0] + " and " + phrases[1]
	default:
		return strings.Join(phrases[:len(phrases)-1], ", ") + " and " + phrases[len(phrases)-1]
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
