package model

import "time"

// Grade is the qualitative band derived from the numeric score.
type Grade string

const (
	GradeExcellent Grade = "Excellent"
	GradeGood      Grade = "Good"
	GradeFair      Grade = "Fair"
	GradePoor      Grade = "Poor"
)

// GradeForScore maps a score to its band. Boundaries are inclusive at the
// lower end of each band.
func GradeForScore(score float64) Grade {
	switch {
	case score >= 8:
		return GradeExcellent
	case score >= 6:
		return GradeGood
	case score >= 4:
		return GradeFair
	default:
		return GradePoor
	}
}

// ScoreBreakdown records how the score was assembled before clamping.
type ScoreBreakdown struct {
	MustScore  float64 `json:"mustScore" bson:"must_score"`
	BonusScore float64 `json:"bonusScore" bson:"bonus_score"`
	Penalty    float64 `json:"penalty" bson:"penalty"`
	RawScore   float64 `json:"rawScore" bson:"raw_score"`
}

// EvaluationResult is the outcome of scoring one answer against one rubric.
// Created fresh per submission and never mutated; the session's event log
// owns it, keyed by sessionId+seq.
type EvaluationResult struct {
	SessionID     string         `json:"sessionId" bson:"session_id"`
	Seq           int            `json:"seq" bson:"seq"`
	QuestionID    string         `json:"questionId" bson:"question_id"`
	Score         float64        `json:"score" bson:"score"`
	Grade         Grade          `json:"grade" bson:"grade"`
	Covered       []string       `json:"covered,omitempty" bson:"covered,omitempty"`
	CoveredGood   []string       `json:"coveredGood,omitempty" bson:"covered_good,omitempty"`
	Missing       []string       `json:"missing,omitempty" bson:"missing,omitempty"`
	WrongClaims   []string       `json:"wrongClaims,omitempty" bson:"wrong_claims,omitempty"`
	Confidence    float64        `json:"confidence" bson:"confidence"`
	Breakdown     ScoreBreakdown `json:"breakdown" bson:"breakdown"`
	Coverage      float64        `json:"coverage" bson:"coverage"`
	Feedback      string         `json:"feedback" bson:"feedback"`
	NeedsFollowUp bool           `json:"needsFollowUp" bson:"needs_follow_up"`
	CreatedAt     time.Time      `json:"createdAt" bson:"created_at"`
}
