package model

import "time"

// SessionStatus is a state of the session state machine.
type SessionStatus string

const (
	StatusSetup          SessionStatus = "SETUP"
	StatusActiveQuestion SessionStatus = "ACTIVE_QUESTION"
	StatusEvaluating     SessionStatus = "EVALUATING"
	StatusFeedback       SessionStatus = "FEEDBACK"
	StatusEnded          SessionStatus = "ENDED"
)

// SessionState is the full state of one interview attempt. Mutated
// exclusively by the session state machine, guarded by optimistic
// versioning in the store.
type SessionState struct {
	ID         string        `json:"id" bson:"_id"`
	UserID     string        `json:"userId" bson:"user_id"`
	Domain     string        `json:"domain" bson:"domain"`
	Mode       string        `json:"mode,omitempty" bson:"mode,omitempty"`
	Difficulty Difficulty    `json:"difficulty" bson:"difficulty"`
	Status     SessionStatus `json:"status" bson:"status"`

	QuestionCount        int    `json:"questionCount" bson:"question_count"`
	FollowUpDepth        int    `json:"followUpDepth" bson:"follow_up_depth"`
	ConsecutiveLowScores int    `json:"consecutiveLowScores" bson:"consecutive_low_scores"`
	CurrentTopic         string `json:"currentTopic,omitempty" bson:"current_topic,omitempty"`
	CurrentQuestionID    string `json:"currentQuestionId,omitempty" bson:"current_question_id,omitempty"`

	// FollowUpPrompt is the synthesized remedial prompt when the current
	// turn is a follow-up rather than a fresh bank question.
	FollowUpPrompt string `json:"followUpPrompt,omitempty" bson:"follow_up_prompt,omitempty"`

	AskedQuestionIDs []string          `json:"askedQuestionIds" bson:"asked_question_ids"`
	WeakTopics       []string          `json:"weakTopics,omitempty" bson:"weak_topics,omitempty"`
	HintsRevealed    int               `json:"hintsRevealed" bson:"hints_revealed"`
	LastEvaluation   *EvaluationResult `json:"lastEvaluation,omitempty" bson:"last_evaluation,omitempty"`

	Version       int64      `json:"version" bson:"version"`
	StartedAt     time.Time  `json:"startedAt" bson:"started_at"`
	UpdatedAt     time.Time  `json:"updatedAt" bson:"updated_at"`
	EndedAt       *time.Time `json:"endedAt,omitempty" bson:"ended_at,omitempty"`
	Abandoned     bool       `json:"abandoned" bson:"abandoned"`
	AbandonReason string     `json:"abandonReason,omitempty" bson:"abandon_reason,omitempty"`
}

// Ended reports whether the session reached its terminal state.
func (s *SessionState) Ended() bool {
	return s.Status == StatusEnded
}

// AddWeakTopic appends a topic unless it is already tracked.
func (s *SessionState) AddWeakTopic(topic string) {
	if topic == "" {
		return
	}
	for _, t := range s.WeakTopics {
		if t == topic {
			return
		}
	}
	s.WeakTopics = append(s.WeakTopics, topic)
}
