package model

// PolicyAction is what the engine does after an evaluation.
type PolicyAction string

const (
	ActionFollowUp           PolicyAction = "FOLLOW_UP"
	ActionNextQuestion       PolicyAction = "NEXT_QUESTION"
	ActionDecreaseDifficulty PolicyAction = "DECREASE_DIFFICULTY"
	ActionIncreaseDifficulty PolicyAction = "INCREASE_DIFFICULTY"
	ActionEndSession         PolicyAction = "END_SESSION"
)

// PolicyContext is the summarized session history handed to the policy
// engine each cycle. Derived from session state, never persisted.
type PolicyContext struct {
	LastScore            float64    `json:"lastScore"`
	FollowUpDepth        int        `json:"followUpDepth"`
	ConsecutiveLowScores int        `json:"consecutiveLowScores"`
	QuestionsAsked       int        `json:"questionsAsked"`
	Difficulty           Difficulty `json:"difficulty"`
	MissingCorePoints    []string   `json:"missingCorePoints,omitempty"`
	WrongClaims          []string   `json:"wrongClaims,omitempty"`
}

// PolicyDecision is the next-action verdict, with a human-readable reason
// and, for follow-ups, the gaps to target.
type PolicyDecision struct {
	Action      PolicyAction `json:"action"`
	Reason      string       `json:"reason"`
	FocusPoints []string     `json:"focusPoints,omitempty"`
}
