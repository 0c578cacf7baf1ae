package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"prepdeck/internal/apperrors"
	"prepdeck/internal/cache"
	"prepdeck/internal/config"
	"prepdeck/internal/dispatch"
	"prepdeck/internal/model"
	"prepdeck/internal/repository"
)

// StartRequest opens a new session.
type StartRequest struct {
	UserID     string           `json:"userId"`
	Domain     string           `json:"domain"`
	Mode       string           `json:"mode"`
	Difficulty model.Difficulty `json:"difficulty"`
}

// TurnResult is what one session operation hands back to the caller: the
// updated session, and whichever of evaluation / decision / next question
// the operation produced.
type TurnResult struct {
	Session    *model.SessionState     `json:"session"`
	Evaluation *model.EvaluationResult `json:"evaluation,omitempty"`
	Decision   *model.PolicyDecision   `json:"decision,omitempty"`
	Question   *model.Question         `json:"question,omitempty"`
}

// SessionService is the session state machine. It is the sole coordinator
// of the answer cycle: evaluate, decide, select, persist. Each session is a
// single logical thread of control; a second concurrent cycle on the same
// session is rejected, never interleaved.
type SessionService struct {
	store     cache.SessionStore
	questions repository.QuestionRepo
	evals     repository.EvaluationRepo
	archive   repository.SessionRepo
	evaluator *EvaluatorService
	policy    *PolicyService
	selector  *SelectorService
	jobs      dispatch.Dispatcher
	policyCfg *config.PolicyConfig
	logger    *zap.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewSessionService wires the state machine.
func NewSessionService(
	store cache.SessionStore,
	questions repository.QuestionRepo,
	evals repository.EvaluationRepo,
	archive repository.SessionRepo,
	evaluator *EvaluatorService,
	policy *PolicyService,
	selector *SelectorService,
	jobs dispatch.Dispatcher,
	policyCfg *config.PolicyConfig,
	logger *zap.Logger,
) *SessionService {
	if policyCfg == nil {
		policyCfg = config.DefaultPolicyConfig()
	}
	return &SessionService{
		store:     store,
		questions: questions,
		evals:     evals,
		archive:   archive,
		evaluator: evaluator,
		policy:    policy,
		selector:  selector,
		jobs:      jobs,
		policyCfg: policyCfg,
		logger:    logger,
		inFlight:  make(map[string]bool),
	}
}

// acquire marks the session as having a cycle in flight. The caller must
// release on every path.
func (s *SessionService) acquire(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[sessionID] {
		return apperrors.NewSessionBusy(sessionID)
	}
	s.inFlight[sessionID] = true
	return nil
}

func (s *SessionService) release(sessionID string) {
	s.mu.Lock()
	delete(s.inFlight, sessionID)
	s.mu.Unlock()
}

// Start opens a session and presents its first question.
func (s *SessionService) Start(ctx context.Context, req *StartRequest) (*TurnResult, error) {
	if req.Domain == "" {
		return nil, apperrors.NewInvalidState("domain is required")
	}
	if req.Difficulty == "" {
		req.Difficulty = model.DifficultyMedium
	}

	session := &model.SessionState{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		Domain:     req.Domain,
		Mode:       req.Mode,
		Difficulty: req.Difficulty,
		Status:     model.StatusSetup,
		StartedAt:  time.Now(),
	}

	question, err := s.selector.Select(ctx, &SelectionCriteria{
		SessionID:  session.ID,
		Domain:     session.Domain,
		Difficulty: session.Difficulty,
	})
	if err != nil {
		return nil, err
	}

	session.Status = model.StatusActiveQuestion
	session.QuestionCount = 1
	session.CurrentQuestionID = question.ID
	session.CurrentTopic = question.Topic
	session.AskedQuestionIDs = []string{question.ID}

	if err := s.store.Create(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("session started",
		zap.String("sessionId", session.ID),
		zap.String("domain", session.Domain),
		zap.String("difficulty", string(session.Difficulty)))

	return &TurnResult{Session: session, Question: question}, nil
}

// Get returns the live session, falling back to the archive for ended ones.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*model.SessionState, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err == nil {
		return session, nil
	}
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		return nil, err
	}
	archived, aerr := s.archive.GetArchived(ctx, sessionID)
	if aerr != nil {
		return nil, aerr
	}
	if archived == nil {
		return nil, err
	}
	return archived, nil
}

// SubmitAnswer runs one full cycle: evaluate the answer, record the result,
// decide the next action and apply it. The cycle is synchronous; the session
// passes through EVALUATING and FEEDBACK in memory and is persisted only in
// its resulting state. When evaluation fails the store is left untouched, so
// the candidate keeps the same question and can retry.
func (s *SessionService) SubmitAnswer(ctx context.Context, sessionID, answerText, auxiliaryText string) (*TurnResult, error) {
	if err := s.acquire(sessionID); err != nil {
		return nil, err
	}
	defer s.release(sessionID)

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.StatusActiveQuestion {
		return nil, apperrors.NewInvalidState("cannot submit an answer while session is " + string(session.Status))
	}

	rubric, err := s.questions.GetRubric(ctx, session.CurrentQuestionID)
	if err != nil {
		return nil, err
	}
	if rubric == nil {
		// Queue rubric authoring so the gap heals; this attempt still fails.
		if q, qerr := s.questions.GetByID(ctx, session.CurrentQuestionID); qerr == nil && q != nil {
			if derr := s.jobs.DispatchRubric(dispatch.RubricJob{
				QuestionID:   q.ID,
				QuestionText: q.Text,
				Domain:       q.Domain,
			}); derr != nil {
				s.logger.Warn("failed to dispatch rubric job", zap.Error(derr))
			}
		}
		return nil, apperrors.NewConfiguration("question " + session.CurrentQuestionID + " has no rubric")
	}

	session.Status = model.StatusEvaluating
	result, err := s.evaluator.Evaluate(ctx, answerText, rubric, auxiliaryText)
	if err != nil {
		session.Status = model.StatusActiveQuestion
		return nil, err
	}
	session.Status = model.StatusFeedback

	result.SessionID = session.ID
	result.QuestionID = session.CurrentQuestionID
	result.Seq = nextSeq(session)
	// The event log is the scoring history of record; a cycle that cannot
	// record its evaluation must not advance the session.
	if err := s.evals.Append(ctx, result); err != nil {
		session.Status = model.StatusActiveQuestion
		return nil, fmt.Errorf("failed to record evaluation: %w", err)
	}
	session.LastEvaluation = result

	if result.Score < s.policyCfg.LowScoreThreshold {
		// The streak counts distinct questions; a weak follow-up answer
		// does not count its root question twice.
		if session.FollowUpDepth == 0 {
			session.ConsecutiveLowScores++
		}
		session.AddWeakTopic(session.CurrentTopic)
	} else {
		session.ConsecutiveLowScores = 0
	}

	decision := s.policy.Decide(&model.PolicyContext{
		LastScore:            result.Score,
		FollowUpDepth:        session.FollowUpDepth,
		ConsecutiveLowScores: session.ConsecutiveLowScores,
		QuestionsAsked:       session.QuestionCount,
		Difficulty:           session.Difficulty,
		MissingCorePoints:    result.Missing,
		WrongClaims:          result.WrongClaims,
	})

	question, err := s.applyDecision(ctx, session, decision)
	if err != nil {
		return nil, err
	}

	if session.Ended() {
		if err := s.finalize(ctx, session, true); err != nil {
			return nil, err
		}
	} else if err := s.store.Update(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("answer cycle completed",
		zap.String("sessionId", session.ID),
		zap.Float64("score", result.Score),
		zap.String("action", string(decision.Action)))

	return &TurnResult{
		Session:    session,
		Evaluation: result,
		Decision:   decision,
		Question:   question,
	}, nil
}

// applyDecision mutates the session per the policy verdict and selects the
// next bank question when one is due. NO_ELIGIBLE_QUESTIONS from the
// selector is a natural session end, not a failure.
func (s *SessionService) applyDecision(ctx context.Context, session *model.SessionState, decision *model.PolicyDecision) (*model.Question, error) {
	switch decision.Action {
	case model.ActionFollowUp:
		session.FollowUpDepth++
		session.FollowUpPrompt = synthesizeFollowUp(decision.FocusPoints)
		session.Status = model.StatusActiveQuestion
		return nil, nil

	case model.ActionEndSession:
		session.Status = model.StatusEnded
		return nil, nil

	case model.ActionDecreaseDifficulty:
		session.Difficulty = session.Difficulty.Easier()
		if s.policyCfg.ResetStreakOnDifficultyDrop {
			session.ConsecutiveLowScores = 0
		}
		return s.advance(ctx, session)

	case model.ActionIncreaseDifficulty:
		session.Difficulty = session.Difficulty.Harder()
		return s.advance(ctx, session)

	default: // NEXT_QUESTION
		return s.advance(ctx, session)
	}
}

// advance moves the session onto a fresh bank question.
func (s *SessionService) advance(ctx context.Context, session *model.SessionState) (*model.Question, error) {
	session.FollowUpDepth = 0
	session.FollowUpPrompt = ""
	session.HintsRevealed = 0

	question, err := s.selector.Select(ctx, &SelectionCriteria{
		SessionID:     session.ID,
		Domain:        session.Domain,
		Difficulty:    session.Difficulty,
		ExcludeIDs:    session.AskedQuestionIDs,
		CurrentTopic:  session.CurrentTopic,
		WeakTopics:    session.WeakTopics,
		QuestionCount: session.QuestionCount,
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeNoEligibleQuestions) {
			s.logger.Info("question bank exhausted, ending session", zap.String("sessionId", session.ID))
			session.Status = model.StatusEnded
			return nil, nil
		}
		return nil, err
	}

	session.QuestionCount++
	session.CurrentQuestionID = question.ID
	session.CurrentTopic = question.Topic
	session.AskedQuestionIDs = append(session.AskedQuestionIDs, question.ID)
	session.Status = model.StatusActiveQuestion
	return question, nil
}

// RequestHint returns the Nth hint of the current question. Calls are
// idempotent for the same attempt number, and the attempt is capped at the
// hint list length.
func (s *SessionService) RequestHint(ctx context.Context, sessionID string, attemptNumber int) (string, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if session.Status != model.StatusActiveQuestion {
		return "", apperrors.NewInvalidState("cannot request a hint while session is " + string(session.Status))
	}

	question, err := s.questions.GetByID(ctx, session.CurrentQuestionID)
	if err != nil {
		return "", err
	}
	if question == nil {
		return "", apperrors.NewNotFound("question", session.CurrentQuestionID)
	}
	if len(question.Hints) == 0 {
		return "", apperrors.NewNotFound("hint for question", session.CurrentQuestionID)
	}

	if attemptNumber < 1 {
		attemptNumber = 1
	}
	if attemptNumber > len(question.Hints) {
		attemptNumber = len(question.Hints)
	}

	if attemptNumber > session.HintsRevealed {
		session.HintsRevealed = attemptNumber
		if err := s.store.Update(ctx, session); err != nil {
			return "", err
		}
	}
	return question.Hints[attemptNumber-1], nil
}

// NextQuestion skips the current question without an answer and selects a
// fresh one. Counts against the question budget like any other question.
func (s *SessionService) NextQuestion(ctx context.Context, sessionID string) (*TurnResult, error) {
	if err := s.acquire(sessionID); err != nil {
		return nil, err
	}
	defer s.release(sessionID)

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.StatusActiveQuestion {
		return nil, apperrors.NewInvalidState("cannot skip while session is " + string(session.Status))
	}

	var question *model.Question
	if session.QuestionCount >= s.policyCfg.MaxQuestions {
		session.Status = model.StatusEnded
	} else if question, err = s.advance(ctx, session); err != nil {
		return nil, err
	}

	if session.Ended() {
		if err := s.finalize(ctx, session, true); err != nil {
			return nil, err
		}
	} else if err := s.store.Update(ctx, session); err != nil {
		return nil, err
	}

	return &TurnResult{Session: session, Question: question}, nil
}

// End closes the session naturally from any non-terminal state.
func (s *SessionService) End(ctx context.Context, sessionID string) (*model.SessionState, error) {
	if err := s.acquire(sessionID); err != nil {
		return nil, err
	}
	defer s.release(sessionID)

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Ended() {
		return nil, apperrors.NewInvalidState("session already ended")
	}

	session.Status = model.StatusEnded
	if err := s.finalize(ctx, session, true); err != nil {
		return nil, err
	}
	return session, nil
}

// Abandon closes the session without an evaluation or a report, marking it
// distinct from a natural end.
func (s *SessionService) Abandon(ctx context.Context, sessionID, reason string) (*model.SessionState, error) {
	if err := s.acquire(sessionID); err != nil {
		return nil, err
	}
	defer s.release(sessionID)

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Ended() {
		return nil, apperrors.NewInvalidState("session already ended")
	}

	session.Status = model.StatusEnded
	session.Abandoned = true
	session.AbandonReason = reason
	if err := s.finalize(ctx, session, false); err != nil {
		return nil, err
	}
	return session, nil
}

// finalize stamps the terminal state, persists it, archives the session and
// queues the report job for naturally ended sessions.
func (s *SessionService) finalize(ctx context.Context, session *model.SessionState, natural bool) error {
	now := time.Now()
	session.EndedAt = &now
	session.CurrentQuestionID = ""
	session.FollowUpPrompt = ""

	if err := s.store.Update(ctx, session); err != nil {
		return err
	}
	if err := s.archive.Archive(ctx, session); err != nil {
		s.logger.Warn("failed to archive session", zap.String("sessionId", session.ID), zap.Error(err))
	}

	if natural {
		if err := s.jobs.DispatchReport(dispatch.ReportJob{SessionID: session.ID}); err != nil {
			s.logger.Warn("failed to dispatch report job", zap.Error(err))
		}
		if session.UserID != "" {
			if err := s.jobs.DispatchRoadmap(dispatch.RoadmapJob{UserID: session.UserID}); err != nil {
				s.logger.Warn("failed to dispatch roadmap job", zap.Error(err))
			}
		}
	}

	s.logger.Info("session ended",
		zap.String("sessionId", session.ID),
		zap.Bool("abandoned", session.Abandoned),
		zap.Int("questions", session.QuestionCount))
	return nil
}

// synthesizeFollowUp builds the remedial prompt shown instead of a fresh
// bank question.
func synthesizeFollowUp(focusPoints []string) string {
	if len(focusPoints) == 0 {
		return "Could you walk through your previous answer in more depth?"
	}
	return "Let's dig deeper on the same question: can you explain " + joinPhrases(focusPoints, 2) + "?"
}

// nextSeq numbers the evaluation within the session's event log.
func nextSeq(session *model.SessionState) int {
	if session.LastEvaluation == nil {
		return 1
	}
	return session.LastEvaluation.Seq + 1
}
