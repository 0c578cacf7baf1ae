package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"prepdeck/internal/apperrors"
	"prepdeck/internal/config"
	"prepdeck/internal/dispatch"
	"prepdeck/internal/model"
)

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*model.SessionState
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*model.SessionState)}
}

func cloneSession(s *model.SessionState) *model.SessionState {
	data, _ := json.Marshal(s)
	var out model.SessionState
	_ = json.Unmarshal(data, &out)
	return &out
}

func (f *fakeSessionStore) Create(ctx context.Context, session *model.SessionState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[session.ID]; ok {
		return apperrors.NewInvalidState("session " + session.ID + " already exists")
	}
	session.Version = 1
	f.sessions[session.ID] = cloneSession(session)
	return nil
}

func (f *fakeSessionStore) Get(ctx context.Context, id string) (*model.SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, apperrors.NewNotFound("session", id)
	}
	return cloneSession(s), nil
}

func (f *fakeSessionStore) Update(ctx context.Context, session *model.SessionState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.sessions[session.ID]
	if !ok {
		return apperrors.NewNotFound("session", session.ID)
	}
	if stored.Version != session.Version {
		return apperrors.NewConcurrentModification(session.ID)
	}
	session.Version++
	f.sessions[session.ID] = cloneSession(session)
	return nil
}

func (f *fakeSessionStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

type fakeEvalRepo struct {
	results   []*model.EvaluationResult
	appendErr error
}

func (f *fakeEvalRepo) Append(ctx context.Context, result *model.EvaluationResult) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.results = append(f.results, result)
	return nil
}

func (f *fakeEvalRepo) ListBySession(ctx context.Context, sessionID string) ([]*model.EvaluationResult, error) {
	var out []*model.EvaluationResult
	for _, r := range f.results {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeSessionRepo struct {
	archived map[string]*model.SessionState
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{archived: make(map[string]*model.SessionState)}
}

func (f *fakeSessionRepo) Archive(ctx context.Context, session *model.SessionState) error {
	f.archived[session.ID] = cloneSession(session)
	return nil
}

func (f *fakeSessionRepo) GetArchived(ctx context.Context, id string) (*model.SessionState, error) {
	return f.archived[id], nil
}

// seedBank fills the repo with n questions per difficulty, all rubriced.
func seedBank(t *testing.T, repo *fakeQuestionRepo, n int) {
	t.Helper()
	for _, diff := range []model.Difficulty{model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard} {
		for i := 0; i < n; i++ {
			id := "q-" + string(diff) + "-" + string(rune('a'+i))
			repo.add(id, "topic-"+string(rune('a'+i%3)), diff)
			rubric, err := model.NewRubric(id,
				[]string{"first core point", "second core point", "third core point"},
				[]string{"bonus point one", "bonus point two", "bonus point three"},
				nil, "")
			require.NoError(t, err)
			repo.rubrics[id] = rubric
		}
	}
}

func matchWithCoverage(rubric *model.Rubric, coveredCount int) *MatchResult {
	indices := make([]int, 0, coveredCount)
	for i := 0; i < coveredCount; i++ {
		indices = append(indices, i)
	}
	return &MatchResult{
		MustHave:   verdicts(rubric.MustHave, indices...),
		GoodToHave: verdicts(rubric.GoodToHave),
		RedFlags:   verdicts(rubric.RedFlags),
	}
}

// matchFull covers every must-have and bonus phrase, yielding the top score.
func matchFull(rubric *model.Rubric) *MatchResult {
	all := func(phrases []string) []int {
		out := make([]int, len(phrases))
		for i := range phrases {
			out[i] = i
		}
		return out
	}
	return &MatchResult{
		MustHave:   verdicts(rubric.MustHave, all(rubric.MustHave)...),
		GoodToHave: verdicts(rubric.GoodToHave, all(rubric.GoodToHave)...),
		RedFlags:   verdicts(rubric.RedFlags),
	}
}

type sessionFixture struct {
	svc     *SessionService
	store   *fakeSessionStore
	repo    *fakeQuestionRepo
	evals   *fakeEvalRepo
	archive *fakeSessionRepo
	matcher *stubMatcher
}

func newSessionFixture(t *testing.T, policyCfg *config.PolicyConfig) *sessionFixture {
	t.Helper()
	repo := newFakeQuestionRepo()
	seedBank(t, repo, 5)

	store := newFakeSessionStore()
	evals := &fakeEvalRepo{}
	archive := newFakeSessionRepo()
	matcher := &stubMatcher{}

	log := zap.NewNop()
	evaluator := NewEvaluatorService(nil, matcher, nil, 50*time.Millisecond, log)
	svc := NewSessionService(
		store, repo, evals, archive,
		evaluator,
		NewPolicyService(policyCfg),
		NewSelectorService(repo),
		dispatch.Nop{},
		policyCfg,
		log,
	)
	return &sessionFixture{svc: svc, store: store, repo: repo, evals: evals, archive: archive, matcher: matcher}
}

func (f *sessionFixture) start(t *testing.T) *TurnResult {
	t.Helper()
	result, err := f.svc.Start(context.Background(), &StartRequest{
		UserID:     "u1",
		Domain:     "backend",
		Difficulty: model.DifficultyMedium,
	})
	require.NoError(t, err)
	return result
}

func (f *sessionFixture) scriptCoverage(t *testing.T, questionID string, covered int) {
	t.Helper()
	rubric := f.repo.rubrics[questionID]
	require.NotNil(t, rubric)
	f.matcher.result = matchWithCoverage(rubric, covered)
}

func TestSessionService_StartPresentsFirstQuestion(t *testing.T) {
	f := newSessionFixture(t, nil)

	result := f.start(t)
	assert.Equal(t, model.StatusActiveQuestion, result.Session.Status)
	assert.Equal(t, 1, result.Session.QuestionCount)
	require.NotNil(t, result.Question)
	assert.Equal(t, result.Question.ID, result.Session.CurrentQuestionID)
	assert.Equal(t, model.DifficultyMedium, result.Question.Difficulty)
}

func TestSessionService_GoodAnswerRaisesDifficulty(t *testing.T) {
	f := newSessionFixture(t, nil)
	started := f.start(t)
	f.matcher.result = matchFull(f.repo.rubrics[started.Question.ID])

	result, err := f.svc.SubmitAnswer(context.Background(), started.Session.ID, "a full answer", "")
	require.NoError(t, err)

	assert.Equal(t, model.ActionIncreaseDifficulty, result.Decision.Action)
	assert.Equal(t, model.DifficultyHard, result.Session.Difficulty)
	assert.Equal(t, 2, result.Session.QuestionCount)
	require.NotNil(t, result.Question)
	assert.Equal(t, model.DifficultyHard, result.Question.Difficulty)
	assert.NotEqual(t, started.Question.ID, result.Question.ID)

	require.Len(t, f.evals.results, 1)
	assert.Equal(t, 1, f.evals.results[0].Seq)
}

func TestSessionService_WeakAnswerTriggersFollowUp(t *testing.T) {
	f := newSessionFixture(t, nil)
	started := f.start(t)
	f.scriptCoverage(t, started.Question.ID, 1)

	result, err := f.svc.SubmitAnswer(context.Background(), started.Session.ID, "a thin answer", "")
	require.NoError(t, err)

	assert.Equal(t, model.ActionFollowUp, result.Decision.Action)
	assert.Equal(t, 1, result.Session.FollowUpDepth)
	assert.NotEmpty(t, result.Session.FollowUpPrompt)
	assert.Nil(t, result.Question, "a follow-up keeps the current question")
	assert.Equal(t, started.Question.ID, result.Session.CurrentQuestionID)
	assert.Contains(t, result.Session.WeakTopics, started.Question.Topic)
}

func TestSessionService_ExhaustedFollowUpsDropDifficulty(t *testing.T) {
	f := newSessionFixture(t, nil)
	started := f.start(t)
	f.scriptCoverage(t, started.Question.ID, 1)

	for i := 0; i < 2; i++ {
		result, err := f.svc.SubmitAnswer(context.Background(), started.Session.ID, "still thin", "")
		require.NoError(t, err)
		require.Equal(t, model.ActionFollowUp, result.Decision.Action)
	}

	result, err := f.svc.SubmitAnswer(context.Background(), started.Session.ID, "still thin", "")
	require.NoError(t, err)

	assert.Equal(t, model.ActionDecreaseDifficulty, result.Decision.Action)
	assert.Equal(t, model.DifficultyEasy, result.Session.Difficulty)
	assert.Equal(t, 0, result.Session.FollowUpDepth)
	assert.Equal(t, 0, result.Session.ConsecutiveLowScores, "difficulty drop resets the streak")
	require.NotNil(t, result.Question)
}

func TestSessionService_QuestionBudgetEndsSession(t *testing.T) {
	cfg := config.DefaultPolicyConfig()
	cfg.MaxQuestions = 2
	f := newSessionFixture(t, cfg)
	started := f.start(t)

	f.scriptCoverage(t, started.Session.CurrentQuestionID, 3)
	mid, err := f.svc.SubmitAnswer(context.Background(), started.Session.ID, "decent", "")
	require.NoError(t, err)
	require.Equal(t, model.ActionNextQuestion, mid.Decision.Action)
	require.Equal(t, 2, mid.Session.QuestionCount)

	f.scriptCoverage(t, mid.Session.CurrentQuestionID, 3)
	final, err := f.svc.SubmitAnswer(context.Background(), started.Session.ID, "great", "")
	require.NoError(t, err)

	assert.Equal(t, model.ActionEndSession, final.Decision.Action)
	assert.Equal(t, model.StatusEnded, final.Session.Status)
	assert.NotNil(t, final.Session.EndedAt)
	assert.Contains(t, f.archive.archived, started.Session.ID)
}

func TestSessionService_AbandonThenSubmitFails(t *testing.T) {
	f := newSessionFixture(t, nil)
	started := f.start(t)

	session, err := f.svc.Abandon(context.Background(), started.Session.ID, "lost interest")
	require.NoError(t, err)
	assert.Equal(t, model.StatusEnded, session.Status)
	assert.True(t, session.Abandoned)
	assert.Equal(t, "lost interest", session.AbandonReason)

	_, err = f.svc.SubmitAnswer(context.Background(), started.Session.ID, "too late", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))
}

func TestSessionService_EndArchivesSession(t *testing.T) {
	f := newSessionFixture(t, nil)
	started := f.start(t)

	session, err := f.svc.End(context.Background(), started.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusEnded, session.Status)
	assert.False(t, session.Abandoned)

	archived := f.archive.archived[started.Session.ID]
	require.NotNil(t, archived)
	assert.Equal(t, model.StatusEnded, archived.Status)

	// Get falls back to the archive after the session ends.
	got, err := f.svc.Get(context.Background(), started.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusEnded, got.Status)
}

func TestSessionService_BusySessionRejectsSecondCycle(t *testing.T) {
	f := newSessionFixture(t, nil)
	started := f.start(t)

	f.svc.mu.Lock()
	f.svc.inFlight[started.Session.ID] = true
	f.svc.mu.Unlock()

	_, err := f.svc.SubmitAnswer(context.Background(), started.Session.ID, "answer", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSessionBusy))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestSessionService_FailedEvaluationKeepsQuestion(t *testing.T) {
	f := newSessionFixture(t, nil)
	started := f.start(t)
	f.matcher.err = context.DeadlineExceeded

	_, err := f.svc.SubmitAnswer(context.Background(), started.Session.ID, "answer", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeEvaluationTimeout))

	stored, err := f.store.Get(context.Background(), started.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActiveQuestion, stored.Status)
	assert.Equal(t, started.Question.ID, stored.CurrentQuestionID)
	assert.Nil(t, stored.LastEvaluation, "a failed evaluation must not touch the store")

	// The retry succeeds against the same question.
	f.matcher.err = nil
	f.scriptCoverage(t, started.Question.ID, 2)
	result, err := f.svc.SubmitAnswer(context.Background(), started.Session.ID, "answer", "")
	require.NoError(t, err)
	assert.Equal(t, started.Question.ID, result.Evaluation.QuestionID)
}

func TestSessionService_EventLogFailureAbortsCycle(t *testing.T) {
	f := newSessionFixture(t, nil)
	started := f.start(t)
	f.scriptCoverage(t, started.Question.ID, 2)
	f.evals.appendErr = errors.New("event log down")

	_, err := f.svc.SubmitAnswer(context.Background(), started.Session.ID, "answer", "")
	require.Error(t, err)

	// The session must not advance past an unrecorded evaluation.
	stored, err := f.store.Get(context.Background(), started.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActiveQuestion, stored.Status)
	assert.Equal(t, started.Question.ID, stored.CurrentQuestionID)
	assert.Nil(t, stored.LastEvaluation)
	assert.Equal(t, 0, stored.ConsecutiveLowScores)
	assert.Empty(t, f.evals.results)

	// Once the log recovers, resubmitting the same question succeeds.
	f.evals.appendErr = nil
	result, err := f.svc.SubmitAnswer(context.Background(), started.Session.ID, "answer", "")
	require.NoError(t, err)
	assert.Equal(t, started.Question.ID, result.Evaluation.QuestionID)
	assert.Equal(t, 1, result.Evaluation.Seq)
	require.Len(t, f.evals.results, 1)
}

func TestSessionService_RequestHint(t *testing.T) {
	f := newSessionFixture(t, nil)
	started := f.start(t)
	question := f.repo.questions[started.Question.ID]
	question.Hints = []string{"first hint", "second hint"}

	hint, err := f.svc.RequestHint(context.Background(), started.Session.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "first hint", hint)

	// Idempotent for the same attempt number.
	again, err := f.svc.RequestHint(context.Background(), started.Session.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, hint, again)

	// Capped at the hint list length.
	capped, err := f.svc.RequestHint(context.Background(), started.Session.ID, 99)
	require.NoError(t, err)
	assert.Equal(t, "second hint", capped)

	stored, err := f.store.Get(context.Background(), started.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.HintsRevealed)
}

func TestSessionService_SkipAdvancesWithoutEvaluation(t *testing.T) {
	f := newSessionFixture(t, nil)
	started := f.start(t)

	result, err := f.svc.NextQuestion(context.Background(), started.Session.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Session.QuestionCount)
	require.NotNil(t, result.Question)
	assert.NotEqual(t, started.Question.ID, result.Question.ID)
	assert.Empty(t, f.evals.results)
}

func TestSessionService_BankExhaustionEndsNaturally(t *testing.T) {
	repo := newFakeQuestionRepo()
	repo.add("only", "topic-a", model.DifficultyMedium)
	rubric, err := model.NewRubric("only",
		[]string{"first core point", "second core point", "third core point"},
		nil, nil, "")
	require.NoError(t, err)
	repo.rubrics["only"] = rubric

	store := newFakeSessionStore()
	matcher := &stubMatcher{result: matchWithCoverage(rubric, 3)}
	log := zap.NewNop()
	svc := NewSessionService(
		store, repo, &fakeEvalRepo{}, newFakeSessionRepo(),
		NewEvaluatorService(nil, matcher, nil, 50*time.Millisecond, log),
		NewPolicyService(nil),
		NewSelectorService(repo),
		dispatch.Nop{},
		nil,
		log,
	)

	started, err := svc.Start(context.Background(), &StartRequest{Domain: "backend", Difficulty: model.DifficultyMedium})
	require.NoError(t, err)

	result, err := svc.SubmitAnswer(context.Background(), started.Session.ID, "a decent answer", "")
	require.NoError(t, err)

	assert.Equal(t, model.ActionNextQuestion, result.Decision.Action)
	assert.Equal(t, model.StatusEnded, result.Session.Status, "an exhausted bank ends the session, not an error")
	assert.Nil(t, result.Question)
}
