package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"adaptive-quiz/internal/domain"
	"adaptive-quiz/internal/dto"
	"adaptive-quiz/internal/handler"
	"adaptive-quiz/internal/index"
	"adaptive-quiz/internal/middleware"
	"adaptive-quiz/internal/optimizer"
	"adaptive-quiz/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAdder struct {
	idx *index.QuestionIndex
	err error
}

func (f *fakeAdder) AddQuestions(_ context.Context, questions []*domain.Question) error {
	if f.err != nil {
		return f.err
	}
	return f.idx.InsertBatch(questions)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type testServer struct {
	app   *fiber.App
	idx   *index.QuestionIndex
	adder *fakeAdder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	idx := index.New()
	require.NoError(t, idx.InsertBatch([]*domain.Question{
		{ID: "q1", Subject: "go", Topic: "maps", Difficulty: domain.Beginner, Type: domain.TrueFalse,
			Prompt: "Map iteration order is random.", CorrectAnswer: "true", Explanation: "Order is unspecified."},
		{ID: "q2", Subject: "go", Topic: "maps", Difficulty: domain.Intermediate, Type: domain.MultipleChoice,
			Prompt: "Zero value of a map?", Options: []string{"nil", "empty"}, CorrectAnswer: "nil"},
		{ID: "q3", Subject: "go", Topic: "slices", Difficulty: domain.Advanced, Type: domain.ShortAnswer,
			Prompt: "Builtin that grows a slice?", CorrectAnswer: "append"},
	}))
	opt, err := optimizer.New(optimizer.DefaultPolicy(), optimizer.NewLRUMemo(16))
	require.NoError(t, err)
	coord := service.NewSessionCoordinator(idx, opt, service.CoordinatorConfig{}, zap.NewNop())

	adder := &fakeAdder{idx: idx}
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler()})
	api := app.Group("/api")
	handler.NewQuizHandler(coord, adder).RegisterRoutes(api, middleware.NewValidationMiddleware())
	api.Get("/health", handler.NewHealthHandler(coord, map[string]handler.Pinger{
		"redis": fakePinger{err: errors.New("dial tcp: refused")},
	}).Health)
	return &testServer{app: app, idx: idx, adder: adder}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestQuizLifecycle(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/api/quizzes", dto.CreateQuizRequest{
		Title:  "Maps",
		Config: dto.QuizConfigRequest{Subject: "go", Topics: []string{"maps"}, AdaptiveDifficulty: true},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))
	var session dto.SessionResponse
	require.NoError(t, json.Unmarshal(body, &session))
	assert.Equal(t, 2, session.TotalQuestions)
	assert.Equal(t, "beginner", session.StartingDifficulty)
	base := "/api/quizzes/" + session.SessionID

	resp, body = s.do(t, http.MethodGet, base+"/next", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(body), "correct_answer")
	var next dto.NextQuestionResponse
	require.NoError(t, json.Unmarshal(body, &next))
	require.NotNil(t, next.Question)
	assert.Equal(t, "q1", next.Question.ID)

	resp, _ = s.do(t, http.MethodGet, base+"/next", nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, base+"/answers", dto.SubmitAnswerRequest{QuestionID: "q1", Answer: "True", TimeTaken: 4})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var fb dto.AnswerFeedbackResponse
	require.NoError(t, json.Unmarshal(body, &fb))
	assert.True(t, fb.Correct)
	assert.Equal(t, "intermediate", fb.CurrentDifficulty)
	assert.Equal(t, 1, fb.Remaining)

	resp, body = s.do(t, http.MethodGet, base+"/stats", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var stats domain.StatsSummary
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, 1, stats.TotalQuestions)
	assert.Equal(t, domain.Tally{Correct: 1, Total: 1}, stats.DifficultyBreakdown[domain.Beginner])
	assert.Equal(t, domain.Intermediate, stats.Recommendation.Difficulty)
	assert.NotEmpty(t, stats.Recommendation.Reasoning)
	require.NotNil(t, stats.QueueStatus)
	assert.Equal(t, 1, stats.QueueStatus.Pending)
	assert.Equal(t, 1, stats.QueueStatus.TotalServed)

	resp, _ = s.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	resp, _ = s.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, base+"/next", nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestQuizErrors(t *testing.T) {
	s := newTestServer(t)

	t.Run("unknown session", func(t *testing.T) {
		resp, body := s.do(t, http.MethodGet, "/api/quizzes/01HGZ8VNRYXS8QKNJV5GRWPWDQ/next", nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		var er middleware.ErrorResponse
		require.NoError(t, json.Unmarshal(body, &er))
		assert.Equal(t, "NOT_FOUND", er.Code)
		assert.Equal(t, "01HGZ8VNRYXS8QKNJV5GRWPWDQ", er.Details["session_id"])
	})

	t.Run("malformed session id", func(t *testing.T) {
		resp, body := s.do(t, http.MethodGet, "/api/quizzes/not-a-ulid/stats", nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		var ver middleware.ValidationErrorResponse
		require.NoError(t, json.Unmarshal(body, &ver))
		require.Len(t, ver.Errors, 1)
		assert.Equal(t, "session_id", ver.Errors[0].Field)
	})

	t.Run("invalid config", func(t *testing.T) {
		resp, body := s.do(t, http.MethodPost, "/api/quizzes", dto.CreateQuizRequest{
			Config: dto.QuizConfigRequest{QuestionCount: -1, DifficultyLevels: []string{"easy"}},
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		var ver middleware.ValidationErrorResponse
		require.NoError(t, json.Unmarshal(body, &ver))
		assert.Len(t, ver.Errors, 2)
	})

	t.Run("no matching questions", func(t *testing.T) {
		resp, _ := s.do(t, http.MethodPost, "/api/quizzes", dto.CreateQuizRequest{
			Config: dto.QuizConfigRequest{Subject: "go", Topics: []string{"generics"}},
		})
		// falls back to sample questions on the requested topic
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	})

	t.Run("empty answer", func(t *testing.T) {
		_, body := s.do(t, http.MethodPost, "/api/quizzes", dto.CreateQuizRequest{Config: dto.QuizConfigRequest{Subject: "go"}})
		var session dto.SessionResponse
		require.NoError(t, json.Unmarshal(body, &session))

		resp, _ := s.do(t, http.MethodPost, "/api/quizzes/"+session.SessionID+"/answers",
			dto.SubmitAnswerRequest{QuestionID: "q1", Answer: " ", TimeTaken: -3})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

		resp, _ = s.do(t, http.MethodPost, "/api/quizzes/"+session.SessionID+"/answers",
			dto.SubmitAnswerRequest{QuestionID: "q1", Answer: "true", TimeTaken: 1})
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	})
}

func TestQuestionsEndpoints(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/api/questions/search?subject=go&topic=maps,slices&difficulty=Beginner,advanced&limit=5", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var found dto.SearchQuestionsResponse
	require.NoError(t, json.Unmarshal(body, &found))
	require.Equal(t, 2, found.Count)
	assert.Equal(t, "q1", found.Questions[0].ID)
	assert.Equal(t, "q3", found.Questions[1].ID)

	resp, _ = s.do(t, http.MethodGet, "/api/questions/search?limit=abc", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp, _ = s.do(t, http.MethodGet, "/api/questions/search?difficulty=legendary", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/api/questions", dto.AddQuestionsRequest{Questions: []dto.QuestionRequest{{
		Subject: "go", Topic: "channels", Difficulty: "expert", Type: "true_false",
		Prompt: "Closing a nil channel panics.", CorrectAnswer: "true",
	}}})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))
	var added dto.AddQuestionsResponse
	require.NoError(t, json.Unmarshal(body, &added))
	assert.Equal(t, 1, added.Added)
	_, ok := s.idx.Get(added.IDs[0])
	assert.True(t, ok)

	resp, body = s.do(t, http.MethodPost, "/api/questions", dto.AddQuestionsRequest{Questions: []dto.QuestionRequest{{
		Subject: "go", Topic: "channels", Difficulty: "expert", Type: "multiple_choice", Prompt: "?", Options: []string{"a"},
	}}})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, string(body))

	s.adder.err = domain.NewSourceError(errors.New("store down"))
	resp, _ = s.do(t, http.MethodPost, "/api/questions", dto.AddQuestionsRequest{Questions: []dto.QuestionRequest{{
		Subject: "go", Topic: "channels", Difficulty: "beginner", Type: "short_answer", Prompt: "Keyword to start a goroutine?", CorrectAnswer: "go",
	}}})
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/api/questions/tree", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var tree domain.IndexStatistics
	require.NoError(t, json.Unmarshal(body, &tree))
	assert.Equal(t, 4, tree.TotalQuestions)
	assert.Equal(t, 2, tree.Subjects["go"].Topics["maps"].Total)
}

func TestGetQuestionEndpoint(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/api/questions/q2", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	assert.NotContains(t, string(body), "correct_answer")
	var q dto.QuestionResponse
	require.NoError(t, json.Unmarshal(body, &q))
	assert.Equal(t, "intermediate", q.Difficulty)
	assert.Equal(t, []string{"nil", "empty"}, q.Options)

	resp, body = s.do(t, http.MethodGet, "/api/questions/missing", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	var er middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &er))
	assert.Equal(t, "missing", er.Details["question_id"])

	// static routes still win over the id route
	resp, _ = s.do(t, http.MethodGet, "/api/questions/tree", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var h dto.HealthResponse
	require.NoError(t, json.Unmarshal(body, &h))
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, 3, h.Questions)
	assert.Equal(t, "unavailable", h.Checks["redis"])
}
