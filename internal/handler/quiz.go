package handler

import (
	"context"

	"adaptive-quiz/internal/domain"
	"adaptive-quiz/internal/dto"
	"adaptive-quiz/internal/index"
	"adaptive-quiz/internal/logger"
	"adaptive-quiz/internal/middleware"
	"adaptive-quiz/internal/service"
	"adaptive-quiz/internal/validation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// QuestionAdder adds questions to the catalog. *service.IngestService
// implements it.
type QuestionAdder interface {
	AddQuestions(ctx context.Context, questions []*domain.Question) error
}

// QuizHandler handles quiz-related HTTP requests
type QuizHandler struct {
	coordinator service.SessionCoordinator
	adder       QuestionAdder
	validator   *validation.Validator
}

// NewQuizHandler creates a new QuizHandler instance
func NewQuizHandler(coordinator service.SessionCoordinator, adder QuestionAdder) *QuizHandler {
	return &QuizHandler{
		coordinator: coordinator,
		adder:       adder,
		validator:   validation.NewValidator(),
	}
}

// RegisterRoutes mounts the quiz API on router.
func (h *QuizHandler) RegisterRoutes(router fiber.Router, vm *middleware.ValidationMiddleware) {
	router.Post("/quizzes", h.CreateQuiz)
	byID := vm.ValidateSessionID()
	router.Get("/quizzes/:id/next", byID, h.NextQuestion)
	router.Post("/quizzes/:id/answers", byID, h.SubmitAnswer)
	router.Get("/quizzes/:id/stats", byID, h.GetStats)
	router.Delete("/quizzes/:id", byID, h.EndSession)

	router.Get("/questions/tree", h.GetTree)
	router.Get("/questions/search", vm.ValidateSearchParams(), h.SearchQuestions)
	router.Get("/questions/:id", h.GetQuestion)
	router.Post("/questions", h.AddQuestions)
}

// CreateQuiz handles POST /api/quizzes
func (h *QuizHandler) CreateQuiz(c *fiber.Ctx) error {
	var req dto.CreateQuizRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewValidationError("invalid request body")
	}
	if errs := h.validator.ValidateCreateQuizRequest(&req); len(errs) > 0 {
		return errs
	}

	info, err := h.coordinator.GenerateQuiz(c.UserContext(), service.GenerateQuizRequest{
		Title:      req.Title,
		SourceText: req.SourceText,
		Config:     req.Config.ToDomain(),
	})
	if err != nil {
		return err
	}
	logger.Get().Info("Quiz created via API",
		zap.String("session_id", info.SessionID),
		zap.Int("questions", info.TotalQuestions),
	)
	return c.Status(fiber.StatusCreated).JSON(dto.NewSessionResponse(info))
}

// NextQuestion handles GET /api/quizzes/:id/next
func (h *QuizHandler) NextQuestion(c *fiber.Ctx) error {
	res, err := h.coordinator.NextQuestion(c.UserContext(), sessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewNextQuestionResponse(res))
}

// SubmitAnswer handles POST /api/quizzes/:id/answers
func (h *QuizHandler) SubmitAnswer(c *fiber.Ctx) error {
	var req dto.SubmitAnswerRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewValidationError("invalid request body")
	}
	if errs := h.validator.ValidateSubmitAnswerRequest(&req); len(errs) > 0 {
		return errs
	}

	fb, err := h.coordinator.SubmitAnswer(c.UserContext(), sessionID(c), req.QuestionID, req.Answer, req.TimeTaken)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewAnswerFeedbackResponse(fb))
}

// GetStats handles GET /api/quizzes/:id/stats
func (h *QuizHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.coordinator.SessionStats(c.UserContext(), sessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

// EndSession handles DELETE /api/quizzes/:id
func (h *QuizHandler) EndSession(c *fiber.Ctx) error {
	if err := h.coordinator.EndSession(c.UserContext(), sessionID(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetTree handles GET /api/questions/tree
func (h *QuizHandler) GetTree(c *fiber.Ctx) error {
	return c.JSON(h.coordinator.TreeStructure())
}

// SearchQuestions handles GET /api/questions/search
func (h *QuizHandler) SearchQuestions(c *fiber.Ctx) error {
	params, _ := c.Locals(middleware.SearchFilterKey).(middleware.SearchParams)
	limit, _ := c.Locals(middleware.SearchLimitKey).(int)

	found := h.coordinator.SearchQuestions(index.Filter{
		Subject:      params.Subject,
		Topics:       params.Topics,
		Difficulties: params.Difficulties,
	}, limit)

	resp := dto.SearchQuestionsResponse{
		Count:     len(found),
		Questions: make([]dto.QuestionResponse, 0, len(found)),
	}
	for _, q := range found {
		resp.Questions = append(resp.Questions, dto.NewQuestionResponse(q))
	}
	return c.JSON(resp)
}

// GetQuestion handles GET /api/questions/:id
func (h *QuizHandler) GetQuestion(c *fiber.Ctx) error {
	q, err := h.coordinator.GetQuestion(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewQuestionResponse(q))
}

// AddQuestions handles POST /api/questions
func (h *QuizHandler) AddQuestions(c *fiber.Ctx) error {
	var req dto.AddQuestionsRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewValidationError("invalid request body")
	}
	if errs := h.validator.ValidateAddQuestionsRequest(&req); len(errs) > 0 {
		return errs
	}

	questions := make([]*domain.Question, len(req.Questions))
	ids := make([]string, len(req.Questions))
	for i, q := range req.Questions {
		questions[i] = q.ToDomain()
		ids[i] = questions[i].ID
	}
	if err := h.adder.AddQuestions(c.UserContext(), questions); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.AddQuestionsResponse{Added: len(ids), IDs: ids})
}

func sessionID(c *fiber.Ctx) string {
	if id, ok := c.Locals(middleware.SessionIDKey).(string); ok {
		return id
	}
	return c.Params("id")
}
