package middleware

import (
	"strconv"
	"strings"

	"adaptive-quiz/internal/domain"
	"adaptive-quiz/internal/validation"

	"github.com/gofiber/fiber/v2"
)

const (
	SessionIDKey    = "validated_session_id"
	SearchFilterKey = "validated_search_filter"
	SearchLimitKey  = "validated_search_limit"

	defaultSearchLimit = 20
)

// SearchParams are the validated query parameters of a question search.
type SearchParams struct {
	Subject      string
	Topics       []string
	Difficulties []domain.Difficulty
}

// ValidationMiddleware provides request validation middleware
type ValidationMiddleware struct {
	validator *validation.Validator
}

// NewValidationMiddleware creates a new validation middleware instance
func NewValidationMiddleware() *ValidationMiddleware {
	return &ValidationMiddleware{
		validator: validation.NewValidator(),
	}
}

// ValidateSessionID validates the :id path parameter
func (vm *ValidationMiddleware) ValidateSessionID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if errs := vm.validator.ValidateSessionID(id); len(errs) > 0 {
			return errs
		}
		c.Locals(SessionIDKey, id)
		return c.Next()
	}
}

// ValidateSearchParams validates subject, topic, difficulty and limit query
// parameters. topic and difficulty take comma separated lists.
func (vm *ValidationMiddleware) ValidateSearchParams() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var errs domain.ValidationErrors
		params := SearchParams{
			Subject: strings.TrimSpace(c.Query("subject")),
			Topics:  splitList(c.Query("topic")),
		}
		for _, d := range splitList(c.Query("difficulty")) {
			parsed, err := domain.ParseDifficulty(d)
			if err != nil {
				errs = append(errs, domain.NewInvalidFormatError("difficulty", d))
				continue
			}
			params.Difficulties = append(params.Difficulties, parsed)
		}

		limit := defaultSearchLimit
		if s := c.Query("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				errs = append(errs, domain.NewInvalidFormatError("limit", s))
			} else {
				errs = append(errs, vm.validator.ValidateSearchLimit(n)...)
				limit = n
			}
		}
		if len(errs) > 0 {
			return errs
		}

		c.Locals(SearchFilterKey, params)
		c.Locals(SearchLimitKey, limit)
		return c.Next()
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
