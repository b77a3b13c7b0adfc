package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/appeal-service/internal/api/dto"
	"github.com/spec-kit/appeal-service/internal/auth"
	"github.com/spec-kit/appeal-service/internal/domain"
	"github.com/spec-kit/appeal-service/internal/repository"
	apperrors "github.com/spec-kit/appeal-service/pkg/util/errorutil"
)

// AuthHandler issues operator tokens.
type AuthHandler struct {
	operators repository.OperatorRepository
	tokens    *auth.TokenManager
}

// NewAuthHandler constructs handler.
func NewAuthHandler(operators repository.OperatorRepository, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{operators: operators, tokens: tokens}
}

// OperatorLogin POST /auth/operators/login.
func (h *AuthHandler) OperatorLogin(c *fiber.Ctx) error {
	var req dto.OperatorLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	operator, err := h.operators.GetByEmail(c.UserContext(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("invalid credentials")
		}
		return apperrors.MapError(err)
	}
	if !operator.Active {
		return apperrors.NewUnauthorized("operator inactive")
	}
	if err := auth.ComparePassword(operator.PasswordHash, req.Password); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := h.tokens.GenerateToken(operator.ID, domain.SubjectTypeOperator, &operator.Role)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.OperatorLoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		OperatorID:  operator.ID,
		Role:        operator.Role,
	}})
}
