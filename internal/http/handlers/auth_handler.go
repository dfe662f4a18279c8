package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/guidemeet/backend/internal/auth"
	"github.com/guidemeet/backend/internal/config"
	"github.com/guidemeet/backend/internal/http/dto"
	"github.com/guidemeet/backend/internal/middleware"
	"github.com/guidemeet/backend/internal/models"
	"github.com/guidemeet/backend/internal/repositories"
	"go.uber.org/zap"
)

type AuthHandler struct {
	userRepo *repositories.UserRepo
	cfg      *config.Config
	log      *zap.Logger
}

func NewAuthHandler(userRepo *repositories.UserRepo, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{userRepo: userRepo, cfg: cfg, log: log}
}

// Register creates a traveler or guide account and returns its token.
// Admin accounts are provisioned directly in the database.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Role != models.RoleTraveler && req.Role != models.RoleGuide {
		return badRequest(c, "role must be traveler or guide")
	}

	user, err := h.userRepo.Create(c.Context(), req.Role, req.DisplayName)
	if err != nil {
		h.log.Error("failed to create user", zap.Error(err))
		return respondError(c, h.log, err)
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, user.ID, user.Role, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("failed to generate jwt", zap.Error(err))
		return respondError(c, h.log, err)
	}

	h.log.Info("user registered", zap.String("user_id", user.ID.String()), zap.String("role", user.Role))
	return c.Status(fiber.StatusCreated).JSON(dto.AuthResponse{Token: token, User: user})
}

// Refresh issues a fresh token for the caller with the role currently on
// record.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	role, err := h.userRepo.RoleOf(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "unknown user"})
	}
	token, err := auth.GenerateJWT(h.cfg.JWTSecret, userID, role, h.cfg.JWTExpiration)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.AuthResponse{Token: token})
}
