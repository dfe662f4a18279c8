package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/apperror"
	"github.com/guidemeet/backend/internal/http/dto"
	"github.com/guidemeet/backend/internal/ledger"
	"github.com/guidemeet/backend/internal/middleware"
	"github.com/guidemeet/backend/internal/models"
	"github.com/guidemeet/backend/internal/repositories"
	"go.uber.org/zap"
)

type UserHandler struct {
	userRepo *repositories.UserRepo
	log      *zap.Logger
}

func NewUserHandler(userRepo *repositories.UserRepo, log *zap.Logger) *UserHandler {
	return &UserHandler{userRepo: userRepo, log: log}
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	user, err := h.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return respondError(c, h.log, apperror.NotFound("user not found"))
		}
		return respondError(c, h.log, err)
	}
	stats, err := h.userRepo.GetStats(c.Context(), userID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.ProfileResponse{User: user, Stats: stats}})
}

func (h *UserHandler) Ping(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if err := h.userRepo.UpdateLastActive(c.Context(), userID); err != nil {
		h.log.Error("failed to update last_active", zap.Error(err))
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// SendMessage stores a direct message. Meeting-day messages feed the
// dispute analyzer.
func (h *UserHandler) SendMessage(c *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	recipientID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		return badRequest(c, "invalid recipient_id")
	}
	senderID := middleware.GetUserID(c)
	if recipientID == senderID {
		return badRequest(c, "cannot message yourself")
	}
	if strings.TrimSpace(req.Body) == "" {
		return badRequest(c, "body is required")
	}

	msg := &models.Message{SenderID: senderID, RecipientID: recipientID, Body: req.Body}
	if err := h.userRepo.AddMessage(c.Context(), msg); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return respondError(c, h.log, apperror.NotFound("recipient %s not found", recipientID))
		}
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: msg})
}
