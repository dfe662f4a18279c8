package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/apperror"
	"github.com/guidemeet/backend/internal/http/dto"
	"github.com/guidemeet/backend/internal/middleware"
	"go.uber.org/zap"
)

// respondError writes err with the status its kind maps to. Errors outside
// the taxonomy are logged and hidden behind a generic message.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	status := apperror.HTTPStatus(err)
	resp := dto.ErrorResponse{
		Error:     err.Error(),
		Kind:      string(apperror.KindOf(err)),
		RequestID: middleware.GetRequestID(c),
	}
	// a wrapped cause stays in the logs
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		resp.Error = appErr.Message
	}
	if status == fiber.StatusInternalServerError {
		log.Error("request failed",
			zap.String("request_id", resp.RequestID),
			zap.String("path", c.Path()),
			zap.Error(err))
		resp.Error = "internal server error"
	}
	return c.Status(status).JSON(resp)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error:     msg,
		Kind:      string(apperror.KindValidation),
		RequestID: middleware.GetRequestID(c),
	})
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

func paging(c *fiber.Ctx) (limit, offset int) {
	limit = c.QueryInt("limit", 20)
	offset = c.QueryInt("offset", 0)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ErrorHandler is the app-level fallback for errors no handler wrote,
// such as unknown routes and panics caught by recover.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(dto.ErrorResponse{
				Error:     fe.Message,
				RequestID: middleware.GetRequestID(c),
			})
		}
		return respondError(c, log, err)
	}
}
