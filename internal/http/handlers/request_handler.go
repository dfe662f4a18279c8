package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/http/dto"
	"github.com/guidemeet/backend/internal/middleware"
	"github.com/guidemeet/backend/internal/services"
	"go.uber.org/zap"
)

// RequestHandler serves the bespoke booking negotiation.
type RequestHandler struct {
	requestService *services.RequestService
	log            *zap.Logger
}

func NewRequestHandler(requestService *services.RequestService, log *zap.Logger) *RequestHandler {
	return &RequestHandler{requestService: requestService, log: log}
}

func (h *RequestHandler) CreateRequest(c *fiber.Ctx) error {
	var req dto.CreateBookingRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	guideID, err := uuid.Parse(req.GuideID)
	if err != nil {
		return badRequest(c, "invalid guide_id")
	}

	r, err := h.requestService.CreateRequest(c.Context(), middleware.GetUserID(c), services.CreateRequestInput{
		GuideID:       guideID,
		StartsAt:      req.StartsAt,
		DurationClass: req.DurationClass,
		Hours:         req.Hours,
		BasePrice:     req.BasePrice,
		Message:       req.Message,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: r})
}

func (h *RequestHandler) ListRequests(c *fiber.Ctx) error {
	limit, offset := paging(c)
	list, err := h.requestService.ListRequests(c.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: list})
}

func (h *RequestHandler) GetRequest(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid request id")
	}
	r, err := h.requestService.GetRequest(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: r})
}

func (h *RequestHandler) AcceptRequest(c *fiber.Ctx) error {
	return h.respond(c, true)
}

func (h *RequestHandler) RejectRequest(c *fiber.Ctx) error {
	return h.respond(c, false)
}

func (h *RequestHandler) respond(c *fiber.Ctx, accept bool) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid request id")
	}
	var req dto.RespondRequest
	_ = c.BodyParser(&req) // note is optional

	r, err := h.requestService.RespondToRequest(c.Context(), id, middleware.GetUserID(c), accept, req.Note)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: r})
}

func (h *RequestHandler) PayRequest(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid request id")
	}
	booking, err := h.requestService.PayRequest(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: booking})
}

func (h *RequestHandler) CancelRequest(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid request id")
	}
	var req dto.CancelRequest
	_ = c.BodyParser(&req)

	r, err := h.requestService.CancelRequest(c.Context(), id, middleware.GetUserID(c), req.Reason)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: r})
}
