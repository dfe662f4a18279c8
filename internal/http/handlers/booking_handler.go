package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/http/dto"
	"github.com/guidemeet/backend/internal/middleware"
	"github.com/guidemeet/backend/internal/services"
	"go.uber.org/zap"
)

type BookingHandler struct {
	bookingService *services.BookingService
	log            *zap.Logger
}

func NewBookingHandler(bookingService *services.BookingService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{bookingService: bookingService, log: log}
}

func (h *BookingHandler) CreateBooking(c *fiber.Ctx) error {
	var req dto.CreateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	tourID, err := uuid.Parse(req.TourID)
	if err != nil {
		return badRequest(c, "invalid tour_id")
	}
	if req.Participants == 0 {
		req.Participants = 1
	}

	booking, err := h.bookingService.CreateBooking(c.Context(), middleware.GetUserID(c), tourID, req.Participants)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: booking})
}

func (h *BookingHandler) ListBookings(c *fiber.Ctx) error {
	limit, offset := paging(c)
	bookings, err := h.bookingService.ListBookings(c.Context(), middleware.GetUserID(c), c.Query("status"), limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: bookings})
}

func (h *BookingHandler) GetBooking(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	booking, err := h.bookingService.GetBooking(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: booking})
}

func (h *BookingHandler) ConfirmBooking(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	booking, err := h.bookingService.ConfirmBooking(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: booking})
}

func (h *BookingHandler) CancelBooking(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	var req dto.CancelRequest
	_ = c.BodyParser(&req) // reason is optional

	res, err := h.bookingService.CancelBooking(c.Context(), id, middleware.GetUserID(c), req.Reason)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res})
}

func (h *BookingHandler) ReportAttendance(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	var req dto.ReportAttendanceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.bookingService.ReportAttendance(c.Context(), id, middleware.GetUserID(c), req.Outcome)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res})
}

func (h *BookingHandler) GetEscrow(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	escrow, err := h.bookingService.GetEscrow(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: escrow})
}

func (h *BookingHandler) GetBookingEvents(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	limit, offset := paging(c)
	trail, err := h.bookingService.ListBookingEvents(c.Context(), id, middleware.GetUserID(c), limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: trail})
}
