package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/guidemeet/backend/internal/http/dto"
	"github.com/guidemeet/backend/internal/middleware"
	"github.com/guidemeet/backend/internal/policy"
	"github.com/guidemeet/backend/internal/services"
	"go.uber.org/zap"
)

type AdminHandler struct {
	bookingService    *services.BookingService
	disputeService    *services.DisputeService
	settlementService *services.SettlementService
	requestService    *services.RequestService
	log               *zap.Logger
}

func NewAdminHandler(
	bookingService *services.BookingService,
	disputeService *services.DisputeService,
	settlementService *services.SettlementService,
	requestService *services.RequestService,
	log *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		bookingService:    bookingService,
		disputeService:    disputeService,
		settlementService: settlementService,
		requestService:    requestService,
		log:               log,
	}
}

func (h *AdminHandler) GetDisputeEvidence(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	report, err := h.disputeService.GetDisputeEvidence(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: report})
}

func (h *AdminHandler) ResolveDispute(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	var req dto.ResolveDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.bookingService.ResolveDispute(c.Context(), id, middleware.GetUserID(c), services.ResolveDisputeInput{
		Resolution: req.Resolution,
		Note:       req.Note,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res})
}

func (h *AdminHandler) SettleEscrow(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	var req dto.SettleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	var in policy.Instruction
	switch policy.InstructionKind(req.Kind) {
	case policy.InstructionRelease:
		in = policy.Release()
	case policy.InstructionRefundFull:
		in = policy.RefundFull()
	case policy.InstructionRefundPartial:
		in = policy.RefundPartial(req.Refund, req.Compensation)
	default:
		return badRequest(c, "kind must be RELEASE, REFUND_FULL or REFUND_PARTIAL")
	}

	res, err := h.settlementService.Settle(c.Context(), id, middleware.GetUserID(c), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res})
}

func (h *AdminHandler) SweepRequests(c *fiber.Ctx) error {
	var req dto.SweepRequest
	_ = c.BodyParser(&req)

	n, err := h.requestService.SweepExpired(c.Context(), req.BatchSize)
	if err != nil && n == 0 {
		return respondError(c, h.log, err)
	}
	if err != nil {
		h.log.Warn("sweep finished with errors", zap.Int("flipped", n), zap.Error(err))
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.SweepResponse{Flipped: n}})
}
