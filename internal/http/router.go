package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/guidemeet/backend/internal/config"
	"github.com/guidemeet/backend/internal/http/handlers"
	"github.com/guidemeet/backend/internal/middleware"
	"github.com/guidemeet/backend/internal/rbac"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth    *handlers.AuthHandler
	User    *handlers.UserHandler
	Booking *handlers.BookingHandler
	Request *handlers.RequestHandler
	Admin   *handlers.AdminHandler
	WSHub   *handlers.WSHub
}

func SetupRouter(app *fiber.App, cfg *config.Config, log *zap.Logger, rdb *redis.Client, h Handlers) {
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	if rdb != nil {
		api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute, log))
	}

	api.Post("/auth/register", h.Auth.Register)

	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	protected.Post("/auth/refresh", h.Auth.Refresh)

	// User
	protected.Get("/me", h.User.GetMe)
	protected.Post("/me/ping", h.User.Ping)
	protected.Post("/messages", h.User.SendMessage)

	// Bookings
	protected.Post("/bookings", middleware.RequirePermission(rbac.PermBookTour), h.Booking.CreateBooking)
	protected.Get("/bookings", h.Booking.ListBookings)
	protected.Get("/bookings/:id", h.Booking.GetBooking)
	protected.Post("/bookings/:id/confirm", middleware.RequirePermission(rbac.PermConfirmBooking), h.Booking.ConfirmBooking)
	protected.Post("/bookings/:id/cancel", h.Booking.CancelBooking)
	protected.Post("/bookings/:id/attendance", h.Booking.ReportAttendance)
	protected.Get("/bookings/:id/escrow", h.Booking.GetEscrow)
	protected.Get("/bookings/:id/events", h.Booking.GetBookingEvents)

	// Bespoke requests
	protected.Post("/requests", middleware.RequirePermission(rbac.PermCreateRequest), h.Request.CreateRequest)
	protected.Get("/requests", h.Request.ListRequests)
	protected.Get("/requests/:id", h.Request.GetRequest)
	protected.Post("/requests/:id/accept", middleware.RequirePermission(rbac.PermRespondRequest), h.Request.AcceptRequest)
	protected.Post("/requests/:id/reject", middleware.RequirePermission(rbac.PermRespondRequest), h.Request.RejectRequest)
	protected.Post("/requests/:id/pay", h.Request.PayRequest)
	protected.Post("/requests/:id/cancel", h.Request.CancelRequest)

	// Admin
	admin := protected.Group("/admin")
	admin.Get("/bookings/:id/evidence", middleware.RequirePermission(rbac.PermViewEvidence), h.Admin.GetDisputeEvidence)
	admin.Post("/bookings/:id/resolve", middleware.RequirePermission(rbac.PermResolveDispute), h.Admin.ResolveDispute)
	admin.Post("/bookings/:id/settle", middleware.RequirePermission(rbac.PermSettleEscrow), h.Admin.SettleEscrow)
	admin.Post("/requests/sweep", middleware.RequirePermission(rbac.PermSweepRequests), h.Admin.SweepRequests)

	if h.WSHub != nil {
		app.Use("/ws", handlers.WSUpgradeMiddleware())
		app.Get("/ws", websocket.New(h.WSHub.HandleWS))
	}
}
