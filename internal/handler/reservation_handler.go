// Package handler exposes the booking lifecycle over HTTP. Handlers bind and
// translate; every decision about state lives in the application layer.
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/venuelane/service-reservation/internal/application"
	"github.com/venuelane/service-reservation/internal/domain/reservation"
	"github.com/venuelane/service-reservation/internal/platform/auth"
	"github.com/venuelane/service-reservation/internal/platform/middleware"
	"github.com/venuelane/service-reservation/internal/platform/response"
)

// ReservationHandler handles booking endpoints for staff plus the customer's
// token-gated response endpoint.
type ReservationHandler struct {
	service *application.ReservationService
	jwt     *auth.JWTManager
	logger  *zap.Logger
}

// NewReservationHandler creates a new ReservationHandler.
func NewReservationHandler(service *application.ReservationService, jwt *auth.JWTManager, logger *zap.Logger) *ReservationHandler {
	return &ReservationHandler{service: service, jwt: jwt, logger: logger}
}

// RegisterRoutes registers the reservation routes.
func (h *ReservationHandler) RegisterRoutes(api *gin.RouterGroup) {
	// The respond endpoint authenticates with the response token in the body,
	// not a bearer token.
	api.POST("/reservations/:reference/respond", h.Respond)

	staff := api.Group("/bookings", middleware.AuthMiddleware(h.jwt))
	{
		staff.POST("", h.Create)
		staff.GET("", h.List)
		staff.GET("/:id", h.Get)
		staff.GET("/:id/actions", h.Actions)
		staff.GET("/:id/history", h.History)
		staff.POST("/:id/transition", h.Transition)
		staff.POST("/:id/amend-dates", h.AmendDates)
	}
}

type createBookingRequest struct {
	CustomerName  string               `json:"customer_name" binding:"required"`
	CustomerEmail string               `json:"customer_email" binding:"required,email"`
	Schedule      reservation.Schedule `json:"schedule" binding:"required"`
	Notes         string               `json:"notes"`
}

// Create creates a pending booking on behalf of a customer.
func (h *ReservationHandler) Create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	bk, err := h.service.CreateBooking(c.Request.Context(), req.CustomerName, req.CustomerEmail, req.Schedule, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, bk)
}

// List returns bookings with pagination, optionally filtered by status.
func (h *ReservationHandler) List(c *gin.Context) {
	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", 20)

	result, err := h.service.ListBookings(c.Request.Context(), c.Query("status"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// Get returns one booking.
func (h *ReservationHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	bk, err := h.service.GetBooking(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, bk)
}

// Actions returns the actions legal for the booking right now.
func (h *ReservationHandler) Actions(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	actions, err := h.service.GetAvailableActions(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, actions)
}

// History returns the booking's status audit trail.
func (h *ReservationHandler) History(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	entries, err := h.service.GetHistory(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, entries)
}

// Transition attempts a status transition on the booking.
func (h *ReservationHandler) Transition(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req application.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.Actor == "" {
		req.Actor = callerID(c)
	}

	result, err := h.service.RequestTransition(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// AmendDates replaces a confirmed booking's schedule.
func (h *ReservationHandler) AmendDates(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req application.AmendDatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.Actor == "" {
		req.Actor = callerID(c)
	}

	result, err := h.service.AmendDates(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Respond handles the customer's token-gated deposit response.
func (h *ReservationHandler) Respond(c *gin.Context) {
	reference := c.Param("reference")

	var req application.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	bk, err := h.service.SubmitDepositEvidence(c.Request.Context(), reference, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, bk)
}

// --- Helpers ---

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+name+", expected a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func callerID(c *gin.Context) string {
	if id, ok := middleware.GetUserID(c); ok {
		return id.String()
	}
	return ""
}
