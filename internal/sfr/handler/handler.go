package handler

import (
	"context"
	"net/http"
	"strconv"

	"sfr_ops_backend/internal/sfr/domain"
	"sfr_ops_backend/internal/sfr/lifecycle"
	"sfr_ops_backend/internal/sfr/repository"
	"sfr_ops_backend/internal/sfr/transport"
	"sfr_ops_backend/platform/httpkit"
	"sfr_ops_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
)

// LifecycleService is the part of lifecycle.Service the handler calls.
type LifecycleService interface {
	Create(ctx context.Context, in lifecycle.CreateInput, actor domain.Actor, opts lifecycle.MutationOptions) (lifecycle.Result, error)
	ApplyMutation(ctx context.Context, in lifecycle.MutationInput, actor domain.Actor, opts lifecycle.MutationOptions) (lifecycle.Result, error)
	Cancel(ctx context.Context, requestID int64, actor domain.Actor, opts lifecycle.MutationOptions) (lifecycle.Result, error)
	ConfirmHandling(ctx context.Context, requestID int64, actor domain.Actor, opts lifecycle.MutationOptions) (lifecycle.Result, error)
	SendReconfirmation(ctx context.Context, requestID int64, actor domain.Actor, automatic bool, opts lifecycle.MutationOptions) (lifecycle.Result, error)
	ConfirmDepartureUpdate(ctx context.Context, requestID int64, actor domain.Actor, opts lifecycle.MutationOptions) (lifecycle.Result, error)
	UpdateFuelBooking(ctx context.Context, requestID int64, upd lifecycle.FuelUpdate, actor domain.Actor, opts lifecycle.MutationOptions) (lifecycle.Result, error)
	UpdateServiceConfirmation(ctx context.Context, requestID, bookingID int64, state domain.ServiceState, actor domain.Actor, opts lifecycle.MutationOptions) (lifecycle.Result, error)
	SetAOG(ctx context.Context, requestID int64, on bool, actor domain.Actor, opts lifecycle.MutationOptions) (lifecycle.Result, error)
	SetUnableToSupport(ctx context.Context, requestID int64, on bool, actor domain.Actor, opts lifecycle.MutationOptions) (lifecycle.Result, error)
	Get(ctx context.Context, requestID int64) (*domain.Request, error)
	Status(ctx context.Context, requestID int64) (domain.Status, error)
	Activity(ctx context.Context, requestID int64, limit int) ([]repository.ActivityLogEntry, error)
}

// Handler handles HTTP requests for servicing & fueling requests.
type Handler struct {
	svc LifecycleService
	val *validator.Validator
}

// New creates a new SFR handler.
func New(svc LifecycleService, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the SFR routes. Handler-facing operations need a staff role.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.GET("/:id/status", h.Status)
	rg.GET("/:id/activity", h.Activity)
	rg.PATCH("/:id", h.Mutate)
	rg.POST("/:id/cancel", h.Cancel)

	staff := rg.Group("", httpkit.RequireRole(httpkit.RoleStaff, httpkit.RoleSupervisor))
	staff.POST("/:id/handling-confirmation", h.ConfirmHandling)
	staff.POST("/:id/reconfirmation", h.SendReconfirmation)
	staff.POST("/:id/departure-update-confirmation", h.ConfirmDepartureUpdate)
	staff.PUT("/:id/fuel", h.UpdateFuelBooking)
	staff.PUT("/:id/services/:bookingId", h.UpdateServiceConfirmation)
	staff.PUT("/:id/aog", h.SetAOG)
	staff.PUT("/:id/unable-to-support", h.SetUnableToSupport)
}

// Create handles POST /api/v1/sfr
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	res, err := h.svc.Create(c.Request.Context(), req.ToCreateInput(), actorOf(identity), optionsFor(identity))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.NewResultResponse(res))
}

// Get handles GET /api/v1/sfr/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	req, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewRequestResponse(req))
}

// Status handles GET /api/v1/sfr/:id/status
func (h *Handler) Status(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	status, err := h.svc.Status(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewStatusResponse(status))
}

// Activity handles GET /api/v1/sfr/:id/activity
func (h *Handler) Activity(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var q transport.ActivityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	entries, err := h.svc.Activity(c.Request.Context(), id, q.Limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewActivityResponse(entries))
}

// Mutate handles PATCH /api/v1/sfr/:id
func (h *Handler) Mutate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.MutationRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	in, opts := req.ToMutationInput(id)
	if !identity.IsStaff() {
		// Only staff review requests or choose how notifications go out.
		opts = lifecycle.MutationOptions{}
	}
	opts.Privileged = identity.IsPrivileged()

	h.respond(c)(h.svc.ApplyMutation(c.Request.Context(), in, actorOf(identity), opts))
}

// Cancel handles POST /api/v1/sfr/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	h.simple(c, h.svc.Cancel)
}

// ConfirmHandling handles POST /api/v1/sfr/:id/handling-confirmation
func (h *Handler) ConfirmHandling(c *gin.Context) {
	h.simple(c, h.svc.ConfirmHandling)
}

// ConfirmDepartureUpdate handles POST /api/v1/sfr/:id/departure-update-confirmation
func (h *Handler) ConfirmDepartureUpdate(c *gin.Context) {
	h.simple(c, h.svc.ConfirmDepartureUpdate)
}

// SendReconfirmation handles POST /api/v1/sfr/:id/reconfirmation
func (h *Handler) SendReconfirmation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.ReconfirmationRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	h.respond(c)(h.svc.SendReconfirmation(c.Request.Context(), id, actorOf(identity), req.Automatic, optionsFor(identity)))
}

// UpdateFuelBooking handles PUT /api/v1/sfr/:id/fuel
func (h *Handler) UpdateFuelBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.FuelBookingRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	h.respond(c)(h.svc.UpdateFuelBooking(c.Request.Context(), id, req.ToFuelUpdate(), actorOf(identity), optionsFor(identity)))
}

// UpdateServiceConfirmation handles PUT /api/v1/sfr/:id/services/:bookingId
func (h *Handler) UpdateServiceConfirmation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	bookingID, ok := parseID(c, "bookingId")
	if !ok {
		return
	}
	var req transport.ServiceConfirmationRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	h.respond(c)(h.svc.UpdateServiceConfirmation(c.Request.Context(), id, bookingID,
		domain.ServiceState(req.State), actorOf(identity), optionsFor(identity)))
}

// SetAOG handles PUT /api/v1/sfr/:id/aog
func (h *Handler) SetAOG(c *gin.Context) {
	h.toggle(c, h.svc.SetAOG)
}

// SetUnableToSupport handles PUT /api/v1/sfr/:id/unable-to-support
func (h *Handler) SetUnableToSupport(c *gin.Context) {
	h.toggle(c, h.svc.SetUnableToSupport)
}

type simpleOp func(ctx context.Context, requestID int64, actor domain.Actor, opts lifecycle.MutationOptions) (lifecycle.Result, error)

type toggleOp func(ctx context.Context, requestID int64, on bool, actor domain.Actor, opts lifecycle.MutationOptions) (lifecycle.Result, error)

func (h *Handler) simple(c *gin.Context, op simpleOp) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	h.respond(c)(op(c.Request.Context(), id, actorOf(identity), optionsFor(identity)))
}

func (h *Handler) toggle(c *gin.Context, op toggleOp) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.ToggleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	h.respond(c)(op(c.Request.Context(), id, *req.On, actorOf(identity), optionsFor(identity)))
}

func (h *Handler) respond(c *gin.Context) func(lifecycle.Result, error) {
	return func(res lifecycle.Result, err error) {
		if httpkit.HandleError(c, err) {
			return
		}
		httpkit.OK(c, transport.NewResultResponse(res))
	}
}

func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(dst); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}

func parseID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return 0, false
	}
	return id, true
}

func actorOf(identity httpkit.Identity) domain.Actor {
	return domain.Actor{ID: identity.ActorID()}
}

func optionsFor(identity httpkit.Identity) lifecycle.MutationOptions {
	return lifecycle.MutationOptions{Privileged: identity.IsPrivileged()}
}
