package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Dhoini/clipgo-booking/internal/domain"
	"github.com/Dhoini/clipgo-booking/internal/middleware"
	"github.com/Dhoini/clipgo-booking/internal/models"
	"github.com/Dhoini/clipgo-booking/internal/services"
	"github.com/Dhoini/clipgo-booking/pkg/logger"
	"github.com/Dhoini/clipgo-booking/pkg/req"
	"github.com/Dhoini/clipgo-booking/pkg/res"

	"github.com/gin-gonic/gin"
)

const idempotencyHeader = "Idempotency-Key"

// SubscriptionHandler обрабатывает HTTP запросы, связанные с подписками.
type SubscriptionHandler struct {
	service *services.SubscriptionService
	log     *logger.Logger
}

// NewSubscriptionHandler создает новый экземпляр SubscriptionHandler.
func NewSubscriptionHandler(service *services.SubscriptionService, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		service: service,
		log:     log,
	}
}

type CheckoutRequest struct {
	ShopID    int64  `json:"shop_id" validate:"required,gt=0"`
	PlanID    string `json:"plan_id" validate:"required"`
	PromoCode string `json:"promo_code" validate:"omitempty,max=64"`
	// Email нужен, если его нет в токене
	Email string `json:"email" validate:"omitempty,email"`
}

type ConfirmRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

type ChangePlanRequest struct {
	PlanID    string `json:"plan_id" validate:"required"`
	PromoCode string `json:"promo_code" validate:"omitempty,max=64"`
}

// Checkout обрабатывает POST /subscriptions/checkout
func (h *SubscriptionHandler) Checkout(c *gin.Context) {
	userID, ok := currentUser(c, h.log)
	if !ok {
		return
	}
	body, err := req.HandleBody[CheckoutRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	email := middleware.UserEmail(c)
	if email == "" {
		email = body.Email
	}
	if email == "" {
		abortWith(c, http.StatusBadRequest, "Email is required")
		return
	}

	handle, err := h.service.Initiate(c.Request.Context(), services.InitiateInput{
		UserID:         userID,
		Email:          email,
		ShopID:         body.ShopID,
		PlanID:         body.PlanID,
		PromoCode:      body.PromoCode,
		IdempotencyKey: c.GetHeader(idempotencyHeader),
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	res.JsonResponse(c.Writer, handle, http.StatusCreated)
}

// Confirm обрабатывает POST /subscriptions/confirm. Повторное подтверждение отвечает 200 с той же подпиской.
func (h *SubscriptionHandler) Confirm(c *gin.Context) {
	userID, ok := currentUser(c, h.log)
	if !ok {
		return
	}
	body, err := req.HandleBody[ConfirmRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	sub, err := h.service.ConfirmForUser(c.Request.Context(), userID, body.SessionID)
	switch {
	case err == nil:
		res.JsonResponse(c.Writer, sub, http.StatusCreated)
	case errors.Is(err, domain.ErrDuplicateConfirmation) && sub != nil:
		res.JsonResponse(c.Writer, sub, http.StatusOK)
	default:
		respondError(c, h.log, err)
	}
}

// Current обрабатывает GET /subscriptions/current
func (h *SubscriptionHandler) Current(c *gin.Context) {
	userID, ok := currentUser(c, h.log)
	if !ok {
		return
	}
	sub, err := h.service.Current(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	res.JsonResponse(c.Writer, sub, http.StatusOK)
}

// List обрабатывает GET /subscriptions
func (h *SubscriptionHandler) List(c *gin.Context) {
	userID, ok := currentUser(c, h.log)
	if !ok {
		return
	}
	subs, err := h.service.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if subs == nil {
		subs = []models.Subscription{}
	}
	res.JsonResponse(c.Writer, subs, http.StatusOK)
}

func (h *SubscriptionHandler) Pause(c *gin.Context) {
	h.transition(c, h.service.Pause)
}

func (h *SubscriptionHandler) Resume(c *gin.Context) {
	h.transition(c, h.service.Resume)
}

func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

type transitionFunc func(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error)

func (h *SubscriptionHandler) transition(c *gin.Context, fn transitionFunc) {
	userID, ok := currentUser(c, h.log)
	if !ok {
		return
	}
	sub, err := fn(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	res.JsonResponse(c.Writer, sub, http.StatusOK)
}

// ChangePlan обрабатывает POST /subscriptions/:id/change-plan
func (h *SubscriptionHandler) ChangePlan(c *gin.Context) {
	userID, ok := currentUser(c, h.log)
	if !ok {
		return
	}
	body, err := req.HandleBody[ChangePlanRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	handle, err := h.service.ChangePlan(c.Request.Context(), userID, c.Param("id"), body.PlanID, body.PromoCode, c.GetHeader(idempotencyHeader))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	res.JsonResponse(c.Writer, handle, http.StatusCreated)
}
