package handlers

import (
	"net/http"
	"strconv"

	"github.com/Dhoini/clipgo-booking/internal/models"
	"github.com/Dhoini/clipgo-booking/internal/services"
	"github.com/Dhoini/clipgo-booking/pkg/logger"
	"github.com/Dhoini/clipgo-booking/pkg/req"
	"github.com/Dhoini/clipgo-booking/pkg/res"

	"github.com/gin-gonic/gin"
)

// CatalogHandler - публичные данные: тарифы, барбершопы, сетка записи, промокоды.
type CatalogHandler struct {
	shops    *services.ShopService
	promos   *services.PromoService
	bookings *services.BookingService
	log      *logger.Logger
}

func NewCatalogHandler(shops *services.ShopService, promos *services.PromoService, bookings *services.BookingService, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		shops:    shops,
		promos:   promos,
		bookings: bookings,
		log:      log,
	}
}

type ValidatePromoRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

func (h *CatalogHandler) Plans(c *gin.Context) {
	res.JsonResponse(c.Writer, models.Plans(), http.StatusOK)
}

func (h *CatalogHandler) Shops(c *gin.Context) {
	shops, err := h.shops.ListActive(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if shops == nil {
		shops = []models.Shop{}
	}
	res.JsonResponse(c.Writer, shops, http.StatusOK)
}

func (h *CatalogHandler) Shop(c *gin.Context) {
	shopID, ok := shopIDParam(c)
	if !ok {
		return
	}
	shop, err := h.shops.Get(c.Request.Context(), shopID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	res.JsonResponse(c.Writer, shop, http.StatusOK)
}

func (h *CatalogHandler) Barbers(c *gin.Context) {
	shopID, ok := shopIDParam(c)
	if !ok {
		return
	}
	barbers, err := h.shops.ListBarbers(c.Request.Context(), shopID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	res.JsonResponse(c.Writer, barbers, http.StatusOK)
}

func (h *CatalogHandler) Reviews(c *gin.Context) {
	shopID, ok := shopIDParam(c)
	if !ok {
		return
	}
	reviews, err := h.shops.ListReviews(c.Request.Context(), shopID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	res.JsonResponse(c.Writer, reviews, http.StatusOK)
}

// Slots обрабатывает GET /slots?days=N. Дни ограничены сверху MaxSlotDays.
func (h *CatalogHandler) Slots(c *gin.Context) {
	days := services.DefaultSlotDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			abortWith(c, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = min(n, services.MaxSlotDays)
	}
	res.JsonResponse(c.Writer, services.GenerateTimeSlots(h.bookings.Today(), days), http.StatusOK)
}

// ValidatePromo обрабатывает POST /promo/validate
func (h *CatalogHandler) ValidatePromo(c *gin.Context) {
	body, err := req.HandleBody[ValidatePromoRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}
	result, err := h.promos.Validate(c.Request.Context(), body.Code)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	res.JsonResponse(c.Writer, result, http.StatusOK)
}
