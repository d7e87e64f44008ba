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

// AdminHandler - вход администраторов и управление своим барбершопом.
// Барбершоп всегда берется из токена, а не из запроса.
type AdminHandler struct {
	admin    *services.AdminService
	bookings *services.BookingService
	log      *logger.Logger
}

func NewAdminHandler(admin *services.AdminService, bookings *services.BookingService, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		admin:    admin,
		bookings: bookings,
		log:      log,
	}
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

type BookingStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type UpdateShopRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type AddBarberRequest struct {
	Name            string `json:"name" validate:"required,max=100"`
	Bio             string `json:"bio" validate:"max=1000"`
	YearsExperience int    `json:"years_experience" validate:"gte=0,lte=80"`
}

// Login обрабатывает POST /admin/login
func (h *AdminHandler) Login(c *gin.Context) {
	body, err := req.HandleBody[LoginRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}
	result, err := h.admin.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	res.JsonResponse(c.Writer, result, http.StatusOK)
}

// Dashboard обрабатывает GET /admin/dashboard
func (h *AdminHandler) Dashboard(c *gin.Context) {
	shopID, ok := currentShop(c, h.log)
	if !ok {
		return
	}
	dashboard, err := h.admin.Dashboard(c.Request.Context(), shopID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	res.JsonResponse(c.Writer, dashboard, http.StatusOK)
}

// Bookings обрабатывает GET /admin/bookings?limit=N
func (h *AdminHandler) Bookings(c *gin.Context) {
	shopID, ok := currentShop(c, h.log)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			abortWith(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	bookings, err := h.bookings.ListForShop(c.Request.Context(), shopID, limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	res.JsonResponse(c.Writer, bookings, http.StatusOK)
}

// SetBookingStatus обрабатывает PATCH /admin/bookings/:id/status
func (h *AdminHandler) SetBookingStatus(c *gin.Context) {
	shopID, ok := currentShop(c, h.log)
	if !ok {
		return
	}
	body, err := req.HandleBody[BookingStatusRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}
	booking, err := h.bookings.SetStatus(c.Request.Context(), c.Param("id"), shopID, models.BookingStatus(body.Status))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	res.JsonResponse(c.Writer, booking, http.StatusOK)
}

// UpdateShop обрабатывает PATCH /admin/shop
func (h *AdminHandler) UpdateShop(c *gin.Context) {
	shopID, ok := currentShop(c, h.log)
	if !ok {
		return
	}
	body, err := req.HandleBody[UpdateShopRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}
	shop, err := h.admin.SetShopActive(c.Request.Context(), shopID, *body.Active)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	res.JsonResponse(c.Writer, shop, http.StatusOK)
}

// AddBarber обрабатывает POST /admin/barbers
func (h *AdminHandler) AddBarber(c *gin.Context) {
	shopID, ok := currentShop(c, h.log)
	if !ok {
		return
	}
	body, err := req.HandleBody[AddBarberRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}
	barber, err := h.admin.AddBarber(c.Request.Context(), shopID, services.AddBarberInput{
		Name:            body.Name,
		Bio:             body.Bio,
		YearsExperience: body.YearsExperience,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	res.JsonResponse(c.Writer, barber, http.StatusCreated)
}
