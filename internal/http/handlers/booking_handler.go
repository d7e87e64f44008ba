package handlers

import (
	"net/http"

	"github.com/Dhoini/clipgo-booking/internal/middleware"
	"github.com/Dhoini/clipgo-booking/internal/models"
	"github.com/Dhoini/clipgo-booking/internal/services"
	"github.com/Dhoini/clipgo-booking/pkg/logger"
	"github.com/Dhoini/clipgo-booking/pkg/req"
	"github.com/Dhoini/clipgo-booking/pkg/res"

	"github.com/gin-gonic/gin"
)

// BookingHandler - записи пользователя и отзывы.
type BookingHandler struct {
	bookings *services.BookingService
	reviews  *services.ReviewService
	log      *logger.Logger
}

func NewBookingHandler(bookings *services.BookingService, reviews *services.ReviewService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		bookings: bookings,
		reviews:  reviews,
		log:      log,
	}
}

type CreateBookingRequest struct {
	ShopID     int64   `json:"shop_id" validate:"required,gt=0"`
	Date       string  `json:"appointment_date" validate:"required"`
	Time       string  `json:"appointment_time" validate:"required"`
	BarberName *string `json:"barber_name" validate:"omitempty,max=100"`
	Notes      *string `json:"notes" validate:"omitempty,max=500"`
	Phone      *string `json:"phone" validate:"omitempty,max=32"`
	Email      string  `json:"email" validate:"omitempty,email"`
}

type CreateReviewRequest struct {
	BookingID string `json:"booking_id" validate:"required"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

// Create обрабатывает POST /bookings
func (h *BookingHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c, h.log)
	if !ok {
		return
	}
	body, err := req.HandleBody[CreateBookingRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	email := middleware.UserEmail(c)
	if email == "" {
		email = body.Email
	}

	booking, err := h.bookings.Create(c.Request.Context(), services.CreateBookingInput{
		UserID:     userID,
		Email:      email,
		ShopID:     body.ShopID,
		Date:       body.Date,
		Time:       body.Time,
		BarberName: body.BarberName,
		Notes:      body.Notes,
		Phone:      body.Phone,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	res.JsonResponse(c.Writer, booking, http.StatusCreated)
}

// List обрабатывает GET /bookings
func (h *BookingHandler) List(c *gin.Context) {
	userID, ok := currentUser(c, h.log)
	if !ok {
		return
	}
	bookings, err := h.bookings.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	res.JsonResponse(c.Writer, bookings, http.StatusOK)
}

// Cancel обрабатывает POST /bookings/:id/cancel
func (h *BookingHandler) Cancel(c *gin.Context) {
	userID, ok := currentUser(c, h.log)
	if !ok {
		return
	}
	booking, err := h.bookings.Cancel(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	res.JsonResponse(c.Writer, booking, http.StatusOK)
}

// CreateReview обрабатывает POST /reviews
func (h *BookingHandler) CreateReview(c *gin.Context) {
	userID, ok := currentUser(c, h.log)
	if !ok {
		return
	}
	body, err := req.HandleBody[CreateReviewRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	review, err := h.reviews.Create(c.Request.Context(), userID, body.BookingID, body.Rating, body.Comment)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	res.JsonResponse(c.Writer, review, http.StatusCreated)
}
