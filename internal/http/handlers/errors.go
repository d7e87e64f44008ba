package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Dhoini/clipgo-booking/internal/domain"
	"github.com/Dhoini/clipgo-booking/internal/middleware"
	"github.com/Dhoini/clipgo-booking/pkg/logger"
	"github.com/Dhoini/clipgo-booking/pkg/res"

	"github.com/gin-gonic/gin"
)

// statusFor сопоставляет категорию доменной ошибки со статусом HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError пишет ответ об ошибке сервиса. Внутренние детали наружу не попадают.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	status := statusFor(err)
	resp := res.ErrorResponse{ErrorCode: status}

	var verrs domain.ValidationErrors
	var appErr *domain.AppError
	switch {
	case errors.As(err, &verrs):
		resp.Error = "Invalid request data"
		resp.Details = verrs.Map()
	case errors.As(err, &appErr):
		resp.Error = appErr.Message
		resp.Details = appErr.Code
	case status == http.StatusBadGateway:
		resp.Error = "Payment provider is temporarily unavailable, please try again"
	case status == http.StatusBadRequest:
		resp.Error = err.Error()
	default:
		resp.Error = "Internal server error"
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	res.JsonErrorResponse(c.Writer, resp, status, log)
	c.Abort()
}

func abortWith(c *gin.Context, status int, message string) {
	res.JsonResponse(c.Writer, res.ErrorResponse{Error: message, ErrorCode: status}, status)
	c.Abort()
}

// currentUser достает ID пользователя, установленный middleware аутентификации.
func currentUser(c *gin.Context, log *logger.Logger) (string, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		log.Errorw("UserID not found in context after auth middleware", "path", c.FullPath())
		abortWith(c, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	return userID, true
}

// currentShop достает барбершоп администратора из токена.
func currentShop(c *gin.Context, log *logger.Logger) (int64, bool) {
	shopID, ok := middleware.ShopID(c)
	if !ok {
		log.Errorw("ShopID not found in context after auth middleware", "path", c.FullPath())
		abortWith(c, http.StatusForbidden, "Admin access required")
		return 0, false
	}
	return shopID, true
}

func shopIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("shop_id"), 10, 64)
	if err != nil || id <= 0 {
		abortWith(c, http.StatusBadRequest, "Invalid shop ID")
		return 0, false
	}
	return id, true
}
