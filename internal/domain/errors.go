package domain

import (
	"errors"
	"fmt"
)

// Категории ошибок. Обработчики HTTP сопоставляют их со статусами ответа.
var (
	// ErrValidation некорректные входные данные, повтор бессмысленен
	ErrValidation = errors.New("validation error")

	// ErrNotFound сущность не найдена
	ErrNotFound = errors.New("not found")

	// ErrConflict конфликт состояния (повторное подтверждение, недопустимый переход)
	ErrConflict = errors.New("conflict")

	// ErrExternalService сбой платежного провайдера или сервиса уведомлений
	ErrExternalService = errors.New("external service error")

	// ErrUnauthorized неверные учетные данные
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden нет прав на операцию
	ErrForbidden = errors.New("forbidden")
)

// AppError - конкретная ошибка приложения с сообщением для пользователя.
type AppError struct {
	Kind    error
	Code    string
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap позволяет errors.Is(err, ErrNotFound) и т.п.
func (e *AppError) Unwrap() error {
	return e.Kind
}

func newError(kind error, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

// Подписки
var (
	ErrInvalidPlan           = newError(ErrValidation, "invalid_plan", "Invalid subscription plan")
	ErrSubscriptionNotFound  = newError(ErrNotFound, "subscription_not_found", "Subscription not found")
	ErrNoActiveSubscription  = newError(ErrNotFound, "no_active_subscription", "You need an active subscription to book appointments")
	ErrAlreadySubscribed     = newError(ErrConflict, "already_subscribed", "You already have a subscription")
	ErrInvalidTransition     = newError(ErrConflict, "invalid_transition", "Operation is not allowed in the current subscription state")
	ErrDuplicateConfirmation = newError(ErrConflict, "duplicate_confirmation", "Subscription already confirmed")
	ErrSessionNotFound       = newError(ErrNotFound, "session_not_found", "Checkout session not found")
	ErrSessionIncomplete     = newError(ErrConflict, "session_incomplete", "Payment has not been completed yet")
)

// Записи
var (
	ErrShopNotFound       = newError(ErrNotFound, "shop_not_found", "Shop not found")
	ErrBookingNotFound    = newError(ErrNotFound, "booking_not_found", "Booking not found")
	ErrAllowanceExhausted = newError(ErrConflict, "allowance_exhausted", "You have used all haircuts included in your plan for this period")
	ErrInvalidSlot        = newError(ErrValidation, "invalid_slot", "Invalid appointment date or time")
	ErrInvalidStatus      = newError(ErrValidation, "invalid_status", "Invalid booking status")
)

// Промокоды
var (
	ErrPromoNotFound          = newError(ErrNotFound, "promo_not_found", "Invalid promo code")
	ErrPromoExpired           = newError(ErrValidation, "promo_expired", "This promo code has expired")
	ErrPromoUsageLimitReached = newError(ErrValidation, "promo_usage_limit", "This promo code has reached its usage limit")
)

// Отзывы и администрирование
var (
	ErrReviewNotAllowed   = newError(ErrConflict, "review_not_allowed", "Only completed bookings can be reviewed")
	ErrAlreadyReviewed    = newError(ErrConflict, "already_reviewed", "This booking has already been reviewed")
	ErrInvalidCredentials = newError(ErrUnauthorized, "invalid_credentials", "Invalid username or password")
)

// ValidationError представляет ошибку валидации поля
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors представляет набор ошибок валидации
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	if len(e) == 1 {
		return fmt.Sprintf("validation failed: %s - %s", e[0].Field, e[0].Message)
	}
	return fmt.Sprintf("validation failed: %d errors", len(e))
}

// Is относит ValidationErrors к категории ErrValidation.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Add добавляет ошибку валидации
func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}

// HasErrors проверяет наличие ошибок
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Map возвращает ошибки в виде поле -> сообщение (для ответа API)
func (e ValidationErrors) Map() map[string]string {
	out := make(map[string]string, len(e))
	for _, v := range e {
		out[v.Field] = v.Message
	}
	return out
}

// ExternalServiceError представляет ошибку внешнего сервиса
type ExternalServiceError struct {
	Service     string
	Operation   string
	OriginalErr error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s service error [%s]: %v", e.Service, e.Operation, e.OriginalErr)
}

// Unwrap возвращает оригинальную ошибку
func (e *ExternalServiceError) Unwrap() error {
	return e.OriginalErr
}

// Is относит ошибку к категории ErrExternalService.
func (e *ExternalServiceError) Is(target error) bool {
	return target == ErrExternalService
}

// NewExternalServiceError создает новую ошибку внешнего сервиса
func NewExternalServiceError(service, operation string, err error) *ExternalServiceError {
	return &ExternalServiceError{
		Service:     service,
		Operation:   operation,
		OriginalErr: err,
	}
}
