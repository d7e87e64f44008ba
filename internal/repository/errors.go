package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate дубликат записи
	ErrDuplicate = errors.New("duplicate record")

	// ErrStatusMismatch условное обновление не затронуло ни одной строки:
	// запись существует, но находится в другом состоянии (или не существует).
	ErrStatusMismatch = errors.New("status mismatch")

	// ErrLiveSubscriptionExists у пользователя уже есть активная или приостановленная подписка
	ErrLiveSubscriptionExists = errors.New("live subscription already exists")

	// ErrNoEligibleSubscription нет активной подписки для записи
	ErrNoEligibleSubscription = errors.New("no active subscription")

	// ErrAllowanceExhausted лимит стрижек за период исчерпан
	ErrAllowanceExhausted = errors.New("allowance exhausted")

	// ErrLimitReached лимит использований промокода исчерпан
	ErrLimitReached = errors.New("usage limit reached")
)

const (
	pgUniqueViolation = "23505"

	// Имена ограничений из миграций.
	constraintOneLivePerUser = "subscriptions_one_live_per_user"
)

// uniqueViolation возвращает имя нарушенного ограничения, если err - ошибка уникальности Postgres.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
