package services

import (
	"context"
	"errors"
	"strings"

	"github.com/Dhoini/clipgo-booking/internal/domain"
	"github.com/Dhoini/clipgo-booking/internal/models"
	"github.com/Dhoini/clipgo-booking/internal/repository"
	"github.com/Dhoini/clipgo-booking/pkg/logger"

	"github.com/google/uuid"
)

// ShopService - каталог барбершопов, мастеров и отзывов.
type ShopService struct {
	shops   repository.ShopRepository
	reviews repository.ReviewRepository
	log     *logger.Logger
}

func NewShopService(shops repository.ShopRepository, reviews repository.ReviewRepository, log *logger.Logger) *ShopService {
	return &ShopService{shops: shops, reviews: reviews, log: log}
}

// ListActive возвращает барбершопы, видимые в каталоге.
func (s *ShopService) ListActive(ctx context.Context) ([]models.Shop, error) {
	return s.shops.ListActive(ctx)
}

// Get возвращает активный барбершоп.
func (s *ShopService) Get(ctx context.Context, shopID int64) (*models.Shop, error) {
	shop, err := s.shops.GetByID(ctx, shopID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrShopNotFound
		}
		return nil, err
	}
	if !shop.Active {
		return nil, domain.ErrShopNotFound
	}
	return shop, nil
}

func (s *ShopService) ListBarbers(ctx context.Context, shopID int64) ([]models.Barber, error) {
	if _, err := s.Get(ctx, shopID); err != nil {
		return nil, err
	}
	return s.shops.ListBarbers(ctx, shopID)
}

func (s *ShopService) ListReviews(ctx context.Context, shopID int64) ([]models.Review, error) {
	if _, err := s.Get(ctx, shopID); err != nil {
		return nil, err
	}
	return s.reviews.ListByShop(ctx, shopID)
}

// ReviewService принимает отзывы о завершенных записях.
type ReviewService struct {
	reviews  repository.ReviewRepository
	bookings repository.BookingRepository
	log      *logger.Logger
}

func NewReviewService(reviews repository.ReviewRepository, bookings repository.BookingRepository, log *logger.Logger) *ReviewService {
	return &ReviewService{reviews: reviews, bookings: bookings, log: log}
}

// Create сохраняет отзыв. Один отзыв на запись, только для своей завершенной записи.
func (s *ReviewService) Create(ctx context.Context, userID, bookingID string, rating int, comment string) (*models.Review, error) {
	var verrs domain.ValidationErrors
	if rating < 1 || rating > 5 {
		verrs.Add("rating", "must be between 1 and 5")
	}
	comment = strings.TrimSpace(comment)
	if len(comment) > 2000 {
		verrs.Add("comment", "must be at most 2000 characters")
	}
	if verrs.HasErrors() {
		return nil, verrs
	}

	if !validUUID(bookingID) {
		return nil, domain.ErrBookingNotFound
	}
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, err
	}
	if booking.UserID != userID {
		return nil, domain.ErrBookingNotFound
	}
	if booking.Status != models.BookingCompleted {
		return nil, domain.ErrReviewNotAllowed
	}

	review := &models.Review{
		ID:        uuid.NewString(),
		UserID:    userID,
		ShopID:    booking.ShopID,
		BookingID: booking.ID,
		Rating:    rating,
		Comment:   comment,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.ErrAlreadyReviewed
		}
		s.log.Errorw("Failed to save review", "bookingID", bookingID, "error", err)
		return nil, err
	}

	s.log.Infow("Review created", "reviewID", review.ID, "shopID", review.ShopID, "rating", rating)
	return review, nil
}
