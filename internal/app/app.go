package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/auth"
	"github.com/Dhoini/clipgo-booking/internal/config"
	"github.com/Dhoini/clipgo-booking/internal/db"
	"github.com/Dhoini/clipgo-booking/internal/http/handlers"
	"github.com/Dhoini/clipgo-booking/internal/kafka"
	"github.com/Dhoini/clipgo-booking/internal/metrics"
	"github.com/Dhoini/clipgo-booking/internal/middleware"
	"github.com/Dhoini/clipgo-booking/internal/notify"
	"github.com/Dhoini/clipgo-booking/internal/repository"
	"github.com/Dhoini/clipgo-booking/internal/scheduler"
	"github.com/Dhoini/clipgo-booking/internal/services"
	"github.com/Dhoini/clipgo-booking/internal/stripe"
	"github.com/Dhoini/clipgo-booking/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	reminderJobTimeout   = 5 * time.Minute
	pauseSweepJobTimeout = 2 * time.Minute
)

// Repositories - набор репозиториев, с которыми работают сервисы.
type Repositories struct {
	Shops         repository.ShopRepository
	Subscriptions repository.SubscriptionRepository
	Bookings      repository.BookingRepository
	Promos        repository.PromoRepository
	Reviews       repository.ReviewRepository
	Admins        repository.AdminRepository
}

// App представляет собой контейнер для всех компонентов приложения
type App struct {
	Config *config.Config
	Logger *logger.Logger

	Registry    *prometheus.Registry
	HTTPMetrics *metrics.HTTPMetrics

	Subscriptions *services.SubscriptionService
	Bookings      *services.BookingService
	Reminders     *services.ReminderService
	Admin         *services.AdminService

	SubscriptionHandler *handlers.SubscriptionHandler
	BookingHandler      *handlers.BookingHandler
	CatalogHandler      *handlers.CatalogHandler
	AdminHandler        *handlers.AdminHandler
	WebhookHandler      *handlers.WebhookHandler // nil, если секрет вебхука не задан
	OpsHandler          *handlers.OpsHandler

	AuthMiddleware   *middleware.JWTMiddleware
	LoggerMiddleware gin.HandlerFunc

	Scheduler *scheduler.Scheduler

	closers []func() error
}

// NewApp подключает хранилища и внешние сервисы и собирает граф зависимостей.
// Redis и Kafka не обязательны: без них сервис работает без кэша,
// одноразовых отметок и публикации событий.
func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log}
	checks := make(map[string]handlers.Pinger)

	repos, err := a.openStore(ctx, checks)
	if err != nil {
		a.Close()
		return nil, err
	}

	// Интерфейсы получают настоящий nil, а не типизированный nil-указатель.
	var marker services.OnceMarker
	redisCache, err := repository.NewRedisCacheRepository(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Warnw("Redis unavailable, continuing without cache and dedupe markers", "error", err)
	} else {
		a.closers = append(a.closers, redisCache.Close)
		checks["redis"] = redisCache
		repos.Shops = repository.NewCachedShopRepository(repos.Shops, redisCache, log)
		marker = redisCache
		log.Infow("Using cached shop repository")
	}

	var producer kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		if err := kafka.EnsureTopics(ctx, cfg.Kafka.Brokers, log); err != nil {
			log.Warnw("Failed to ensure Kafka topics", "error", err)
		}
		p, err := kafka.NewKafkaProducer(cfg.Kafka.Brokers, log)
		if err != nil {
			log.Errorw("Failed to initialize Kafka producer, continuing without event publishing", "error", err)
		} else {
			producer = p
			a.closers = append(a.closers, p.Close)
		}
	}

	a.Registry = metrics.NewRegistry()
	a.HTTPMetrics = metrics.NewHTTPMetrics(a.Registry)
	bookingMetrics := metrics.NewBookingMetrics(a.Registry)

	notifier := notify.NewNotifier(newEmailSender(cfg, log), newSMSSender(cfg, log), bookingMetrics, log.Named("notify"))
	stripeClient := stripe.NewStripeClient(cfg.Stripe.APIKey, log)
	tokens := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.AdminTokenTTL)
	loc := cfg.Location()

	promos := services.NewPromoService(repos.Promos, log)
	a.Subscriptions = services.NewSubscriptionService(cfg, repos.Subscriptions, repos.Shops, promos, stripeClient, producer, bookingMetrics, log)
	a.Bookings = services.NewBookingService(repos.Bookings, repos.Shops, notifier, producer, bookingMetrics, loc, log)
	a.Reminders = services.NewReminderService(repos.Bookings, repos.Shops, notifier, marker, loc, log)
	a.Admin = services.NewAdminService(repos.Admins, repos.Shops, repos.Subscriptions, repos.Bookings, repos.Promos, tokens, log)
	shops := services.NewShopService(repos.Shops, repos.Reviews, log)
	reviews := services.NewReviewService(repos.Reviews, repos.Bookings, log)
	webhooks := services.NewWebhookService(a.Subscriptions, marker, bookingMetrics, log)

	a.SubscriptionHandler = handlers.NewSubscriptionHandler(a.Subscriptions, log)
	a.BookingHandler = handlers.NewBookingHandler(a.Bookings, reviews, log)
	a.CatalogHandler = handlers.NewCatalogHandler(shops, promos, a.Bookings, log)
	a.AdminHandler = handlers.NewAdminHandler(a.Admin, a.Bookings, log)
	a.OpsHandler = handlers.NewOpsHandler(a.Reminders, checks, log)

	if cfg.Stripe.WebhookSecret != "" {
		a.WebhookHandler, err = handlers.NewWebhookHandler(cfg.Stripe.WebhookSecret, webhooks, log)
		if err != nil {
			a.Close()
			return nil, err
		}
	} else {
		log.Warnw("Stripe webhook secret is not set, webhook endpoint disabled")
	}

	a.AuthMiddleware = middleware.NewJWTMiddleware(log, tokens)
	a.LoggerMiddleware = middleware.RequestLogger(log)

	a.Scheduler = scheduler.New(loc, log.Named("scheduler"))
	if cfg.Scheduler.Enabled {
		if err := a.registerJobs(); err != nil {
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

// openStore выбирает хранилище по database.driver.
func (a *App) openStore(ctx context.Context, checks map[string]handlers.Pinger) (*Repositories, error) {
	cfg, log := a.Config, a.Logger
	if cfg.Database.Driver == "memory" {
		log.Warnw("Using in-memory store, data is lost on restart")
		store := repository.NewInMemoryStore(log)
		return &Repositories{
			Shops:         store.Shops(),
			Subscriptions: store.Subscriptions(),
			Bookings:      store.Bookings(),
			Promos:        store.Promos(),
			Reviews:       store.Reviews(),
			Admins:        store.Admins(),
		}, nil
	}

	dbClient, err := db.NewDBClient(ctx, cfg.Database.DSN, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, dbClient.Close)
	checks["postgres"] = dbClient
	log.Infow("Database connection established")

	if cfg.Database.MigrateOnStart {
		if err := dbClient.MigrateUp(ctx); err != nil {
			return nil, err
		}
	}

	sqlDB := dbClient.DB()
	return &Repositories{
		Shops:         repository.NewPostgresShopRepository(sqlDB, log),
		Subscriptions: repository.NewPostgresSubscriptionRepository(sqlDB, log),
		Bookings:      repository.NewPostgresBookingRepository(sqlDB, log),
		Promos:        repository.NewPostgresPromoRepository(sqlDB, log),
		Reviews:       repository.NewPostgresReviewRepository(sqlDB, log),
		Admins:        repository.NewPostgresAdminRepository(sqlDB, log),
	}, nil
}

func (a *App) registerJobs() error {
	cfg := a.Config.Scheduler
	err := a.Scheduler.AddJob("send_reminders", cfg.ReminderSpec, reminderJobTimeout, func(ctx context.Context) error {
		_, err := a.Reminders.SendTomorrowReminders(ctx, time.Now())
		return err
	})
	if err != nil {
		return err
	}
	return a.Scheduler.AddJob("resume_paused", cfg.PauseSweepSpec, pauseSweepJobTimeout, func(ctx context.Context) error {
		resumed, err := a.Subscriptions.ResumeDuePaused(ctx)
		if resumed > 0 {
			a.Logger.Infow("Paused subscriptions resumed", "count", resumed)
		}
		return err
	})
}

// Close освобождает соединения в обратном порядке открытия.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.Logger.Errorw("Error during cleanup", "error", err)
		return err
	}
	return nil
}

func newEmailSender(cfg *config.Config, log *logger.Logger) notify.EmailSender {
	if cfg.SMTP.Host == "" {
		log.Warnw("SMTP host is not set, emails will only be logged")
		return notify.LogEmailSender{Log: log}
	}
	return notify.NewSMTPEmailSender(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}

func newSMSSender(cfg *config.Config, log *logger.Logger) notify.SMSSender {
	if cfg.SMS.AccountSID == "" {
		log.Warnw("Twilio account is not set, SMS will only be logged")
		return notify.LogSMSSender{Log: log}
	}
	return notify.NewTwilioSMSSender(notify.TwilioConfig{
		AccountSID: cfg.SMS.AccountSID,
		AuthToken:  cfg.SMS.AuthToken,
		From:       cfg.SMS.From,
		BaseURL:    cfg.SMS.BaseURL,
	}, &http.Client{Timeout: 10 * time.Second})
}
