package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config представляет структуру конфигурации для приложения.
type Config struct {
	App struct {
		Port     string `mapstructure:"port"`
		Env      string `mapstructure:"env"`
		LogLevel string `mapstructure:"logLevel"`
		SiteURL  string `mapstructure:"siteUrl"`
		Timezone string `mapstructure:"timezone"`
	} `mapstructure:"app"`
	Database struct {
		// Driver: "postgres" или "memory" (локальная разработка без БД).
		Driver         string `mapstructure:"driver"`
		DSN            string `mapstructure:"dsn"`
		MigrateOnStart bool   `mapstructure:"migrateOnStart"`
	} `mapstructure:"database"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
	} `mapstructure:"kafka"`
	Stripe struct {
		APIKey        string `mapstructure:"apiKey"`
		WebhookSecret string `mapstructure:"webhookSecret"`
		Currency      string `mapstructure:"currency"`
	} `mapstructure:"stripe"`
	Auth struct {
		JWTSecret     string        `mapstructure:"jwtSecret"`
		AdminTokenTTL time.Duration `mapstructure:"adminTokenTTL"`
	} `mapstructure:"auth"`
	SMTP struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		From     string `mapstructure:"from"`
	} `mapstructure:"smtp"`
	SMS struct {
		AccountSID string `mapstructure:"accountSid"`
		AuthToken  string `mapstructure:"authToken"`
		From       string `mapstructure:"from"`
		BaseURL    string `mapstructure:"baseUrl"`
	} `mapstructure:"sms"`
	Scheduler struct {
		Enabled        bool   `mapstructure:"enabled"`
		ReminderSpec   string `mapstructure:"reminderSpec"`
		PauseSweepSpec string `mapstructure:"pauseSweepSpec"`
	} `mapstructure:"scheduler"`
	Cron struct {
		Secret string `mapstructure:"secret"`
	} `mapstructure:"cron"`
	Seed Seed `mapstructure:"seed"`
}

// Seed - начальные данные, которые загружает команда `seed`.
type Seed struct {
	Shops      []ShopSeed  `mapstructure:"shops"`
	Admins     []AdminSeed `mapstructure:"admins"`
	PromoCodes []PromoSeed `mapstructure:"promoCodes"`
}

type ShopSeed struct {
	ID      int64  `mapstructure:"id"`
	Name    string `mapstructure:"name"`
	Address string `mapstructure:"address"`
	Phone   string `mapstructure:"phone"`
}

type AdminSeed struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	ShopID   int64  `mapstructure:"shopId"`
	ShopName string `mapstructure:"shopName"`
}

type PromoSeed struct {
	Code            string     `mapstructure:"code"`
	DiscountPercent int        `mapstructure:"discountPercent"`
	Active          bool       `mapstructure:"active"`
	ExpiresAt       *time.Time `mapstructure:"expiresAt"`
	MaxUses         *int       `mapstructure:"maxUses"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.siteUrl", "http://localhost:3000")
	v.SetDefault("app.timezone", "Australia/Sydney")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.migrateOnStart", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("stripe.currency", "aud")
	v.SetDefault("auth.adminTokenTTL", 12*time.Hour)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("sms.baseUrl", "https://api.twilio.com")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.reminderSpec", "0 9 * * *")
	v.SetDefault("scheduler.pauseSweepSpec", "@every 1h")
}

// LoadConfig загружает конфигурацию из файла и переменных окружения.
// Переменные окружения имеют приоритет: app.port -> APP_PORT, database.dsn -> DATABASE_DSN.
func LoadConfig(path string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// .env не обязателен
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate проверяет обязательные параметры.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("config: database.dsn is required for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("config: auth.jwtSecret is required")
	}
	if c.App.Env == "production" && c.Stripe.WebhookSecret == "" {
		return errors.New("config: stripe.webhookSecret is required in production")
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("config: invalid app.timezone: %w", err)
	}
	return nil
}

// Location возвращает часовой пояс, в котором считаются даты записей.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
