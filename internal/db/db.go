package db

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/Dhoini/clipgo-booking/pkg/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DBClient представляет клиент для работы с базой данных.
type DBClient struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewDBClient создает новый экземпляр DBClient и проверяет соединение.
func NewDBClient(ctx context.Context, dsn string, log *logger.Logger) (*DBClient, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		log.Errorw("Failed to open database", "error", err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		log.Errorw("Failed to ping database", "error", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DBClient{db: db, log: log}, nil
}

// DB возвращает подключение sqlx для репозиториев.
func (dc *DBClient) DB() *sqlx.DB {
	return dc.db
}

// Ping проверяет соединение (health check).
func (dc *DBClient) Ping(ctx context.Context) error {
	return dc.db.PingContext(ctx)
}

// Close закрывает соединение с базой данных.
func (dc *DBClient) Close() error {
	if err := dc.db.Close(); err != nil {
		dc.log.Errorw("Failed to close database connection", "error", err)
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

func (dc *DBClient) provider() error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{log: dc.log})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose: set dialect: %w", err)
	}
	return nil
}

// MigrateUp применяет все новые миграции.
func (dc *DBClient) MigrateUp(ctx context.Context) error {
	if err := dc.provider(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, dc.db.DB, "migrations"); err != nil {
		dc.log.Errorw("Failed to apply migrations", "error", err)
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, dc.db.DB)
	if err == nil {
		dc.log.Infow("Database schema is up to date", "version", version)
	}
	return nil
}

// MigrateDown откатывает последнюю миграцию.
func (dc *DBClient) MigrateDown(ctx context.Context) error {
	if err := dc.provider(); err != nil {
		return err
	}
	if err := goose.DownContext(ctx, dc.db.DB, "migrations"); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	return nil
}

// MigrateStatus печатает состояние миграций через логгер goose.
func (dc *DBClient) MigrateStatus(ctx context.Context) error {
	if err := dc.provider(); err != nil {
		return err
	}
	return goose.StatusContext(ctx, dc.db.DB, "migrations")
}

// gooseLogger направляет вывод goose в наш логгер.
type gooseLogger struct {
	log *logger.Logger
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Fatalw(fmt.Sprintf(format, v...))
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Infow(fmt.Sprintf(format, v...))
}
