package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/clipgo-booking/pkg/logger"

	"github.com/robfig/cron/v3"
)

// JobFunc - фоновая задача. Контекст отменяется по таймауту задачи.
type JobFunc func(ctx context.Context) error

// Scheduler запускает периодические задачи сервиса (напоминания, возобновление подписок).
// Паника в задаче не роняет процесс, а повторный запуск пропускается, пока предыдущий не завершился.
// Recover должен стоять внутри SkipIfStillRunning.
type Scheduler struct {
	cron *cron.Cron
	log  *logger.Logger
}

func New(loc *time.Location, log *logger.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		log: log,
	}
}

// AddJob регистрирует задачу по cron-выражению (поддерживаются и "@every 1h", "@daily").
func (s *Scheduler) AddJob(name, spec string, timeout time.Duration, fn JobFunc) error {
	_, err := s.cron.AddFunc(spec, s.wrap(name, timeout, fn))
	if err != nil {
		return fmt.Errorf("scheduler: invalid spec %q for job %s: %w", spec, name, err)
	}
	s.log.Infow("Scheduled job registered", "job", name, "spec", spec)
	return nil
}

func (s *Scheduler) wrap(name string, timeout time.Duration, fn JobFunc) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			s.log.Errorw("Scheduled job failed", "job", name, "error", err, "duration_ms", time.Since(start).Milliseconds())
			return
		}
		s.log.Debugw("Scheduled job finished", "job", name, "duration_ms", time.Since(start).Milliseconds())
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Infow("Scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop останавливает планировщик и ждет завершения выполняющихся задач, но не дольше ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Infow("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: jobs still running: %w", ctx.Err())
	}
}

// cronLogger направляет логи cron в наш логгер.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
