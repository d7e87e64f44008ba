package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/services"
	"github.com/Dhoini/clipgo-booking/pkg/logger"
	"github.com/Dhoini/clipgo-booking/pkg/res"

	"github.com/gin-gonic/gin"
)

// Pinger - зависимость, доступность которой показывает /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler - health check и служебные эндпоинты планировщика.
type OpsHandler struct {
	reminders *services.ReminderService
	checks    map[string]Pinger
	log       *logger.Logger
}

func NewOpsHandler(reminders *services.ReminderService, checks map[string]Pinger, log *logger.Logger) *OpsHandler {
	return &OpsHandler{
		reminders: reminders,
		checks:    checks,
		log:       log,
	}
}

// Health отвечает 503, если недоступна хотя бы одна зависимость.
func (h *OpsHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.log.Warnw("Health check failed", "dependency", name, "error", err)
			deps[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "up"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	res.JsonResponse(c.Writer, gin.H{"status": overall, "dependencies": deps}, status)
}

// SendReminders обрабатывает POST /internal/cron/send-reminders
func (h *OpsHandler) SendReminders(c *gin.Context) {
	report, err := h.reminders.SendTomorrowReminders(c.Request.Context(), time.Now())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	res.JsonResponse(c.Writer, report, http.StatusOK)
}
