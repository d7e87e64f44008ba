package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BookingMetrics интерфейс для бизнес-метрик подписок и записей
type BookingMetrics interface {
	IncCheckoutStarted(planID string)
	IncSubscriptionConfirmed(planID string)
	IncDuplicateConfirmation()
	IncSubscriptionTransition(to string)
	ObserveSubscriptionAmount(planID string, cents int64)
	IncBookingCreated(shopID string)
	IncBookingRejected(reason string)
	IncNotification(channel, result string)
	IncWebhookEvent(eventType, result string)
}

type bookingMetrics struct {
	checkouts     *prometheus.CounterVec
	confirmations *prometheus.CounterVec
	duplicates    prometheus.Counter
	transitions   *prometheus.CounterVec
	amounts       *prometheus.HistogramVec
	bookings      *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	notifications *prometheus.CounterVec
	webhooks      *prometheus.CounterVec
}

// NewBookingMetrics регистрирует метрики в указанном реестре
func NewBookingMetrics(registry prometheus.Registerer) BookingMetrics {
	factory := promauto.With(registry)
	return &bookingMetrics{
		checkouts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_sessions_started_total",
			Help: "Checkout sessions created per plan",
		}, []string{"plan"}),
		confirmations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "subscriptions_confirmed_total",
			Help: "Subscriptions created from completed checkout sessions",
		}, []string{"plan"}),
		duplicates: factory.NewCounter(prometheus.CounterOpts{
			Name: "subscription_duplicate_confirmations_total",
			Help: "Confirmations of already reconciled checkout sessions",
		}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "subscription_transitions_total",
			Help: "Subscription status transitions by target status",
		}, []string{"to"}),
		amounts: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "subscription_amount_cents",
			Help:    "Monthly amount of confirmed subscriptions in cents",
			Buckets: []float64{1000, 2500, 5000, 7500, 10000, 15000},
		}, []string{"plan"}),
		bookings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "Bookings created per shop",
		}, []string{"shop"}),
		rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bookings_rejected_total",
			Help: "Booking attempts rejected by reason",
		}, []string{"reason"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Notification attempts by channel and result",
		}, []string{"channel", "result"}),
		webhooks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stripe_webhook_events_total",
			Help: "Stripe webhook events by type and result",
		}, []string{"type", "result"}),
	}
}

func (m *bookingMetrics) IncCheckoutStarted(planID string) {
	m.checkouts.WithLabelValues(planID).Inc()
}

func (m *bookingMetrics) IncSubscriptionConfirmed(planID string) {
	m.confirmations.WithLabelValues(planID).Inc()
}

func (m *bookingMetrics) IncDuplicateConfirmation() {
	m.duplicates.Inc()
}

func (m *bookingMetrics) IncSubscriptionTransition(to string) {
	m.transitions.WithLabelValues(to).Inc()
}

func (m *bookingMetrics) ObserveSubscriptionAmount(planID string, cents int64) {
	m.amounts.WithLabelValues(planID).Observe(float64(cents))
}

func (m *bookingMetrics) IncBookingCreated(shopID string) {
	m.bookings.WithLabelValues(shopID).Inc()
}

func (m *bookingMetrics) IncBookingRejected(reason string) {
	m.rejections.WithLabelValues(reason).Inc()
}

func (m *bookingMetrics) IncNotification(channel, result string) {
	m.notifications.WithLabelValues(channel, result).Inc()
}

func (m *bookingMetrics) IncWebhookEvent(eventType, result string) {
	m.webhooks.WithLabelValues(eventType, result).Inc()
}

// noopMetrics используется, когда метрики не нужны (тесты, CLI-команды).
type noopMetrics struct{}

// NewNoop возвращает реализацию BookingMetrics без побочных эффектов.
func NewNoop() BookingMetrics { return noopMetrics{} }

func (noopMetrics) IncCheckoutStarted(string)               {}
func (noopMetrics) IncSubscriptionConfirmed(string)         {}
func (noopMetrics) IncDuplicateConfirmation()               {}
func (noopMetrics) IncSubscriptionTransition(string)        {}
func (noopMetrics) ObserveSubscriptionAmount(string, int64) {}
func (noopMetrics) IncBookingCreated(string)                {}
func (noopMetrics) IncBookingRejected(string)               {}
func (noopMetrics) IncNotification(string, string)          {}
func (noopMetrics) IncWebhookEvent(string, string)          {}
