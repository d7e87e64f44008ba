package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/config"
	"github.com/Dhoini/clipgo-booking/internal/metrics"
	"github.com/Dhoini/clipgo-booking/internal/models"
	"github.com/Dhoini/clipgo-booking/internal/repository"
	"github.com/Dhoini/clipgo-booking/internal/stripe"
	"github.com/Dhoini/clipgo-booking/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

// fakeStripe - клиент Stripe в памяти. Ошибки задаются по операциям.
type fakeStripe struct {
	mu       sync.Mutex
	sessions map[string]*models.CheckoutSession
	created  []stripe.CheckoutSessionInput
	keys     []string
	paused   map[string]time.Time
	resumed  []string
	canceled []string
	errs     map[string][]error
}

func newFakeStripe() *fakeStripe {
	return &fakeStripe{
		sessions: make(map[string]*models.CheckoutSession),
		paused:   make(map[string]time.Time),
		errs:     make(map[string][]error),
	}
}

// failNext ставит в очередь ошибки для операции.
func (f *fakeStripe) failNext(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = append(f.errs[op], errs...)
}

func (f *fakeStripe) popErr(op string) error {
	queue := f.errs[op]
	if len(queue) == 0 {
		return nil
	}
	f.errs[op] = queue[1:]
	return queue[0]
}

func (f *fakeStripe) CreateCheckoutSession(_ context.Context, in stripe.CheckoutSessionInput, key string) (*stripe.CheckoutSessionHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr("create"); err != nil {
		return nil, err
	}
	f.created = append(f.created, in)
	f.keys = append(f.keys, key)
	id := fmt.Sprintf("cs_test_%d", len(f.created))
	f.sessions[id] = &models.CheckoutSession{
		ID:            id,
		Status:        "open",
		PaymentStatus: "unpaid",
		AmountTotal:   in.UnitAmount,
		CustomerEmail: in.CustomerEmail,
		Metadata:      in.Metadata,
	}
	return &stripe.CheckoutSessionHandle{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

// complete помечает сессию оплаченной, как это делает Stripe после оплаты.
func (f *fakeStripe) complete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[id]
	s.Status = "complete"
	s.PaymentStatus = "paid"
	s.StripeSubscriptionID = "sub_" + id
	s.StripeCustomerID = "cus_" + id
}

func (f *fakeStripe) GetCheckoutSession(_ context.Context, id string) (*models.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr("get"); err != nil {
		return nil, err
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, stripe.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStripe) PauseSubscription(_ context.Context, id string, resumesAt time.Time, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr("pause"); err != nil {
		return err
	}
	f.paused[id] = resumesAt
	return nil
}

func (f *fakeStripe) ResumeSubscription(_ context.Context, id, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr("resume"); err != nil {
		return err
	}
	f.resumed = append(f.resumed, id)
	return nil
}

func (f *fakeStripe) CancelSubscription(_ context.Context, id, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr("cancel"); err != nil {
		return err
	}
	f.canceled = append(f.canceled, id)
	return nil
}

// recordingProducer запоминает опубликованные события.
type recordingProducer struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingProducer) PublishEvent(_ context.Context, topic, _ string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func (p *recordingProducer) has(topic string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.topics {
		if t == topic {
			return true
		}
	}
	return false
}

// fakeNotifier считает отправленные уведомления.
type fakeNotifier struct {
	mu            sync.Mutex
	confirmations []string
	reminders     []string
	reminderErr   error
}

func (n *fakeNotifier) SendBookingConfirmation(_ context.Context, b *models.Booking, _ *models.Shop) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmations = append(n.confirmations, b.ID)
	return nil
}

func (n *fakeNotifier) SendReminder(_ context.Context, b *models.Booking, _ *models.Shop) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.reminderErr != nil {
		return n.reminderErr
	}
	n.reminders = append(n.reminders, b.ID)
	return nil
}

func (n *fakeNotifier) confirmationCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.confirmations)
}

// memoryMarker - OnceMarker в памяти.
type memoryMarker struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemoryMarker() *memoryMarker { return &memoryMarker{keys: make(map[string]bool)} }

func (m *memoryMarker) MarkOnce(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryMarker) Unmark(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

// testEnv собирает сервисы поверх хранилища в памяти.
type testEnv struct {
	store    *repository.InMemoryStore
	stripe   *fakeStripe
	producer *recordingProducer
	notifier *fakeNotifier
	promos   *PromoService
	subs     *SubscriptionService
	bookings *BookingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewNop()
	store := repository.NewInMemoryStore(log)

	cfg := &config.Config{}
	cfg.App.SiteURL = "https://clipgo.test/"
	cfg.Stripe.Currency = "aud"

	env := &testEnv{
		store:    store,
		stripe:   newFakeStripe(),
		producer: &recordingProducer{},
		notifier: &fakeNotifier{},
	}
	env.promos = NewPromoService(store.Promos(), log)
	env.subs = NewSubscriptionService(cfg, store.Subscriptions(), store.Shops(), env.promos, env.stripe, env.producer, metrics.NewNoop(), log)
	env.subs.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
	}
	env.bookings = NewBookingService(store.Bookings(), store.Shops(), env.notifier, env.producer, metrics.NewNoop(), time.UTC, log)

	ctx := context.Background()
	require.NoError(t, store.Shops().Create(ctx, &models.Shop{ID: 1, Name: "Sydney Cuts", Address: "1 George St", Active: true}))
	require.NoError(t, store.Shops().Create(ctx, &models.Shop{ID: 2, Name: "Closed Cuts", Active: false}))
	return env
}

// subscribe проводит пользователя через оплату и подтверждение.
func (e *testEnv) subscribe(t *testing.T, userID, planID string) *models.Subscription {
	t.Helper()
	ctx := context.Background()
	handle, err := e.subs.Initiate(ctx, InitiateInput{UserID: userID, Email: userID + "@example.com", ShopID: 1, PlanID: planID})
	require.NoError(t, err)
	e.stripe.complete(handle.SessionID)
	sub, err := e.subs.ConfirmForUser(ctx, userID, handle.SessionID)
	require.NoError(t, err)
	return sub
}

func testLogger() *logger.Logger { return logger.NewNop() }

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func strPtr(s string) *string { return &s }
