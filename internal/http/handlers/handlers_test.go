package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/auth"
	"github.com/Dhoini/clipgo-booking/internal/config"
	"github.com/Dhoini/clipgo-booking/internal/domain"
	"github.com/Dhoini/clipgo-booking/internal/metrics"
	"github.com/Dhoini/clipgo-booking/internal/middleware"
	"github.com/Dhoini/clipgo-booking/internal/models"
	"github.com/Dhoini/clipgo-booking/internal/repository"
	"github.com/Dhoini/clipgo-booking/internal/services"
	"github.com/Dhoini/clipgo-booking/internal/stripe"
	"github.com/Dhoini/clipgo-booking/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78/webhook"
)

const testWebhookSecret = "whsec_test"

func init() {
	gin.SetMode(gin.TestMode)
}

// stubStripe хранит созданные сессии. complete имитирует оплату.
type stubStripe struct {
	mu       sync.Mutex
	sessions map[string]*models.CheckoutSession
}

func newStubStripe() *stubStripe {
	return &stubStripe{sessions: make(map[string]*models.CheckoutSession)}
}

func (s *stubStripe) CreateCheckoutSession(_ context.Context, in stripe.CheckoutSessionInput, _ string) (*stripe.CheckoutSessionHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("cs_test_%d", len(s.sessions)+1)
	s.sessions[id] = &models.CheckoutSession{
		ID:            id,
		Status:        "open",
		PaymentStatus: "unpaid",
		AmountTotal:   in.UnitAmount,
		CustomerEmail: in.CustomerEmail,
		Metadata:      in.Metadata,
	}
	return &stripe.CheckoutSessionHandle{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

func (s *stubStripe) complete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[id]
	sess.Status = "complete"
	sess.PaymentStatus = "paid"
	sess.StripeSubscriptionID = "sub_" + id
	sess.StripeCustomerID = "cus_" + id
}

func (s *stubStripe) GetCheckoutSession(_ context.Context, id string) (*models.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, stripe.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *stubStripe) PauseSubscription(context.Context, string, time.Time, string) error { return nil }
func (s *stubStripe) ResumeSubscription(context.Context, string, string) error            { return nil }
func (s *stubStripe) CancelSubscription(context.Context, string, string) error            { return nil }

type testServer struct {
	router  *gin.Engine
	stripe  *stubStripe
	tokens  *auth.Manager
	store   *repository.InMemoryStore
	pingErr error
}

func (ts *testServer) Ping(context.Context) error { return ts.pingErr }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.NewNop()
	store := repository.NewInMemoryStore(log)
	require.NoError(t, store.Shops().Create(context.Background(), &models.Shop{ID: 1, Name: "Sydney Cuts", Active: true}))

	cfg := &config.Config{}
	cfg.App.SiteURL = "https://clipgo.test"
	cfg.Stripe.Currency = "aud"

	ts := &testServer{stripe: newStubStripe(), tokens: auth.NewManager("secret", time.Hour), store: store}

	promos := services.NewPromoService(store.Promos(), log)
	subs := services.NewSubscriptionService(cfg, store.Subscriptions(), store.Shops(), promos, ts.stripe, nil, metrics.NewNoop(), log)
	bookings := services.NewBookingService(store.Bookings(), store.Shops(), nil, nil, metrics.NewNoop(), time.UTC, log)
	reminders := services.NewReminderService(store.Bookings(), store.Shops(), nil, nil, time.UTC, log)
	webhooks := services.NewWebhookService(subs, nil, metrics.NewNoop(), log)

	webhookHandler, err := NewWebhookHandler(testWebhookSecret, webhooks, log)
	require.NoError(t, err)
	subHandler := NewSubscriptionHandler(subs, log)
	catalog := NewCatalogHandler(services.NewShopService(store.Shops(), store.Reviews(), log), promos, bookings, log)
	ops := NewOpsHandler(reminders, map[string]Pinger{"postgres": ts}, log)
	authMW := middleware.NewJWTMiddleware(log, ts.tokens)

	r := gin.New()
	r.GET("/health", ops.Health)
	r.GET("/plans", catalog.Plans)
	r.POST("/webhooks/stripe", webhookHandler.HandleStripeWebhook)
	user := r.Group("/subscriptions", authMW.RequireAuth(auth.ScopeUser))
	user.POST("/checkout", subHandler.Checkout)
	user.POST("/confirm", subHandler.Confirm)
	user.GET("/current", subHandler.Current)
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, _, err := ts.tokens.IssueUserToken(userID, userID+"@example.com", time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func TestStatusFor(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"validation":     {domain.ErrInvalidSlot, http.StatusBadRequest},
		"not found":      {domain.ErrBookingNotFound, http.StatusNotFound},
		"no active sub":  {domain.ErrNoActiveSubscription, http.StatusNotFound},
		"conflict":       {domain.ErrAllowanceExhausted, http.StatusConflict},
		"wrapped":        {fmt.Errorf("create booking: %w", domain.ErrDuplicateConfirmation), http.StatusConflict},
		"provider":       {domain.NewExternalServiceError("stripe", "create_session", errors.New("timeout")), http.StatusBadGateway},
		"unexpected":     {errors.New("boom"), http.StatusInternalServerError},
		"unauthorized":   {domain.ErrUnauthorized, http.StatusUnauthorized},
		"forbidden kind": {domain.ErrForbidden, http.StatusForbidden},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, statusFor(tc.err))
		})
	}
}

func TestCheckoutAndConfirm_DuplicateReturnsExisting(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/subscriptions/checkout", "u1", gin.H{"shop_id": 1, "plan_id": "basic"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var handle services.CheckoutHandle
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &handle))
	require.NotEmpty(t, handle.SessionID)

	// до оплаты подтверждать нечего
	w = ts.do(t, http.MethodPost, "/subscriptions/confirm", "u1", gin.H{"session_id": handle.SessionID})
	assert.Equal(t, http.StatusConflict, w.Code)

	ts.stripe.complete(handle.SessionID)

	w = ts.do(t, http.MethodPost, "/subscriptions/confirm", "u1", gin.H{"session_id": handle.SessionID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var first models.Subscription
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, models.SubscriptionActive, first.Status)

	w = ts.do(t, http.MethodPost, "/subscriptions/confirm", "u1", gin.H{"session_id": handle.SessionID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var second models.Subscription
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, first.ID, second.ID)

	// чужая сессия не видна
	w = ts.do(t, http.MethodPost, "/subscriptions/confirm", "u2", gin.H{"session_id": handle.SessionID})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/subscriptions/current", "u1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCheckout_ValidationAndAuth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/subscriptions/checkout", "", gin.H{"shop_id": 1, "plan_id": "basic"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/subscriptions/checkout", "u1", gin.H{"plan_id": "basic"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ts.do(t, http.MethodPost, "/subscriptions/checkout", "u1", gin.H{"shop_id": 1, "plan_id": "platinum"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_plan")

	w = ts.do(t, http.MethodPost, "/subscriptions/checkout", "u1", gin.H{"shop_id": 99, "plan_id": "basic"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStripeWebhook_Signature(t *testing.T) {
	ts := newTestServer(t)
	payload := []byte(`{"id":"evt_1","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`)

	post := func(body []byte, sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(body))
		if sig != "" {
			req.Header.Set("Stripe-Signature", sig)
		}
		w := httptest.NewRecorder()
		ts.router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusBadRequest, post(payload, "").Code)
	assert.Equal(t, http.StatusBadRequest, post(payload, "t=1,v1=deadbeef").Code)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	w := post(signed.Payload, signed.Header)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
}

func TestNewWebhookHandler_RequiresSecret(t *testing.T) {
	_, err := NewWebhookHandler("", nil, logger.NewNop())
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","dependencies":{"postgres":"up"}}`, w.Body.String())

	ts.pingErr = errors.New("connection refused")
	w = ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","dependencies":{"postgres":"down"}}`, w.Body.String())
}

func TestPlans(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/plans", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"basic"`)
	assert.Contains(t, w.Body.String(), `"premium"`)
}
