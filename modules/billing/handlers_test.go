package billing_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflowhq/taskflow/modules/billing"
	"github.com/taskflowhq/taskflow/pkg/subscription"
)

type fakeProvider struct {
	checkoutLink *subscription.CheckoutLink
	checkoutErr  error
	portalLink   *subscription.PortalLink
	event        *subscription.WebhookEvent
	parseErr     error
}

func (p *fakeProvider) CreateCheckoutLink(ctx context.Context, req subscription.CheckoutRequest) (*subscription.CheckoutLink, error) {
	return p.checkoutLink, p.checkoutErr
}

func (p *fakeProvider) GetCustomerPortalLink(ctx context.Context, sub *subscription.Subscription) (*subscription.PortalLink, error) {
	return p.portalLink, nil
}

func (p *fakeProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*subscription.WebhookEvent, error) {
	return p.event, p.parseErr
}

type fixture struct {
	srv      *httptest.Server
	svc      *subscription.Service
	provider *fakeProvider

	mu  sync.Mutex
	now time.Time
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		provider: &fakeProvider{},
		now:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	catalog, err := subscription.NewCatalog(context.Background(), subscription.NewDefaultSource())
	require.NoError(t, err)

	f.svc = subscription.NewService(subscription.NewMemoryStore(), catalog,
		subscription.WithProvider(f.provider),
		subscription.WithClock(f.clock),
	)
	f.srv = httptest.NewServer(billing.Router(f.svc, nil))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) postJSON(t *testing.T, path, body string) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := http.Post(f.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestCreateCheckout(t *testing.T) {
	t.Parallel()

	t.Run("returns the hosted checkout link", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.provider.checkoutLink = &subscription.CheckoutLink{URL: "https://pay.example/s/abc", SessionID: "abc"}

		resp, body := f.postJSON(t, "/checkout",
			`{"planId":"pro","email":"ada@example.com","userId":"`+uuid.NewString()+`"}`)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "https://pay.example/s/abc", body["url"])
		assert.Equal(t, "abc", body["sessionId"])
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		resp, body := f.postJSON(t, "/checkout", `{"planId":"pro"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "missing required fields", body["error"])
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		resp, _ := f.postJSON(t, "/checkout", `{planId:`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects an unknown plan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		resp, body := f.postJSON(t, "/checkout",
			`{"planId":"platinum","email":"a@b.c","userId":"`+uuid.NewString()+`"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid plan", body["error"])
	})

	t.Run("processor outage without opting in is a bad gateway", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.provider.checkoutErr = subscription.ErrProviderError

		resp, _ := f.postJSON(t, "/checkout",
			`{"planId":"pro","email":"a@b.c","userId":"`+uuid.NewString()+`"}`)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})

	t.Run("opting in to the fallback applies a flagged local upgrade", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.provider.checkoutErr = subscription.ErrProviderError

		userID := uuid.New()
		_, err := f.svc.Signup(context.Background(), userID, subscription.PlanStarter)
		require.NoError(t, err)

		resp, body := f.postJSON(t, "/checkout",
			`{"planId":"pro","email":"a@b.c","userId":"`+userID.String()+`","allowFallback":true}`)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["fallback"])
		assert.Equal(t, "active", body["status"])

		sub, err := f.svc.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, subscription.PlanPro, sub.PlanID)
	})
}

func TestCreatePortal(t *testing.T) {
	t.Parallel()

	t.Run("returns the portal link", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.provider.portalLink = &subscription.PortalLink{URL: "https://portal.example/p/xyz"}

		userID := uuid.New()
		_, err := f.svc.Signup(context.Background(), userID, subscription.PlanPro)
		require.NoError(t, err)

		resp, body := f.postJSON(t, "/portal", `{"userId":"`+userID.String()+`"}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "https://portal.example/p/xyz", body["url"])
	})

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		resp, _ := f.postJSON(t, "/portal", `{"userId":"`+uuid.NewString()+`"}`)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestWebhookEndpoint(t *testing.T) {
	t.Parallel()

	post := func(t *testing.T, f *fixture, signature string) *http.Response {
		t.Helper()
		req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/webhooks/processor", strings.NewReader(`{}`))
		require.NoError(t, err)
		if signature != "" {
			req.Header.Set("Paddle-Signature", signature)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	t.Run("applies a verified event", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		userID := uuid.New()
		_, err := f.svc.Signup(context.Background(), userID, subscription.PlanStarter)
		require.NoError(t, err)

		f.provider.event = &subscription.WebhookEvent{
			Type:   subscription.WebhookCheckoutCompleted,
			UserID: userID.String(),
			PlanID: subscription.PlanPro,
		}
		resp := post(t, f, "ts=1;h1=valid")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		sub, err := f.svc.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, sub.Status())
	})

	t.Run("missing signature", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		resp := post(t, f, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejected signature", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.provider.parseErr = subscription.ErrWebhookVerificationFailed

		resp := post(t, f, "ts=1;h1=bogus")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetSubscription(t *testing.T) {
	t.Parallel()

	t.Run("returns the flat record", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		userID := uuid.New()
		_, err := f.svc.Signup(context.Background(), userID, subscription.PlanPro)
		require.NoError(t, err)

		resp, err := http.Get(f.srv.URL + "/subscriptions/" + userID.String())
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "pro", body["planId"])
		assert.Equal(t, "trialing", body["status"])
		assert.NotEmpty(t, body["trialEndsAt"])
		assert.Equal(t, false, body["cancelAtPeriodEnd"])
	})

	t.Run("read applies lazy trial expiry", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		userID := uuid.New()
		_, err := f.svc.Signup(context.Background(), userID, subscription.PlanPro)
		require.NoError(t, err)

		f.advance(subscription.TrialPeriod + time.Hour)

		resp, err := http.Get(f.srv.URL + "/subscriptions/" + userID.String())
		require.NoError(t, err)
		defer resp.Body.Close()

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "canceled", body["status"])
	})

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		resp, err := http.Get(f.srv.URL + "/subscriptions/" + uuid.NewString())
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("invalid user ID", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		resp, err := http.Get(f.srv.URL + "/subscriptions/not-a-uuid")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
