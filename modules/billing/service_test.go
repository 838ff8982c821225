package billing_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/retailplan/modules/billing"
	"github.com/dmitrymomot/retailplan/pkg/logger"
	engine "github.com/dmitrymomot/retailplan/pkg/subscription"
	"github.com/dmitrymomot/retailplan/pkg/syncbus"
)

type catalog []*engine.Template

func (c catalog) Templates() []*engine.Template { return c }

func templates() catalog {
	limits := func(customers, products, orders engine.Quota) map[engine.Resource]engine.Quota {
		return map[engine.Resource]engine.Quota{
			engine.ResourceCustomers: customers,
			engine.ResourceProducts:  products,
			engine.ResourceOrders:    orders,
		}
	}
	return catalog{
		{
			ID: "basic", Name: "Basic", Price: decimal.Zero, DurationDays: 30, Active: true,
			PlanType: engine.PlanTypeStandard,
			Limits:   limits(engine.Bounded(50), engine.Bounded(10), engine.Bounded(100)),
		},
		{
			ID: "boost", Name: "Product boost", Price: decimal.RequireFromString("4.99"), DurationDays: 10, Active: true,
			PlanType: engine.PlanTypeMini,
			Limits:   map[engine.Resource]engine.Quota{engine.ResourceProducts: engine.Bounded(3)},
		},
		{
			ID: "pro", Name: "Pro", Price: decimal.NewFromInt(29), DurationDays: 30, Active: true,
			PlanType: engine.PlanTypeStandard,
			Limits:   limits(engine.Unlimited(), engine.Bounded(500), engine.Unlimited()),
		},
		{
			ID: "legacy", Name: "Legacy", Price: decimal.Zero, DurationDays: 30, Active: false,
			PlanType: engine.PlanTypeStandard,
		},
	}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  map[string]any  `json:"meta"`
	Error *struct {
		Code    string              `json:"code"`
		Message string              `json:"message"`
		Details map[string][]string `json:"details"`
	} `json:"error"`
}

type fixture struct {
	handler http.Handler
	bus     *syncbus.Bus
	seller  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cat := templates()
	store := engine.NewMemoryStore(cat...)
	bus := syncbus.New(8)
	outbox := engine.NewOutbox(bus, 1, engine.WithOutboxLogger(logger.Discard()))
	t.Cleanup(func() {
		_ = outbox.Close(context.Background())
		_ = bus.Close()
	})

	svc := engine.NewService(store, store,
		engine.WithLogger(logger.Discard()),
		engine.WithOutbox(outbox),
	)
	h := billing.NewService(svc,
		billing.WithCatalog(cat),
		billing.WithSellerRegistry(store),
		billing.WithSyncEvents(bus),
		billing.WithLogger(logger.Discard()),
		billing.WithKeepAlive(time.Hour),
	).Handle()

	f := &fixture{handler: h, bus: bus, seller: uuid.New()}
	f.do(t, http.MethodPut, "/sellers/"+f.seller.String(), "")
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()

	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func (f *fixture) path(suffix string) string {
	return "/sellers/" + f.seller.String() + suffix
}

func TestPlans(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	code, env := f.do(t, http.MethodGet, "/plans?active=true", "")
	require.Equal(t, http.StatusOK, code)

	var plans []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &plans))
	require.Len(t, plans, 3)

	assert.Equal(t, "basic", plans[0]["id"])
	assert.Equal(t, true, plans[0]["free"])
	assert.Equal(t, "4.99", plans[1]["price"])
	assert.Equal(t, map[string]any{"customers": float64(0), "products": float64(3), "orders": float64(0)}, plans[1]["limits"])
	assert.Nil(t, plans[2]["limits"].(map[string]any)["customers"])

	code, env = f.do(t, http.MethodGet, "/plans", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &plans))
	assert.Len(t, plans, 4)
}

func TestActivation(t *testing.T) {
	t.Parallel()

	t.Run("free plan is created", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		code, env := f.do(t, http.MethodPost, f.path("/activate"), `{"template_id":"basic"}`)
		require.Equal(t, http.StatusCreated, code)

		var res engine.ActivationResult
		require.NoError(t, json.Unmarshal(env.Data, &res))
		assert.Equal(t, "basic", res.TemplateID)
		assert.Equal(t, engine.StatusActive, res.Status)
		assert.True(t, res.Primary)

		code, env = f.do(t, http.MethodPost, f.path("/activate"), `{"subscription_id":"`+res.SubscriptionID.String()+`"}`)
		require.Equal(t, http.StatusOK, code)
		require.NoError(t, json.Unmarshal(env.Data, &res))
		assert.True(t, res.AlreadyActive)
	})

	t.Run("paid plan requires payment", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		code, env := f.do(t, http.MethodPost, f.path("/activate"), `{"template_id":"pro"}`)
		assert.Equal(t, http.StatusPaymentRequired, code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "payment_required", env.Error.Code)
	})

	t.Run("switch never creates", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		code, env := f.do(t, http.MethodPost, f.path("/switch"), `{"template_id":"basic"}`)
		assert.Equal(t, http.StatusForbidden, code)
		assert.Equal(t, "not_assigned", env.Error.Code)
	})

	t.Run("paid mini is confirmed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		code, _ := f.do(t, http.MethodPost, f.path("/default-plan"), "")
		require.Equal(t, http.StatusCreated, code)

		code, env := f.do(t, http.MethodPost, f.path("/activate"), `{"template_id":"boost"}`)
		require.Equal(t, http.StatusCreated, code)
		var res engine.ActivationResult
		require.NoError(t, json.Unmarshal(env.Data, &res))
		assert.True(t, res.RequiresPayment)

		code, env = f.do(t, http.MethodPost, f.path("/subscriptions/"+res.SubscriptionID.String()+"/payment"), "")
		require.Equal(t, http.StatusOK, code)
		require.NoError(t, json.Unmarshal(env.Data, &res))
		assert.Equal(t, engine.PaymentCompleted, res.PaymentStatus)

		code, env = f.do(t, http.MethodGet, f.path("/remaining"), "")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, float64(2), env.Meta["count"])
	})

	t.Run("reactivate without primary", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		code, env := f.do(t, http.MethodPost, f.path("/reactivate"), "")
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "no_primary_plan", env.Error.Code)
	})

	t.Run("switch to valid without alternatives", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		code, env := f.do(t, http.MethodPost, f.path("/switch-valid"), "")
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "not_found", env.Error.Code)
	})
}

func TestUsage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	code, env := f.do(t, http.MethodPost, f.path("/usage"), `{"resource":"products","delta":4}`)
	require.Equal(t, http.StatusOK, code)

	var summary engine.UsageSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	agg := summary.Resources[engine.ResourceProducts]
	assert.Equal(t, int64(4), agg.Used)
	require.NotNil(t, agg.Remaining)
	assert.Equal(t, int64(6), *agg.Remaining)

	code, env = f.do(t, http.MethodGet, f.path("/usage/products/capacity?count=6"), "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"resource":"products","count":6,"allowed":true}`, string(env.Data))

	code, env = f.do(t, http.MethodGet, f.path("/usage/products/capacity?count=7"), "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "insufficient_capacity", env.Error.Code)
	assert.Contains(t, env.Error.Message, "short by 1")

	code, env = f.do(t, http.MethodPost, f.path("/usage"), `{"resource":"products","delta":7}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "insufficient_capacity", env.Error.Code)

	code, env = f.do(t, http.MethodGet, f.path("/usage"), "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, int64(4), summary.Resources[engine.ResourceProducts].Used)
}

func TestRequestErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	t.Run("unknown seller", func(t *testing.T) {
		code, env := f.do(t, http.MethodGet, "/sellers/"+uuid.NewString()+"/usage", "")
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "not_found", env.Error.Code)
	})

	t.Run("malformed seller id", func(t *testing.T) {
		code, env := f.do(t, http.MethodGet, "/sellers/42/usage", "")
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "bad_request", env.Error.Code)
	})

	t.Run("nil seller id", func(t *testing.T) {
		code, env := f.do(t, http.MethodGet, "/sellers/"+uuid.Nil.String()+"/usage", "")
		assert.Equal(t, http.StatusUnprocessableEntity, code)
		assert.Contains(t, env.Error.Details, "sellerID")
	})

	t.Run("unknown resource", func(t *testing.T) {
		code, env := f.do(t, http.MethodPost, f.path("/usage"), `{"resource":"widgets","delta":1}`)
		assert.Equal(t, http.StatusUnprocessableEntity, code)
		assert.Equal(t, "validation_error", env.Error.Code)
		assert.Equal(t, []string{"must be one of: customers products orders"}, env.Error.Details["resource"])
	})

	t.Run("activation without target", func(t *testing.T) {
		code, env := f.do(t, http.MethodPost, f.path("/activate"), `{}`)
		assert.Equal(t, http.StatusUnprocessableEntity, code)
		assert.Contains(t, env.Error.Details, "template_id")
	})

	t.Run("negative capacity count", func(t *testing.T) {
		code, _ := f.do(t, http.MethodGet, f.path("/usage/orders/capacity?count=-1"), "")
		assert.Equal(t, http.StatusUnprocessableEntity, code)
	})
}

func TestEvents(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	srv := httptest.NewServer(f.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+f.path("/events"), nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)

	code, _ := f.do(t, http.MethodPost, f.path("/usage"), `{"resource":"orders","delta":1}`)
	require.Equal(t, http.StatusOK, code)

	var event, data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	assert.Equal(t, engine.TopicSubscriptions, event)

	var ev engine.SyncEvent
	require.NoError(t, json.NewDecoder(bytes.NewBufferString(data)).Decode(&ev))
	assert.Equal(t, f.seller, ev.SellerID)
}
