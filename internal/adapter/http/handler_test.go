package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaign-discounts/internal/adapter/memory"
	"campaign-discounts/internal/adapter/usecase"
	"campaign-discounts/internal/core/domain"
	"campaign-discounts/internal/metrics"
)

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	now := func() time.Time { return testNow }
	reg := prometheus.NewRegistry()
	svc := usecase.NewCampaignUseCase(memory.NewCampaignRepository(),
		usecase.WithClock(now),
		usecase.WithMetrics(metrics.New(reg)),
	)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(svc, logger,
		WithClock(now),
		WithMetrics("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, body string) (int, map[string]json.RawMessage) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]json.RawMessage
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func callList(t *testing.T, srv *httptest.Server, path string) (int, []map[string]json.RawMessage) {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out []map[string]json.RawMessage
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func createCustomer(t *testing.T, srv *httptest.Server, name string) string {
	t.Helper()
	status, body := call(t, srv, http.MethodPost, "/api/v1/customers", fmt.Sprintf(`{"username":%q}`, name))
	require.Equal(t, http.StatusCreated, status)
	return string(body["id"])
}

func createCampaign(t *testing.T, srv *httptest.Server, payload string) string {
	t.Helper()
	status, body := call(t, srv, http.MethodPost, "/api/v1/campaigns", payload)
	require.Equal(t, http.StatusCreated, status, "body: %v", body)
	return string(body["id"])
}

const cartPayload = `{
	"name": "cart ten",
	"discount_type": "cart",
	"discount_value": 10,
	"start_date": "2026-06-01T00:00:00Z",
	"end_date": "2026-06-30T23:59:59Z",
	"total_budget": "15",
	"daily_usage_limit": 2
}`

func TestApplyDiscountFlow(t *testing.T) {
	srv := newTestServer(t)
	customer := createCustomer(t, srv, "alice")
	campaign := createCampaign(t, srv, cartPayload)

	apply := fmt.Sprintf(`{"campaign_id":%s,"customer_id":%s,"subtotal":100,"delivery_fee":"20"}`, campaign, customer)
	status, body := call(t, srv, http.MethodPost, "/api/v1/discounts/apply", apply)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "10.00", string(body["discount_applied"]))
	assert.Equal(t, "110.00", string(body["total"]))
	assert.Equal(t, "20.00", string(body["delivery_fee"]))
	assert.NotEmpty(t, body["redemption_id"])

	// 5.00 left, the next 10.00 discount does not fit
	status, _ = call(t, srv, http.MethodPost, "/api/v1/discounts/apply", apply)
	assert.Equal(t, http.StatusConflict, status)

	small := fmt.Sprintf(`{"campaign_id":%s,"customer_id":%s,"subtotal":50,"delivery_fee":0}`, campaign, customer)
	status, body = call(t, srv, http.MethodPost, "/api/v1/discounts/apply", small)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "5.00", string(body["discount_applied"]))

	status, body = call(t, srv, http.MethodPost, "/api/v1/discounts/apply", small)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, string(body["error"]), "limit")

	status, body = call(t, srv, http.MethodGet, "/api/v1/campaigns/"+campaign, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "15.00", string(body["used_budget"]))
	assert.Equal(t, "0.00", string(body["remaining_budget"]))
	assert.Equal(t, "false", string(body["is_active"]))

	status, body = call(t, srv, http.MethodGet, "/api/v1/stats/overview?campaign_id="+campaign, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2", string(body["redemptions"]))
	assert.Equal(t, "15.00", string(body["discount_total"]))
}

func TestApplyDiscountErrors(t *testing.T) {
	srv := newTestServer(t)
	customer := createCustomer(t, srv, "alice")
	campaign := createCampaign(t, srv, cartPayload)

	cases := []struct {
		name string
		body string
		want int
	}{
		{name: "malformed", body: `{"campaign_id":`, want: http.StatusBadRequest},
		{name: "unknown_field", body: `{"coupon":"X"}`, want: http.StatusBadRequest},
		{name: "negative_amount", body: fmt.Sprintf(`{"campaign_id":%s,"customer_id":%s,"subtotal":-1}`, campaign, customer), want: http.StatusBadRequest},
		{name: "unknown_campaign", body: fmt.Sprintf(`{"campaign_id":999,"customer_id":%s,"subtotal":10}`, customer), want: http.StatusNotFound},
		{name: "unknown_customer", body: fmt.Sprintf(`{"campaign_id":%s,"customer_id":999,"subtotal":10}`, campaign), want: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := call(t, srv, http.MethodPost, "/api/v1/discounts/apply", tc.body)
			assert.Equal(t, tc.want, status)
		})
	}
}

func TestEligible(t *testing.T) {
	srv := newTestServer(t)
	alice := createCustomer(t, srv, "alice")
	bob := createCustomer(t, srv, "bob")

	createCampaign(t, srv, cartPayload)
	createCampaign(t, srv, fmt.Sprintf(`{
		"name": "bob only",
		"discount_type": "delivery",
		"discount_value": "50",
		"start_date": "2026-06-01T00:00:00Z",
		"end_date": "2026-06-30T00:00:00Z",
		"total_budget": 100,
		"daily_usage_limit": 1,
		"targeting": {"kind": "restricted", "customers": [%s]}
	}`, bob))

	status, list := callList(t, srv, "/api/v1/campaigns/eligible?customer_id="+alice)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list, 1)
	assert.Equal(t, `"cart ten"`, string(list[0]["name"]))

	status, list = callList(t, srv, "/api/v1/campaigns/eligible?customer_id="+bob)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, list, 2)

	status, list = callList(t, srv, "/api/v1/campaigns/eligible?discount_type=delivery")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list, 1)
	assert.Equal(t, `"delivery"`, string(list[0]["discount_type"]))

	status, list = callList(t, srv, "/api/v1/campaigns/eligible?at=2026-07-01T00:00:00Z")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, list)

	for _, q := range []string{"customer_id=999", "customer_id=abc", "at=yesterday", "discount_type=coupon"} {
		status, _ = callList(t, srv, "/api/v1/campaigns/eligible?"+q)
		assert.Equal(t, http.StatusBadRequest, status, q)
	}
}

func TestCampaignCRUD(t *testing.T) {
	srv := newTestServer(t)
	id := createCampaign(t, srv, cartPayload)

	status, _ := call(t, srv, http.MethodPost, "/api/v1/campaigns", `{"name":"x","discount_type":"coupon"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, srv, http.MethodPost, "/api/v1/campaigns", `{
		"name": "ghosts",
		"discount_type": "cart",
		"discount_value": 5,
		"start_date": "2026-06-01T00:00:00Z",
		"end_date": "2026-06-30T00:00:00Z",
		"total_budget": 10,
		"daily_usage_limit": 1,
		"targeting": {"kind": "restricted", "customers": [42]}
	}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, list := callList(t, srv, "/api/v1/campaigns")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, list, 1)

	updated := `{
		"name": "cart twenty",
		"discount_type": "cart",
		"discount_value": 20,
		"start_date": "2026-06-01T00:00:00Z",
		"end_date": "2026-06-30T23:59:59Z",
		"total_budget": 40,
		"daily_usage_limit": 1
	}`
	status, body := call(t, srv, http.MethodPut, "/api/v1/campaigns/"+id, updated)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, `"cart twenty"`, string(body["name"]))
	assert.Equal(t, "40.00", string(body["total_budget"]))

	status, _ = call(t, srv, http.MethodPut, "/api/v1/campaigns/999", updated)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, srv, http.MethodDelete, "/api/v1/campaigns/"+id, "")
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = call(t, srv, http.MethodGet, "/api/v1/campaigns/"+id, "")
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = call(t, srv, http.MethodGet, "/api/v1/campaigns/abc", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCustomersAndHealth(t *testing.T) {
	srv := newTestServer(t)
	id := createCustomer(t, srv, "carol")

	status, _ := call(t, srv, http.MethodPost, "/api/v1/customers", `{"username":"carol"}`)
	assert.Equal(t, http.StatusConflict, status)
	status, _ = call(t, srv, http.MethodPost, "/api/v1/customers", `{"username":""}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := call(t, srv, http.MethodGet, "/api/v1/customers/"+id, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, `"carol"`, string(body["username"]))

	status, _ = call(t, srv, http.MethodGet, "/api/v1/customers/77", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	status, _ = call(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestStatsRejectsBadParams(t *testing.T) {
	srv := newTestServer(t)
	for _, q := range []string{"from=nope", "to=nope", "campaign_id=x", "from=2026-06-15T00:00:00Z&to=2026-06-14T00:00:00Z"} {
		status, _ := call(t, srv, http.MethodGet, "/api/v1/stats/overview?"+q, "")
		assert.Equal(t, http.StatusBadRequest, status, q)
	}
}

func TestStatusOf(t *testing.T) {
	cases := map[error]int{
		domain.ErrInvalidInput:    http.StatusBadRequest,
		domain.ErrNotFound:        http.StatusNotFound,
		domain.ErrLimitExceeded:   http.StatusTooManyRequests,
		domain.ErrBudgetExhausted: http.StatusConflict,
		domain.ErrNotEligible:     http.StatusConflict,
		domain.ErrConflict:        http.StatusConflict,
		errors.New("db down"):     http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusOf(fmt.Errorf("wrapped: %w", err)), err.Error())
	}

	both := fmt.Errorf("%w: %w", domain.ErrInvalidInput, domain.ErrNotFound)
	assert.Equal(t, http.StatusBadRequest, statusOf(both))
}

func TestQueryTimestampOffsets(t *testing.T) {
	srv := newTestServer(t)
	createCampaign(t, srv, cartPayload)

	// 2026-07-01T01:00:00+03:00 is still June 30 in UTC, inside the window
	for _, at := range []string{"2026-07-01T01:00:00%2B03:00", "2026-07-01T01:00:00+03:00"} {
		status, list := callList(t, srv, "/api/v1/campaigns/eligible?at="+at)
		require.Equal(t, http.StatusOK, status, at)
		assert.Len(t, list, 1, at)
	}

	status, body := call(t, srv, http.MethodGet, "/api/v1/stats/overview?from=2026-06-15T10:00:00+03:00&to=2026-06-15T16:00:00+03:00", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, `"2026-06-15T10:00:00+03:00"`, string(body["from"]))
}

func TestParseQueryTime(t *testing.T) {
	want := time.Date(2026, 6, 15, 12, 0, 0, 0, time.FixedZone("", 3*60*60))
	for _, v := range []string{"2026-06-15T12:00:00+03:00", "2026-06-15T12:00:00 03:00", " 2026-06-15T12:00:00+03:00 "} {
		got, err := parseQueryTime(v)
		require.NoError(t, err, v)
		assert.True(t, got.Equal(want), v)
	}
	_, err := parseQueryTime("2026-06-15")
	assert.Error(t, err)
}
