package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"referral-earnings-go/internal/api"
	"referral-earnings-go/internal/database"
	"referral-earnings-go/internal/models"
	"referral-earnings-go/internal/notify"
	"referral-earnings-go/internal/store"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server *httptest.Server
	hub    *notify.Hub
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	return setupTestServerWithConfig(t, models.HttpConfig{})
}

func setupTestServerWithConfig(t *testing.T, cfg models.HttpConfig) *testEnv {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:            filepath.Join(t.TempDir(), "server_test.db"),
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     time.Second,
		BusyTimeout:     5 * time.Second,
	})
	require.NoError(t, err)

	hub := notify.NewHub(8)
	publisher := notify.NewPublisher(models.NotifierConfig{QueueSize: 16, DeliveryTimeout: time.Second}, hub)
	publisher.Start(context.Background())

	ledger := api.NewLedgerService(db, publisher, models.EngineConfig{MaxCommitAttempts: 3})
	srv := httptest.NewServer(NewRouter(NewHandler(ledger, hub), cfg))

	t.Cleanup(func() {
		srv.Close()
		publisher.Stop()
		db.Close()
	})
	return &testEnv{server: srv, hub: hub}
}

func (e *testEnv) post(t *testing.T, path string, body any) (*http.Response, []byte) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return readBody(t, resp)
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	return readBody(t, resp)
}

func readBody(t *testing.T, resp *http.Response) (*http.Response, []byte) {
	t.Helper()
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (e *testEnv) createUser(t *testing.T, name, referredBy string) models.Account {
	t.Helper()
	resp, body := e.post(t, "/createUser", CreateUserRequest{
		Name:       name,
		Email:      fmt.Sprintf("%s@example.com", strings.ToLower(name)),
		ReferredBy: referredBy,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var account models.Account
	require.NoError(t, json.Unmarshal(body, &account))
	return account
}

func TestPurchaseFlow(t *testing.T) {
	// GIVEN: A <- B <- C <- D registered over HTTP
	// WHEN: D purchases 2000
	// THEN: C and B are credited and the reports reflect the ledger
	env := setupTestServer(t)
	a := env.createUser(t, "Alice", "")
	b := env.createUser(t, "Bob", a.Id)
	c := env.createUser(t, "Carol", b.Id)
	d := env.createUser(t, "Dave", c.Id)

	resp, body := env.post(t, "/purchase", map[string]any{"userId": d.Id, "purchaseAmount": 2000})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var result models.PurchaseResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "100", result.Level1Earnings.String())
	assert.Equal(t, "20", result.Level2Earnings.String())
	assert.Len(t, result.Records, 2)

	resp, body = env.get(t, "/earningsReport/"+c.Id)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var report EarningsReportResponse
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, "100", report.Level1Earnings.String())
	assert.Equal(t, "100", report.TotalEarnings.String())

	resp, body = env.get(t, "/referralEarningsBreakdown/"+d.Id)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var breakdown ReferralBreakdownResponse
	require.NoError(t, json.Unmarshal(body, &breakdown))
	assert.Len(t, breakdown.ReferralEarnings, 2)

	resp, body = env.get(t, "/userDetails/"+b.Id)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var details models.AccountDetails
	require.NoError(t, json.Unmarshal(body, &details))
	assert.Equal(t, "20", details.TotalEarnings.String())
	require.NotNil(t, details.Referrer)
	assert.Equal(t, a.Id, details.Referrer.Id)

	resp, body = env.get(t, "/reconcile/"+b.Id)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var reconciled models.ReconciliationReport
	require.NoError(t, json.Unmarshal(body, &reconciled))
	assert.True(t, reconciled.Matched)
}

func TestPurchase_Validation(t *testing.T) {
	env := setupTestServer(t)
	a := env.createUser(t, "Alice", "")

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"AtThreshold", map[string]any{"userId": a.Id, "purchaseAmount": 1000}, http.StatusBadRequest},
		{"NotANumber", map[string]any{"userId": a.Id, "purchaseAmount": "lots"}, http.StatusBadRequest},
		{"Missing", map[string]any{"userId": a.Id}, http.StatusBadRequest},
		{"BadUserId", map[string]any{"userId": "123", "purchaseAmount": 2000}, http.StatusBadRequest},
		{"UnknownUser", map[string]any{"userId": uuid.New().String(), "purchaseAmount": 2000}, http.StatusNotFound},
		{"NumericString", map[string]any{"userId": a.Id, "purchaseAmount": "1500"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.post(t, "/purchase", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(body))
		})
	}
}

func TestCreateUser_Errors(t *testing.T) {
	env := setupTestServer(t)
	env.createUser(t, "Alice", "")

	resp, _ := env.post(t, "/createUser", map[string]any{"name": "Alice"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.post(t, "/createUser", CreateUserRequest{Name: "Alice", Email: "alice@example.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "duplicate email")

	resp, _ = env.post(t, "/createUser", CreateUserRequest{Name: "Bob", Email: "bob@example.com", ReferredBy: uuid.New().String()})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEarningsReport_EmptyIsNotFoundWithZeros(t *testing.T) {
	env := setupTestServer(t)
	a := env.createUser(t, "Alice", "")

	resp, body := env.get(t, "/earningsReport/"+a.Id)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var report EarningsReportResponse
	require.NoError(t, json.Unmarshal(body, &report))
	assert.True(t, report.TotalEarnings.IsZero())
	assert.NotEmpty(t, report.Message)

	resp, _ = env.get(t, "/referralEarningsBreakdown/"+a.Id)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.get(t, "/userDetails/"+uuid.New().String())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupTestServer(t)

	resp, body := env.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"ok"`)

	resp, body = env.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestEvents_StreamsCommittedEarnings(t *testing.T) {
	env := setupTestServer(t)
	a := env.createUser(t, "Alice", "")
	b := env.createUser(t, "Bob", a.Id)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	resp, body := env.post(t, "/purchase", map[string]any{"userId": b.Id, "purchaseAmount": 5000})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var event map[string]any
	require.NoError(t, json.Unmarshal(message, &event))
	assert.Equal(t, notify.EventName, event["event"])
	assert.Equal(t, a.Id, event["userId"])
	assert.Equal(t, "250", event["earnings"])
	assert.Equal(t, "Level 1", event["referralType"])
}

func TestEvents_RejectsUnlistedOrigin(t *testing.T) {
	// GIVEN: a server that only allows https://app.example.com
	// WHEN: browsers from other origins open the websocket
	// THEN: the handshake is refused; the listed origin and originless clients connect
	env := setupTestServerWithConfig(t, models.HttpConfig{AllowedOrigins: []string{"https://app.example.com"}})
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://app.example.com"}})
	require.NoError(t, err)
	conn.Close()

	conn, _, err = websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	conn.Close()
}

func TestOriginAllowed(t *testing.T) {
	listed := []string{"https://app.example.com/"}
	assert.True(t, originAllowed("", listed))
	assert.True(t, originAllowed("https://APP.example.com", listed))
	assert.False(t, originAllowed("https://evil.example.com", listed))
	assert.False(t, originAllowed("https://app.example.com", nil))
	assert.True(t, originAllowed("https://anything.example.com", []string{"*"}))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: x", store.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: x", store.ErrAccountNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: x", store.ErrConcurrentModification), http.StatusConflict},
		{fmt.Errorf("%w: x", store.ErrStorageFailure), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, statusFor(tt.err), tt.err.Error())
	}
}

func TestPurchaseRequest_Amount(t *testing.T) {
	assert.Equal(t, 2000.0, PurchaseRequest{PurchaseAmount: json.RawMessage(`2000`)}.Amount())
	assert.Equal(t, 1500.5, PurchaseRequest{PurchaseAmount: json.RawMessage(`"1500.5"`)}.Amount())
	assert.Equal(t, 0.0, PurchaseRequest{}.Amount())
	assert.True(t, math.IsNaN(PurchaseRequest{PurchaseAmount: json.RawMessage(`"abc"`)}.Amount()))
	assert.True(t, math.IsNaN(PurchaseRequest{PurchaseAmount: json.RawMessage(`true`)}.Amount()))
}
