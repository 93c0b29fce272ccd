package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tradeapi-connector/src/config"
	"tradeapi-connector/src/logger"
	"tradeapi-connector/src/models"
	"tradeapi-connector/src/tradeapi"
	"tradeapi-connector/src/tradeapi/tradeapitest"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeControl struct {
	mu      sync.Mutex
	subs    map[string]models.MSubscription
	orders  map[string]models.DataType
	counter int
}

func newFakeControl() *fakeControl {
	return &fakeControl{subs: map[string]models.MSubscription{}, orders: map[string]models.DataType{}}
}

func (f *fakeControl) Subscriptions() []models.MSubscriptionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MSubscriptionStatus
	for _, s := range f.subs {
		out = append(out, models.MSubscriptionStatus{Subscription: s, State: models.StateStreaming})
	}
	return out
}

func (f *fakeControl) Subscribe(sub models.MSubscription) (string, error) {
	if len(sub.Symbols) == 0 {
		return "", fmt.Errorf("no symbols")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counter++
	sub.ID = fmt.Sprintf("S%d", f.counter)
	f.subs[sub.ID] = sub
	return sub.ID, nil
}

func (f *fakeControl) Unsubscribe(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[id]; !ok {
		return fmt.Errorf("subscription %s not found", id)
	}
	delete(f.subs, id)
	return nil
}

func (f *fakeControl) SubscribeOrderTrade(accountID string, types models.DataType) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[accountID] |= types
	return orderTradeID, nil
}

func (f *fakeControl) UnsubscribeOrderTrade(accountID string, types models.DataType) error {
	if accountID == "" {
		return fmt.Errorf("account id is empty")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[accountID] &^= types
	return nil
}

// -----------------------------------------------------------------------------

func newTestServer(t *testing.T) (*FastAPIServer, *fakeControl, *httptest.Server) {
	cfg := config.Default()
	control := newFakeControl()
	s := NewFastAPIServer(cfg.MConfig, logger.FromZap(zaptest.NewLogger(t), "server"), control)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Stop()
	})
	return s, control, ts
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func quoteEvent(last string) models.MStreamEvent {
	quote := tradeapi.List(tradeapitest.Quote(tradeapitest.Schema(), last, "SBER@MISX"), "quote")[0]
	return models.MStreamEvent{Kind: models.KindQuote, SubscriptionID: "S1", Payload: quote, ReceivedAt: time.Now()}
}

// -----------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, body := do(t, http.MethodGet, ts.URL+"/api/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["connections"])
}

func TestSubscriptionLifecycle(t *testing.T) {
	_, control, ts := newTestServer(t)

	resp, body := do(t, http.MethodPost, ts.URL+"/api/subscriptions", `{"kind":"quote","symbols":["SBER@MISX"]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)
	assert.Len(t, control.Subscriptions(), 1)

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/subscriptions", `{"kind":"quote"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, ts.URL+"/api/subscriptions", `{"symbols":["X@Y"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "kind is required")

	resp, body = do(t, http.MethodPost, ts.URL+"/api/subscriptions", `{"kind":"order_trade","account_id":"A1","data_type":"orders"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, orderTradeID, body["id"])
	assert.Equal(t, models.DataTypeOrders, control.orders["A1"])

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/subscriptions", nil)
	require.NoError(t, err)
	listResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var list []models.MSubscriptionStatus
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&list))
	listResp.Body.Close()
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].Subscription.ID)

	resp, _ = do(t, http.MethodDelete, ts.URL+"/api/subscriptions/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodDelete, ts.URL+"/api/subscriptions/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, ts.URL+"/api/subscriptions/ORDER_TRADE?account_id=A1&data_type=orders", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, models.DataTypeNone, control.orders["A1"])
}

func TestWebSocketRelay(t *testing.T) {
	s, _, ts := newTestServer(t)

	s.Broadcast(quoteEvent("300"))
	require.Eventually(t, func() bool {
		return len(s.recent.GetLatest(string(models.KindQuote), 0)) == 1
	}, 5*time.Second, 10*time.Millisecond)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var initial models.MRelayMessage
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, "INITIAL", initial.Type)
	assert.Equal(t, models.KindQuote, initial.Kind)
	assert.JSONEq(t, `{"symbol":"SBER@MISX","last":"300"}`, string(initial.Payload))

	s.Broadcast(quoteEvent("301"))
	var update models.MRelayMessage
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, "UPDATE", update.Type)
	assert.JSONEq(t, `{"symbol":"SBER@MISX","last":"301"}`, string(update.Payload))

	resp, _ := do(t, http.MethodGet, ts.URL+"/api/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebSocketKindFilter(t *testing.T) {
	s, _, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?kind=bars"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	// wait until the hub knows the client
	require.Eventually(t, func() bool {
		s.stateMutex.RLock()
		defer s.stateMutex.RUnlock()
		return len(s.clients) == 1
	}, 5*time.Second, 10*time.Millisecond)

	s.Broadcast(quoteEvent("300"))
	s.Broadcast(models.MStreamEvent{Kind: models.KindBars, SubscriptionID: "B1", ReceivedAt: time.Now()})

	var message models.MRelayMessage
	require.NoError(t, conn.ReadJSON(&message))
	assert.Equal(t, models.KindBars, message.Kind)
	assert.Equal(t, "B1", message.SubscriptionID)
}
