package reconcile

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/qris_backend/middlewares"
	"github.com/mmdatafocus/qris_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNotificationRouter(engine *Engine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	logger := quietLogger()
	verifier := middlewares.NewSecretVerifier("relay-secret", "")
	r.POST("/api/notification", NotificationHandler(engine, verifier, logger))
	r.POST("/pubsub/notification", middlewares.RequireSecret(verifier), PubSubNotificationHandler(engine, logger))
	return r
}

func postJSON(r http.Handler, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func pushEnvelope(data string) map[string]any {
	return map[string]any{
		"message": map[string]any{
			"data": base64.StdEncoding.EncodeToString([]byte(data)),
			"id":   "msg-1",
		},
		"subscription": "projects/p/subscriptions/notifications",
	}
}

func TestNotificationHandler_Match(t *testing.T) {
	store := models.NewMemoryOrderStore()
	seedOrder(t, store, "ORD-H1", 100007, baseTime.Add(-time.Minute))
	r := newNotificationRouter(newTestEngine(store, &recordingDispatcher{}, Options{}))

	w := postJSON(r, "/api/notification", map[string]string{
		"package_name": "id.dana",
		"title":        "Dana masuk",
		"text":         "Kamu menerima Rp 100.007",
		"secret":       "relay-secret",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, true, body["match"])
	assert.Equal(t, "ORD-H1", body["order_id"])
	assert.Equal(t, "DANA", body["source"])
}

func TestNotificationHandler_SecretInHeader(t *testing.T) {
	r := newNotificationRouter(newTestEngine(models.NewMemoryOrderStore(), &recordingDispatcher{}, Options{}))

	w := postJSON(r, "/api/notification", map[string]string{"text": "Rp 5.000"},
		map[string]string{middlewares.SecretHeader: "relay-secret"})
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["match"])
	assert.NotContains(t, body, "order_id")
}

func TestNotificationHandler_RejectsBadSecret(t *testing.T) {
	store := models.NewMemoryOrderStore()
	seedOrder(t, store, "ORD-H2", 100007, baseTime.Add(-time.Minute))
	r := newNotificationRouter(newTestEngine(store, &recordingDispatcher{}, Options{}))

	w := postJSON(r, "/api/notification", map[string]string{"text": "Rp 100.007", "secret": "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	stored, err := store.FindByOrderId(t.Context(), "ORD-H2")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
}

func TestNotificationHandler_StoreFailure(t *testing.T) {
	r := newNotificationRouter(newTestEngine(failingStore{err: errors.New("down")}, &recordingDispatcher{}, Options{}))
	w := postJSON(r, "/api/notification", map[string]string{"text": "Rp 100.007", "secret": "relay-secret"}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
}

func TestNotificationHandler_InvalidBody(t *testing.T) {
	r := newNotificationRouter(newTestEngine(models.NewMemoryOrderStore(), &recordingDispatcher{}, Options{}))
	req := httptest.NewRequest(http.MethodPost, "/api/notification", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPubSubNotificationHandler(t *testing.T) {
	store := models.NewMemoryOrderStore()
	seedOrder(t, store, "ORD-P1", 75003, baseTime.Add(-time.Minute))
	r := newNotificationRouter(newTestEngine(store, &recordingDispatcher{}, Options{}))

	w := postJSON(r, "/pubsub/notification?token=relay-secret",
		pushEnvelope(`{"package_name":"ovo.id","text":"Rp 75.003 masuk"}`), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	stored, err := store.FindByOrderId(t.Context(), "ORD-P1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, stored.Status)
}

func TestPubSubNotificationHandler_AcksMalformed(t *testing.T) {
	r := newNotificationRouter(newTestEngine(models.NewMemoryOrderStore(), &recordingDispatcher{}, Options{}))

	w := postJSON(r, "/pubsub/notification?token=relay-secret", map[string]any{"message": map[string]any{"id": "1"}}, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = postJSON(r, "/pubsub/notification?token=relay-secret", pushEnvelope(`not json`), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestPubSubNotificationHandler_NacksStoreFailure(t *testing.T) {
	r := newNotificationRouter(newTestEngine(failingStore{err: errors.New("down")}, &recordingDispatcher{}, Options{}))
	w := postJSON(r, "/pubsub/notification?token=relay-secret", pushEnvelope(`{"text":"Rp 75.003"}`), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPubSubNotificationHandler_RequiresToken(t *testing.T) {
	r := newNotificationRouter(newTestEngine(models.NewMemoryOrderStore(), &recordingDispatcher{}, Options{}))
	w := postJSON(r, "/pubsub/notification", pushEnvelope(`{"text":"Rp 75.003"}`), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
