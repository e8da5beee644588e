package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"realtime-backend/internal/models"
	"realtime-backend/internal/realtime"
	"realtime-backend/internal/realtime/realtimetest"
	"realtime-backend/internal/services"
	"realtime-backend/internal/store/memory"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "handlers-secret"

type apiFixture struct {
	app      *fiber.App
	registry *realtime.Registry
	chats    *services.ChatService
	conns    *services.ConnectionService
	cancel   context.CancelFunc
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	st := memory.New()
	st.AddUser(alice, "Alice")
	st.AddUser(bob, "Bob")
	st.AddUser(carol, "Carol")

	log := zerolog.Nop()
	registry := realtime.NewRegistry()
	router := realtime.NewRouter(registry, log)
	verifier := services.NewJWTVerifier(testSecret, st)
	chats := services.NewChatService(st, st, log)
	conns := services.NewConnectionService(st, st, log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	app := fiber.New()
	Register(ctx, app, NewAPI(chats, conns, router, log),
		NewSessionHandler(verifier, chats, st, router, time.Minute, time.Second, log), verifier)

	return &apiFixture{app: app, registry: registry, chats: chats, conns: conns, cancel: cancel}
}

func tokenFor(t *testing.T, userID int) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

// listen registers a fake client for userID on ch and returns its transport.
func (f *apiFixture) listen(userID int, ch realtime.Channel) *realtimetest.Transport {
	tr := realtimetest.NewTransport()
	f.registry.Register(ch, realtime.NewClient(userID, tr, time.Second))
	return tr
}

func (f *apiFixture) do(t *testing.T, method, path string, userID int, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, userID))
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	} else if len(raw) > 0 {
		var list []any
		require.NoError(t, json.Unmarshal(raw, &list))
		out["items"] = list
	}
	return resp.StatusCode, out
}

func TestAPI_RequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	status, body := f.do(t, http.MethodGet, "/api/chats", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", body["code"])

	status, _ = f.do(t, http.MethodGet, "/health", 0, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAPI_SendMessageBroadcasts(t *testing.T) {
	f := newAPIFixture(t)
	conv, err := f.chats.GetOrCreateConversation(context.Background(), alice, bob)
	require.NoError(t, err)
	trB := f.listen(bob, realtime.Messages(conv.ID))
	trC := f.listen(carol, realtime.Messages(conv.ID))

	status, body := f.do(t, http.MethodPost, "/api/chats/message", alice,
		map[string]any{"receiverId": bob, "content": "hello"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "hello", body["content"])
	assert.EqualValues(t, conv.ID, body["chatId"])

	events := trB.EventsOfType(models.EventNewMessage)
	require.Len(t, events, 1)
	assert.Equal(t, "hello", events[0]["content"])
	assert.Empty(t, trC.Sent())

	status, body = f.do(t, http.MethodPost, "/api/chats/message", alice,
		map[string]any{"receiverId": alice, "content": "me"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_ARGUMENT", body["code"])

	status, _ = f.do(t, http.MethodPost, "/api/chats/message", alice,
		map[string]any{"receiverId": bob, "content": ""})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPI_ChatReads(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	status, body := f.do(t, http.MethodPost, "/api/chats/with/2", alice, nil)
	require.Equal(t, http.StatusOK, status)
	convID := int(body["id"].(float64))

	_, err := f.chats.SendMessage(ctx, convID, alice, "one", nil)
	require.NoError(t, err)
	_, err = f.chats.SendMessage(ctx, convID, alice, "two", nil)
	require.NoError(t, err)

	status, body = f.do(t, http.MethodGet, "/api/chats", bob, nil)
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.EqualValues(t, 2, items[0].(map[string]any)["unreadCount"])

	status, body = f.do(t, http.MethodGet, "/api/chats/"+itoa(convID)+"/messages?limit=1", bob, nil)
	require.Equal(t, http.StatusOK, status)
	msgs := body["items"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "two", msgs[0].(map[string]any)["content"])

	status, body = f.do(t, http.MethodPost, "/api/chats/"+itoa(convID)+"/mark-as-read", bob, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["updated"])

	status, body = f.do(t, http.MethodGet, "/api/chats/"+itoa(convID), carol, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "PERMISSION_DENIED", body["code"])

	status, _ = f.do(t, http.MethodGet, "/api/chats/999", alice, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodDelete, "/api/chats/"+itoa(convID), carol, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = f.do(t, http.MethodDelete, "/api/chats/"+itoa(convID), bob, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = f.do(t, http.MethodGet, "/api/chats/"+itoa(convID), alice, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPI_ConnectionLifecycleNotifiesBothSides(t *testing.T) {
	f := newAPIFixture(t)
	trA := f.listen(alice, realtime.Connections)
	trB := f.listen(bob, realtime.Connections)

	status, body := f.do(t, http.MethodPost, "/api/connections/send", alice, map[string]any{"receiverId": bob})
	require.Equal(t, http.StatusCreated, status)
	reqID := itoa(int(body["id"].(float64)))
	assert.Equal(t, map[string]any{"id": float64(alice), "fullName": "Alice"}, body["sender"])
	assert.Equal(t, map[string]any{"id": float64(bob), "fullName": "Bob"}, body["receiver"])

	requests := trB.EventsOfType(models.EventConnectionRequest)
	require.Len(t, requests, 1)
	assert.EqualValues(t, alice, requests[0]["user_id"])
	assert.Equal(t, "Alice", requests[0]["full_name"])
	assert.Empty(t, trA.EventsOfType(models.EventConnectionRequest))

	status, body = f.do(t, http.MethodPost, "/api/connections/send", bob, map[string]any{"receiverId": alice})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALREADY_EXISTS", body["code"])

	status, _ = f.do(t, http.MethodDelete, "/api/connections/"+reqID, alice, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = f.do(t, http.MethodPost, "/api/connections/"+reqID+"/accept", alice, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = f.do(t, http.MethodPost, "/api/connections/"+reqID+"/accept", bob, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "accepted", body["status"])

	acceptedA := trA.EventsOfType(models.EventConnectionAccepted)
	acceptedB := trB.EventsOfType(models.EventConnectionAccepted)
	require.Len(t, acceptedA, 1)
	require.Len(t, acceptedB, 1)
	assert.EqualValues(t, bob, acceptedA[0]["user_id"])
	assert.EqualValues(t, alice, acceptedB[0]["user_id"])

	status, body = f.do(t, http.MethodGet, "/api/connections/status/1", bob, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["connected"])
	assert.EqualValues(t, alice, body["userId"])

	status, body = f.do(t, http.MethodGet, "/api/connections/accepted", alice, nil)
	require.Equal(t, http.StatusOK, status)
	accepted := body["items"].([]any)
	require.Len(t, accepted, 1)
	item := accepted[0].(map[string]any)
	assert.Equal(t, "accepted", item["status"])
	assert.Equal(t, "Alice", item["sender"].(map[string]any)["fullName"])
	assert.Equal(t, "Bob", item["receiver"].(map[string]any)["fullName"])

	status, _ = f.do(t, http.MethodDelete, "/api/connections/"+reqID, bob, nil)
	assert.Equal(t, http.StatusNoContent, status)
	assert.Len(t, trA.EventsOfType(models.EventConnectionRemoved), 1)
	assert.Len(t, trB.EventsOfType(models.EventConnectionRemoved), 1)
}

func TestAPI_RejectAndPendingLists(t *testing.T) {
	f := newAPIFixture(t)
	trA := f.listen(alice, realtime.Connections)

	status, body := f.do(t, http.MethodPost, "/api/connections/send", alice, map[string]any{"receiverId": carol})
	require.Equal(t, http.StatusCreated, status)
	reqID := itoa(int(body["id"].(float64)))

	status, body = f.do(t, http.MethodGet, "/api/connections/pending/incoming", carol, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["items"], 1)

	status, body = f.do(t, http.MethodGet, "/api/connections/pending/outgoing", alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["items"], 1)

	status, _ = f.do(t, http.MethodPost, "/api/connections/"+reqID+"/reject", bob, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = f.do(t, http.MethodPost, "/api/connections/"+reqID+"/reject", carol, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, trA.EventsOfType(models.EventConnectionRejected), 1)

	status, _ = f.do(t, http.MethodPost, "/api/connections/"+reqID+"/accept", carol, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestAPI_Online(t *testing.T) {
	f := newAPIFixture(t)
	f.listen(bob, realtime.Online)
	f.listen(carol, realtime.Online)

	status, body := f.do(t, http.MethodGet, "/api/online", alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{float64(bob), float64(carol)}, body["online"])
	assert.EqualValues(t, 2, body["count"])
}

func itoa(n int) string { return strconv.Itoa(n) }

func TestAPI_HealthReportsChecks(t *testing.T) {
	router := realtime.NewRouter(realtime.NewRegistry(), zerolog.Nop())
	api := NewAPI(nil, nil, router, zerolog.Nop()).
		WithCheck("cache", func(context.Context) error { return nil }).
		WithCheck("postgres", func(context.Context) error { return errors.New("connection refused") })
	app := fiber.New()
	app.Get("/health", api.Health)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, map[string]string{"cache": "ok", "postgres": "connection refused"}, body.Checks)
}
