package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(store Store, oauth *OAuthClient, notifier *Notifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	Routes(r, store, oauth, notifier)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	r := newTestRouter(NewMemStore(), testOAuthClient("http://unused"), NewNotifier(zap.NewNop()))

	w := doJSON(t, r, http.MethodGet, "/", nil)
	require.Equal(t, 200, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, Version, body["version"])
}

func TestDiscordAuthMissingCode(t *testing.T) {
	srv, calls := newFakeDiscord(t)
	r := newTestRouter(NewMemStore(), testOAuthClient(srv.URL), NewNotifier(zap.NewNop()))

	w := doJSON(t, r, http.MethodPost, "/api/auth/discord", map[string]string{})
	require.Equal(t, 400, w.Code)
	assert.NotEmpty(t, decodeBody(t, w)["error"])
	assert.Zero(t, *calls, "no outbound call may be made without a code")
}

func TestDiscordAuthSuccess(t *testing.T) {
	srv, _ := newFakeDiscord(t)
	r := newTestRouter(NewMemStore(), testOAuthClient(srv.URL), NewNotifier(zap.NewNop()))

	w := doJSON(t, r, http.MethodPost, "/api/auth/discord", map[string]string{"code": "good-code"})
	require.Equal(t, 200, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "4242", body["id"])
	assert.Equal(t, "jamie", body["username"])
	assert.Equal(t, "https://cdn.test/embed/avatars/1.png", body["avatar"])
}

func TestDiscordAuthUpstreamError(t *testing.T) {
	srv, _ := newFakeDiscord(t)
	r := newTestRouter(NewMemStore(), testOAuthClient(srv.URL), NewNotifier(zap.NewNop()))

	w := doJSON(t, r, http.MethodPost, "/api/auth/discord", map[string]string{"code": "bad-code"})
	require.Equal(t, 500, w.Code)

	body := decodeBody(t, w)
	assert.NotEmpty(t, body["error"])
	assert.Equal(t, "Invalid authorization code", body["details"])
}

func TestSubmitMissingID(t *testing.T) {
	store := NewMemStore()
	r := newTestRouter(store, testOAuthClient("http://unused"), NewNotifier(zap.NewNop()))

	w := doJSON(t, r, http.MethodPost, "/api/applications", map[string]string{"userId": "u1"})
	require.Equal(t, 400, w.Code)

	apps, err := store.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestSubmitAndList(t *testing.T) {
	r := newTestRouter(NewMemStore(), testOAuthClient("http://unused"), NewNotifier(zap.NewNop()))

	w := doJSON(t, r, http.MethodPost, "/api/applications", sampleApp("a1", "u1"))
	require.Equal(t, 200, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	app := body["application"].(map[string]any)
	assert.Equal(t, "a1", app["id"])
	assert.Equal(t, "120", app["experience"])

	w = doJSON(t, r, http.MethodGet, "/api/applications", nil)
	require.Equal(t, 200, w.Code)
	apps := decodeBody(t, w)["applications"].([]any)
	require.Len(t, apps, 1)
}

func TestSubmitAcceptsNumericExperience(t *testing.T) {
	r := newTestRouter(NewMemStore(), testOAuthClient("http://unused"), NewNotifier(zap.NewNop()))

	w := doJSON(t, r, http.MethodPost, "/api/applications", map[string]any{
		"id": "a1", "userId": "u1", "experience": 250,
	})
	require.Equal(t, 200, w.Code)

	app := decodeBody(t, w)["application"].(map[string]any)
	assert.Equal(t, "250", app["experience"])
}

func TestSubmitTriggersWebhook(t *testing.T) {
	var got WebhookMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	notifier := NewNotifier(zap.NewNop())
	r := newTestRouter(NewMemStore(), testOAuthClient("http://unused"), notifier)

	app := sampleApp("a1", "u1")
	app.WebhookURL = srv.URL
	w := doJSON(t, r, http.MethodPost, "/api/applications", app)
	require.Equal(t, 200, w.Code)

	notifier.Wait()
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "Application ID: a1", got.Embeds[0].Footer.Text)
	assert.Equal(t, "accept_a1", got.Components[0].Components[0].CustomID)
}

func TestSubmitSucceedsWhenWebhookFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	store := NewMemStore()
	notifier := NewNotifier(zap.NewNop())
	r := newTestRouter(store, testOAuthClient("http://unused"), notifier)

	for i, target := range []string{srv.URL, dead.URL} {
		app := sampleApp("a1", "u1")
		if i == 1 {
			app.ID = "a2"
		}
		app.WebhookURL = target

		w := doJSON(t, r, http.MethodPost, "/api/applications", app)
		require.Equal(t, 200, w.Code)
		assert.Equal(t, true, decodeBody(t, w)["success"])
	}
	notifier.Wait()

	apps, err := store.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, apps, 2)
}

func TestListByOwner(t *testing.T) {
	store := NewMemStore()
	r := newTestRouter(store, testOAuthClient("http://unused"), NewNotifier(zap.NewNop()))

	_, err := store.Put(context.Background(), sampleApp("a1", "u1"))
	require.NoError(t, err)
	_, err = store.Put(context.Background(), sampleApp("a2", "u2"))
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodGet, "/api/applications/u1", nil)
	require.Equal(t, 200, w.Code)
	apps := decodeBody(t, w)["applications"].([]any)
	require.Len(t, apps, 1)
	assert.Equal(t, "a1", apps[0].(map[string]any)["id"])

	w = doJSON(t, r, http.MethodGet, "/api/applications/nobody", nil)
	require.Equal(t, 200, w.Code)
	assert.Empty(t, decodeBody(t, w)["applications"])
}

func TestUpdateApplication(t *testing.T) {
	store := NewMemStore()
	r := newTestRouter(store, testOAuthClient("http://unused"), NewNotifier(zap.NewNop()))

	_, err := store.Put(context.Background(), sampleApp("a1", "u1"))
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPatch, "/api/applications/a1", map[string]string{
		"status":     "accepted",
		"reviewedBy": "mod#1",
	})
	require.Equal(t, 200, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	app := body["application"].(map[string]any)
	assert.Equal(t, "accepted", app["status"])
	assert.Equal(t, "mod#1", app["reviewedBy"])
	assert.NotEmpty(t, app["reviewedAt"])
	assert.Equal(t, "Jamie Doe", app["fullName"])
}

func TestUpdateApplicationNotFound(t *testing.T) {
	r := newTestRouter(NewMemStore(), testOAuthClient("http://unused"), NewNotifier(zap.NewNop()))

	w := doJSON(t, r, http.MethodPatch, "/api/applications/ghost", map[string]string{
		"status": "accepted",
	})
	require.Equal(t, 404, w.Code)
	assert.NotEmpty(t, decodeBody(t, w)["error"])
}

func TestRelayWebhook(t *testing.T) {
	var got WebhookMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	r := newTestRouter(NewMemStore(), testOAuthClient("http://unused"), NewNotifier(zap.NewNop()))

	w := doJSON(t, r, http.MethodPost, "/api/webhook/application", map[string]any{
		"application": sampleApp("a1", "u1"),
		"webhookUrl":  srv.URL,
	})
	require.Equal(t, 200, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["message"])
	assert.Equal(t, "Application ID: a1", got.Embeds[0].Footer.Text)
}

func TestRelayWebhookMissingFields(t *testing.T) {
	r := newTestRouter(NewMemStore(), testOAuthClient("http://unused"), NewNotifier(zap.NewNop()))

	w := doJSON(t, r, http.MethodPost, "/api/webhook/application", map[string]any{
		"application": sampleApp("a1", "u1"),
	})
	require.Equal(t, 400, w.Code)
}

func TestRelayWebhookDeliveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := newTestRouter(NewMemStore(), testOAuthClient("http://unused"), NewNotifier(zap.NewNop()))

	w := doJSON(t, r, http.MethodPost, "/api/webhook/application", map[string]any{
		"application": sampleApp("a1", "u1"),
		"webhookUrl":  srv.URL,
	})
	require.Equal(t, 500, w.Code)

	body := decodeBody(t, w)
	assert.NotEmpty(t, body["error"])
	assert.Contains(t, body["details"], "status 500")
}
