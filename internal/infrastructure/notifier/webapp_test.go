package notifier_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/mohammadpnp/hana-migration/internal/domain/migration"
	"github.com/mohammadpnp/hana-migration/internal/infrastructure/notifier"
)

type webApp struct {
	mu            sync.Mutex
	authBody      map[string]any
	authStatus    int
	authResponse  string
	webhookStatus int
	webhookCalls  int
	webhookAuth   string
	webhookBody   map[string]string
}

func (w *webApp) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		w.mu.Lock()
		defer w.mu.Unlock()
		switch r.URL.Path {
		case "/api/authenticate":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&w.authBody))
			rw.Header().Set("Content-Type", "application/json")
			rw.WriteHeader(w.authStatus)
			_, _ = rw.Write([]byte(w.authResponse))
		case "/api/webhook":
			w.webhookCalls++
			w.webhookAuth = r.Header.Get("Authorization")
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&w.webhookBody))
			rw.WriteHeader(w.webhookStatus)
		default:
			rw.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newNotifier(baseURL string) *notifier.WebApp {
	return notifier.New(notifier.Config{
		AuthURL:    baseURL + "/api/authenticate",
		WebhookURL: baseURL + "/api/webhook",
		Username:   "svc",
		Password:   "secret",
		RememberMe: true,
		Timeout:    2 * time.Second,
	})
}

func TestNotifySuccess(t *testing.T) {
	app := &webApp{authStatus: http.StatusOK, authResponse: `{"id_token":"tok-1"}`, webhookStatus: http.StatusOK}
	srv := app.server(t)

	err := newNotifier(srv.URL).Notify(context.Background(), "abc-123", "s3://out/converted/abc-123.zip")

	require.NoError(t, err)
	assert.Equal(t, "svc", app.authBody["username"])
	assert.Equal(t, "secret", app.authBody["password"])
	assert.Equal(t, true, app.authBody["rememberMe"])
	assert.Equal(t, 1, app.webhookCalls)
	assert.Equal(t, "Bearer tok-1", app.webhookAuth)
	assert.Equal(t, map[string]string{"file_uuid": "abc-123", "s3_link": "s3://out/converted/abc-123.zip"}, app.webhookBody)
}

func TestNotifyMissingTokenSkipsWebhook(t *testing.T) {
	app := &webApp{authStatus: http.StatusOK, authResponse: `{"access":"nope"}`, webhookStatus: http.StatusOK}
	srv := app.server(t)

	err := newNotifier(srv.URL).Notify(context.Background(), "abc-123", "s3://out/abc-123.zip")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAuthentication))
	assert.Equal(t, 0, app.webhookCalls)
}

func TestNotifyAuthRejected(t *testing.T) {
	app := &webApp{authStatus: http.StatusUnauthorized, authResponse: `{"detail":"bad credentials"}`, webhookStatus: http.StatusOK}
	srv := app.server(t)

	err := newNotifier(srv.URL).Notify(context.Background(), "abc-123", "s3://out/abc-123.zip")

	assert.True(t, errors.Is(err, domain.ErrAuthentication))
	assert.Equal(t, 0, app.webhookCalls)
}

func TestNotifyWebhookRejected(t *testing.T) {
	app := &webApp{authStatus: http.StatusOK, authResponse: `{"id_token":"tok-1"}`, webhookStatus: http.StatusBadRequest}
	srv := app.server(t)

	err := newNotifier(srv.URL).Notify(context.Background(), "abc-123", "s3://out/abc-123.zip")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotificationDelivery))
	assert.False(t, errors.Is(err, domain.ErrAuthentication))
}

func TestNotifyAuthUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := newNotifier(url).Notify(context.Background(), "abc-123", "s3://out/abc-123.zip")

	assert.True(t, errors.Is(err, domain.ErrAuthentication))
}
