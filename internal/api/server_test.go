// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/emoji-auth/internal/api"
	"github.com/taibuivan/emoji-auth/internal/auth"
	"github.com/taibuivan/emoji-auth/internal/platform/config"
	"github.com/taibuivan/emoji-auth/internal/platform/metrics"
	redisstore "github.com/taibuivan/emoji-auth/internal/platform/redis"
	"github.com/taibuivan/emoji-auth/internal/platform/sec"
)

func newTestServer(t *testing.T, checks ...api.HealthCheck) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hasher, err := sec.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := sec.NewTokenService([]byte("server-test-secret"), "emoji-auth-test", time.Hour)
	require.NoError(t, err)

	recorder := metrics.NewRecorder()
	lifecycle := auth.NewLifecycle(auth.NewRedisRepository(client), hasher)
	service := auth.NewService(lifecycle, tokens, recorder)

	checks = append(checks, api.HealthCheck{
		Name:  "redis",
		Check: func(ctx context.Context) error { return redisstore.Ping(ctx, client) },
	})
	liveness, readiness := api.NewHealthHandlers(logger, checks...)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{ServerPort: "0", Environment: "development"}
	return api.NewServer(ctx, cfg, logger, tokens, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(service),
		Metrics:   recorder.Handler(),
	}).Handler()
}

func serve(handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, path, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func TestServer_Health(t *testing.T) {
	handler := newTestServer(t)

	recorder := serve(handler, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"data":{"status":"ok"}}`, recorder.Body.String())
}

func TestServer_Readiness(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		recorder := serve(newTestServer(t), http.MethodGet, "/ready", "")
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.JSONEq(t, `{"data":{"status":"ready","checks":[{"name":"redis","ok":true}]}}`, recorder.Body.String())
	})

	t.Run("degraded", func(t *testing.T) {
		failing := api.HealthCheck{
			Name:  "postgres",
			Check: func(context.Context) error { return errors.New("connection refused") },
		}
		recorder := serve(newTestServer(t, failing), http.MethodGet, "/ready", "")
		assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)

		var body struct {
			Data struct {
				Status string `json:"status"`
				Checks []struct {
					Name string `json:"name"`
					OK   bool   `json:"ok"`
				} `json:"checks"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		assert.Equal(t, "degraded", body.Data.Status)
		require.Len(t, body.Data.Checks, 2)
		assert.False(t, body.Data.Checks[0].OK)
		assert.True(t, body.Data.Checks[1].OK)
	})
}

func TestServer_AuthRoutesAndMetrics(t *testing.T) {
	handler := newTestServer(t)

	recorder := serve(handler, http.MethodPost, "/api/v1/auth/init", `{"meta":{"device":"web"}}`)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var session struct {
		Data struct {
			Token    string `json:"token"`
			Identity struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"identity"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &session))
	assert.NotEmpty(t, session.Data.Token)
	assert.Equal(t, "UNREGISTERED", session.Data.Identity.Status)

	recorder = serve(handler, http.MethodPost, "/api/v1/auth/register", `{"name":"alice","password":"pw1234"}`)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = serve(handler, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `auth_operations_total{operation="init",outcome="OK"} 1`)
}

func TestServer_UnknownRoute(t *testing.T) {
	recorder := serve(newTestServer(t), http.MethodGet, "/api/v1/auth/nope", "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}
