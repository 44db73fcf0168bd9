package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/spendwise/spendwise/internal/config"
	"github.com/spendwise/spendwise/internal/utils"
	"github.com/spendwise/spendwise/pkg/forecast"
	"github.com/spendwise/spendwise/pkg/recurring"
	"github.com/spendwise/spendwise/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupApp(t *testing.T, jwtSecret string) (*mux.Router, *Dependencies, user.User) {
	cfg := config.Defaults()
	cfg.Auth.JwtSecret = jwtSecret
	clock := &utils.MockClock{FixedNow: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	deps := buildDependencies(user.NewStubUserRepository(), recurring.NewRepositoryStub(), cfg, clock)
	created, err := deps.UserService.CreateUser(context.Background(), user.User{
		Username:    "alice",
		DisplayName: "Alice",
		Settings:    user.Settings{Timezone: "UTC"},
	})
	require.NoError(t, err)
	return NewRouter(deps), deps, created
}

func send(router http.Handler, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var payload bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&payload).Encode(body)
	}
	req := httptest.NewRequest(method, target, &payload)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var rent = map[string]any{
	"title":     "Rent",
	"amount":    100,
	"category":  "Bills",
	"frequency": "monthly",
	"startDate": "2023-12-15T00:00:00Z",
}

func TestRouter_ForecastFlow(t *testing.T) {
	// given
	router, _, alice := setupApp(t, "")
	headers := map[string]string{"X-User-Id": alice.Uid}

	// when
	created := send(router, http.MethodPost, "/api/recurring", rent, headers)
	forecastResponse := send(router, http.MethodGet, "/api/forecast?horizon=next-3-months", nil, headers)

	// then
	require.Equal(t, http.StatusCreated, created.Code)
	require.Equal(t, http.StatusOK, forecastResponse.Code)
	var dto forecast.ForecastDTO
	require.NoError(t, json.NewDecoder(forecastResponse.Body).Decode(&dto))
	assert.Equal(t, "300.00", dto.TotalForecast)
	assert.Equal(t, "30.00", dto.SavingsOpportunity)
	assert.Equal(t, map[string]string{"Bills": "300.00"}, dto.CategoryBreakdown)
}

func TestRouter_UserResolution(t *testing.T) {
	t.Run("should reject unknown user uid", func(t *testing.T) {
		router, _, _ := setupApp(t, "")

		w := send(router, http.MethodGet, "/api/recurring", nil, map[string]string{"X-User-Id": uuid.NewString()})

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("should fail requests without user", func(t *testing.T) {
		router, _, _ := setupApp(t, "")

		w := send(router, http.MethodGet, "/api/forecast", nil, nil)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("should accept bearer token when secret is configured", func(t *testing.T) {
		// given
		router, deps, alice := setupApp(t, "secret")
		token, err := deps.TokenValidator.Issue(alice.Uid, time.Hour)
		require.NoError(t, err)

		// when
		w := send(router, http.MethodGet, "/api/user/current", nil, map[string]string{"Authorization": "Bearer " + token})

		// then
		require.Equal(t, http.StatusOK, w.Code)
		var dto user.UserDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&dto))
		assert.Equal(t, alice.Uid, dto.Uid)
	})

	t.Run("should ignore X-User-Id when secret is configured", func(t *testing.T) {
		router, _, alice := setupApp(t, "secret")

		w := send(router, http.MethodGet, "/api/recurring", nil, map[string]string{"X-User-Id": alice.Uid})

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("should reject invalid bearer token", func(t *testing.T) {
		router, _, _ := setupApp(t, "secret")

		w := send(router, http.MethodGet, "/api/recurring", nil, map[string]string{"Authorization": "Bearer nope"})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
