package user

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserServiceImpl_CreateUser(t *testing.T) {
	t.Run("should generate uid when not provided", func(t *testing.T) {
		// given
		service := NewUserService(NewStubUserRepository())

		// when
		created, err := service.CreateUser(context.Background(), User{Username: "jane", DisplayName: "Jane"})

		// then
		require.NoError(t, err)
		assert.NotEmpty(t, created.Uid)
		assert.Equal(t, 1, created.Id)
	})

	t.Run("should reject missing username", func(t *testing.T) {
		// given
		service := NewUserService(NewStubUserRepository())

		// when
		_, err := service.CreateUser(context.Background(), User{Username: "  ", DisplayName: "Jane"})

		// then
		assert.ErrorIs(t, err, ErrUserDataInvalid)
	})

	t.Run("should reject non uuid uid", func(t *testing.T) {
		// given
		service := NewUserService(NewStubUserRepository())

		// when
		_, err := service.CreateUser(context.Background(), User{Uid: "abc", Username: "jane", DisplayName: "Jane"})

		// then
		assert.ErrorIs(t, err, ErrUserDataInvalid)
	})
}

func TestUserServiceImpl_GetCurrentUser(t *testing.T) {
	t.Run("should return error when context has no user", func(t *testing.T) {
		// given
		service := NewUserService(NewStubUserRepository())

		// when
		_, err := service.GetCurrentUser(context.Background())

		// then
		assert.ErrorIs(t, err, ErrNoUser)
		assert.Contains(t, err.Error(), "failed to get current user")
	})

	t.Run("should load user referenced by context", func(t *testing.T) {
		// given
		repo := NewStubUserRepository()
		service := NewUserService(repo)
		created, err := service.CreateUser(context.Background(), User{Username: "jane", DisplayName: "Jane"})
		require.NoError(t, err)

		// when
		current, err := service.GetCurrentUser(WithUser(context.Background(), created))

		// then
		require.NoError(t, err)
		assert.Equal(t, created.Uid, current.Uid)
	})
}

func TestUser_Location(t *testing.T) {
	assert.Equal(t, time.UTC, User{}.Location())
	assert.Equal(t, time.UTC, User{Settings: Settings{Timezone: "Not/AZone"}}.Location())
	assert.Equal(t, "Europe/Warsaw", User{Settings: Settings{Timezone: "Europe/Warsaw"}}.Location().String())
}

func TestHandler_CreateUser(t *testing.T) {
	t.Run("should create user", func(t *testing.T) {
		// given
		handler := NewHandler(NewUserService(NewStubUserRepository()))
		body, _ := json.Marshal(UserDTO{Username: "jane", DisplayName: "Jane", Settings: SettingsDTO{Timezone: "UTC"}})
		req := httptest.NewRequest(http.MethodPost, "/api/user", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		// when
		handler.CreateUser(w, req)

		// then
		assert.Equal(t, http.StatusCreated, w.Code)
		var created UserDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
		assert.Equal(t, "jane", created.Username)
		assert.NotEmpty(t, created.Uid)
	})

	t.Run("should return bad request for invalid data", func(t *testing.T) {
		// given
		handler := NewHandler(NewUserService(NewStubUserRepository()))
		body, _ := json.Marshal(UserDTO{Username: "jane"})
		req := httptest.NewRequest(http.MethodPost, "/api/user", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		// when
		handler.CreateUser(w, req)

		// then
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_CurrentUser(t *testing.T) {
	t.Run("should return forbidden without user in context", func(t *testing.T) {
		// given
		handler := NewHandler(NewUserService(NewStubUserRepository()))
		req := httptest.NewRequest(http.MethodGet, "/api/user/current", nil)
		w := httptest.NewRecorder()

		// when
		handler.CurrentUser(w, req)

		// then
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestCurrentLocation(t *testing.T) {
	t.Run("should use caller timezone", func(t *testing.T) {
		// given
		ctx := WithUser(context.Background(), User{Id: 3, Settings: Settings{Timezone: "Europe/Warsaw"}})

		// when
		loc := CurrentLocation(ctx)

		// then
		assert.Equal(t, "Europe/Warsaw", loc.String())
	})

	t.Run("should fall back to UTC without caller or with unknown timezone", func(t *testing.T) {
		// given
		unknown := WithUser(context.Background(), User{Id: 3, Settings: Settings{Timezone: "Mars/Olympus"}})

		// then
		assert.Equal(t, time.UTC, CurrentLocation(context.Background()))
		assert.Equal(t, time.UTC, CurrentLocation(unknown))
	})

	t.Run("should return ErrNoUser for anonymous context", func(t *testing.T) {
		// when
		_, err := CurrentId(context.Background())

		// then
		assert.ErrorIs(t, err, ErrNoUser)
	})
}
