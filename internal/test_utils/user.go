package test_utils

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spendwise/spendwise/pkg/user"
	"github.com/stretchr/testify/require"
)

// CreateTestUser stores a user so rows referencing users(id) can be inserted.
func CreateTestUser(t *testing.T, ctx context.Context, db *pgxpool.Pool, username string) user.User {
	t.Helper()
	u := user.User{
		Uid:         uuid.NewString(),
		Username:    username,
		DisplayName: "Test " + username,
		Settings:    user.Settings{Timezone: "Europe/Warsaw"},
	}
	id, err := user.NewUserRepo(db).CreateUser(ctx, u)
	require.NoError(t, err)
	u.Id = id
	return u
}
