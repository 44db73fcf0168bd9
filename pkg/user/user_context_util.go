package user

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

type contextKey struct{}

var currentUserKey contextKey

var ErrNoUser = errors.New("user not found in context")

// WithUser binds the authenticated caller to ctx. Every owner-scoped operation reads it back
// through CurrentId.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, currentUserKey, u)
}

func CurrentUser(ctx context.Context) (User, error) {
	u, ok := ctx.Value(currentUserKey).(User)
	if !ok {
		log.Trace("no caller bound to context")
		return User{}, ErrNoUser
	}
	return u, nil
}

// CurrentId returns the owner id of the caller, or ErrNoUser.
func CurrentId(ctx context.Context) (int, error) {
	u, err := CurrentUser(ctx)
	if err != nil {
		return 0, err
	}
	return u.Id, nil
}

// CurrentLocation is the caller's timezone, UTC for anonymous contexts.
func CurrentLocation(ctx context.Context) *time.Location {
	u, err := CurrentUser(ctx)
	if err != nil {
		return time.UTC
	}
	return u.Location()
}
