// Package auth carries the authenticated principal through a request and
// issues and verifies the bearer tokens that establish it.
package auth

import (
	"context"
	"strings"

	"fintrack/internal/core"
)

type contextKey struct{}

// WithUser returns a copy of ctx carrying userID as the principal.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserID returns the principal in ctx or core.ErrAuthentication.
func UserID(ctx context.Context) (string, error) {
	id, _ := ctx.Value(contextKey{}).(string)
	if strings.TrimSpace(id) == "" {
		return "", core.ErrAuthentication
	}
	return id, nil
}
