package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-workflow/internal/directory"
	"github.com/spec-kit/ticket-workflow/internal/domain"
	apperrors "github.com/spec-kit/ticket-workflow/pkg/util/errorutil"
)

type stubDirectory struct {
	users map[string]domain.User
	err   error
}

func (d stubDirectory) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if d.err != nil {
		return nil, d.err
	}
	user, ok := d.users[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return &user, nil
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5, "ticket-workflow")
	user := &domain.User{ID: "u-1", Role: domain.RoleManager}

	token, expiresAt, err := tm.GenerateToken(user)
	require.NoError(t, err)
	assert.False(t, expiresAt.IsZero())

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, domain.RoleManager, claims.Role)

	_, err = NewTokenManager("other", 5, "ticket-workflow").ParseToken(token)
	assert.Error(t, err)
	_, err = NewTokenManager("secret", 5, "someone-else").ParseToken(token)
	assert.Error(t, err)
}

func newTestApp(dir directory.Directory, guards ...fiber.Handler) (*fiber.App, *TokenManager) {
	tm := NewTokenManager("secret", 5, "ticket-workflow")
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
		},
	})
	handlers := append([]fiber.Handler{NewAuthMiddleware(tm, dir).Handle}, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return errors.New("no actor")
		}
		return c.SendString(actor.ID)
	})
	app.Get("/me", handlers...)
	return app, tm
}

func TestAuthMiddleware(t *testing.T) {
	dir := stubDirectory{users: map[string]domain.User{
		"u-1": {ID: "u-1", Role: domain.RoleRequester},
	}}
	app, tm := newTestApp(dir)
	valid, _, err := tm.GenerateToken(&domain.User{ID: "u-1"})
	require.NoError(t, err)
	ghost, _, err := tm.GenerateToken(&domain.User{ID: "u-ghost"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "valid", header: "Bearer " + valid, status: http.StatusOK},
		{name: "missing header", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + valid, status: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "unknown user", header: "Bearer " + ghost, status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestAuthMiddleware_DirectoryOutage(t *testing.T) {
	app, tm := newTestApp(stubDirectory{err: errors.New("connection refused")})
	token, _, err := tm.GenerateToken(&domain.User{ID: "u-1"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRequireRole(t *testing.T) {
	dir := stubDirectory{users: map[string]domain.User{
		"u-fin": {ID: "u-fin", Role: domain.RoleFinance},
		"u-req": {ID: "u-req", Role: domain.RoleRequester},
	}}
	app, tm := newTestApp(dir, RequireRole(domain.RoleFinance))

	for id, status := range map[string]int{"u-fin": http.StatusOK, "u-req": http.StatusForbidden} {
		token, _, err := tm.GenerateToken(&domain.User{ID: id})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, status, resp.StatusCode, id)
	}
}
