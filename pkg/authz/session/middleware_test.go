package session_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantak/gatehouse/pkg/authz/session"
	"github.com/vantak/gatehouse/pkg/authz/tenant"
	"github.com/vantak/gatehouse/pkg/errx"
	"github.com/vantak/gatehouse/pkg/kernel"
)

// newTestApp mounts a protected echo route behind the engine middleware,
// translating errx errors the way the server's global handler does.
func newTestApp(f *fixture, opts ...session.RouteOption) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*errx.Error); ok {
				return c.Status(e.HTTPStatus).JSON(e)
			}
			return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
		},
	})
	app.Get("/protected", session.Middleware(f.engine, opts...), func(c *fiber.Ctx) error {
		auth, ok := session.AuthFromCtx(c)
		if !ok {
			return errx.New("missing authorization context", errx.TypeInternal)
		}
		return c.JSON(fiber.Map{"tenant_id": auth.TenantID.String()})
	})
	return app
}

func protectedReq(token, tenantID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	req.Header.Set(session.TenantHeader, tenantID)
	return req
}

func TestMiddlewareAdmits(t *testing.T) {
	tn := plainTenant("acme")
	f := newFixture(t, []*tenant.Tenant{tn})

	f.users.Add(userRecord("u1", testNow.AddDate(0, -1, 0), 0))
	raw := signToken(t, f.tokens, session.Token{
		UserID:    kernel.NewUserID("u1"),
		TenantID:  tn.ID,
		Scopes:    []string{"users:manage"},
		CreatedAt: testNow.Add(-10 * time.Minute),
	}, testNow.Add(time.Hour))

	app := newTestApp(f, session.RequireScopes("users:read"))
	resp, err := app.Test(protectedReq(raw, "acme"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "acme", body["tenant_id"])
}

func TestMiddlewareMissingAuthorizationHeader(t *testing.T) {
	f := newFixture(t, []*tenant.Tenant{plainTenant("acme")})

	app := newTestApp(f)
	resp, err := app.Test(protectedReq("", "acme"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMiddlewareRejectsInsufficientScope(t *testing.T) {
	tn := plainTenant("acme")
	f := newFixture(t, []*tenant.Tenant{tn})

	raw := signToken(t, f.tokens, session.Token{
		UserID:    kernel.NewUserID("u1"),
		TenantID:  tn.ID,
		Scopes:    []string{"users:read"},
		CreatedAt: testNow.Add(-10 * time.Minute),
	}, testNow.Add(time.Hour))

	app := newTestApp(f, session.RequireScopes("audit:read"))
	resp, err := app.Test(protectedReq(raw, "acme"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMiddlewareMissingTenantHeader(t *testing.T) {
	f := newFixture(t, []*tenant.Tenant{plainTenant("acme")})

	app := newTestApp(f)
	resp, err := app.Test(protectedReq("some-token", ""))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
