package session

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/vantak/gatehouse/pkg/authz"
	"github.com/vantak/gatehouse/pkg/errx"
	"github.com/vantak/gatehouse/pkg/kernel"
)

// TenantHeader carries the request's target tenant identifier.
const TenantHeader = "X-Tenant-ID"

// RouteOption configures per-route authorization metadata.
type RouteOption func(*routeMeta)

type routeMeta struct {
	requiredScopes  []string
	machineEligible bool
}

// RequireScopes sets the scopes a route demands.
func RequireScopes(scopes ...string) RouteOption {
	return func(m *routeMeta) { m.requiredScopes = scopes }
}

// MachineEligible marks a route as accepting machine-issued tokens.
func MachineEligible() RouteOption {
	return func(m *routeMeta) { m.machineEligible = true }
}

// Middleware returns a fiber handler that runs the session policy engine on
// every request. On admit, the AuthContext lands in c.Locals under
// kernel.AuthContextKey; on reject, the registered errx error is returned
// for the global error handler to translate.
func Middleware(engine *Engine, options ...RouteOption) fiber.Handler {
	meta := &routeMeta{}
	for _, opt := range options {
		opt(meta)
	}

	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c)
		if err != nil {
			return err
		}

		decision, authErr := engine.Authorize(c.UserContext(), Request{
			BearerToken:     token,
			Address:         c.IP(),
			TenantID:        kernel.NewTenantID(c.Get(TenantHeader)),
			RequiredScopes:  meta.requiredScopes,
			MachineEligible: meta.machineEligible,
		})
		if authErr != nil {
			return authErr
		}
		if !decision.Allowed {
			return decision.Err
		}

		c.Locals(string(kernel.AuthContextKey), decision.Auth)
		return c.Next()
	}
}

// AuthFromCtx retrieves the admitted AuthContext from a handler's context.
func AuthFromCtx(c *fiber.Ctx) (*kernel.AuthContext, bool) {
	auth, ok := c.Locals(string(kernel.AuthContextKey)).(*kernel.AuthContext)
	return auth, ok
}

func bearerToken(c *fiber.Ctx) (string, *errx.Error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return "", authz.ErrFor(authz.ReasonInvalidToken).
			WithDetail("detail", "missing Authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", authz.ErrFor(authz.ReasonInvalidToken).
			WithDetail("detail", "malformed Authorization header")
	}
	return parts[1], nil
}
