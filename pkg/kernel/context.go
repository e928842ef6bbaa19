package kernel

// AuthContext is the per-request authentication context produced by the
// authorization engine and injected into the request pipeline. It is always
// passed explicitly, never held in ambient or global state.
type AuthContext struct {
	UserID    *UserID  `json:"user_id"`
	TenantID  TenantID `json:"tenant_id"`
	ClientID  ClientID `json:"client_id,omitempty"`
	Scopes    []string `json:"scopes"`
	IsMachine bool     `json:"is_machine"`
	Address   string   `json:"address"`
}

// IsValid reports whether the context identifies a principal.
func (ac *AuthContext) IsValid() bool {
	if ac.IsMachine {
		return !ac.ClientID.IsEmpty() && !ac.TenantID.IsEmpty()
	}
	return ac.UserID != nil && !ac.UserID.IsEmpty() && !ac.TenantID.IsEmpty()
}

// HasScope reports whether the context carries a scope, honouring the
// universal "*" wildcard and resource wildcards of the form "resource:*".
func (ac *AuthContext) HasScope(scope string) bool {
	for _, s := range ac.Scopes {
		if s == scope || s == "*" {
			return true
		}
		if len(s) > 2 && s[len(s)-2:] == ":*" {
			prefix := s[:len(s)-2]
			if len(scope) > len(prefix) && scope[:len(prefix)] == prefix && scope[len(prefix)] == ':' {
				return true
			}
		}
	}
	return false
}

// HasAllScopes reports whether every given scope is carried by the context.
func (ac *AuthContext) HasAllScopes(scopes ...string) bool {
	for _, scope := range scopes {
		if !ac.HasScope(scope) {
			return false
		}
	}
	return true
}

// ContextKey is the type used for context.Context and fiber Locals keys.
type ContextKey string

const (
	// AuthContextKey stores the AuthContext for an admitted request
	AuthContextKey ContextKey = "auth_context"

	// RequestIDKey stores the request correlation ID
	RequestIDKey ContextKey = "request_id"
)
