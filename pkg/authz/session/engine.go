// Package session enforces per-tenant session policy on every authenticated
// request: token validity and revocation, tenant binding for machine tokens,
// scope authorization, concurrent-session limits, session timeout and
// extension, and mandatory two-factor grace accounting.
package session

import (
	"context"
	"time"

	"github.com/vantak/gatehouse/pkg/asyncx"
	"github.com/vantak/gatehouse/pkg/authz"
	"github.com/vantak/gatehouse/pkg/authz/audit"
	"github.com/vantak/gatehouse/pkg/authz/ipfilter"
	"github.com/vantak/gatehouse/pkg/authz/scopes"
	"github.com/vantak/gatehouse/pkg/authz/tenant"
	"github.com/vantak/gatehouse/pkg/errx"
	"github.com/vantak/gatehouse/pkg/kernel"
	"github.com/vantak/gatehouse/pkg/logx"
	"github.com/vantak/gatehouse/pkg/notifx"
)

// reminderTemplate names the registered 2FA grace reminder email template.
const reminderTemplate = "two_factor_reminder"

// reminderThreshold is the remaining-grace-logins level at which reminder
// notifications start.
const reminderThreshold = 3

// Notifier sends the grace reminder email. Satisfied by *notifx.Client for
// direct sends and by notifxqueue.QueuedSender for queued dispatch.
type Notifier interface {
	SendTemplatedEmail(ctx context.Context, templateName string, data interface{}, msg notifx.EmailMessage) error
}

// Request carries everything the engine needs for one evaluation. All state
// is explicit; the engine holds no ambient per-request state.
type Request struct {
	BearerToken     string
	Address         string
	TenantID        kernel.TenantID
	RequiredScopes  []string
	MachineEligible bool
}

// Engine is the session policy engine. It executes synchronously within the
// request pipeline and inherits the caller's deadline through ctx.
type Engine struct {
	tokens   TokenRepository
	users    UserRepository
	tenants  *tenant.Resolver
	scopes   *scopes.Resolver
	filter   *ipfilter.Filter
	recorder audit.Recorder
	notifier Notifier
	verifier *Verifier
	nowTime  func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithNowTime overrides the engine clock (for tests).
func WithNowTime(now func() time.Time) Option {
	return func(e *Engine) { e.nowTime = now }
}

// WithNotifier attaches the outbound notification client used for grace
// reminders. Without one, reminders are skipped.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// NewEngine wires the session policy engine.
func NewEngine(
	tokens TokenRepository,
	users UserRepository,
	tenants *tenant.Resolver,
	scopeResolver *scopes.Resolver,
	filter *ipfilter.Filter,
	recorder audit.Recorder,
	verifier *Verifier,
	options ...Option,
) (*Engine, error) {
	if tokens == nil {
		return nil, errx.New("token repository is required", errx.TypeInternal)
	}
	if users == nil {
		return nil, errx.New("user repository is required", errx.TypeInternal)
	}
	if tenants == nil {
		return nil, errx.New("tenant resolver is required", errx.TypeInternal)
	}
	if scopeResolver == nil {
		return nil, errx.New("scope resolver is required", errx.TypeInternal)
	}
	if filter == nil {
		return nil, errx.New("ip filter is required", errx.TypeInternal)
	}
	if recorder == nil {
		return nil, errx.New("audit recorder is required", errx.TypeInternal)
	}
	if verifier == nil {
		return nil, errx.New("token verifier is required", errx.TypeInternal)
	}

	e := &Engine{
		tokens:   tokens,
		users:    users,
		tenants:  tenants,
		scopes:   scopeResolver,
		filter:   filter,
		recorder: recorder,
		verifier: verifier,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(e)
	}
	return e, nil
}

// Authorize evaluates one request. Policy rejections return a Decision with
// Allowed false; only infrastructure failures (store unreachable, tenant
// absent) return a non-nil error. Neither is retried internally.
func (e *Engine) Authorize(ctx context.Context, req Request) (*authz.Decision, error) {
	now := e.nowTime()

	// Resolve the tenant and its security policy first; everything else
	// depends on it.
	handle, err := e.tenants.Resolve(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	t := handle.Tenant

	switch t.Status {
	case tenant.StatusPendingDeletion:
		return nil, authz.ErrRegistry.New(authz.CodeTenantNotFound).
			WithDetail("tenant_id", t.ID)
	case tenant.StatusSuspended:
		return authz.Reject(authz.ReasonTenantSuspended), nil
	}

	// Network policy gates before any token work.
	if d := e.filter.Check(ctx, t.ID, t.Policy.IPRestriction, req.Address); d != nil {
		return d, nil
	}

	// Step 1: token validation against its own signature and expiry.
	if _, verr := e.verifier.Verify(req.BearerToken); verr != nil {
		return authz.RejectErr(verr), nil
	}

	// Step 2: the persisted record is authoritative. Revocation wins any
	// race with expiry.
	record, err := e.tokens.FindByAccessToken(ctx, req.BearerToken)
	if err != nil {
		if errx.IsType(err, errx.TypeNotFound) {
			return authz.Reject(authz.ReasonInvalidToken), nil
		}
		return nil, err
	}
	if record.Revoked {
		return authz.Reject(authz.ReasonRevoked), nil
	}
	if record.IsExpired(now) {
		return authz.Reject(authz.ReasonTokenExpired), nil
	}

	// Step 3: tenant binding for machine tokens. Never silently corrected.
	if record.IsMachine() {
		if !req.MachineEligible {
			return authz.RejectWith(authz.ReasonInsufficientScope, map[string]interface{}{
				"detail": "route does not accept machine tokens",
			}), nil
		}
		if record.TenantID != t.ID {
			e.recorder.Record(ctx, audit.Event{
				Name:     audit.EventTenantMismatch,
				Severity: audit.SeverityHigh,
				ClientID: record.ClientID,
				TenantID: t.ID,
				Address:  req.Address,
				Details: map[string]interface{}{
					"bound_tenant_id":     record.TenantID,
					"requested_tenant_id": t.ID,
				},
			})
			return authz.RejectWith(authz.ReasonTenantMismatch, map[string]interface{}{
				"bound_tenant_id":     record.TenantID,
				"requested_tenant_id": t.ID,
			}), nil
		}
	}

	// Step 4: scope authorization via hierarchical expansion.
	if !e.scopes.IsAuthorized(record.Scopes, req.RequiredScopes) {
		return authz.RejectWith(authz.ReasonInsufficientScope, map[string]interface{}{
			"required_scopes": req.RequiredScopes,
		}), nil
	}

	// Steps 5 and 7 are user-session concerns; machine tokens have no user.
	if !record.IsMachine() {
		if d, err := e.enforceSessionLimit(ctx, record, t.Policy.Session, now); d != nil || err != nil {
			return d, err
		}
	}

	// Step 6: session timeout by token age.
	if d, err := e.enforceTimeout(ctx, record, t.Policy.Session, now); d != nil || err != nil {
		return d, err
	}

	if !record.IsMachine() {
		if d, err := e.enforceTwoFactor(ctx, record, t, now); d != nil || err != nil {
			return d, err
		}
	}

	// Step 8: sliding extension, best effort.
	e.extendSession(ctx, record, t.Policy.Session, now)

	auth := &kernel.AuthContext{
		TenantID:  t.ID,
		ClientID:  record.ClientID,
		Scopes:    record.Scopes,
		IsMachine: record.IsMachine(),
		Address:   req.Address,
	}
	if !record.UserID.IsEmpty() {
		uid := record.UserID
		auth.UserID = &uid
	}
	return authz.Admit(auth), nil
}

// enforceSessionLimit counts the user's live tokens and, on overflow,
// revokes the oldest excess so that exactly MaxConcurrentSessions remain,
// then rejects the evaluating request. Eviction clears room for future
// logins; it does not retroactively admit the request that triggered it.
func (e *Engine) enforceSessionLimit(ctx context.Context, record *Token, policy tenant.SessionPolicy, now time.Time) (*authz.Decision, error) {
	limit := policy.MaxConcurrentSessions
	if limit < 1 {
		return nil, nil
	}

	active, err := e.tokens.FindActiveByUser(ctx, record.UserID, now)
	if err != nil {
		return nil, err
	}
	if len(active) <= limit {
		return nil, nil
	}

	// Oldest first: FindActiveByUser orders by creation time ascending.
	for _, victim := range active[:len(active)-limit] {
		if err := e.tokens.Revoke(ctx, victim.AccessToken); err != nil {
			return nil, err
		}
	}

	return authz.RejectWith(authz.ReasonMaxSessions, map[string]interface{}{
		"max_concurrent_sessions": limit,
	}), nil
}

// enforceTimeout revokes and rejects tokens older than the session timeout.
func (e *Engine) enforceTimeout(ctx context.Context, record *Token, policy tenant.SessionPolicy, now time.Time) (*authz.Decision, error) {
	if policy.SessionTimeoutSeconds <= 0 {
		return nil, nil
	}
	if record.Age(now) <= policy.Timeout() {
		return nil, nil
	}

	if err := e.tokens.Revoke(ctx, record.AccessToken); err != nil {
		return nil, err
	}
	return authz.Reject(authz.ReasonSessionExpired), nil
}

// enforceTwoFactor applies the mandatory-2FA grace window: a user without
// two-factor enabled is admitted while either the time window or the login
// budget remains, and rejected once both are exhausted.
func (e *Engine) enforceTwoFactor(ctx context.Context, record *Token, t *tenant.Tenant, now time.Time) (*authz.Decision, error) {
	required := t.Policy.TwoFactor.Required || t.Policy.Session.RequireMFA
	if !required {
		return nil, nil
	}

	user, err := e.users.FindByID(ctx, record.UserID)
	if err != nil {
		if errx.IsType(err, errx.TypeNotFound) {
			return authz.Reject(authz.ReasonInvalidToken), nil
		}
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, nil
	}

	graceEnd := t.Policy.TwoFactor.GracePeriodEnd(user.CreatedAt)
	loginsLeft := t.Policy.TwoFactor.GraceLogins - user.LoginCount

	if now.After(graceEnd) && loginsLeft <= 0 {
		e.recorder.Record(ctx, audit.Event{
			Name:     audit.EventTwoFactorRejected,
			Severity: audit.SeverityHigh,
			UserID:   user.ID,
			TenantID: t.ID,
			Details: map[string]interface{}{
				"grace_period_end": graceEnd,
				"login_count":      user.LoginCount,
			},
		})
		return authz.Reject(authz.ReasonTwoFactorRequired), nil
	}

	// Still inside the grace window: account the login and nudge the user
	// as the budget runs out. Both writes are best effort.
	if err := e.users.IncrementLoginCount(ctx, user.ID); err != nil {
		logx.WithError(err).WithField("user_id", user.ID).
			Warn("session: grace login accounting failed")
	}

	if remaining := loginsLeft - 1; remaining <= reminderThreshold {
		e.sendReminder(ctx, user, t, remaining)
	}
	return nil, nil
}

// sendReminder fires the grace reminder notification without blocking the
// request on its outcome.
func (e *Engine) sendReminder(ctx context.Context, user *User, t *tenant.Tenant, remaining int) {
	if e.notifier == nil || user.Email == "" {
		return
	}

	// Detach from the request deadline; the request must not wait for or
	// fail on the notification.
	sendCtx := context.WithoutCancel(ctx)
	asyncx.Do(func() {
		err := e.notifier.SendTemplatedEmail(sendCtx, reminderTemplate, map[string]interface{}{
			"Email":      user.Email,
			"TenantName": t.Name,
			"Remaining":  remaining,
		}, notifx.EmailMessage{
			To:      []string{user.Email},
			Subject: "Action required: enable two-factor authentication",
		})
		if err != nil {
			logx.WithError(err).WithField("user_id", user.ID).
				Warn("session: two-factor reminder failed")
		}
	})
}

// extendSession slides the token expiry forward on activity. Failure to
// persist the extension is logged and does not fail the request.
func (e *Engine) extendSession(ctx context.Context, record *Token, policy tenant.SessionPolicy, now time.Time) {
	if !policy.ExtendOnActivity || policy.SessionTimeoutSeconds <= 0 {
		return
	}
	if err := e.tokens.UpdateExpiry(ctx, record.AccessToken, now.Add(policy.Timeout())); err != nil {
		logx.WithError(err).WithField("tenant_id", record.TenantID).
			Warn("session: expiry extension failed")
	}
}
