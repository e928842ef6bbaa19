package ipfilter

import (
	"context"
	"fmt"
	"time"

	"github.com/vantak/gatehouse/pkg/authz"
	"github.com/vantak/gatehouse/pkg/authz/audit"
	"github.com/vantak/gatehouse/pkg/cachex"
	"github.com/vantak/gatehouse/pkg/kernel"
	"github.com/vantak/gatehouse/pkg/logx"
)

// Filter wraps Evaluate with the engine's side effects: denies emit security
// events, and the first admit from an address not seen within the marker
// window emits a single low-severity "new address" event. Marker writes are
// advisory; a cache failure never affects the verdict.
type Filter struct {
	cache     cachex.Store
	recorder  audit.Recorder
	markerTTL time.Duration
}

// NewFilter creates a filter. markerTTL bounds the "seen address" window;
// zero falls back to 24 hours.
func NewFilter(cache cachex.Store, recorder audit.Recorder, markerTTL time.Duration) *Filter {
	if markerTTL <= 0 {
		markerTTL = 24 * time.Hour
	}
	return &Filter{cache: cache, recorder: recorder, markerTTL: markerTTL}
}

func markerKey(tenantID kernel.TenantID, addr string) string {
	return fmt.Sprintf("ipseen:%s:%s", tenantID, addr)
}

// Check evaluates addr against the tenant policy and emits the associated
// security events. It returns nil on admit and the rejecting decision's
// reason on deny.
func (f *Filter) Check(ctx context.Context, tenantID kernel.TenantID, policy Policy, addr string) *authz.Decision {
	switch Evaluate(policy, addr) {
	case VerdictDenyBlocked:
		f.recorder.Record(ctx, audit.Event{
			Name:     audit.EventAddressBlocked,
			Severity: audit.SeverityHigh,
			TenantID: tenantID,
			Address:  addr,
		})
		return authz.Reject(authz.ReasonIPBlocked)

	case VerdictDenyNotAllowed:
		f.recorder.Record(ctx, audit.Event{
			Name:     audit.EventAddressNotAllowed,
			Severity: audit.SeverityMedium,
			TenantID: tenantID,
			Address:  addr,
		})
		return authz.Reject(authz.ReasonIPNotAllowed)
	}

	f.markSeen(ctx, tenantID, addr)
	return nil
}

// markSeen records the address marker and emits the one-time "new address"
// event when the marker was absent.
func (f *Filter) markSeen(ctx context.Context, tenantID kernel.TenantID, addr string) {
	key := markerKey(tenantID, addr)

	_, seen, err := f.cache.Get(ctx, key)
	if err != nil {
		logx.WithError(err).WithField("tenant_id", tenantID).
			Warn("ipfilter: address marker read failed")
		return
	}
	if seen {
		return
	}

	f.recorder.Record(ctx, audit.Event{
		Name:     audit.EventNewAddress,
		Severity: audit.SeverityLow,
		TenantID: tenantID,
		Address:  addr,
	})

	if err := f.cache.Set(ctx, key, []byte("1"), f.markerTTL); err != nil {
		logx.WithError(err).WithField("tenant_id", tenantID).
			Warn("ipfilter: address marker write failed")
	}
}
