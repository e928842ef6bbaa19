package ipfilter_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantak/gatehouse/pkg/authz"
	"github.com/vantak/gatehouse/pkg/authz/audit"
	"github.com/vantak/gatehouse/pkg/authz/ipfilter"
	"github.com/vantak/gatehouse/pkg/cachex/cachexmem"
	"github.com/vantak/gatehouse/pkg/kernel"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		policy ipfilter.Policy
		addr   string
		want   ipfilter.Verdict
	}{
		{
			name:   "disabled policy admits anything",
			policy: ipfilter.Policy{Enabled: false, BlockList: []string{"10.0.0.1"}},
			addr:   "10.0.0.1",
			want:   ipfilter.VerdictAdmit,
		},
		{
			name:   "literal allow",
			policy: ipfilter.Policy{Enabled: true, AllowedIPs: []string{"203.0.113.7"}},
			addr:   "203.0.113.7",
			want:   ipfilter.VerdictAdmit,
		},
		{
			name:   "cidr allow",
			policy: ipfilter.Policy{Enabled: true, AllowedRanges: []string{"192.168.0.0/16"}},
			addr:   "192.168.4.20",
			want:   ipfilter.VerdictAdmit,
		},
		{
			name: "block list beats allowed range",
			policy: ipfilter.Policy{
				Enabled:       true,
				AllowedRanges: []string{"192.168.0.0/16"},
				BlockList:     []string{"192.168.4.20"},
			},
			addr: "192.168.4.20",
			want: ipfilter.VerdictDenyBlocked,
		},
		{
			name:   "not in any allow rule",
			policy: ipfilter.Policy{Enabled: true, AllowedIPs: []string{"203.0.113.7"}},
			addr:   "198.51.100.9",
			want:   ipfilter.VerdictDenyNotAllowed,
		},
		{
			name:   "enabled policy with no rules denies",
			policy: ipfilter.Policy{Enabled: true},
			addr:   "203.0.113.7",
			want:   ipfilter.VerdictDenyNotAllowed,
		},
		{
			name:   "malformed cidr is skipped",
			policy: ipfilter.Policy{Enabled: true, AllowedRanges: []string{"not-a-cidr", "10.0.0.0/8"}},
			addr:   "10.1.2.3",
			want:   ipfilter.VerdictAdmit,
		},
		{
			name:   "ipv6 range",
			policy: ipfilter.Policy{Enabled: true, AllowedRanges: []string{"2001:db8::/32"}},
			addr:   "2001:db8::1",
			want:   ipfilter.VerdictAdmit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ipfilter.Evaluate(tt.policy, tt.addr))
		})
	}
}

// A disabled policy admits any address no matter what rules it carries.
func TestEvaluateDisabledAlwaysAdmits(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))

	randAddr := func() string {
		if rnd.Intn(4) == 0 {
			return fmt.Sprintf("2001:db8::%x", rnd.Intn(1<<16))
		}
		return fmt.Sprintf("%d.%d.%d.%d", rnd.Intn(256), rnd.Intn(256), rnd.Intn(256), rnd.Intn(256))
	}
	randRules := func() []string {
		rules := make([]string, rnd.Intn(4))
		for i := range rules {
			switch rnd.Intn(3) {
			case 0:
				rules[i] = randAddr()
			case 1:
				rules[i] = fmt.Sprintf("%d.%d.0.0/%d", rnd.Intn(256), rnd.Intn(256), 8+rnd.Intn(25))
			default:
				rules[i] = "garbage-rule"
			}
		}
		return rules
	}

	for i := 0; i < 200; i++ {
		addr := randAddr()
		policy := ipfilter.Policy{
			Enabled:       false,
			AllowedIPs:    randRules(),
			AllowedRanges: randRules(),
			BlockList:     append(randRules(), addr),
		}
		got := ipfilter.Evaluate(policy, addr)
		require.Equalf(t, ipfilter.VerdictAdmit, got, "addr=%s policy=%+v", addr, policy)
	}
}

func TestCheckDeniedEmitsEvent(t *testing.T) {
	recorder := audit.NewCollectingRecorder()
	filter := ipfilter.NewFilter(cachexmem.NewMemoryStore(), recorder, time.Hour)
	tenantID := kernel.NewTenantID("acme")

	policy := ipfilter.Policy{Enabled: true, BlockList: []string{"203.0.113.7"}}
	decision := filter.Check(context.Background(), tenantID, policy, "203.0.113.7")

	require.NotNil(t, decision)
	assert.False(t, decision.Allowed)
	assert.Equal(t, authz.ReasonIPBlocked, decision.Reason)

	events := recorder.Named(audit.EventAddressBlocked)
	require.Len(t, events, 1)
	assert.Equal(t, audit.SeverityHigh, events[0].Severity)
	assert.Equal(t, "203.0.113.7", events[0].Address)
}

func TestCheckNotAllowedEmitsMediumEvent(t *testing.T) {
	recorder := audit.NewCollectingRecorder()
	filter := ipfilter.NewFilter(cachexmem.NewMemoryStore(), recorder, time.Hour)

	policy := ipfilter.Policy{Enabled: true, AllowedIPs: []string{"10.0.0.1"}}
	decision := filter.Check(context.Background(), kernel.NewTenantID("acme"), policy, "10.0.0.2")

	require.NotNil(t, decision)
	assert.Equal(t, authz.ReasonIPNotAllowed, decision.Reason)

	events := recorder.Named(audit.EventAddressNotAllowed)
	require.Len(t, events, 1)
	assert.Equal(t, audit.SeverityMedium, events[0].Severity)
}

func TestCheckNewAddressEventOncePerWindow(t *testing.T) {
	recorder := audit.NewCollectingRecorder()
	cache := cachexmem.NewMemoryStore()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cache.SetNowTime(func() time.Time { return now })

	filter := ipfilter.NewFilter(cache, recorder, 24*time.Hour)
	tenantID := kernel.NewTenantID("acme")
	policy := ipfilter.Policy{} // disabled, everything admits

	for i := 0; i < 3; i++ {
		decision := filter.Check(context.Background(), tenantID, policy, "198.51.100.9")
		require.Nil(t, decision)
	}
	assert.Len(t, recorder.Named(audit.EventNewAddress), 1, "repeat visits within the window stay silent")

	// Past the marker window the event fires again.
	now = now.Add(25 * time.Hour)
	require.Nil(t, filter.Check(context.Background(), tenantID, policy, "198.51.100.9"))
	assert.Len(t, recorder.Named(audit.EventNewAddress), 2)
}

func TestCheckMarkersAreTenantScoped(t *testing.T) {
	recorder := audit.NewCollectingRecorder()
	filter := ipfilter.NewFilter(cachexmem.NewMemoryStore(), recorder, time.Hour)
	policy := ipfilter.Policy{}

	require.Nil(t, filter.Check(context.Background(), kernel.NewTenantID("acme"), policy, "198.51.100.9"))
	require.Nil(t, filter.Check(context.Background(), kernel.NewTenantID("globex"), policy, "198.51.100.9"))

	assert.Len(t, recorder.Named(audit.EventNewAddress), 2, "same address is new per tenant")
}
