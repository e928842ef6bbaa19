// Package ipfilter evaluates per-tenant network restrictions. Evaluation
// itself is a pure function over the policy and the caller address; the
// Filter wrapper adds the audit side effects around it.
package ipfilter

import (
	"net/netip"
)

// Policy is a tenant's IP restriction configuration. A disabled policy
// admits every address.
type Policy struct {
	Enabled       bool     `json:"enabled"`
	AllowedIPs    []string `json:"allowed_ips,omitempty"`
	AllowedRanges []string `json:"allowed_ranges,omitempty"`
	BlockList     []string `json:"block_list,omitempty"`
}

// Verdict is the outcome of evaluating an address against a policy.
type Verdict string

const (
	VerdictAdmit          Verdict = "admit"
	VerdictDenyBlocked    Verdict = "deny-blocked"
	VerdictDenyNotAllowed Verdict = "deny-not-allowed"
)

// Admitted reports whether the verdict admits the request.
func (v Verdict) Admitted() bool { return v == VerdictAdmit }

// Evaluate checks addr against the policy. The block list is checked before
// any allow rule: a literally blocked address is denied even when it also
// matches an allowed range.
func Evaluate(policy Policy, addr string) Verdict {
	if !policy.Enabled {
		return VerdictAdmit
	}

	for _, blocked := range policy.BlockList {
		if addr == blocked {
			return VerdictDenyBlocked
		}
	}

	for _, allowed := range policy.AllowedIPs {
		if addr == allowed {
			return VerdictAdmit
		}
	}

	if parsed, err := netip.ParseAddr(addr); err == nil {
		for _, cidr := range policy.AllowedRanges {
			prefix, err := netip.ParsePrefix(cidr)
			if err != nil {
				continue
			}
			if prefix.Contains(parsed) {
				return VerdictAdmit
			}
		}
	}

	return VerdictDenyNotAllowed
}
