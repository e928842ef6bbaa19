package authz

import (
	"github.com/vantak/gatehouse/pkg/errx"
	"github.com/vantak/gatehouse/pkg/kernel"
)

// Decision is the terminal outcome of evaluating a request: either an
// admission carrying the authenticated context, or a rejection carrying a
// stable reason and the error to return to the client.
type Decision struct {
	Allowed bool
	Reason  Reason
	Auth    *kernel.AuthContext
	Err     *errx.Error
}

// Admit builds an allowing decision for the given principal.
func Admit(auth *kernel.AuthContext) *Decision {
	return &Decision{Allowed: true, Auth: auth}
}

// Reject builds a denying decision for the given reason.
func Reject(reason Reason) *Decision {
	return &Decision{Allowed: false, Reason: reason, Err: ErrFor(reason)}
}

// RejectWith builds a denying decision with extra detail on the error.
func RejectWith(reason Reason, details map[string]interface{}) *Decision {
	d := Reject(reason)
	d.Err = d.Err.WithDetails(details)
	return d
}

// RejectErr builds a denying decision from an error produced by ErrFor,
// recovering the reason from the error's details.
func RejectErr(err *errx.Error) *Decision {
	reason := ReasonInvalidToken
	if r, ok := err.Details["reason"].(string); ok {
		reason = Reason(r)
	}
	return &Decision{Allowed: false, Reason: reason, Err: err}
}
