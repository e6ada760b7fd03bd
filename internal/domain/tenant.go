package domain

import "errors"

var ErrNoTenant = errors.New("tenant context is missing")

// TenantContext identifies the studio that owns the data and the actor acting
// on its behalf. It is passed explicitly to every service call.
type TenantContext struct {
	TenantID string
	ActorID  string
	Role     string
}

func (t TenantContext) Validate() error {
	if t.TenantID == "" {
		return ErrNoTenant
	}
	return nil
}
