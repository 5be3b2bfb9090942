package ratelimit

import (
	"errors"
	"fmt"
)

// Allocation failure kinds. All are terminal for the requested operation;
// the engine performs no retries and surfaces them verbatim.
var (
	// ErrTenantNotFound indicates the referenced tenant does not exist.
	ErrTenantNotFound = errors.New("ratelimit: tenant not found")
	// ErrServiceGroupNotFound indicates the referenced service group does not exist.
	ErrServiceGroupNotFound = errors.New("ratelimit: service group not found")
	// ErrDuplicateAllocation indicates the tenant already holds this service group.
	ErrDuplicateAllocation = errors.New("ratelimit: allocation already exists")
	// ErrAllocationNotFound indicates no allocation exists for the pair.
	ErrAllocationNotFound = errors.New("ratelimit: allocation not found")
	// ErrAggregateLimitExceeded matches any AggregateLimitError via errors.Is.
	ErrAggregateLimitExceeded = errors.New("ratelimit: aggregate limit exceeded")
	// ErrPeriodMismatch indicates the proposed period differs from the tenant default.
	ErrPeriodMismatch = errors.New("ratelimit: period does not match tenant default")
)

// AggregateLimitError reports an allocation rejected because the tenant's
// aggregate ceiling would be overrun. It carries enough detail for the
// caller to explain the rejection.
type AggregateLimitError struct {
	TenantID     string // Tenant whose ceiling was hit.
	CurrentTotal int    // Sum of existing non-unlimited allocations.
	Proposed     int    // Limit requested by the caller (pre-clamp).
	Ceiling      int    // Tenant's configured aggregate ceiling.
}

// Error implements the error interface.
func (e *AggregateLimitError) Error() string {
	return fmt.Sprintf("ratelimit: aggregate limit exceeded for tenant %s: %d allocated + %d proposed > %d ceiling",
		e.TenantID, e.CurrentTotal, e.Proposed, e.Ceiling)
}

// Is reports whether the target is the aggregate limit sentinel.
func (e *AggregateLimitError) Is(target error) bool {
	return target == ErrAggregateLimitExceeded
}
