package domain

import (
	"fmt"
	"slices"
)

// TargetingKind tags a Targeting value.
type TargetingKind string

const (
	TargetingGlobal     TargetingKind = "global"
	TargetingRestricted TargetingKind = "restricted"
)

// Targeting describes who may use a campaign: everyone (global) or an
// explicit set of customers. A restricted targeting with no customers
// admits nobody. The zero value is global.
type Targeting struct {
	Kind      TargetingKind `json:"kind"`
	Customers []int64       `json:"customers,omitempty"`
}

// Global returns a targeting open to every customer.
func Global() Targeting {
	return Targeting{Kind: TargetingGlobal}
}

// RestrictedTo returns a targeting limited to ids. Duplicates are dropped
// and the set is kept sorted.
func RestrictedTo(ids ...int64) Targeting {
	set := slices.Clone(ids)
	slices.Sort(set)
	return Targeting{Kind: TargetingRestricted, Customers: slices.Compact(set)}
}

// IsGlobal reports whether every customer is admitted.
func (t Targeting) IsGlobal() bool {
	return t.Kind != TargetingRestricted
}

// Allows reports whether customerID may use the campaign.
func (t Targeting) Allows(customerID int64) bool {
	if t.IsGlobal() {
		return true
	}
	return slices.Contains(t.Customers, customerID)
}

// Normalize returns t with an explicit kind and a canonical customer set.
func (t Targeting) Normalize() Targeting {
	if t.IsGlobal() {
		return Global()
	}
	return RestrictedTo(t.Customers...)
}

func (t Targeting) Validate() error {
	switch t.Kind {
	case "", TargetingGlobal:
		if len(t.Customers) > 0 {
			return fmt.Errorf("%w: global targeting cannot list customers", ErrInvalidInput)
		}
	case TargetingRestricted:
		for _, id := range t.Customers {
			if id <= 0 {
				return fmt.Errorf("%w: invalid customer id %d in targeting", ErrInvalidInput, id)
			}
		}
	default:
		return fmt.Errorf("%w: unknown targeting kind %q", ErrInvalidInput, t.Kind)
	}
	return nil
}
