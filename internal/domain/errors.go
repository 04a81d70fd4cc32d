package domain

import "errors"

var (
	// ErrDuplicateLead is returned by the lead store when a create hits
	// the unique index on email or phone.
	ErrDuplicateLead = errors.New("lead already exists with this email or phone")

	// ErrLeadNotFound is returned when a lead id resolves to no row.
	// The worker treats queue entries that hit this as orphans.
	ErrLeadNotFound = errors.New("lead not found")
)
