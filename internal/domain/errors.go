// Package domain implements the coordination data plane: projects, agents,
// messages, reservations, contacts, build slots and the product bus.
package domain

import "github.com/agentmail/agentmail/internal/apperr"

// Error is the caller-visible error taxonomy shared by every domain
// operation. Dispatch translates these to the wire shape; domain code
// never constructs a wire error directly. Aliased from internal/apperr so
// that store, domain, and their callers all hand the same concrete type
// across package boundaries without store importing domain (that would
// create an import cycle, since domain itself imports store).
type Error = apperr.Error

// Kind enumerates the error taxonomy from spec §7.
type Kind = apperr.Kind

const (
	KindInvalidArgument     = apperr.KindInvalidArgument
	KindNotFound            = apperr.KindNotFound
	KindDuplicate           = apperr.KindDuplicate
	KindResourceBusy        = apperr.KindResourceBusy
	KindCircuitBreakerOpen  = apperr.KindCircuitBreakerOpen
	KindDatabaseError       = apperr.KindDatabaseError
	KindIntegrityCorruption = apperr.KindIntegrityCorruption
	KindCancelled           = apperr.KindCancelled
	KindInternalPanic       = apperr.KindInternalPanic
)

var (
	InvalidArgument     = apperr.InvalidArgument
	NotFound            = apperr.NotFound
	Duplicate           = apperr.Duplicate
	ResourceBusy        = apperr.ResourceBusy
	CircuitBreakerOpen  = apperr.CircuitBreakerOpen
	DatabaseError       = apperr.DatabaseError
	IntegrityCorruption = apperr.IntegrityCorruption
	Cancelled           = apperr.Cancelled
	InternalPanic       = apperr.InternalPanic
	AsError             = apperr.AsError
)
