// Package errors provides structured error types for the guest-bridge
// boundary.
//
// Errors are categorized by Phase (where in the boundary the error
// occurred) and Kind (error category). Matching with errors.Is compares
// Phase and Kind, so callers can test for a whole failure class:
//
//	if errors.IsAttachFailure(err) { ... }
//	if stderrors.Is(err, &errors.Error{Phase: errors.PhaseBind, Kind: errors.KindClassMissing}) { ... }
//
// Convenience constructors cover the boundary taxonomy:
//
//	err := errors.AttachFailed(cause)
//	err := errors.MemberMissing("rapids:memory/host-buffer", "allocate")
//	err := errors.GuestException("allocateHostBuffer threw an exception", cause)
//
// All errors implement the standard error interface and support
// errors.Is/As and Unwrap.
package errors
