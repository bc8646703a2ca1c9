package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the boundary the error occurred
type Phase string

const (
	PhaseAttach Phase = "attach" // thread binding to the guest runtime
	PhaseBind   Phase = "bind"   // class/member resolution
	PhaseCall   Phase = "call"   // guest invocation
	PhaseLoad   Phase = "load"   // module lifecycle edges
)

// Kind categorizes the error
type Kind string

const (
	KindAttachFailed      Kind = "attach_failed"
	KindBadAttachState    Kind = "bad_attach_state"
	KindClassMissing      Kind = "class_missing"
	KindMemberMissing     Kind = "member_missing"
	KindSignatureMismatch Kind = "signature_mismatch"
	KindGuestException    Kind = "guest_exception"
	KindBadState          Kind = "bad_state"
	KindPopulateFailed    Kind = "populate_failed"
)

// Error is the structured error type used throughout the boundary
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Class  string
	Member string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Class != "" {
		b.WriteString(" at ")
		b.WriteString(e.Class)
		if e.Member != "" {
			b.WriteByte('#')
			b.WriteString(e.Member)
		}
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// AttachFailed reports that a thread could not be bound to the guest
// runtime.
func AttachFailed(cause error) *Error {
	return &Error{
		Phase:  PhaseAttach,
		Kind:   KindAttachFailed,
		Detail: "unable to attach thread to guest runtime",
		Cause:  cause,
	}
}

// BadAttachState reports that the runtime's attach-state query returned
// something other than attached or detached.
func BadAttachState(state string) *Error {
	return &Error{
		Phase:  PhaseAttach,
		Kind:   KindBadAttachState,
		Detail: fmt.Sprintf("error detecting thread attach state: %s", state),
	}
}

// ClassMissing reports that a required guest class could not be resolved.
func ClassMissing(class string) *Error {
	return &Error{
		Phase: PhaseBind,
		Kind:  KindClassMissing,
		Class: class,
	}
}

// MemberMissing reports that a required method or field could not be
// resolved against its class.
func MemberMissing(class, member string) *Error {
	return &Error{
		Phase:  PhaseBind,
		Kind:   KindMemberMissing,
		Class:  class,
		Member: member,
	}
}

// SignatureMismatch reports that a member resolved but its guest shape
// does not match the expected signature.
func SignatureMismatch(class, member, detail string) *Error {
	return &Error{
		Phase:  PhaseBind,
		Kind:   KindSignatureMismatch,
		Class:  class,
		Member: member,
		Detail: detail,
	}
}

// GuestException reports a guest fault recorded during a call. The fault
// payload is carried opaquely as the cause and never decoded.
func GuestException(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindGuestException,
		Detail: detail,
		Cause:  cause,
	}
}

// BadState reports a lifecycle operation attempted in the wrong state.
func BadState(detail string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindBadState,
		Detail: detail,
	}
}

// PopulateFailed wraps a binding resolution failure that aborted process
// load.
func PopulateFailed(cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindPopulateFailed,
		Detail: "binding cache population failed",
		Cause:  cause,
	}
}

// Wrap wraps an existing error with boundary context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// IsAttachFailure reports whether err belongs to the attach failure class.
func IsAttachFailure(err error) bool {
	e, ok := asBoundary(err)
	return ok && e.Phase == PhaseAttach
}

// IsBindingFailure reports whether err belongs to the binding resolution
// failure class.
func IsBindingFailure(err error) bool {
	e, ok := asBoundary(err)
	return ok && e.Phase == PhaseBind
}

// IsAllocationFailure reports whether err is a guest exception raised by
// an allocation call.
func IsAllocationFailure(err error) bool {
	e, ok := asBoundary(err)
	return ok && e.Phase == PhaseCall && e.Kind == KindGuestException
}

func asBoundary(err error) (*Error, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
