package errors

import "errors"

// Status is the int32 result code returned by every boundary entry point.
// Zero is success; failures are negative.
type Status int32

const (
	StatusSuccess         Status = 0
	StatusNotFound        Status = -1
	StatusAlreadyExists   Status = -2
	StatusInvalidFormat   Status = -3
	StatusInvalidArgument Status = -4
	StatusUnavailable     Status = -5
	StatusTruncated       Status = -6
	StatusFatal           Status = -7
	StatusFinished        Status = -8
	StatusInternal        Status = -9
)

var statusNames = map[Status]string{
	StatusSuccess:         "success",
	StatusNotFound:        "not_found",
	StatusAlreadyExists:   "already_exists",
	StatusInvalidFormat:   "invalid_format",
	StatusInvalidArgument: "invalid_argument",
	StatusUnavailable:     "unavailable",
	StatusTruncated:       "truncated",
	StatusFatal:           "fatal",
	StatusFinished:        "finished",
	StatusInternal:        "internal",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// OK reports whether s is StatusSuccess.
func (s Status) OK() bool { return s == StatusSuccess }

// StatusFor returns the boundary status for a Kind.
func StatusFor(kind Kind) Status {
	switch kind {
	case KindNotFound:
		return StatusNotFound
	case KindAlreadyExists:
		return StatusAlreadyExists
	case KindInvalidFormat:
		return StatusInvalidFormat
	case KindInvalidArgument, KindOutOfBounds:
		return StatusInvalidArgument
	case KindUnavailable:
		return StatusUnavailable
	case KindTruncated:
		return StatusTruncated
	case KindFatal:
		return StatusFatal
	case KindFinished:
		return StatusFinished
	default:
		return StatusInternal
	}
}

// StatusOf maps an error to its boundary status. nil maps to StatusSuccess
// and errors outside this package map to StatusInternal.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return StatusFor(e.Kind)
	}
	return StatusInternal
}

// Expected reports whether err is part of the normal request traffic
// (lookups, validation, missing handlers) rather than a fault.
func Expected(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindNotFound, KindAlreadyExists, KindInvalidFormat,
		KindInvalidArgument, KindUnavailable, KindFinished:
		return true
	}
	return false
}

// KindOf returns the Kind a status stands for. StatusSuccess and unknown
// statuses map to KindInternal.
func KindOf(s Status) Kind {
	switch s {
	case StatusNotFound:
		return KindNotFound
	case StatusAlreadyExists:
		return KindAlreadyExists
	case StatusInvalidFormat:
		return KindInvalidFormat
	case StatusInvalidArgument:
		return KindInvalidArgument
	case StatusUnavailable:
		return KindUnavailable
	case StatusTruncated:
		return KindTruncated
	case StatusFatal:
		return KindFatal
	case StatusFinished:
		return KindFinished
	default:
		return KindInternal
	}
}

// FromStatus turns a status returned across the boundary back into an
// error. StatusSuccess yields nil.
func FromStatus(phase Phase, s Status, detail string) error {
	if s == StatusSuccess {
		return nil
	}
	return &Error{
		Phase:  phase,
		Kind:   KindOf(s),
		Detail: detail,
		Value:  int32(s),
	}
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool { return errors.Is(err, target) }

// As is errors.As from the standard library.
func As(err error, target any) bool { return errors.As(err, target) }
