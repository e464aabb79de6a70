package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, StatusSuccess},
		{"not found", NotFound(PhaseDomain, "instance", "1"), StatusNotFound},
		{"already exists", AlreadyExists(PhaseDomain, "instance", "1"), StatusAlreadyExists},
		{"invalid format", InvalidFormat(PhaseDecode, "x", nil), StatusInvalidFormat},
		{"invalid argument", InvalidArgument(PhaseDispatch, "x", 1), StatusInvalidArgument},
		{"out of bounds", OutOfBounds(PhaseBuffer, 1, 1), StatusInvalidArgument},
		{"unavailable", Unavailable(PhaseIndirection, "loader"), StatusUnavailable},
		{"finished", &Error{Phase: PhaseDomain, Kind: KindFinished}, StatusFinished},
		{"internal", Internal(PhaseException, "x", nil), StatusInternal},
		{"allocation", AllocationFailed(PhaseBuffer, 1, 1, nil), StatusInternal},
		{"foreign", errors.New("plain"), StatusInternal},
		{"wrapped", fmt.Errorf("ctx: %w", NotFound(PhaseDomain, "x", "y")), StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.err); got != tt.want {
				t.Errorf("StatusOf = %v (%d), want %v (%d)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestStatus_String(t *testing.T) {
	if StatusSuccess.String() != "success" {
		t.Errorf("got %q", StatusSuccess.String())
	}
	if Status(-100).String() != "unknown" {
		t.Errorf("got %q", Status(-100).String())
	}
	if !StatusSuccess.OK() || StatusNotFound.OK() {
		t.Error("OK mismatch")
	}
}

func TestExpected(t *testing.T) {
	if !Expected(NotFound(PhaseDomain, "x", "y")) {
		t.Error("not found should be expected")
	}
	if !Expected(fmt.Errorf("wrap: %w", InvalidFormat(PhaseDecode, "x", nil))) {
		t.Error("wrapped invalid format should be expected")
	}
	if Expected(Internal(PhaseDomain, "x", nil)) {
		t.Error("internal should not be expected")
	}
	if Expected(errors.New("plain")) {
		t.Error("foreign error should not be expected")
	}
	if Expected(nil) {
		t.Error("nil should not be expected")
	}
}

func TestFromStatus(t *testing.T) {
	if err := FromStatus(PhaseIndirection, StatusSuccess, "x"); err != nil {
		t.Errorf("FromStatus(success) = %v", err)
	}
	for _, s := range []Status{
		StatusNotFound, StatusAlreadyExists, StatusInvalidFormat, StatusInvalidArgument,
		StatusUnavailable, StatusTruncated, StatusFatal, StatusFinished, StatusInternal,
	} {
		err := FromStatus(PhaseIndirection, s, "remote")
		if got := StatusOf(err); got != s {
			t.Errorf("StatusOf(FromStatus(%v)) = %v", s, got)
		}
	}
	if KindOf(Status(-99)) != KindInternal {
		t.Error("unknown status should map to internal")
	}
}
