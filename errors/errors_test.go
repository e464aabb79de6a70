package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseDispatch,
				Kind:   KindInvalidArgument,
				Path:   []string{"process_input", "action_type"},
				Detail: "unknown action",
			},
			contains: []string{"[dispatch]", "invalid_argument", "process_input.action_type", "unknown action"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDecode,
				Kind:  KindInvalidFormat,
			},
			contains: []string{"[decode]", "invalid_format"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseBuffer,
				Kind:   KindAllocation,
				Detail: "memory full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[buffer]", "allocation", "memory full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseEncode,
		Kind:  KindInternal,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseDomain,
		Kind:  KindNotFound,
		Path:  []string{"instance"},
	}

	if !err.Is(&Error{Phase: PhaseDomain, Kind: KindNotFound}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseDecode, Kind: KindNotFound}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseDomain, Kind: KindAlreadyExists}) {
		t.Error("Is should not match different kind")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("errors.Is should match kind sentinel")
	}
	if errors.Is(err, ErrUnavailable) {
		t.Error("errors.Is should not match other kind sentinel")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("errors.Is should see through fmt wrapping")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseDispatch, KindInvalidArgument).
		Path("set_log_level", "level").
		Value(9).
		Cause(cause).
		Detail("level %d outside [%d,%d]", 9, 0, 4).
		Build()

	if err.Phase != PhaseDispatch {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseDispatch)
	}
	if err.Kind != KindInvalidArgument {
		t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidArgument)
	}
	if len(err.Path) != 2 || err.Path[0] != "set_log_level" || err.Path[1] != "level" {
		t.Errorf("Path = %v, want [set_log_level level]", err.Path)
	}
	if err.Value != 9 {
		t.Errorf("Value = %v, want 9", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "level 9 outside [0,4]" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		kind Kind
	}{
		{"NotFound", NotFound(PhaseDomain, "instance", "7"), KindNotFound},
		{"AlreadyExists", AlreadyExists(PhaseDomain, "instance", "7"), KindAlreadyExists},
		{"InvalidFormat", InvalidFormat(PhaseDecode, "bad envelope", nil), KindInvalidFormat},
		{"InvalidArgument", InvalidArgument(PhaseDispatch, "bad level", 9), KindInvalidArgument},
		{"Unavailable", Unavailable(PhaseIndirection, "resource.loader"), KindUnavailable},
		{"OutOfBounds", OutOfBounds(PhaseBuffer, 65536, 4), KindOutOfBounds},
		{"AllocationFailed", AllocationFailed(PhaseBuffer, 16, 1, nil), KindAllocation},
		{"Internal", Internal(PhaseException, "boom", nil), KindInternal},
		{"Wrap", Wrap(PhaseConfig, KindInvalidFormat, errors.New("x"), "parse"), KindInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if tt.err.Error() == "" {
				t.Error("empty message")
			}
		})
	}

	if d := NotFound(PhaseDomain, "instance", "7").Detail; !strings.Contains(d, `"7"`) {
		t.Errorf("NotFound detail %q should quote the name", d)
	}
}
