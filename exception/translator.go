package exception

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/buffer"
	"github.com/wippyai/wasm-bridge/callback"
	"github.com/wippyai/wasm-bridge/errors"
)

// State of a Translator.
type State uint8

const (
	Uninitialized State = iota
	Armed
)

func (s State) String() string {
	if s == Armed {
		return "armed"
	}
	return "uninitialized"
}

// Translator owns the scratch buffer and notify handle.
type Translator struct {
	scratch *buffer.Buffer
	notify  callback.Handle
	logger  *zap.Logger
	last    Report
	faults  uint64
	mu      sync.Mutex
}

// NewTranslator creates an Uninitialized translator.
func NewTranslator(logger *zap.Logger) *Translator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translator{logger: logger}
}

// Arm takes over scratch and notify. Arming again replaces both. A scratch
// buffer with zero capacity disarms.
func (t *Translator) Arm(notify callback.Handle, scratch *buffer.Buffer) error {
	if scratch == nil || scratch.Cap() == 0 {
		t.Disarm()
		return nil
	}
	owned, err := scratch.Transfer()
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.scratch = owned
	t.notify = notify
	t.mu.Unlock()

	t.logger.Debug("exception context armed",
		zap.Uint32("ptr", owned.Ptr()),
		zap.Uint32("capacity", owned.Cap()),
		zap.String("notify", notify.Name))
	return nil
}

// Disarm returns to Uninitialized.
func (t *Translator) Disarm() {
	t.mu.Lock()
	t.scratch = nil
	t.notify = callback.Handle{}
	t.mu.Unlock()
}

// State returns the current state.
func (t *Translator) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.scratch == nil {
		return Uninitialized
	}
	return Armed
}

// Last returns the most recent report and whether any fault happened.
func (t *Translator) Last() (Report, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.faults > 0
}

// Faults returns the number of faults seen.
func (t *Translator) Faults() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.faults
}

// Raise writes report to the scratch buffer and calls the notify handle.
// When Uninitialized the report is only logged.
func (t *Translator) Raise(ctx context.Context, report Report) error {
	data, err := report.Encode()
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.last = report
	t.faults++
	scratch, notify := t.scratch, t.notify
	if scratch == nil {
		t.mu.Unlock()
		t.logger.Error("fault with no exception context",
			zap.String("type", report.Kind),
			zap.String("message", report.Message))
		return nil
	}

	n := uint32(len(data))
	if limit := scratch.Cap() - 1; n > limit {
		n = limit
	}
	record := make([]byte, n+1)
	copy(record, data[:n])
	_, _, err = scratch.Fill(record)
	t.mu.Unlock()
	if err != nil {
		return errors.Wrap(errors.PhaseException, errors.KindInternal, err, "write exception record")
	}

	t.logger.Error("fault reported",
		zap.String("type", report.Kind),
		zap.String("message", report.Message),
		zap.Uint32("bytes", n))

	if notify.Empty() {
		return nil
	}
	if _, err := notify.Fn.Call(ctx); err != nil {
		return errors.Wrap(errors.PhaseException, errors.KindInternal, err, "notify exception handler")
	}
	return nil
}

func (t *Translator) fault(ctx context.Context, report Report) error {
	if err := t.Raise(ctx, report); err != nil {
		t.logger.Error("exception report not delivered", zap.Error(err))
	}
	return errors.New(errors.PhaseException, errors.KindInternal).
		Detail("%s: %s", report.Kind, report.Message).
		Build()
}

// Wrap runs fn under t. See the package documentation for the fault rules.
func Wrap[T any](ctx context.Context, t *Translator, fn func() (T, error)) (result T, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if re, ok := r.(runtime.Error); ok {
			panic(re)
		}
		var zero T
		result = zero
		err = t.fault(ctx, FromPanic(r, debug.Stack()))
	}()

	v, err := fn()
	if err == nil || errors.Expected(err) {
		return v, err
	}

	var zero T
	ferr := t.fault(ctx, FromError(err))
	if e, ok := ferr.(*errors.Error); ok {
		e.Cause = err
	}
	return zero, ferr
}
