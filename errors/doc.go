// Package errors provides structured error types for the boundary layer.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Kind follows the boundary taxonomy, and every Kind maps to a
// Status code that can cross the boundary as a plain int32.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDispatch, errors.KindInvalidArgument).
//		Path("process_input", "action_type").
//		Value(7).
//		Detail("unknown action type").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NotFound(errors.PhaseDomain, "instance", "42")
//	err := errors.OutOfBounds(errors.PhaseBuffer, ptr, length)
//
// Status codes are derived with StatusOf:
//
//	status := errors.StatusOf(err) // errors.StatusNotFound
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
