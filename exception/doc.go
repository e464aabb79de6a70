// Package exception turns local faults into diagnostic records the other
// side of the boundary can read, instead of letting them unwind across it.
//
// A Translator starts Uninitialized. Arm registers a scratch buffer in the
// remote side's memory and a notify handle. Wrap runs an operation; when it
// faults, a Report is serialized as compact JSON:
//
//	{"type":"...","message":"...","stackTrace":"..."}
//
// and, if armed, at most capacity-1 bytes of it are written to the scratch
// buffer followed by a 0 terminator, then the notify handle is called once
// with no arguments. The caller of Wrap receives the zero value and an
// internal error.
//
// Errors that belong to normal traffic (not found, invalid argument, and so
// on) are returned unchanged without a report. Panics carrying a
// runtime.Error are memory-safety violations and are re-raised.
//
// There is a single scratch buffer. A fault that arrives before the remote
// side has read the previous report overwrites it.
package exception
