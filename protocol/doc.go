// Package protocol encodes the envelopes and battle records exchanged across
// the boundary. The encoding is the protobuf wire format, written with
// protowire directly; there is no generated code.
//
// An Envelope carries a Kind discriminant and an opaque payload. The
// boundary layer only dispatches on Kind; payload bytes are decoded by the
// handler the Kind selects.
//
// Every record type has Append (encode onto a byte slice), Unmarshal and
// Reset, so records can be pooled and encoded without intermediate buffers.
package protocol
