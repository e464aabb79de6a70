// Package buffer implements the ownership-tagged byte spans that cross the
// boundary and the two output conventions built on them.
//
// # Ownership
//
// Every span carries an Owner tag that decides who frees it:
//
//	CallerOwned      caller allocated; callee only reads or copies within the call
//	CalleeAllocated  callee allocated; caller copies out, then releases exactly once
//	PoolOwned        local scratch from a pool; never has a boundary address
//
// A Buffer is moved with Transfer. The source is invalidated and every later
// use of it returns an error.
//
// # Single-buffer-out
//
// WriteTruncated writes up to the caller's capacity. A written length equal
// to the capacity is the caller's signal that the result may be truncated.
//
// # Double-indirection-out
//
// AllocOut allocates a dedicated block sized to the data, writes it, and
// stores (address, length) into the caller's Slots. ReadOut is the reverse:
// it returns a CalleeAllocated Buffer the caller must CopyOut and Release.
// Blocks handed to a remote caller are recorded in a Ledger until the caller
// returns them.
package buffer
