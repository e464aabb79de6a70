// Package linear provides an in-process linear memory, a first-fit
// allocator over it, and a loopback Peer that exports Go functions.
//
// It stands in for a guest runtime in tests and in the interactive console:
//
//	peer := linear.NewPeer(1)
//	ptr, n, _ := peer.Put([]byte("cfg.json"))
//	defer peer.Allocator().Free(ptr, n, 1)
//
// Address 0 is never handed out, so a zero pointer always means "no buffer".
package linear
