// Package wasmbridge lets a Go host and a guest runtime exchange serialized
// messages and events across a shared linear-memory boundary.
//
// Calls are synchronous in both directions: the guest calls host entry
// points, and the host pushes one-way notifications back through callback
// handles the guest registered. Every buffer that crosses the boundary has
// an explicit owner, so it is always clear who allocates it, who reads it and
// who frees it.
//
// # Architecture Overview
//
//	wasmbridge/         Root package with Memory, Allocator, Func and Peer
//	├── buffer/         Ownership-tagged buffers and the two out-parameter shapes
//	├── pool/           Bounded object pool
//	├── callback/       Per-channel callback registry
//	├── exception/      Fault to diagnostic-record translation
//	├── indirection/    Double-indirection request/response bridge
//	├── protocol/       Envelope and message codecs
//	├── battle/         Domain service driven through the boundary
//	├── router/         Entry-point catalogue and dispatch
//	├── engine/         wazero integration and the "wasm-bridge" host module
//	├── cmd/bridge/     Console, scripted demo and guest runner
//	├── resource/       File-backed loader source
//	├── config/         TOML and environment configuration
//	├── logging/        Boundary log levels on top of zap
//	└── errors/         Structured error types and boundary status codes
//
// # Quick Start
//
//	cfg := config.Default()
//	r, err := router.New(cfg, router.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	e, err := engine.New(ctx, r, &engine.Config{EnableWASI: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Close(ctx)
//
//	guest, err := e.Instantiate(ctx, "guest", guestWasm)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r.Attach(guest)
//
// # Ownership
//
// Buffers are CallerOwned (the caller frees after the callee returns),
// CalleeAllocated (the callee allocates, the caller copies out and then
// releases through the callee's deallocation entry point) or PoolOwned
// (local to the host process, copied before it crosses the boundary).
//
// # Thread Safety
//
// The router, registry, translator and pools are safe for concurrent use.
// No component lock is held while a call crosses the boundary.
package wasmbridge
