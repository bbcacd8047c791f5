// Package relay contains the in-memory signaling engine: the user registry,
// the peer connection graph, the room join protocol and the message router.
//
// The engine never interprets signaling payloads; it routes them by identifier
// and room membership. All registry and graph mutation is serialized behind a
// single mutex, so no caller can observe a partially updated record or a
// half-inserted edge pair. Channel implementations MUST NOT block in Emit;
// the engine emits while holding its lock.
package relay
