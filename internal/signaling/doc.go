// Package signaling is the WebSocket transport in front of the relay engine.
//
// Each connection is upgraded at GET /ws with its handshake parameters in the
// query string, then exchanges JSON event envelopes. The package owns all
// connection-level hardening (origin policy, read limits, message rate,
// keepalive) and translates wire envelopes into engine calls; it holds no
// registry state of its own.
package signaling
