// Package signaling carries relay frames between browsers and the relay Hub
// over WebSocket.
//
// Each connection gets its own send queue drained by a write pump, so a slow
// browser never blocks the goroutine relaying on behalf of its peer.
package signaling
