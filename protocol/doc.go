// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Implements the server side of the WebSocket wire protocol (RFC 6455)
// as pure functions over byte slices:
//   - HTTP/1.1 Upgrade handshake processing and Sec-WebSocket-Accept derivation
//   - single-frame decoding with client mask removal and a payload cap
//   - unmasked server frame encoding in all three length forms
//
// Nothing here performs I/O. Callers accumulate bytes from a socket and feed
// them in; incomplete input yields "need more data" rather than an error.
package protocol
