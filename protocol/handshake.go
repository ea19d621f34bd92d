// File: protocol/handshake.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server-side RFC 6455 opening handshake over a raw byte buffer.
// No net/http dependency: the buffer is whatever the socket delivered so far.

package protocol

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"strings"
)

const (
	WebSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

	// DefaultMaxHandshakeSize bounds the request header block.
	DefaultMaxHandshakeSize = 8192

	headerUpgrade         = "upgrade"
	headerSecWebSocketKey = "sec-websocket-key"
	valueWebSocket        = "websocket"
)

var headerTerminator = []byte("\r\n\r\n")

// Handshake validation errors. Each one means the connection is dropped
// without a response.
var (
	ErrBadRequestLine        = errors.New("protocol: malformed upgrade request line")
	ErrInvalidUpgradeHeaders = errors.New("protocol: invalid WebSocket upgrade headers")
	ErrHandshakeTooLarge     = errors.New("protocol: handshake header block too large")
)

// ComputeAcceptKey computes the Sec-WebSocket-Accept value from the client's key.
func ComputeAcceptKey(clientKey string) string {
	hash := sha1.Sum([]byte(clientKey + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(hash[:])
}

// ProcessHandshake inspects the bytes buffered from a connecting client.
//
// If buf does not yet contain the full header block, or the block carries no
// Sec-WebSocket-Key, it returns (nil, 0, nil).
// On success it returns the literal 101 response and the number of bytes that
// belong to the request; anything after that is already frame data.
// maxSize <= 0 selects DefaultMaxHandshakeSize.
func ProcessHandshake(buf []byte, maxSize int) ([]byte, int, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxHandshakeSize
	}
	end := bytes.Index(buf, headerTerminator)
	if end < 0 {
		if len(buf) > maxSize {
			return nil, 0, ErrHandshakeTooLarge
		}
		return nil, 0, nil
	}
	if end > maxSize {
		return nil, 0, ErrHandshakeTooLarge
	}

	lines := strings.Split(string(buf[:end]), "\r\n")
	if !validRequestLine(lines[0]) {
		return nil, 0, ErrBadRequestLine
	}
	headers := parseHeaders(lines[1:])
	if !containsToken(headers[headerUpgrade], valueWebSocket) {
		return nil, 0, ErrInvalidUpgradeHeaders
	}
	key := headers[headerSecWebSocketKey]
	if key == "" {
		// Keep waiting; the buffer is still bounded by maxSize.
		if len(buf) > maxSize {
			return nil, 0, ErrHandshakeTooLarge
		}
		return nil, 0, nil
	}

	return BuildUpgradeResponse(ComputeAcceptKey(key)), end + len(headerTerminator), nil
}

// BuildUpgradeResponse renders the 101 Switching Protocols response.
func BuildUpgradeResponse(accept string) []byte {
	var b bytes.Buffer
	b.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	b.WriteString("Sec-WebSocket-Accept: ")
	b.WriteString(accept)
	b.WriteString("\r\n\r\n")
	return b.Bytes()
}

// validRequestLine accepts "GET <target> HTTP/1.x".
func validRequestLine(line string) bool {
	parts := strings.Fields(line)
	if len(parts) != 3 {
		return false
	}
	return parts[0] == "GET" && strings.HasPrefix(parts[2], "HTTP/1.")
}

// parseHeaders lower-cases names; repeated names are joined with ", ".
func parseHeaders(lines []string) map[string]string {
	headers := make(map[string]string, len(lines))
	for _, line := range lines {
		sep := strings.IndexByte(line, ':')
		if sep <= 0 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(line[:sep]))
		value := strings.TrimSpace(line[sep+1:])
		if prev, ok := headers[name]; ok {
			value = prev + ", " + value
		}
		headers[name] = value
	}
	return headers
}

// containsToken checks a comma-separated header value for token (case-insensitive).
func containsToken(headerValue, token string) bool {
	for _, p := range strings.Split(headerValue, ",") {
		if strings.EqualFold(strings.TrimSpace(p), token) {
			return true
		}
	}
	return false
}
