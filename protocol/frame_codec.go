// File: protocol/frame_codec.go
// Package protocol implements the frame codec with frame size enforcement.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Decoding accepts client frames only (masked, single frame). Encoding always
// produces unmasked FIN frames, which is what a server is allowed to send.

package protocol

import (
	"encoding/binary"
	"errors"
)

var (
	// ErrUnmaskedFrame is returned for a client frame with MASK=0.
	ErrUnmaskedFrame = errors.New("protocol: client frame is not masked")
	// ErrFrameTooLarge is returned when the declared payload length exceeds the cap.
	ErrFrameTooLarge = errors.New("protocol: frame payload exceeds maximum allowed size")
)

// Frame is a single decoded WebSocket frame.
type Frame struct {
	Fin     bool
	Opcode  byte
	Masked  bool
	MaskKey [4]byte
	Payload []byte
}

// DecodeFrame parses one client frame from the front of raw.
// It returns the frame and the number of bytes consumed. If raw does not yet
// hold a whole frame it returns (nil, 0, nil) and the caller should wait for
// more data. maxPayload <= 0 selects DefaultMaxFramePayload.
func DecodeFrame(raw []byte, maxPayload int64) (*Frame, int, error) {
	return decode(raw, maxPayload, true)
}

// DecodeServerFrame parses one frame as a client sees it: masking is optional.
func DecodeServerFrame(raw []byte, maxPayload int64) (*Frame, int, error) {
	return decode(raw, maxPayload, false)
}

func decode(raw []byte, maxPayload int64, requireMask bool) (*Frame, int, error) {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxFramePayload
	}
	if len(raw) < 2 {
		return nil, 0, nil
	}
	fin := raw[0]&FinBit != 0
	opcode := raw[0] & opcodeMask
	masked := raw[1]&MaskBit != 0
	if requireMask && !masked {
		return nil, 0, ErrUnmaskedFrame
	}

	length := uint64(raw[1] & lengthMask)
	offset := 2
	switch length {
	case length16:
		if len(raw) < offset+2 {
			return nil, 0, nil
		}
		length = uint64(binary.BigEndian.Uint16(raw[offset:]))
		offset += 2
	case length64:
		if len(raw) < offset+8 {
			return nil, 0, nil
		}
		length = binary.BigEndian.Uint64(raw[offset:])
		offset += 8
	}
	if length > uint64(maxPayload) {
		return nil, 0, ErrFrameTooLarge
	}

	var key [4]byte
	if masked {
		if len(raw) < offset+4 {
			return nil, 0, nil
		}
		copy(key[:], raw[offset:offset+4])
		offset += 4
	}

	total := offset + int(length)
	if len(raw) < total {
		return nil, 0, nil
	}

	payload := make([]byte, length)
	copy(payload, raw[offset:total])
	if masked {
		applyMask(payload, key)
	}

	return &Frame{
		Fin:     fin,
		Opcode:  opcode,
		Masked:  masked,
		MaskKey: key,
		Payload: payload,
	}, total, nil
}

// EncodeText returns an unmasked FIN text frame (first byte 0x81) carrying payload.
func EncodeText(payload []byte) []byte {
	return EncodeFrame(OpcodeText, payload)
}

// EncodeFrame returns an unmasked FIN frame with the given opcode.
func EncodeFrame(opcode byte, payload []byte) []byte {
	hdr := appendHeader(make([]byte, 0, MaxFrameHeaderLen+len(payload)), opcode, len(payload), false)
	return append(hdr, payload...)
}

// EncodeMasked returns a masked FIN frame as a client would send it.
func EncodeMasked(opcode byte, payload []byte, key [4]byte) []byte {
	buf := appendHeader(make([]byte, 0, MaxFrameHeaderLen+len(payload)), opcode, len(payload), true)
	buf = append(buf, key[:]...)
	start := len(buf)
	buf = append(buf, payload...)
	applyMask(buf[start:], key)
	return buf
}

func appendHeader(dst []byte, opcode byte, plen int, mask bool) []byte {
	b0 := byte(FinBit) | (opcode & opcodeMask)
	var m byte
	if mask {
		m = MaskBit
	}
	switch {
	case plen <= 125:
		return append(dst, b0, byte(plen)|m)
	case plen <= 0xFFFF:
		dst = append(dst, b0, length16|m)
		return binary.BigEndian.AppendUint16(dst, uint16(plen))
	default:
		dst = append(dst, b0, length64|m)
		return binary.BigEndian.AppendUint64(dst, uint64(plen))
	}
}

// applyMask XORs b in place with key; masking is its own inverse.
func applyMask(b []byte, key [4]byte) {
	for i := range b {
		b[i] ^= key[i&3]
	}
}
