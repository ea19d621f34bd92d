// File: protocol/constants.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WebSocket wire protocol constants.

package protocol

const (
	// Data opcodes
	OpcodeContinuation = 0x0
	OpcodeText         = 0x1
	OpcodeBinary       = 0x2

	// Control opcodes
	OpcodeClose = 0x8
	OpcodePing  = 0x9
	OpcodePong  = 0xA

	// Bit masks
	FinBit     = 0x80
	MaskBit    = 0x80
	opcodeMask = 0x0F
	lengthMask = 0x7F

	// Length codes in the second header byte.
	length16 = 126
	length64 = 127

	// MaxFrameHeaderLen covers the 8-byte extended length plus mask key.
	MaxFrameHeaderLen = 14

	// DefaultMaxFramePayload bounds a single decoded payload.
	DefaultMaxFramePayload = 1 << 20 // 1 MiB
)
