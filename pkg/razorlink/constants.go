// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package razorlink implements the framed link between a razor analyzer and
// its front end.
//
// Frames use the Thermoquad serial framing: START, a length byte, a 64-bit
// little-endian address, a CBOR message [msg_type, {int: value}], a
// big-endian CRC-16-CCITT and END, with START, END and ESC byte-stuffed in
// between. The front end sends pulse captures and register traffic; the
// analyzer answers with telemetry and register values.
package razorlink

// Protocol framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Packet size limits
const (
	MaxPacketSize  = 256 // 1 length + 8 address + 245 payload + 2 CRC
	MaxPayloadSize = 245
	AddressSize    = 8
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Special addresses
const (
	AddressBroadcast = 0x0000000000000000
	AddressStateless = 0xFFFFFFFFFFFFFFFF
)

// Message types - Commands (front end → analyzer) 0x20-0x2F
const (
	MsgRegisterRead  = 0x20
	MsgRegisterWrite = 0x21
	MsgSaveRequest   = 0x22
	MsgCalibrateOil  = 0x23
	MsgPingRequest   = 0x2F
)

// Message types - Data 0x30-0x3F
const (
	MsgPulseCapture  = 0x30 // front end → analyzer
	MsgTelemetry     = 0x31 // analyzer → front end
	MsgRegisterValue = 0x32 // analyzer → front end
	MsgPingResponse  = 0x3F
)

// Message types - Errors 0xE0-0xEF
const (
	MsgErrorInvalidCmd = 0xE0
)

// ErrorCode is carried by ERROR_INVALID_CMD
type ErrorCode int

// Error code values
const (
	ErrorInvalidParameter ErrorCode = 1
	ErrorUnknownRegister  ErrorCode = 2
	ErrorReadOnly         ErrorCode = 3
	ErrorCalibration      ErrorCode = 4
	ErrorUnknownCommand   ErrorCode = 5
)

// Payload keys - PULSE_CAPTURE
const (
	KeyCapturePulseLo        = 0
	KeyCapturePulseHi        = 1
	KeyCaptureMicros         = 2
	KeyCaptureTemperature    = 3
	KeyCaptureReflectedPower = 4
	KeyCaptureAnalogDensity  = 5
	KeyCaptureTimeOfDay      = 6 // optional, seconds since midnight
)

// Payload keys - TELEMETRY
const (
	KeyTelWatercut       = 0
	KeyTelWatercutRaw    = 1
	KeyTelWatercutAvg    = 2
	KeyTelTemperature    = 3
	KeyTelTempAvg        = 4
	KeyTelFrequency      = 5
	KeyTelReflectedPower = 6
	KeyTelDensity        = 7
	KeyTelDensityAdj     = 8
	KeyTelAnalogOut      = 9
	KeyTelOilPhase       = 10
	KeyTelAlarm          = 11
	KeyTelDiagnostics    = 12
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateLength
	stateAddress
	statePayload
	stateCRC1
	stateCRC2
	stateEnd
)
