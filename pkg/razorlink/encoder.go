// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package razorlink

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrPayloadTooLarge is returned when a message does not fit in one frame
var ErrPayloadTooLarge = errors.New("CBOR payload too large")

// Encode builds the wire frame for a packet
func Encode(p *Packet) ([]byte, error) {
	return EncodePacketFromValues(p.Address(), p.Type(), p.PayloadMap())
}

// EncodePacketFromValues builds a complete frame including framing and byte
// stuffing
func EncodePacketFromValues(address uint64, msgType uint8, payloadMap map[int]interface{}) ([]byte, error) {
	cborPayload, err := encodeCBORPayload(msgType, payloadMap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR payload: %w", err)
	}
	if len(cborPayload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(cborPayload), MaxPayloadSize)
	}

	// length + address + payload, covered by the CRC and stuffed
	data := make([]byte, 1+AddressSize+len(cborPayload), 1+AddressSize+len(cborPayload)+2)
	data[0] = uint8(len(cborPayload))
	binary.LittleEndian.PutUint64(data[1:1+AddressSize], address)
	copy(data[1+AddressSize:], cborPayload)

	crc := CalculateCRC(data)
	data = append(data, byte(crc>>8), byte(crc))

	frame := make([]byte, 0, len(data)*2+2)
	frame = append(frame, StartByte)
	frame = appendStuffed(frame, data)
	return append(frame, EndByte), nil
}

func encodeCBORPayload(msgType uint8, payloadMap map[int]interface{}) ([]byte, error) {
	if len(payloadMap) == 0 {
		return cbor.Marshal([]interface{}{uint64(msgType), nil})
	}
	return cbor.Marshal([]interface{}{uint64(msgType), payloadMap})
}

// appendStuffed escapes START, END and ESC as ESC followed by byte^EscXor
func appendStuffed(dst, data []byte) []byte {
	for _, b := range data {
		if b == StartByte || b == EndByte || b == EscByte {
			dst = append(dst, EscByte, b^EscXor)
		} else {
			dst = append(dst, b)
		}
	}
	return dst
}

// UnstuffBytes reverses byte stuffing
func UnstuffBytes(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	escapeNext := false
	for _, b := range data {
		switch {
		case escapeNext:
			out = append(out, b^EscXor)
			escapeNext = false
		case b == EscByte:
			escapeNext = true
		default:
			out = append(out, b)
		}
	}
	if escapeNext {
		return nil, errors.New("incomplete escape sequence at end of data")
	}
	return out, nil
}
