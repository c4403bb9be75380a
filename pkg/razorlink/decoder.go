// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package razorlink

import (
	"errors"
	"fmt"
)

// Decoder errors
var (
	ErrCRCMismatch   = errors.New("CRC mismatch")
	ErrUnexpectedEnd = errors.New("unexpected END byte")
	ErrInvalidLength = errors.New("invalid length")
	ErrFrameTooLong  = errors.New("frame longer than its length byte")
)

// Decoder is the byte-at-a-time frame state machine
type Decoder struct {
	state        int
	buffer       []byte
	escapeNext   bool
	addressBytes int
	rawBuffer    []byte

	// header and trailer of the frame in progress
	length  uint8
	address uint64
	crc     uint16
}

// NewDecoder creates a decoder waiting for START
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		buffer:    make([]byte, 0, MaxPacketSize),
		rawBuffer: make([]byte, 0, MaxPacketSize*2),
	}
}

// Reset drops any partial frame
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.buffer = d.buffer[:0]
	d.addressBytes = 0
	d.escapeNext = false
	d.rawBuffer = d.rawBuffer[:0]
	d.length = 0
	d.address = 0
	d.crc = 0
}

// RawBytes returns the bytes seen since the last START, framing included
func (d *Decoder) RawBytes() []byte {
	return d.rawBuffer
}

// DecodeByte feeds one byte. It returns a packet when END closes a frame with
// a good CRC, and an error when the frame is malformed. START always begins a
// new frame.
func (d *Decoder) DecodeByte(b byte) (*Packet, error) {
	d.rawBuffer = append(d.rawBuffer, b)
	if len(d.rawBuffer) > MaxPacketSize*2+2 {
		d.rawBuffer = d.rawBuffer[:0]
	}

	if !d.escapeNext {
		switch b {
		case StartByte:
			d.Reset()
			d.rawBuffer = append(d.rawBuffer, b)
			d.state = stateLength
			return nil, nil
		case EndByte:
			return d.finish()
		case EscByte:
			if d.state != stateIdle {
				d.escapeNext = true
			}
			return nil, nil
		}
	} else {
		b ^= EscXor
		d.escapeNext = false
	}

	switch d.state {
	case stateIdle:
		return nil, nil

	case stateLength:
		if b > MaxPayloadSize {
			d.Reset()
			return nil, fmt.Errorf("%w: %d (max %d)", ErrInvalidLength, b, MaxPayloadSize)
		}
		d.length = b
		d.buffer = append(d.buffer, b)
		d.addressBytes = 0
		d.state = stateAddress

	case stateAddress:
		d.address |= uint64(b) << (d.addressBytes * 8)
		d.buffer = append(d.buffer, b)
		d.addressBytes++
		if d.addressBytes >= AddressSize {
			if d.length == 0 {
				d.state = stateCRC1
			} else {
				d.state = statePayload
			}
		}

	case statePayload:
		d.buffer = append(d.buffer, b)
		if len(d.buffer) >= 1+AddressSize+int(d.length) {
			d.state = stateCRC1
		}

	case stateCRC1:
		d.crc = uint16(b) << 8
		d.state = stateCRC2

	case stateCRC2:
		d.crc |= uint16(b)
		d.state = stateEnd

	case stateEnd:
		d.Reset()
		return nil, fmt.Errorf("%w: byte 0x%02X after CRC", ErrFrameTooLong, b)
	}
	return nil, nil
}

func (d *Decoder) finish() (*Packet, error) {
	if d.state != stateEnd {
		state := d.state
		d.Reset()
		if state == stateIdle {
			return nil, nil
		}
		return nil, fmt.Errorf("%w in state %d", ErrUnexpectedEnd, state)
	}

	calculated := CalculateCRC(d.buffer)
	if d.crc != calculated {
		got := d.crc
		d.Reset()
		return nil, fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrCRCMismatch, calculated, got)
	}

	p := received(d.address, append([]byte(nil), d.buffer[1+AddressSize:]...))
	d.Reset()
	return p, nil
}
