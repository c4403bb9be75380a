// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package razorlink

import (
	"sync"
	"time"
)

// Packet is one link frame exchanged between a front end, an analyzer and a
// host.
//
// A received packet holds the CBOR message exactly as it came off the wire
// and decodes it once, on the first call that needs the type or the fields.
// A built packet carries its type and fields and is encoded by Encode.
type Packet struct {
	address uint64
	at      time.Time
	wire    []byte

	decode  sync.Once
	msgType uint8
	fields  map[int]interface{}
	err     error
}

// NewPacketWithPayload builds an outgoing packet of msgType
func NewPacketWithPayload(address uint64, msgType uint8, payload map[int]interface{}) *Packet {
	p := &Packet{
		address: address,
		at:      time.Now(),
		msgType: msgType,
		fields:  payload,
	}
	p.decode.Do(func() {})
	return p
}

// received wraps the CBOR message of a frame that passed its CRC check
func received(address uint64, wire []byte) *Packet {
	return &Packet{
		address: address,
		at:      time.Now(),
		wire:    wire,
	}
}

func (p *Packet) decoded() *Packet {
	p.decode.Do(func() {
		if len(p.wire) > 0 {
			p.msgType, p.fields, p.err = ParseCBORMessage(p.wire)
		}
	})
	return p
}

// Address returns the 64-bit device address
func (p *Packet) Address() uint64 {
	return p.address
}

// AddressedTo reports whether the device at address should act on the
// packet: it names that device or is a broadcast
func (p *Packet) AddressedTo(address uint64) bool {
	return p.address == address || p.address == AddressBroadcast
}

// Type returns the message type. A received message that failed to decode
// reads as type 0.
func (p *Packet) Type() uint8 {
	return p.decoded().msgType
}

// PayloadMap returns the payload fields, nil for empty payloads
func (p *Packet) PayloadMap() map[int]interface{} {
	return p.decoded().fields
}

// ParseError returns the CBOR decode error of a received packet
func (p *Packet) ParseError() error {
	return p.decoded().err
}

// Payload returns the CBOR message as received, nil for built packets
func (p *Packet) Payload() []byte {
	return p.wire
}

// Timestamp returns when the frame was decoded or built
func (p *Packet) Timestamp() time.Time {
	return p.at
}
