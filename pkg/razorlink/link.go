// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package razorlink

import (
	"errors"
	"io"
	"sync"
)

// Link sends and receives frames over a byte stream such as a serial port or
// a websocket bridge. Send is safe for concurrent use; Receive must run on
// one goroutine.
type Link struct {
	rw      io.ReadWriter
	address uint64

	mu      sync.Mutex
	decoder *Decoder
}

// NewLink wraps a byte stream. address is stamped on every sent frame.
func NewLink(rw io.ReadWriter, address uint64) *Link {
	return &Link{rw: rw, address: address, decoder: NewDecoder()}
}

// Address is the address stamped on sent frames
func (l *Link) Address() uint64 {
	return l.address
}

// Send encodes and writes one packet
func (l *Link) Send(p *Packet) error {
	frame, err := Encode(p)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.rw.Write(frame)
	return err
}

// Receive reads until the stream fails or handle returns false. handle is
// called for every completed packet and every decode error. A clean end of
// stream returns nil.
func (l *Link) Receive(handle func(p *Packet, err error) bool) error {
	buf := make([]byte, 256)
	for {
		n, err := l.rw.Read(buf)
		for i := 0; i < n; i++ {
			p, derr := l.decoder.DecodeByte(buf[i])
			if p == nil && derr == nil {
				continue
			}
			if !handle(p, derr) {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
