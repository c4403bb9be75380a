// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package razorlink

import (
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/razor/pkg/watercut"
)

// getFuzzRounds returns FUZZ_ROUNDS or 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns FUZZ_SEED or a time-based seed
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng logs the seed so a failure can be reproduced
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomMessageType favours the razor message types
func randomMessageType(rng *rand.Rand) uint8 {
	known := []uint8{
		MsgRegisterRead, MsgRegisterWrite, MsgSaveRequest, MsgCalibrateOil, MsgPingRequest,
		MsgPulseCapture, MsgTelemetry, MsgRegisterValue, MsgPingResponse, MsgErrorInvalidCmd,
	}
	if rng.Intn(4) == 0 {
		return uint8(rng.Intn(256))
	}
	return known[rng.Intn(len(known))]
}

// buildRandomCBORPayload creates [msgType, random_map]
func buildRandomCBORPayload(rng *rand.Rand, msgType uint8) []byte {
	payloadMap := make(map[int]interface{})
	for i := rng.Intn(8); i > 0; i-- {
		key := rng.Intn(14)
		switch rng.Intn(5) {
		case 0:
			payloadMap[key] = rng.Uint64()
		case 1:
			payloadMap[key] = -rng.Int63()
		case 2:
			payloadMap[key] = rng.NormFloat64() * 1000
		case 3:
			payloadMap[key] = rng.Intn(2) == 1
		case 4:
			payloadMap[key] = math.NaN()
		}
	}

	var msg interface{} = []interface{}{uint64(msgType), nil}
	if len(payloadMap) > 0 {
		msg = []interface{}{uint64(msgType), payloadMap}
	}
	data, err := cbor.Marshal(msg)
	if err != nil {
		data, _ = cbor.Marshal([]interface{}{uint64(msgType), nil})
	}
	return data
}

// feedByteWithStuffing sends one byte with escaping applied
func feedByteWithStuffing(d *Decoder, b byte) {
	if b == StartByte || b == EndByte || b == EscByte {
		d.DecodeByte(EscByte)
		d.DecodeByte(b ^ EscXor)
	} else {
		d.DecodeByte(b)
	}
}

// ============================================================
// Decoder Fuzz Tests
// ============================================================

func TestFuzzDecoder_NoiseNeverPanics(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		d := NewDecoder()
		noise := make([]byte, rng.Intn(1024)+1)
		rng.Read(noise)
		for _, b := range noise {
			if p, _ := d.DecodeByte(b); p != nil {
				FormatPacket(p)
				ValidatePacket(p)
				TelemetryFromPacket(p)
				CaptureFromPacket(p)
			}
		}
	}
}

// chunkReader hands out a byte stream in random sized reads
type chunkReader struct {
	io.Writer
	data []byte
	rng  *rand.Rand
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.rng.Intn(16) + 1
	if n > len(p) {
		n = len(p)
	}
	if n > len(c.data) {
		n = len(c.data)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

// idleNoise returns bytes the decoder ignores between frames
func idleNoise(rng *rand.Rand) []byte {
	noise := make([]byte, rng.Intn(8))
	for i := range noise {
		noise[i] = byte(rng.Intn(int(EscByte)))
	}
	return noise
}

func TestFuzzLink_ChunkedTelemetry(t *testing.T) {
	rounds := getFuzzRounds() / 10
	if rounds < 1 {
		rounds = 1
	}
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		var stream []byte
		var sent []float64
		for j := rng.Intn(10) + 1; j > 0; j-- {
			wc := math.Round(rng.Float64()*10000) / 100
			frame, err := Encode(NewTelemetry(0xCAFE, watercut.Telemetry{Watercut: wc, OilPhase: true}))
			if err != nil {
				t.Fatalf("Round %d: Encode: %v", i, err)
			}
			stream = append(stream, idleNoise(rng)...)
			stream = append(stream, frame...)
			sent = append(sent, wc)
		}

		var got []float64
		link := NewLink(&chunkReader{Writer: io.Discard, data: stream, rng: rng}, 0)
		err := link.Receive(func(p *Packet, err error) bool {
			if err != nil {
				t.Errorf("Round %d: decode error: %v", i, err)
				return true
			}
			tel, err := TelemetryFromPacket(p)
			if err != nil {
				t.Errorf("Round %d: %v", i, err)
				return true
			}
			got = append(got, tel.Watercut)
			return true
		})
		if err != nil {
			t.Fatalf("Round %d: Receive: %v", i, err)
		}
		if len(got) != len(sent) {
			t.Fatalf("Round %d: sent %d frames, received %d", i, len(sent), len(got))
		}
		for j := range sent {
			if got[j] != sent[j] {
				t.Errorf("Round %d frame %d: expected %g, got %g", i, j, sent[j], got[j])
			}
		}
	}
}

func TestFuzzDecoder_RandomPackets(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		d := NewDecoder()
		address := rng.Uint64()
		msgType := randomMessageType(rng)
		cborPayload := buildRandomCBORPayload(rng, msgType)

		crcData := []byte{uint8(len(cborPayload))}
		for j := 0; j < 8; j++ {
			crcData = append(crcData, byte(address>>(j*8)))
		}
		crcData = append(crcData, cborPayload...)
		crc := CalculateCRC(crcData)

		d.DecodeByte(StartByte)
		for _, b := range crcData {
			feedByteWithStuffing(d, b)
		}
		feedByteWithStuffing(d, byte(crc>>8))
		feedByteWithStuffing(d, byte(crc))
		packet, err := d.DecodeByte(EndByte)

		if err != nil {
			t.Errorf("Round %d: unexpected decode error: %v", i, err)
			continue
		}
		if packet == nil {
			t.Errorf("Round %d: expected packet, got nil", i)
			continue
		}
		if packet.Address() != address {
			t.Errorf("Round %d: address mismatch: expected 0x%016X, got 0x%016X", i, address, packet.Address())
		}
		if packet.Type() != msgType {
			t.Errorf("Round %d: type mismatch: expected 0x%02X, got 0x%02X", i, msgType, packet.Type())
		}
	}
}

func TestFuzzDecoder_CorruptedPackets(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		d := NewDecoder()
		frame := rawFrame(rng.Uint64(), buildRandomCBORPayload(rng, randomMessageType(rng)))

		switch rng.Intn(3) {
		case 0: // flip a byte
			idx := rng.Intn(len(frame)-2) + 1
			frame[idx] ^= byte(rng.Intn(255) + 1)
		case 1: // drop bytes
			for j := rng.Intn(5) + 1; j > 0 && len(frame) > 2; j-- {
				idx := rng.Intn(len(frame))
				frame = append(frame[:idx], frame[idx+1:]...)
			}
		case 2: // insert bytes
			for j := rng.Intn(5) + 1; j > 0; j-- {
				idx := rng.Intn(len(frame) + 1)
				frame = append(frame[:idx], append([]byte{byte(rng.Intn(256))}, frame[idx:]...)...)
			}
		}

		for _, b := range frame {
			d.DecodeByte(b)
		}
	}
}

func TestFuzzDecoder_RepeatedStart(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	frame, _ := Encode(NewPingRequest(0x0102030405060708))

	for i := 0; i < rounds; i++ {
		d := NewDecoder()
		for j := rng.Intn(100) + 1; j > 0; j-- {
			d.DecodeByte(StartByte)
		}
		var packet *Packet
		var err error
		for _, b := range frame[1:] {
			packet, err = d.DecodeByte(b)
		}
		if err != nil || packet == nil {
			t.Errorf("Round %d: expected packet after repeated START, got %v %v", i, packet, err)
		}
	}
}

// ============================================================
// Builder Fuzz Tests
// ============================================================

func TestFuzzCapture_RoundTrip(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		c := watercut.Capture{
			PulseLo:        rng.Uint32(),
			PulseHi:        uint32(rng.Intn(2)),
			Micros:         rng.Uint32(),
			Temperature:    rng.Float64()*300 - 50,
			ReflectedPower: rng.Float64() * 5000,
			AnalogDensity:  rng.Float64() * 1100,
		}
		frame, err := Encode(NewPulseCapture(rng.Uint64(), c, time.Time{}))
		if err != nil {
			t.Fatalf("Round %d: Encode: %v", i, err)
		}
		p, err := decodeAll(t, frame)
		if err != nil {
			t.Fatalf("Round %d: decode: %v", i, err)
		}
		got, err := CaptureFromPacket(p)
		if err != nil || got != c {
			t.Errorf("Round %d: expected %+v, got %+v (%v)", i, c, got, err)
		}
	}
}

// ============================================================
// Formatter Fuzz Tests
// ============================================================

func TestFuzzFormatter_RandomPackets(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		msgType := randomMessageType(rng)
		cborPayload := buildRandomCBORPayload(rng, msgType)
		p := received(rng.Uint64(), cborPayload)

		if FormatPacket(p) == "" {
			t.Errorf("Round %d: FormatPacket returned empty string", i)
		}
		if FormatMessageType(msgType) == "" {
			t.Errorf("Round %d: FormatMessageType returned empty string", i)
		}
		if ValidatePacket(p) == nil {
			t.Errorf("Round %d: ValidatePacket returned nil slice", i)
		}
	}
}
