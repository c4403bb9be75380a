// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package razorlink

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Thermoquad/razor/pkg/variable"
	"github.com/Thermoquad/razor/pkg/watercut"
)

var (
	// ErrMissingField is returned when a required payload key is absent
	ErrMissingField = errors.New("missing payload field")

	// ErrInvalidField is returned when a payload value does not fit its field
	ErrInvalidField = errors.New("invalid payload field")
)

// NewPulseCapture creates a PULSE_CAPTURE packet (0x30). A zero at omits the
// time of day.
func NewPulseCapture(address uint64, c watercut.Capture, at time.Time) *Packet {
	payload := map[int]interface{}{
		KeyCapturePulseLo:        uint64(c.PulseLo),
		KeyCapturePulseHi:        uint64(c.PulseHi),
		KeyCaptureMicros:         uint64(c.Micros),
		KeyCaptureTemperature:    c.Temperature,
		KeyCaptureReflectedPower: c.ReflectedPower,
		KeyCaptureAnalogDensity:  c.AnalogDensity,
	}
	if !at.IsZero() {
		h, m, s := at.Clock()
		payload[KeyCaptureTimeOfDay] = uint64(h*3600 + m*60 + s)
	}
	return NewPacketWithPayload(address, MsgPulseCapture, payload)
}

// CaptureFromPacket extracts the capture carried by a PULSE_CAPTURE packet.
// The counters and the temperature are required; counters must fit in 32
// bits. Missing reflected power and analog density read as zero.
func CaptureFromPacket(p *Packet) (watercut.Capture, error) {
	if p.Type() != MsgPulseCapture {
		return watercut.Capture{}, fmt.Errorf("expected PULSE_CAPTURE, got 0x%02X", p.Type())
	}
	m := p.PayloadMap()

	var c watercut.Capture
	lo, ok1 := GetMapUint(m, KeyCapturePulseLo)
	hi, ok2 := GetMapUint(m, KeyCapturePulseHi)
	us, ok3 := GetMapUint(m, KeyCaptureMicros)
	if !ok1 || !ok2 || !ok3 {
		return c, fmt.Errorf("%w: pulse counters", ErrMissingField)
	}
	if lo > math.MaxUint32 || hi > math.MaxUint32 || us > math.MaxUint32 {
		return c, fmt.Errorf("%w: pulse counter out of range (lo %d, hi %d, us %d)", ErrInvalidField, lo, hi, us)
	}
	temp, ok := GetMapFloat(m, KeyCaptureTemperature)
	if !ok {
		return c, fmt.Errorf("%w: temperature", ErrMissingField)
	}
	c.PulseLo = uint32(lo)
	c.PulseHi = uint32(hi)
	c.Micros = uint32(us)
	c.Temperature = temp
	c.ReflectedPower, _ = GetMapFloat(m, KeyCaptureReflectedPower)
	c.AnalogDensity, _ = GetMapFloat(m, KeyCaptureAnalogDensity)
	return c, nil
}

// NewTelemetry creates a TELEMETRY packet (0x31)
func NewTelemetry(address uint64, t watercut.Telemetry) *Packet {
	payload := map[int]interface{}{
		KeyTelWatercut:       t.Watercut,
		KeyTelWatercutRaw:    t.WatercutRaw,
		KeyTelWatercutAvg:    t.WatercutAvg,
		KeyTelTemperature:    t.Temperature,
		KeyTelTempAvg:        t.TempAvg,
		KeyTelFrequency:      t.Frequency,
		KeyTelReflectedPower: t.ReflectedPower,
		KeyTelDensity:        t.Density,
		KeyTelDensityAdj:     t.DensityAdj,
		KeyTelAnalogOut:      t.AnalogOut,
		KeyTelOilPhase:       t.OilPhase,
		KeyTelAlarm:          t.Alarm,
		KeyTelDiagnostics:    uint64(t.Diagnostics),
	}
	return NewPacketWithPayload(address, MsgTelemetry, payload)
}

// TelemetryFromPacket extracts a TELEMETRY packet. Absent fields read as zero.
func TelemetryFromPacket(p *Packet) (watercut.Telemetry, error) {
	if p.Type() != MsgTelemetry {
		return watercut.Telemetry{}, fmt.Errorf("expected TELEMETRY, got 0x%02X", p.Type())
	}
	m := p.PayloadMap()

	var t watercut.Telemetry
	t.Watercut, _ = GetMapFloat(m, KeyTelWatercut)
	t.WatercutRaw, _ = GetMapFloat(m, KeyTelWatercutRaw)
	t.WatercutAvg, _ = GetMapFloat(m, KeyTelWatercutAvg)
	t.Temperature, _ = GetMapFloat(m, KeyTelTemperature)
	t.TempAvg, _ = GetMapFloat(m, KeyTelTempAvg)
	t.Frequency, _ = GetMapFloat(m, KeyTelFrequency)
	t.ReflectedPower, _ = GetMapFloat(m, KeyTelReflectedPower)
	t.Density, _ = GetMapFloat(m, KeyTelDensity)
	t.DensityAdj, _ = GetMapFloat(m, KeyTelDensityAdj)
	t.AnalogOut, _ = GetMapFloat(m, KeyTelAnalogOut)
	t.OilPhase, _ = GetMapBool(m, KeyTelOilPhase)
	t.Alarm, _ = GetMapBool(m, KeyTelAlarm)
	diag, _ := GetMapUint(m, KeyTelDiagnostics)
	t.Diagnostics = variable.Diagnostics(diag)
	return t, nil
}

// NewRegisterRead creates a REGISTER_READ packet (0x20)
func NewRegisterRead(address uint64, reg uint16) *Packet {
	return NewPacketWithPayload(address, MsgRegisterRead, map[int]interface{}{
		0: uint64(reg),
	})
}

// NewRegisterWrite creates a REGISTER_WRITE packet (0x21)
func NewRegisterWrite(address uint64, reg uint16, value float64) *Packet {
	return NewPacketWithPayload(address, MsgRegisterWrite, map[int]interface{}{
		0: uint64(reg),
		1: value,
	})
}

// NewRegisterValue creates a REGISTER_VALUE packet (0x32), the answer to a
// read, write or calibration
func NewRegisterValue(address uint64, reg uint16, value float64) *Packet {
	return NewPacketWithPayload(address, MsgRegisterValue, map[int]interface{}{
		0: uint64(reg),
		1: value,
	})
}

// RegisterFromPacket returns the register address and, for writes and
// values, the value
func RegisterFromPacket(p *Packet) (reg uint16, value float64, err error) {
	m := p.PayloadMap()
	addr, ok := GetMapUint(m, 0)
	if !ok || addr > 0xFFFF {
		return 0, 0, fmt.Errorf("%w: register address", ErrMissingField)
	}
	if p.Type() == MsgRegisterRead {
		return uint16(addr), 0, nil
	}
	value, ok = GetMapFloat(m, 1)
	if !ok {
		return 0, 0, fmt.Errorf("%w: register value", ErrMissingField)
	}
	return uint16(addr), value, nil
}

// NewSaveRequest creates a SAVE_REQUEST packet (0x22)
func NewSaveRequest(address uint64) *Packet {
	return NewPacketWithPayload(address, MsgSaveRequest, nil)
}

// NewCalibrateOil creates a CALIBRATE_OIL packet (0x23) carrying the
// reference watercut in percent
func NewCalibrateOil(address uint64, reference float64) *Packet {
	return NewPacketWithPayload(address, MsgCalibrateOil, map[int]interface{}{
		0: reference,
	})
}

// NewPingRequest creates a PING_REQUEST packet (0x2F)
func NewPingRequest(address uint64) *Packet {
	return NewPacketWithPayload(address, MsgPingRequest, nil)
}

// NewPingResponse creates a PING_RESPONSE packet (0x3F) with the uptime
func NewPingResponse(address uint64, uptime time.Duration) *Packet {
	return NewPacketWithPayload(address, MsgPingResponse, map[int]interface{}{
		0: uint64(uptime / time.Millisecond),
	})
}

// NewErrorInvalidCmd creates an ERROR_INVALID_CMD packet (0xE0)
func NewErrorInvalidCmd(address uint64, code ErrorCode) *Packet {
	return NewPacketWithPayload(address, MsgErrorInvalidCmd, map[int]interface{}{
		0: int64(code),
	})
}

// ErrorCodeFor maps an analyzer error to the code sent back on the link
func ErrorCodeFor(err error) ErrorCode {
	switch {
	case errors.Is(err, watercut.ErrUnknownRegister):
		return ErrorUnknownRegister
	case errors.Is(err, watercut.ErrReadOnly):
		return ErrorReadOnly
	case errors.Is(err, watercut.ErrWaterPhase), errors.Is(err, watercut.ErrNoMeasurement):
		return ErrorCalibration
	default:
		return ErrorInvalidParameter
	}
}
