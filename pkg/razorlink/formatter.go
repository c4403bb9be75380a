// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package razorlink

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Thermoquad/razor/pkg/variable"
)

// FormatPacket formats a packet into a human-readable string
func FormatPacket(p *Packet) string {
	timestamp := p.at.Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s (0x%02X) addr=%016X len=%d\n",
		timestamp, FormatMessageType(p.Type()), p.Type(), p.address, len(p.wire))

	if err := p.ParseError(); err != nil {
		return result + fmt.Sprintf("  Parse error: %v\n", err)
	}
	return result + FormatPayloadMap(p.Type(), p.PayloadMap())
}

// FormatMessageType returns the name of a message type
func FormatMessageType(msgType uint8) string {
	switch msgType {
	case MsgRegisterRead:
		return "REGISTER_READ"
	case MsgRegisterWrite:
		return "REGISTER_WRITE"
	case MsgSaveRequest:
		return "SAVE_REQUEST"
	case MsgCalibrateOil:
		return "CALIBRATE_OIL"
	case MsgPingRequest:
		return "PING_REQUEST"
	case MsgPulseCapture:
		return "PULSE_CAPTURE"
	case MsgTelemetry:
		return "TELEMETRY"
	case MsgRegisterValue:
		return "REGISTER_VALUE"
	case MsgPingResponse:
		return "PING_RESPONSE"
	case MsgErrorInvalidCmd:
		return "ERROR_INVALID_CMD"
	default:
		return "UNKNOWN"
	}
}

// FormatPayloadMap formats a payload map according to its message type
func FormatPayloadMap(msgType uint8, m map[int]interface{}) string {
	switch msgType {
	case MsgPingRequest, MsgSaveRequest:
		return "  (no payload)\n"

	case MsgPingResponse:
		uptime, _ := GetMapUint(m, 0)
		return fmt.Sprintf("  Uptime: %s\n", formatDuration(uptime))

	case MsgPulseCapture:
		lo, _ := GetMapUint(m, KeyCapturePulseLo)
		hi, _ := GetMapUint(m, KeyCapturePulseHi)
		us, _ := GetMapUint(m, KeyCaptureMicros)
		temp, _ := GetMapFloat(m, KeyCaptureTemperature)
		rp, _ := GetMapFloat(m, KeyCaptureReflectedPower)
		result := fmt.Sprintf("  Pulses: %d (hi %d) in %d µs, Temp: %.1f°C, RP: %.1f mV",
			lo, hi, us, temp, rp)
		if rho, ok := GetMapFloat(m, KeyCaptureAnalogDensity); ok && rho != 0 {
			result += fmt.Sprintf(", Density: %.1f kg/m³", rho)
		}
		if tod, ok := GetMapUint(m, KeyCaptureTimeOfDay); ok {
			result += fmt.Sprintf(", At: %02d:%02d:%02d", tod/3600, tod/60%60, tod%60)
		}
		return result + "\n"

	case MsgTelemetry:
		wc, _ := GetMapFloat(m, KeyTelWatercut)
		raw, _ := GetMapFloat(m, KeyTelWatercutRaw)
		temp, _ := GetMapFloat(m, KeyTelTemperature)
		freq, _ := GetMapFloat(m, KeyTelFrequency)
		ao, _ := GetMapFloat(m, KeyTelAnalogOut)
		oil, _ := GetMapBool(m, KeyTelOilPhase)
		alarm, _ := GetMapBool(m, KeyTelAlarm)
		diag, _ := GetMapUint(m, KeyTelDiagnostics)
		phase := "WATER"
		if oil {
			phase = "OIL"
		}
		result := fmt.Sprintf("  Watercut: %.2f%% (raw %.2f%%), Phase: %s, Temp: %.1f, Freq: %.3f MHz, AO: %.2f mA",
			wc, raw, phase, temp, freq, ao)
		if alarm {
			result += ", ALARM"
		}
		return result + fmt.Sprintf(", Diag: %s\n", variable.Diagnostics(diag))

	case MsgRegisterRead:
		reg, _ := GetMapUint(m, 0)
		return fmt.Sprintf("  Register: %d\n", reg)

	case MsgRegisterWrite, MsgRegisterValue:
		reg, _ := GetMapUint(m, 0)
		value, _ := GetMapFloat(m, 1)
		return fmt.Sprintf("  Register: %d, Value: %g\n", reg, value)

	case MsgCalibrateOil:
		ref, _ := GetMapFloat(m, 0)
		return fmt.Sprintf("  Reference watercut: %.2f%%\n", ref)

	case MsgErrorInvalidCmd:
		code, _ := GetMapInt(m, 0)
		return fmt.Sprintf("  Error Code: %d (%s)\n", code, formatErrorCode(ErrorCode(code)))
	}

	if m == nil {
		return "  (nil payload)\n"
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%d: %v", k, m[k])
	}
	return "  Payload: {" + strings.Join(parts, ", ") + "}\n"
}

func formatErrorCode(code ErrorCode) string {
	switch code {
	case ErrorInvalidParameter:
		return "Invalid parameter value"
	case ErrorUnknownRegister:
		return "Unknown register"
	case ErrorReadOnly:
		return "Register is read-only"
	case ErrorCalibration:
		return "Calibration not possible"
	case ErrorUnknownCommand:
		return "Unknown command"
	default:
		return "Unknown"
	}
}

// formatDuration renders milliseconds as "2 days, 3 hours and 1 second"
func formatDuration(ms uint64) string {
	seconds := ms / 1000
	if seconds == 0 {
		return fmt.Sprintf("%d ms", ms)
	}

	units := []struct {
		name string
		size uint64
	}{
		{"year", 365 * 24 * 3600},
		{"day", 24 * 3600},
		{"hour", 3600},
		{"minute", 60},
		{"second", 1},
	}

	parts := []string{}
	for _, u := range units {
		n := seconds / u.size
		seconds %= u.size
		switch {
		case n == 1:
			parts = append(parts, "1 "+u.name)
		case n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", n, u.name))
		}
	}

	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
	}
}
