// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package razorlink

import (
	"fmt"
	"math"

	"github.com/Thermoquad/razor/pkg/variable"
)

// AnomalyType classifies a suspicious frame
type AnomalyType int

const (
	AnomalyMissingField AnomalyType = iota
	AnomalyCounterOverflow
	AnomalyZeroTime
	AnomalyInvalidTemp
	AnomalyInvalidValue
	AnomalyUnknownDiagnostic
)

// ValidationError describes one anomaly
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// Plausible sensor limits for link traffic
const (
	minCaptureTemp = -50.0
	maxCaptureTemp = 250.0
	maxAnalogOut   = 24.0
)

var knownDiagnostics = uint64(variable.DiagDensityExtrapolate<<1 - 1)

// ValidatePacket checks a frame for anomalies. The slice is empty, never nil,
// for a clean frame.
func ValidatePacket(p *Packet) []ValidationError {
	errors := []ValidationError{}
	switch p.Type() {
	case MsgPulseCapture:
		errors = append(errors, validatePulseCapture(p.PayloadMap())...)
	case MsgTelemetry:
		errors = append(errors, validateTelemetry(p.PayloadMap())...)
	}
	return errors
}

func validatePulseCapture(m map[int]interface{}) []ValidationError {
	errors := []ValidationError{}

	hi, ok := GetMapUint(m, KeyCapturePulseHi)
	if !ok {
		return []ValidationError{{
			Type:    AnomalyMissingField,
			Message: "PULSE_CAPTURE without pulse counters",
		}}
	}
	if hi != 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyCounterOverflow,
			Message: fmt.Sprintf("Pulse counter overflow (hi=%d)", hi),
			Details: map[string]interface{}{"pulse_hi": hi},
		})
	}
	if us, _ := GetMapUint(m, KeyCaptureMicros); us == 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyZeroTime,
			Message: "Zero capture time",
		})
	}

	temp, ok := GetMapFloat(m, KeyCaptureTemperature)
	if ok && (math.IsNaN(temp) || temp < minCaptureTemp || temp > maxCaptureTemp) {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidTemp,
			Message: fmt.Sprintf("Temperature %.1f°C outside %.0f..%.0f", temp, minCaptureTemp, maxCaptureTemp),
			Details: map[string]interface{}{"temperature": temp},
		})
	}
	return errors
}

func validateTelemetry(m map[int]interface{}) []ValidationError {
	errors := []ValidationError{}

	wc, ok := GetMapFloat(m, KeyTelWatercut)
	if ok && !math.IsNaN(wc) && (wc < 0 || wc > 100) {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("Watercut %.2f%% outside 0..100", wc),
			Details: map[string]interface{}{"watercut": wc},
		})
	}
	ao, ok := GetMapFloat(m, KeyTelAnalogOut)
	if ok && (ao < 0 || ao > maxAnalogOut) {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("Analog output %.2f mA outside 0..%.0f", ao, maxAnalogOut),
			Details: map[string]interface{}{"analog_out": ao},
		})
	}
	if diag, ok := GetMapUint(m, KeyTelDiagnostics); ok && diag&^knownDiagnostics != 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownDiagnostic,
			Message: fmt.Sprintf("Unknown diagnostic bits 0x%X", diag&^knownDiagnostics),
			Details: map[string]interface{}{"diagnostics": diag},
		})
	}
	return errors
}
