// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package razorlink

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Statistics counts link frames and their failures
type Statistics struct {
	StartTime time.Time

	TotalPackets uint64
	ValidPackets uint64
	CRCErrors    uint64
	DecodeErrors uint64
	Anomalies    uint64

	Overflows     uint64
	ZeroTimes     uint64
	InvalidTemps  uint64
	InvalidValues uint64

	PacketRate float64 // packets/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics starts counting now
func NewStatistics() *Statistics {
	return &Statistics{StartTime: time.Now()}
}

// Update counts one decoder result. A packet with validation errors counts
// once per anomaly.
func (s *Statistics) Update(decodeErr error, validationErrors []ValidationError) {
	s.TotalPackets++

	if decodeErr != nil {
		if errors.Is(decodeErr, ErrCRCMismatch) {
			s.CRCErrors++
		} else {
			s.DecodeErrors++
		}
		return
	}

	if len(validationErrors) == 0 {
		s.ValidPackets++
		return
	}
	for _, err := range validationErrors {
		s.Anomalies++
		switch err.Type {
		case AnomalyCounterOverflow:
			s.Overflows++
		case AnomalyZeroTime:
			s.ZeroTimes++
		case AnomalyInvalidTemp:
			s.InvalidTemps++
		default:
			s.InvalidValues++
		}
	}
}

// Errors is the total of failed and anomalous frames
func (s *Statistics) Errors() uint64 {
	return s.CRCErrors + s.DecodeErrors + s.Anomalies
}

// CalculateRates refreshes PacketRate and ErrorRate
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PacketRate = float64(s.TotalPackets) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

func (s *Statistics) percent(n uint64) float64 {
	if s.TotalPackets == 0 {
		return 0
	}
	return float64(n) * 100.0 / float64(s.TotalPackets)
}

// String returns a formatted summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var b strings.Builder
	fmt.Fprintf(&b, "=== Statistics (%.0f seconds) ===\n", time.Since(s.StartTime).Seconds())
	fmt.Fprintf(&b, "Total Packets:   %8d\n", s.TotalPackets)
	fmt.Fprintf(&b, "Valid Packets:   %8d (%.1f%%)\n", s.ValidPackets, s.percent(s.ValidPackets))
	if s.CRCErrors > 0 {
		fmt.Fprintf(&b, "CRC Errors:      %8d (%.1f%%)\n", s.CRCErrors, s.percent(s.CRCErrors))
	}
	if s.DecodeErrors > 0 {
		fmt.Fprintf(&b, "Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, s.percent(s.DecodeErrors))
	}
	if s.Anomalies > 0 {
		fmt.Fprintf(&b, "Anomalies:       %8d\n", s.Anomalies)
		if s.Overflows > 0 {
			fmt.Fprintf(&b, "  Counter Overflow: %5d\n", s.Overflows)
		}
		if s.ZeroTimes > 0 {
			fmt.Fprintf(&b, "  Zero Time:        %5d\n", s.ZeroTimes)
		}
		if s.InvalidTemps > 0 {
			fmt.Fprintf(&b, "  Invalid Temp:     %5d\n", s.InvalidTemps)
		}
		if s.InvalidValues > 0 {
			fmt.Fprintf(&b, "  Invalid Value:    %5d\n", s.InvalidValues)
		}
	}
	fmt.Fprintf(&b, "Packet Rate:     %8.1f pkts/sec\n", s.PacketRate)
	fmt.Fprintf(&b, "Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	b.WriteString("================================\n")
	return b.String()
}

// Reset zeroes the counters and restarts the clock
func (s *Statistics) Reset() {
	*s = Statistics{StartTime: time.Now()}
}
