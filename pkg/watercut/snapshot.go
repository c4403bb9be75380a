// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package watercut

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/razor/pkg/buffer"
)

// SnapshotVersion is the layout version written by Snapshot
const SnapshotVersion = 1

// ErrSnapshotVersion is returned when restoring an unknown layout
var ErrSnapshotVersion = errors.New("unsupported snapshot version")

// Snapshot is the persisted part of the register block
type Snapshot struct {
	Version int    `cbor:"1,keyasint"`
	Config  Config `cbor:"2,keyasint"`

	OilPhase  bool  `cbor:"3,keyasint"`
	Phase     Phase `cbor:"4,keyasint"`
	PrevPhase Phase `cbor:"5,keyasint"`
	Cycles    int   `cbor:"6,keyasint"`
	Rollovers int   `cbor:"7,keyasint"`

	WCRawAvg float64 `cbor:"8,keyasint"`

	// Rings in the order watercut, temperature, frequency, reflected power
	Rings [4]buffer.State `cbor:"9,keyasint"`

	Samples uint64 `cbor:"10,keyasint"`
}

func (b *Bank) rings() [4]*buffer.Ring {
	return [4]*buffer.Ring{b.wcBuf, b.tempBuf, b.freqBuf, b.rpBuf}
}

// Snapshot copies the persisted state of the bank
func (b *Bank) Snapshot() Snapshot {
	s := Snapshot{
		Version:   SnapshotVersion,
		Config:    b.Config,
		OilPhase:  b.OilPhase,
		Phase:     b.Phase,
		PrevPhase: b.PrevPhase,
		Cycles:    b.Cycles,
		Rollovers: b.Rollovers,
		WCRawAvg:  b.WCRawAvg,
		Samples:   b.samples,
	}
	for i, r := range b.rings() {
		s.Rings[i] = r.State()
	}
	return s
}

// Restore loads a snapshot. The configuration must validate. Rings whose
// saved shape does not match start empty.
func (b *Bank) Restore(s Snapshot) error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("%w: %d", ErrSnapshotVersion, s.Version)
	}
	if err := s.Config.Validate(); err != nil {
		return err
	}

	b.ApplyConfig(s.Config)
	b.OilPhase = s.OilPhase
	b.Phase = s.Phase
	b.PrevPhase = s.PrevPhase
	b.Cycles = s.Cycles
	b.Rollovers = s.Rollovers
	b.WCRawAvg = s.WCRawAvg
	b.samples = s.Samples

	for i, r := range b.rings() {
		r.Restore(s.Rings[i])
	}
	return nil
}
