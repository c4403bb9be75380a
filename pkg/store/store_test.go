// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package store

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/razor/pkg/watercut"
)

func newBank(t *testing.T) *watercut.Bank {
	t.Helper()
	cfg := watercut.DefaultConfig()
	cfg.AverageCount = 3
	b, err := watercut.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestSaveLoad(t *testing.T) {
	b := newBank(t)
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		b.Poll(watercut.Capture{PulseLo: 7250 + uint32(i), Micros: 1000, Temperature: 25})
		b.CaptureSample(now.Add(time.Duration(i) * time.Second))
	}
	if err := b.Write(watercut.RegOilAdjust, 1.5); err != nil {
		t.Fatalf("Write: %v", err)
	}

	s := New(filepath.Join(t.TempDir(), "state", "razor.snap"))
	want := b.Snapshot()
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("loaded snapshot differs:\nwant %+v\ngot  %+v", want, got)
	}

	other := newBank(t)
	if err := s.Restore(other); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if other.Config.OilAdjust != 1.5 {
		t.Errorf("expected oil adjust 1.5, got %g", other.Config.OilAdjust)
	}

	entries, _ := os.ReadDir(filepath.Dir(s.Path()))
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestLoad_Missing(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "none.snap"))
	if _, err := s.Load(); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("expected ErrNoSnapshot, got %v", err)
	}

	b := newBank(t)
	before := b.Snapshot()
	if err := s.Restore(b); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("expected ErrNoSnapshot, got %v", err)
	}
	if !reflect.DeepEqual(b.Snapshot(), before) {
		t.Error("missing snapshot must leave the bank untouched")
	}
}

func TestLoad_Rejects(t *testing.T) {
	dir := t.TempDir()

	t.Run("version", func(t *testing.T) {
		snap := newBank(t).Snapshot()
		snap.Version = watercut.SnapshotVersion + 1
		data, _ := cbor.Marshal(snap)
		path := filepath.Join(dir, "future.snap")
		os.WriteFile(path, data, 0o644)

		if _, err := New(path).Load(); !errors.Is(err, watercut.ErrSnapshotVersion) {
			t.Errorf("expected ErrSnapshotVersion, got %v", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.snap")
		os.WriteFile(path, []byte{0xFF, 0x00, 0x13}, 0o644)
		if _, err := New(path).Load(); err == nil {
			t.Error("expected decode error")
		}
	})
}
