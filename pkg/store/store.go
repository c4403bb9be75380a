// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package store persists the analyzer register block between runs.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/razor/pkg/watercut"
)

// ErrNoSnapshot is returned by Load when the file does not exist
var ErrNoSnapshot = errors.New("no saved snapshot")

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Store is a snapshot file
type Store struct {
	path string
}

// New returns a store backed by path
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the snapshot file path
func (s *Store) Path() string {
	return s.path
}

// Save writes the snapshot atomically: a temporary file in the same
// directory is synced and renamed over the old one.
func (s *Store) Save(snap watercut.Snapshot) error {
	data, err := encMode.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load reads the snapshot. A snapshot of another layout version returns
// watercut.ErrSnapshotVersion.
func (s *Store) Load() (watercut.Snapshot, error) {
	var snap watercut.Snapshot

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return snap, ErrNoSnapshot
	}
	if err != nil {
		return snap, err
	}

	if err := cbor.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	if snap.Version != watercut.SnapshotVersion {
		return snap, fmt.Errorf("%s: %w: %d", s.path, watercut.ErrSnapshotVersion, snap.Version)
	}
	return snap, nil
}

// Restore loads the snapshot into b. A missing file leaves b untouched and
// returns ErrNoSnapshot.
func (s *Store) Restore(b *watercut.Bank) error {
	snap, err := s.Load()
	if err != nil {
		return err
	}
	return b.Restore(snap)
}
