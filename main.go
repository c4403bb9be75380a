// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Razor - Watercut Analyzer
//
// Runs the watercut measurement pipeline against pulse captures from a
// front end and provides offline tools for unit conversion, API density
// correction, curve simulation and oil calibration.

package main

import (
	"os"

	"github.com/Thermoquad/razor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
