// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/razor/pkg/api"
	"github.com/Thermoquad/razor/pkg/units"
)

var (
	convertTemp      float64
	convertTable     string
	convertAlpha     float64
	convertScaleOnly bool
	convertList      bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <value> <from> <to>",
	Short: "Convert a value between engineering units",
	Long: `Convert a value between two units of the same class.

Units are given by display name (e.g. "kg/m3", "°F") or an ASCII alias
("degf", "api", "sg"). Reference densities (kg/m³@15°C, °API, SG 60/60)
are converted through the API table correlation at --temp.

Use --list to print every known unit by class.`,
	Example: `  razor convert 25 degc degf
  razor convert 850 kg/m3 api --temp 40 --table A
  razor convert 10 degc degf --scale-only`,
	Args: func(cmd *cobra.Command, args []string) error {
		if convertList {
			return nil
		}
		return cobra.ExactArgs(3)(cmd, args)
	},
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().Float64Var(&convertTemp, "temp", 15.0, "Process temperature in °C for density conversions")
	convertCmd.Flags().StringVar(&convertTable, "table", "A", "API table for density conversions (A, B, C or D)")
	convertCmd.Flags().Float64Var(&convertAlpha, "alpha", 0, "Table C thermal expansion coefficient, per °C")
	convertCmd.Flags().BoolVar(&convertScaleOnly, "scale-only", false, "Convert a temperature difference (no offset)")
	convertCmd.Flags().BoolVar(&convertList, "list", false, "List known units")
}

func runConvert(cmd *cobra.Command, args []string) error {
	if convertList {
		printUnits()
		return nil
	}

	value, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", args[0], err)
	}
	from, to, class, err := parseUnitPair(args[1], args[2])
	if err != nil {
		return err
	}

	table, err := api.ParseTable(convertTable)
	if err != nil {
		return err
	}
	conv := units.Converter{
		Density: api.Correlation{Table: table, Alpha: convertAlpha}.DensityConverter(),
	}

	out := conv.Convert(class, from, to, value, convertScaleOnly, convertTemp)
	if out == api.ErrorValue {
		return fmt.Errorf("conversion from %s to %s failed", units.Name(from), units.Name(to))
	}
	fmt.Printf("%g %s = %g %s\n", value, units.Name(from), out, units.Name(to))
	return nil
}

// parseUnitPair resolves both units and checks they share a class
func parseUnitPair(fromName, toName string) (units.Unit, units.Unit, units.Class, error) {
	from, ok := units.Parse(fromName)
	if !ok {
		return 0, 0, 0, fmt.Errorf("unknown unit %q", fromName)
	}
	to, ok := units.Parse(toName)
	if !ok {
		return 0, 0, 0, fmt.Errorf("unknown unit %q", toName)
	}

	fc, _ := units.ClassOf(from)
	tc, _ := units.ClassOf(to)
	if fc != tc {
		return 0, 0, 0, fmt.Errorf("cannot convert %s (%s) to %s (%s)", units.Name(from), fc, units.Name(to), tc)
	}
	return from, to, fc, nil
}

func printUnits() {
	byClass := make(map[units.Class][]string)
	for _, c := range units.Table {
		byClass[c.Class] = append(byClass[c.Class], units.Name(c.Unit))
	}
	for _, u := range []units.Unit{units.KgPerMCubed15C, units.DegAPI, units.SpecificGravity60} {
		byClass[units.ClassMassPerVolume] = append(byClass[units.ClassMassPerVolume], units.Name(u))
	}

	classes := make([]units.Class, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	for _, c := range classes {
		fmt.Printf("%-16s", c.String()+":")
		for _, name := range byClass[c] {
			fmt.Printf(" %s", name)
		}
		fmt.Println()
	}
}
