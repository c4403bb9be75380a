// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/razor/pkg/api"
)

var (
	densityBase      string
	densityTable     string
	densityTemp      float64
	densityAlpha     float64
	densityVCF       bool
	densityToProcess bool
	densitySimple    bool
)

var densityCmd = &cobra.Command{
	Use:   "density <kg/m3>",
	Short: "Correct a density between process and reference temperature",
	Long: `Correct a density with the API table correlation.

By default the argument is the observed density at --temp and the density
at the reference temperature (--base 60F or 15C) is solved for. With
--to-process the argument is a reference density and the density at --temp
is computed instead.

--simple uses the single-coefficient correlation referenced to 15 °C in
place of the tables.`,
	Example: `  razor density 850 --temp 45
  razor density 780 --table B --base 60F --temp 30
  razor density 870 --table C --alpha 0.00072 --temp 50 --vcf
  razor density 870 --to-process --temp 80`,
	Args: cobra.ExactArgs(1),
	RunE: runDensity,
}

func init() {
	rootCmd.AddCommand(densityCmd)
	densityCmd.Flags().StringVar(&densityBase, "base", "15C", "Reference temperature (60F or 15C)")
	densityCmd.Flags().StringVar(&densityTable, "table", "A", "API table (A, B, C or D)")
	densityCmd.Flags().Float64Var(&densityTemp, "temp", 15.0, "Process temperature in °C")
	densityCmd.Flags().Float64Var(&densityAlpha, "alpha", 0, "Table C thermal expansion coefficient, per °C")
	densityCmd.Flags().BoolVar(&densityVCF, "vcf", false, "Print only the volume correction factor")
	densityCmd.Flags().BoolVar(&densityToProcess, "to-process", false, "Convert a reference density to process temperature")
	densityCmd.Flags().BoolVar(&densitySimple, "simple", false, "Use the simple 15 °C correlation")
}

func runDensity(cmd *cobra.Command, args []string) error {
	rho, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid density %q: %w", args[0], err)
	}

	if densitySimple {
		return runSimpleDensity(rho)
	}

	base, err := api.ParseBase(densityBase)
	if err != nil {
		return err
	}
	table, err := api.ParseTable(densityTable)
	if err != nil {
		return err
	}
	corr := api.Correlation{Table: table, Alpha: densityAlpha, TempC: densityTemp}

	if densityToProcess {
		out, set, st := corr.StandardToProcess(rho, base, api.SubRangeAuto)
		if st == api.StatusFail {
			return fmt.Errorf("%.4f kg/m³ @%s is outside table %c at %.2f °C", rho, base, table, densityTemp)
		}
		fmt.Printf("Reference:  %.4f kg/m³ @%s\n", rho, base)
		fmt.Printf("Process:    %.4f kg/m³ @%.2f °C\n", out, densityTemp)
		fmt.Printf("VCF:        %.7f\n", out/rho)
		printSolveStatus(table, set, st)
		return nil
	}

	res, err := corr.Solve(rho, base, densityVCF)
	if err != nil {
		return err
	}
	if densityVCF {
		fmt.Printf("VCF:        %.7f\n", res.Value)
	} else {
		fmt.Printf("Process:    %.4f kg/m³ @%.2f °C\n", rho, densityTemp)
		fmt.Printf("Reference:  %.4f kg/m³ @%s\n", res.Value, base)
		if base == api.Base60F {
			fmt.Printf("Gravity:    %.2f °API\n", api.KgM3ToAPI(res.Value))
		}
		fmt.Printf("VCF:        %.7f\n", res.VCF)
	}
	printSolveStatus(table, res.SubRange, res.Status)
	fmt.Printf("Iterations: %d (%d restarts)\n", res.Iterations, res.Restarts)
	return nil
}

func printSolveStatus(table api.Table, set api.SubRange, st api.Status) {
	fmt.Printf("Status:     %s\n", st)
	if table == api.TableB {
		fmt.Printf("Sub-range:  %s\n", subRangeName(set))
	}
}

func subRangeName(s api.SubRange) string {
	switch s {
	case api.SubRangeFuelOil:
		return "fuel oil"
	case api.SubRangeJet:
		return "jet"
	case api.SubRangeTransition:
		return "transition"
	case api.SubRangeGasoline:
		return "gasoline"
	}
	return "auto"
}

func runSimpleDensity(rho float64) error {
	if densityToProcess {
		out := api.DensityAtTemp(rho, densityTemp)
		if out == api.ErrorValue {
			return fmt.Errorf("invalid density %.4f", rho)
		}
		fmt.Printf("Reference:  %.4f kg/m³ @15C\n", rho)
		fmt.Printf("Process:    %.4f kg/m³ @%.2f °C\n", out, densityTemp)
		return nil
	}

	out, err := api.DensityAt15C(rho, densityTemp)
	if err != nil {
		return err
	}
	fmt.Printf("Process:    %.4f kg/m³ @%.2f °C\n", rho, densityTemp)
	fmt.Printf("Reference:  %.4f kg/m³ @15C\n", out)
	return nil
}
