package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pcileech-tools/donorgen/internal/color"
	"github.com/pcileech-tools/donorgen/internal/errs"
)

var rootCmd = &cobra.Command{
	Use:   "donorgen",
	Short: "PCILeech FPGA bitstream input generator",
	Long: `donorgen clones a donor PCIe device's identity into the inputs a
PCILeech FPGA bitstream build needs: configuration-space identity, BAR
layout, MSI-X placement, and the template-rendered hardware/build sources
that carry that identity into a Vivado project.

This tool requires Linux sysfs access to the donor device; no driver binding
or IOMMU group manipulation is performed.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.Fail(err.Error()))
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a returned error to the process exit status documented
// per command: a structured *errs.Error carries its own code, anything else
// is an unclassified failure.
func exitCodeFor(err error) int {
	var e *errs.Error
	for cur := err; cur != nil; {
		if ae, ok := cur.(*errs.Error); ok {
			e = ae
			break
		}
		u, ok := cur.(interface{ Unwrap() error })
		if !ok {
			break
		}
		cur = u.Unwrap()
	}
	if e != nil {
		return e.ExitCode()
	}
	return 1
}
