package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pcileech-tools/donorgen/internal/codegen"
	"github.com/pcileech-tools/donorgen/internal/color"
	"github.com/pcileech-tools/donorgen/internal/errs"
	"github.com/pcileech-tools/donorgen/internal/pciconfig"
	"github.com/pcileech-tools/donorgen/internal/sysfs"
	"github.com/pcileech-tools/donorgen/internal/version"
)

var (
	buildBDF             string
	buildDonorInfoFile   string
	buildBoard           string
	buildOut             string
	buildProfileDuration int
	buildEnableVariance  bool
	buildDonorTemplate   string
	buildOutputTemplate  string
	buildNoSynth         bool
	buildJobs            int
	buildTimeout         int
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Generate PCILeech FPGA bitstream inputs from a donor PCI device",
	Long: `Reads a donor PCI device's identity out of sysfs and renders the
hardware and Vivado build sources a PCILeech firmware image needs to carry
that identity: device_config, MSI-X layout, top-level wrapper, and the
TCL project scripts for the target board.

Example:
  donorgen build --bdf 0000:03:00.0 --board PCIeSquirrel --out ./output
  donorgen build --bdf 0000:03:00.0 --board PCIeSquirrel --out ./output --enable-variance
  donorgen build --bdf 0000:03:00.0 --board PCIeSquirrel --out ./output --donor-template overrides.json
  donorgen build --donor-info-file captured.json --board PCIeSquirrel --out ./output`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if buildBDF == "" && buildDonorInfoFile == "" {
			return errs.New(errs.InputError, "one of --bdf or --donor-info-file is required")
		}
		if buildBDF != "" && buildDonorInfoFile != "" {
			return errs.New(errs.InputError, "--bdf and --donor-info-file are mutually exclusive")
		}
		var bdf pciconfig.BDF
		if buildBDF != "" {
			parsed, err := pciconfig.ParseBDF(buildBDF)
			if err != nil {
				return errs.Wrap(errs.InputError, "invalid BDF", err)
			}
			bdf = parsed
		}
		if buildBoard == "" {
			return errs.New(errs.InputError, "--board is required")
		}

		if buildNoSynth {
			fmt.Println(color.Warn("--no-synth: TCL project scripts will be rendered but not invoked"))
		}

		req := codegen.Request{
			BDF:              bdf,
			DonorInfoFile:    buildDonorInfoFile,
			BoardName:        buildBoard,
			OutputDir:        buildOut,
			ProfileDuration:  time.Duration(buildProfileDuration) * time.Second,
			EnableVariance:   buildEnableVariance,
			DonorTemplate:    buildDonorTemplate,
			GeneratorVersion: version.Version,
			Jobs:             buildJobs,
			Timeout:          buildTimeout,
		}

		if buildDonorInfoFile != "" {
			fmt.Printf("[donorgen] target device: local profile %s\n", buildDonorInfoFile)
		} else {
			fmt.Printf("[donorgen] target device: %s\n", bdf)
		}
		fmt.Printf("[donorgen] target board: %s\n", buildBoard)

		result, err := codegen.Build(sysfs.New(), req)
		if err != nil {
			return err
		}

		fmt.Printf("[donorgen] %04x:%04x -> %s\n",
			result.Profile.Identity.VendorID, result.Profile.Identity.DeviceID, result.OutputDir)
		fmt.Printf("[donorgen] wrote %d files\n", len(result.FilesWritten))
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildBDF, "bdf", "", "donor device BDF address (e.g. 0000:03:00.0); mutually exclusive with --donor-info-file")
	buildCmd.Flags().StringVar(&buildDonorInfoFile, "donor-info-file", "", "prerecorded donor profile document to build from instead of a live device; mutually exclusive with --bdf")
	buildCmd.Flags().StringVar(&buildBoard, "board", "", "target FPGA board name (required)")
	buildCmd.Flags().StringVar(&buildOut, "out", "pcileech_out", "output directory")
	buildCmd.Flags().IntVar(&buildProfileDuration, "profile-duration", 0, "seconds to sample donor behavior before rendering (0 disables sampling)")
	buildCmd.Flags().BoolVar(&buildEnableVariance, "enable-variance", false, "apply manufacturing-variance jitter to sampled timing values")
	buildCmd.Flags().StringVar(&buildDonorTemplate, "donor-template", "", "donor-template override file; null fields fall back to the discovered value")
	buildCmd.Flags().StringVar(&buildOutputTemplate, "output-template", "", "reserved for a future custom output-layout template; currently unused")
	buildCmd.Flags().BoolVar(&buildNoSynth, "no-synth", false, "render TCL project scripts without invoking Vivado")
	buildCmd.Flags().IntVar(&buildJobs, "jobs", 4, "number of parallel synthesis jobs recorded into the TCL scripts")
	buildCmd.Flags().IntVar(&buildTimeout, "timeout", 3600, "synthesis timeout in seconds recorded into the TCL scripts")

	_ = buildCmd.MarkFlagRequired("board")

	rootCmd.AddCommand(buildCmd)
}
