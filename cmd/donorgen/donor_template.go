package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pcileech-tools/donorgen/internal/errs"
	"github.com/pcileech-tools/donorgen/internal/pciconfig"
	"github.com/pcileech-tools/donorgen/internal/profile"
	"github.com/pcileech-tools/donorgen/internal/sysfs"
	"github.com/pcileech-tools/donorgen/internal/version"
)

var (
	donorTemplateBDF      string
	donorTemplateBlank    bool
	donorTemplateCompact  bool
	donorTemplateOut      string
	donorTemplateValidate string
)

var donorTemplateCmd = &cobra.Command{
	Use:   "donor-template",
	Short: "Produce or validate a donor-template override document",
	Long: `Writes a donor-template document to -o: either --blank (a
document with every field at its zero value, to be filled in by hand) or
extracted from a live donor device named by --bdf. --compact writes the
same document as a plain dump: every schema field is already minimal.

--validate reads a document and reports whether it parses as a well-formed
donor-template document, without writing anything.

Example:
  donorgen donor-template --blank -o template.json
  donorgen donor-template --bdf 0000:03:00.0 --compact -o template.json
  donorgen donor-template --validate template.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if donorTemplateValidate != "" {
			if _, err := profile.LoadFile(donorTemplateValidate); err != nil {
				return err
			}
			fmt.Printf("%s is a well-formed donor-template document\n", donorTemplateValidate)
			return nil
		}

		if donorTemplateOut == "" {
			return errs.New(errs.InputError, "-o is required unless --validate is given")
		}

		var p *profile.DonorProfile
		switch {
		case donorTemplateBlank:
			p = profile.BlankTemplate()
		case donorTemplateBDF != "":
			bdf, err := pciconfig.ParseBDF(donorTemplateBDF)
			if err != nil {
				return errs.Wrap(errs.InputError, "invalid BDF", err)
			}
			extracted, err := profile.FromExtraction(sysfs.New(), bdf, version.Version)
			if err != nil {
				return err
			}
			p = extracted
		default:
			return errs.New(errs.InputError, "either --blank or --bdf is required")
		}

		if donorTemplateCompact {
			p = profile.CompactTemplate(p)
		}

		if err := profile.SaveFile(donorTemplateOut, p); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", donorTemplateOut)
		return nil
	},
}

func init() {
	donorTemplateCmd.Flags().StringVar(&donorTemplateBDF, "bdf", "", "extract the template from a live donor device")
	donorTemplateCmd.Flags().BoolVar(&donorTemplateBlank, "blank", false, "produce a template with every field at its zero value")
	donorTemplateCmd.Flags().BoolVar(&donorTemplateCompact, "compact", false, "compact form (currently identical to a plain dump)")
	donorTemplateCmd.Flags().StringVarP(&donorTemplateOut, "output", "o", "", "output path")
	donorTemplateCmd.Flags().StringVar(&donorTemplateValidate, "validate", "", "validate an existing donor-template document instead of producing one")

	rootCmd.AddCommand(donorTemplateCmd)
}
