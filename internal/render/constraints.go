package render

import (
	"bytes"
	"text/template"

	"github.com/pcileech-tools/donorgen/internal/errs"
)

// donorConstraintsTmpl renders the donor-specific XDC that the TCL project script
// imports alongside any board-vendor XDC already present in the board's
// source tree. It carries only the properties that are derived from the
// donor profile and board selection, not the board's own pin mapping.
var donorConstraintsTmpl = template.Must(template.New("donor-constraints").Parse(`# Generated by {{.GeneratorVersion}} for {{.BoardName}} ({{.FPGAPart}})
# Donor identity hash: {{.DonorIdentityHash}}
#
# Board-vendor pin mapping is supplied separately by the board's own XDC
# files under its source tree; this file only carries constraints derived
# from the donor profile and board selection.

set_property CONFIG.PL_LINK_CAP_MAX_LINK_WIDTH X{{.PCIeLanes}} [get_ips *pcie*]
`))

type constraintsData struct {
	GeneratorVersion  string
	BoardName         string
	FPGAPart          string
	DonorIdentityHash string
	PCIeLanes         uint64
}

// renderDonorConstraints produces the single donor-derived XDC file placed
// under <out>/constraints/, satisfying the output tree's constraints/
// directory without needing the external board-pinout XDC the
// cache package fetches separately.
func renderDonorConstraints(ctx *Context) (string, error) {
	data := constraintsData{
		GeneratorVersion:  ctx.String("header.generator_version"),
		BoardName:         ctx.String("board.name"),
		FPGAPart:          ctx.String("board.fpga_part"),
		DonorIdentityHash: ctx.String("header.donor_identity_hash"),
		PCIeLanes:         ctx.Uint64("board.pcie_lanes"),
	}
	var buf bytes.Buffer
	if err := donorConstraintsTmpl.Execute(&buf, data); err != nil {
		return "", errs.Wrap(errs.TemplateRenderError, "rendering donor constraints", err)
	}
	return buf.String(), nil
}
