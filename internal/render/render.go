package render

import (
	"sort"

	"github.com/pcileech-tools/donorgen/internal/errs"
)

// OutputFile is one (template family member, relative output path, rendered
// bytes) triple, produced in build-plan order: the
// same Context always yields the same ordered file list and the same bytes
// per file, so the Renderer alone is enough to guarantee byte-identical
// output across runs.
type OutputFile struct {
	FamilyID string
	RelPath  string
	Content  []byte
}

// Renderer evaluates every template family member against a single Context
// and returns the ordered output file list handed to the orchestrator.
type Renderer struct {
	jobs    int
	timeout int
}

// NewRenderer returns a Renderer; jobs/timeout parameterize the Build.*
// family's synthesis/implementation run properties (0 selects the default
// of 4 jobs / 3600s timeout).
func NewRenderer(jobs, timeout int) *Renderer {
	return &Renderer{jobs: jobs, timeout: timeout}
}

// RenderAll renders the HW.* family (bounded substitution language) and the
// Build.* family (text/template) and returns every output file sorted by
// relative path, so the orchestrator's build plan is independent of map
// iteration order.
func (r *Renderer) RenderAll(ctx *Context) ([]OutputFile, error) {
	var files []OutputFile

	hwIDs := make([]string, 0, len(hwTemplates))
	for id := range hwTemplates {
		hwIDs = append(hwIDs, id)
	}
	sort.Strings(hwIDs)

	for _, id := range hwIDs {
		tmpl := hwTemplates[id]
		if tmpl.gateKey != "" && !ctx.Bool(tmpl.gateKey) {
			continue
		}
		rendered, err := Eval(tmpl.source, ctx)
		if err != nil {
			return nil, errs.Wrap(errs.TemplateRenderError, "rendering "+id, err)
		}
		files = append(files, OutputFile{
			FamilyID: id,
			RelPath:  "generated/" + tmpl.outputName,
			Content:  []byte(rendered),
		})
	}

	tclFiles, err := RenderTCLFamily(ctx, r.jobs, r.timeout)
	if err != nil {
		return nil, err
	}
	tclNames := make([]string, 0, len(tclFiles))
	for name := range tclFiles {
		tclNames = append(tclNames, name)
	}
	sort.Strings(tclNames)
	for _, name := range tclNames {
		files = append(files, OutputFile{
			FamilyID: "Build." + name,
			RelPath:  "tcl/" + name,
			Content:  []byte(tclFiles[name]),
		})
	}

	donorXDC, err := renderDonorConstraints(ctx)
	if err != nil {
		return nil, err
	}
	files = append(files, OutputFile{
		FamilyID: "Build.constraints",
		RelPath:  "constraints/donor.xdc",
		Content:  []byte(donorXDC),
	})

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}
