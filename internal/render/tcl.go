package render

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/pcileech-tools/donorgen/internal/errs"
)

// tclData is the flat struct text/template executes against for the Build.*
// family. The bounded substitution language in lang.go is reserved for the
// hardware-description templates; Vivado's own TCL dialect already forces
// every build script to be closer to a fixed skeleton with a handful of
// donor-derived parameters than to a general program, so text/template's
// richer (but still non-dangerous, execution-sandboxed) feature set stays in
// use for this one family.
type tclData struct {
	BoardName string
	FPGAPart  string
	TopModule string
	IPFamily  string

	VendorID       string
	DeviceID       string
	RevisionID     string
	SubsysVendorID string
	SubsysDeviceID string
	ClassCodeBase  string
	ClassCodeSub   string
	ClassCodeIntf  string

	Bar0Enabled bool
	Bar0Size    string
	Bar0Scale   string
	Bar064bit   bool

	NumSources int
	Jobs       int
	Timeout    int
}

func tclDataFromContext(ctx *Context, jobs, timeout int) (tclData, error) {
	required := []string{
		"board.name", "board.fpga_part", "board.top_module", "pcie.ip_family",
		"device.vendor_id", "device.device_id", "device.revision_id",
		"device.subsystem_vendor_id", "device.subsystem_device_id", "device.class_code",
		"bars[0].present", "bars[0].size", "bars[0].is_64bit",
		"active_device_config.num_sources",
	}
	for _, k := range required {
		if _, ok := ctx.Get(k); !ok {
			return tclData{}, errs.WithKey(errs.TemplateRenderError, "tcl context missing required key", k)
		}
	}

	classCode := ctx.String("device.class_code")
	if len(classCode) != 6 {
		return tclData{}, errs.WithKey(errs.TemplateRenderError, "device.class_code must be a 6-digit hex string", "device.class_code")
	}

	bar0Size := ctx.Uint64("bars[0].size")
	scale, size := barSizeToTCL(bar0Size)

	if jobs <= 0 {
		jobs = 4
	}
	if timeout <= 0 {
		timeout = 3600
	}

	return tclData{
		BoardName:      ctx.String("board.name"),
		FPGAPart:       ctx.String("board.fpga_part"),
		TopModule:      ctx.String("board.top_module"),
		IPFamily:       ctx.String("pcie.ip_family"),
		VendorID:       ctx.String("device.vendor_id"),
		DeviceID:       ctx.String("device.device_id"),
		RevisionID:     ctx.String("device.revision_id"),
		SubsysVendorID: ctx.String("device.subsystem_vendor_id"),
		SubsysDeviceID: ctx.String("device.subsystem_device_id"),
		ClassCodeBase:  classCode[0:2],
		ClassCodeSub:   classCode[2:4],
		ClassCodeIntf:  classCode[4:6],
		Bar0Enabled:    ctx.Bool("bars[0].present") && bar0Size > 0,
		Bar0Size:       size,
		Bar0Scale:      scale,
		Bar064bit:      ctx.Bool("bars[0].is_64bit"),
		NumSources:     int(ctx.Uint64("active_device_config.num_sources")),
		Jobs:           jobs,
		Timeout:        timeout,
	}, nil
}

// barSizeToTCL converts a BAR size in bytes to Vivado's Scale/Size property pair.
func barSizeToTCL(sizeBytes uint64) (scale, size string) {
	if sizeBytes == 0 {
		return "Kilobytes", "4"
	}
	if sizeBytes >= 1024*1024 {
		return "Megabytes", fmt.Sprintf("%d", sizeBytes/(1024*1024))
	}
	kb := sizeBytes / 1024
	if kb < 4 {
		kb = 4
	}
	return "Kilobytes", fmt.Sprintf("%d", kb)
}

var projectSetupTmpl = template.Must(template.New("01_project_setup").Parse(`#
# {{.BoardName}} / {{.FPGAPart}} ({{.IPFamily}})
# Device: {{.VendorID}}:{{.DeviceID}} rev {{.RevisionID}}
#
set origin_dir "."
set _xil_proj_name_ "{{.BoardName}}"

create_project ${_xil_proj_name_} ./${_xil_proj_name_} -part {{.FPGAPart}}
set obj [current_project]
set_property -name "default_lib" -value "xil_defaultlib" -objects $obj
set_property -name "part" -value "{{.FPGAPart}}" -objects $obj
set_property -name "simulator_language" -value "Mixed" -objects $obj

if {[string equal [get_filesets -quiet sources_1] ""]} {
  create_fileset -srcset sources_1
}
if {[string equal [get_filesets -quiet constrs_1] ""]} {
  create_fileset -constrset constrs_1
}
if {[string equal [get_filesets -quiet sim_1] ""]} {
  create_fileset -simset sim_1
}
`))

var ipConfigPCIe7xTmpl = template.Must(template.New("02_ip_config_pcie7x").Parse(`#
# PCIe IP core configuration (7 Series)
#
set pcie_ip [get_ips -quiet pcie_7x_0]
if { $pcie_ip != "" } {
  set_property -dict [list \
    CONFIG.Device_ID            {{.DeviceID}} \
    CONFIG.Vendor_Id            {{.VendorID}} \
    CONFIG.Revision_ID          {{.RevisionID}} \
    CONFIG.Subsystem_Vendor_ID  {{.SubsysVendorID}} \
    CONFIG.Subsystem_ID         {{.SubsysDeviceID}} \
    CONFIG.Class_Code_Base      {{.ClassCodeBase}} \
    CONFIG.Class_Code_Sub       {{.ClassCodeSub}} \
    CONFIG.Class_Code_Interface {{.ClassCodeIntf}} \
  ] $pcie_ip
{{if .Bar0Enabled}}
  set_property -dict [list \
    CONFIG.Bar0_Enabled true \
    CONFIG.Bar0_Type    Memory \
    CONFIG.Bar0_Scale   {{.Bar0Scale}} \
    CONFIG.Bar0_Size    {{.Bar0Size}} \
    CONFIG.Bar0_64bit   {{if .Bar064bit}}true{{else}}false{{end}} \
  ] $pcie_ip
{{end}}
  puts "pcie_7x_0 configured: {{.VendorID}}:{{.DeviceID}}"
} else {
  puts "WARNING: pcie_7x_0 not found, skipping"
}
`))

var ipConfigUltraScaleTmpl = template.Must(template.New("02_ip_config_ultrascale").Parse(`#
# PCIe IP core configuration (UltraScale/UltraScale+)
#
set pcie_ip [get_ips -quiet pcie4_uscale_plus_0]
if { $pcie_ip == "" } {
  set pcie_ip [get_ips -quiet pcie3_uscale_plus_0]
}
if { $pcie_ip != "" } {
  set_property -dict [list \
    CONFIG.PF0_DEVICE_ID_mqdma            {{.DeviceID}} \
    CONFIG.PF0_VENDOR_ID                  {{.VendorID}} \
    CONFIG.PF0_REVISION_ID                {{.RevisionID}} \
    CONFIG.PF0_SUBSYSTEM_VENDOR_ID        {{.SubsysVendorID}} \
    CONFIG.PF0_SUBSYSTEM_ID               {{.SubsysDeviceID}} \
    CONFIG.PF0_CLASS_CODE_BASE            {{.ClassCodeBase}} \
    CONFIG.PF0_CLASS_CODE_SUB             {{.ClassCodeSub}} \
    CONFIG.PF0_CLASS_CODE_INTERFACE       {{.ClassCodeIntf}} \
  ] $pcie_ip
{{if .Bar0Enabled}}
  set_property -dict [list \
    CONFIG.BAR0_SCALE    {{.Bar0Scale}} \
    CONFIG.BAR0_SIZE     {{.Bar0Size}} \
    CONFIG.BAR0_64BIT    {{if .Bar064bit}}true{{else}}false{{end}} \
  ] $pcie_ip
{{end}}
  puts "UltraScale PCIe IP configured: {{.VendorID}}:{{.DeviceID}}"
} else {
  puts "WARNING: UltraScale PCIe IP core not found, skipping"
}
`))

var addSourcesTmpl = template.Must(template.New("03_add_sources").Parse(`#
# Source import
#
set obj [get_filesets sources_1]
set sv_files [glob -nocomplain "./generated/*.sv"]
set svh_files [glob -nocomplain "./generated/*.svh"]
set all_src [concat $sv_files $svh_files]
if {[llength $all_src] > 0} {
  import_files -fileset sources_1 $all_src
}
foreach f [get_files -of_objects [get_filesets sources_1] -filter {NAME =~ "*.sv"}] {
  set_property -name "file_type" -value "SystemVerilog" -objects $f
}

set coe_files [glob -nocomplain "./generated/*.coe"]
if {[llength $coe_files] > 0} {
  import_files -fileset sources_1 $coe_files
}

set_property -name "top" -value "{{.TopModule}}" -objects [get_filesets sources_1]
set_property -name "top_auto_set" -value "0" -objects [get_filesets sources_1]
`))

var constraintsTmpl = template.Must(template.New("04_constraints").Parse(`#
# Constraint import
#
set xdc_files [glob -nocomplain "./constraints/*.xdc"]
if {[llength $xdc_files] > 0} {
  import_files -fileset constrs_1 $xdc_files
  foreach f [get_files -of_objects [get_filesets constrs_1] -filter {NAME =~ "*.xdc"}] {
    set_property -name "file_type" -value "XDC" -objects $f
  }
}
set_property -name "target_part" -value "{{.FPGAPart}}" -objects [get_filesets constrs_1]
`))

var synthesisTmpl = template.Must(template.New("05_synthesis").Parse(`#
# Synthesis
#
if {[string equal [get_runs -quiet synth_1] ""]} {
  create_run -name synth_1 -part {{.FPGAPart}} -flow {Vivado Synthesis 2022} -constrset constrs_1
}
current_run -synthesis [get_runs synth_1]
launch_runs synth_1 -jobs {{.Jobs}}
wait_on_run synth_1 -timeout {{.Timeout}}
if {[get_property STATUS [get_runs synth_1]] != "synth_design Complete!"} {
  puts "ERROR: synthesis failed"
  exit 1
}
`))

var implementationTmpl = template.Must(template.New("06_implementation").Parse(`#
# Implementation
#
if {[string equal [get_runs -quiet impl_1] ""]} {
  create_run -name impl_1 -part {{.FPGAPart}} -flow {Vivado Implementation 2022} -constrset constrs_1 -parent_run synth_1
}
current_run -implementation [get_runs impl_1]
launch_runs impl_1 -to_step write_bitstream -jobs {{.Jobs}}
wait_on_run impl_1 -timeout {{.Timeout}}
if {[get_property STATUS [get_runs impl_1]] != "write_bitstream Complete!"} {
  puts "ERROR: implementation failed"
  exit 1
}
`))

var bitstreamTmpl = template.Must(template.New("07_bitstream").Parse(`#
# Bitstream post-processing
#
set bit_file [glob {{.BoardName}}/{{.BoardName}}.runs/impl_1/*.bit]
set bin_file [file rootname $bit_file].bin
write_cfgmem -format bin -interface SPIx4 -size 16 -loadbit "up 0x0 $bit_file" -file $bin_file -force
puts "Bitstream: $bit_file"
puts "Flash image: $bin_file"
`))

var masterTmpl = template.Must(template.New("master").Parse(`#
# Master build driver for {{.BoardName}} ({{.IPFamily}}, {{.NumSources}} DMA sources)
#
source "01_project_setup.tcl"
{{if eq .IPFamily "ultrascale"}}source "02_ip_config_ultrascale.tcl"
{{else}}source "02_ip_config_pcie7x.tcl"
{{end}}source "03_add_sources.tcl"
source "04_constraints.tcl"
source "05_synthesis.tcl"
source "06_implementation.tcl"
source "07_bitstream.tcl"
puts "Build complete for {{.BoardName}}."
exit 0
`))

func execTCL(t *template.Template, data tclData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", errs.Wrap(errs.TemplateRenderError, "tcl template execution failed", err)
	}
	return buf.String(), nil
}

// RenderTCLFamily renders every Build.* script for ctx, keyed by the
// basename each is written under in <out>/tcl/.
func RenderTCLFamily(ctx *Context, jobs, timeout int) (map[string]string, error) {
	data, err := tclDataFromContext(ctx, jobs, timeout)
	if err != nil {
		return nil, err
	}

	out := map[string]string{}
	steps := []struct {
		name string
		tmpl *template.Template
	}{
		{"01_project_setup.tcl", projectSetupTmpl},
		{"03_add_sources.tcl", addSourcesTmpl},
		{"04_constraints.tcl", constraintsTmpl},
		{"05_synthesis.tcl", synthesisTmpl},
		{"06_implementation.tcl", implementationTmpl},
		{"07_bitstream.tcl", bitstreamTmpl},
		{"master.tcl", masterTmpl},
	}
	if data.IPFamily == "ultrascale" {
		steps = append(steps, struct {
			name string
			tmpl *template.Template
		}{"02_ip_config_ultrascale.tcl", ipConfigUltraScaleTmpl})
	} else {
		steps = append(steps, struct {
			name string
			tmpl *template.Template
		}{"02_ip_config_pcie7x.tcl", ipConfigPCIe7xTmpl})
	}

	for _, step := range steps {
		rendered, err := execTCL(step.tmpl, data)
		if err != nil {
			return nil, err
		}
		out[step.name] = rendered
	}
	return out, nil
}
