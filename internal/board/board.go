// Package board provides PCILeech FPGA board definitions and discovery.
package board

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// IPFamily selects which Xilinx IP configuration template family a board
// renders against.
type IPFamily string

const (
	PCIe7Series IPFamily = "pcie7x"
	UltraScale  IPFamily = "ultrascale"
)

// Board represents a supported PCILeech FPGA board (or board variant).
type Board struct {
	Name              string   `json:"name" yaml:"name"`                               // canonical board name (unique key)
	FPGAPart          string   `json:"fpga_part" yaml:"fpga_part"`                     // Xilinx FPGA part number (e.g. xc7a35tfgg484-2)
	PCIeLanes         int      `json:"pcie_lanes" yaml:"pcie_lanes"`                   // number of PCIe lanes (1 or 4)
	TopModule         string   `json:"top_module" yaml:"top_module"`                   // top-level SystemVerilog module name
	ProjectDir        string   `json:"project_dir" yaml:"project_dir"`                 // top-level directory in pcileech-fpga (e.g. "CaptainDMA")
	SubDir            string   `json:"sub_dir" yaml:"sub_dir,omitempty"`               // optional subdirectory within ProjectDir (e.g. "100t484-1")
	TCLFile           string   `json:"tcl_file" yaml:"tcl_file"`                       // TCL project generation script filename
	BuildTCL          string   `json:"build_tcl" yaml:"build_tcl,omitempty"`           // TCL build script filename (defaults to "vivado_build.tcl")
	IPFamily          IPFamily `json:"ip_family" yaml:"ip_family"`                     // selects ip_config_{pcie7x,ultrascale} template
	DefaultBAR0SizeKB uint32   `json:"default_bar0_size_kb" yaml:"default_bar0_size_kb"` // fallback BAR0 size when the donor profile omits one
}

// String returns the board name.
func (b *Board) String() string {
	return b.Name
}

// SrcPath returns the path to source files for this board.
func (b *Board) SrcPath(libDir string) string {
	if b.SubDir != "" {
		return filepath.Join(libDir, b.ProjectDir, b.SubDir, "src")
	}
	return filepath.Join(libDir, b.ProjectDir, "src")
}

// IPPath returns the path to IP cores for this board.
func (b *Board) IPPath(libDir string) string {
	if b.SubDir != "" {
		return filepath.Join(libDir, b.ProjectDir, b.SubDir, "ip")
	}
	return filepath.Join(libDir, b.ProjectDir, "ip")
}

// TCLPath returns the full path to the Vivado project generation TCL script.
func (b *Board) TCLPath(libDir string) string {
	if b.SubDir != "" {
		return filepath.Join(libDir, b.ProjectDir, b.SubDir, b.TCLFile)
	}
	return filepath.Join(libDir, b.ProjectDir, b.TCLFile)
}

// BuildTCLPath returns the full path to the Vivado build TCL script.
func (b *Board) BuildTCLPath(libDir string) string {
	buildFile := b.BuildTCL
	if buildFile == "" {
		buildFile = "vivado_build.tcl"
	}
	if b.SubDir != "" {
		return filepath.Join(libDir, b.ProjectDir, b.SubDir, buildFile)
	}
	return filepath.Join(libDir, b.ProjectDir, buildFile)
}

// LibPath returns the base path for this board variant within pcileech-fpga.
func (b *Board) LibPath(libDir string) string {
	if b.SubDir != "" {
		return filepath.Join(libDir, b.ProjectDir, b.SubDir)
	}
	return filepath.Join(libDir, b.ProjectDir)
}

// registry holds all supported boards and their variants.
// Data sourced directly from pcileech-fpga submodule TCL files. All built-in
// boards render against the 7-series PCIe IP family (sp605_ft601 carries a
// Spartan-6 part); UltraScale entries are added via
// YAML overrides (LoadOverrides) without touching this table.
var registry = []Board{
	{
		Name: "PCIeSquirrel", FPGAPart: "xc7a35tfgg484-2", PCIeLanes: 1,
		TopModule: "pcileech_squirrel_top", ProjectDir: "PCIeSquirrel",
		TCLFile: "vivado_generate_project.tcl",
		IPFamily: PCIe7Series, DefaultBAR0SizeKB: 128,
	},
	{
		Name: "ScreamerM2", FPGAPart: "xc7a35tcsg325-2", PCIeLanes: 1,
		TopModule: "pcileech_screamer_m2_top", ProjectDir: "ScreamerM2",
		TCLFile: "vivado_generate_project.tcl",
		IPFamily: PCIe7Series, DefaultBAR0SizeKB: 128,
	},
	{
		Name: "pciescreamer", FPGAPart: "xc7a35tfgg484-2", PCIeLanes: 1,
		TopModule: "pcileech_pciescreamer_top", ProjectDir: "pciescreamer",
		TCLFile: "vivado_generate_project.tcl",
		IPFamily: PCIe7Series, DefaultBAR0SizeKB: 128,
	},
	{
		Name: "EnigmaX1", FPGAPart: "xc7a75tfgg484-2", PCIeLanes: 1,
		TopModule: "pcileech_enigma_x1_top", ProjectDir: "EnigmaX1",
		TCLFile: "vivado_generate_project.tcl",
		IPFamily: PCIe7Series, DefaultBAR0SizeKB: 256,
	},
	{
		Name: "CaptainDMA_M2_x1", FPGAPart: "xc7a35tcsg325-2", PCIeLanes: 1,
		TopModule: "pcileech_35t325_x1_top", ProjectDir: "CaptainDMA", SubDir: "35t325_x1",
		TCLFile: "vivado_generate_project_captaindma_m2x1.tcl",
		IPFamily: PCIe7Series, DefaultBAR0SizeKB: 128,
	},
	{
		Name: "CaptainDMA_M2_x4", FPGAPart: "xc7a35tcsg325-2", PCIeLanes: 4,
		TopModule: "pcileech_35t325_x4_top", ProjectDir: "CaptainDMA", SubDir: "35t325_x4",
		TCLFile: "vivado_generate_project_captaindma_m2x4.tcl",
		IPFamily: PCIe7Series, DefaultBAR0SizeKB: 128,
	},
	{
		Name: "CaptainDMA_35T", FPGAPart: "xc7a35tfgg484-2", PCIeLanes: 1,
		TopModule: "pcileech_35t484_x1_top", ProjectDir: "CaptainDMA", SubDir: "35t484_x1",
		TCLFile: "vivado_generate_project_captaindma_35t.tcl",
		IPFamily: PCIe7Series, DefaultBAR0SizeKB: 128,
	},
	{
		Name: "CaptainDMA_75T", FPGAPart: "xc7a75tfgg484-2", PCIeLanes: 1,
		TopModule: "pcileech_75t484_x1_top", ProjectDir: "CaptainDMA", SubDir: "75t484_x1",
		TCLFile: "vivado_generate_project_captaindma_75t.tcl",
		IPFamily: PCIe7Series, DefaultBAR0SizeKB: 256,
	},
	{
		Name: "CaptainDMA_100T", FPGAPart: "xc7a100tfgg484-2", PCIeLanes: 1,
		TopModule: "pcileech_100t484_x1_top", ProjectDir: "CaptainDMA", SubDir: "100t484-1",
		TCLFile: "vivado_generate_project_captaindma_100t.tcl",
		IPFamily: PCIe7Series, DefaultBAR0SizeKB: 256,
	},
	{
		Name: "ZDMA", FPGAPart: "xc7a100tfgg484-2", PCIeLanes: 4,
		TopModule: "pcileech_tbx4_100t_top", ProjectDir: "ZDMA",
		TCLFile: "vivado_generate_project_100t.tcl", BuildTCL: "vivado_build_100t.tcl",
		IPFamily: PCIe7Series, DefaultBAR0SizeKB: 256,
	},
	{
		Name: "GBOX", FPGAPart: "xc7a35tfgg484-2", PCIeLanes: 1,
		TopModule: "pcileech_gbox_top", ProjectDir: "GBOX",
		TCLFile: "vivado_generate_project.tcl",
		IPFamily: PCIe7Series, DefaultBAR0SizeKB: 128,
	},
	{
		Name: "NeTV2_35T", FPGAPart: "xc7a35tfgg484-2", PCIeLanes: 1,
		TopModule: "pcileech_netv2_top", ProjectDir: "NeTV2",
		TCLFile: "vivado_generate_project_35t.tcl",
		IPFamily: PCIe7Series, DefaultBAR0SizeKB: 128,
	},
	{
		Name: "NeTV2_100T", FPGAPart: "xc7a100tfgg484-2", PCIeLanes: 1,
		TopModule: "pcileech_netv2_top", ProjectDir: "NeTV2",
		TCLFile: "vivado_generate_project_100t.tcl",
		IPFamily: PCIe7Series, DefaultBAR0SizeKB: 256,
	},
	{
		Name: "ac701_ft601", FPGAPart: "xc7a200tfbg676-2", PCIeLanes: 4,
		TopModule: "pcileech_ac701_ft601_top", ProjectDir: "ac701_ft601",
		TCLFile: "vivado_generate_project.tcl",
		IPFamily: PCIe7Series, DefaultBAR0SizeKB: 256,
	},
	{
		Name: "acorn", FPGAPart: "xc7a200tfbg484-3", PCIeLanes: 4,
		TopModule: "pcileech_acorn_top", ProjectDir: "acorn_ft2232h",
		TCLFile: "vivado_generate_project_acorn.tcl",
		IPFamily: PCIe7Series, DefaultBAR0SizeKB: 256,
	},
	{
		Name: "litefury", FPGAPart: "xc7a100tfgg484-2", PCIeLanes: 4,
		TopModule: "pcileech_acorn_top", ProjectDir: "acorn_ft2232h",
		TCLFile: "vivado_generate_project_litefury.tcl",
		IPFamily: PCIe7Series, DefaultBAR0SizeKB: 256,
	},
	{
		Name: "sp605_ft601", FPGAPart: "xc6slx45tfgg484-2", PCIeLanes: 1,
		TopModule: "pcileech_top", ProjectDir: "sp605_ft601",
		TCLFile: "vivado_generate_project.tcl",
		IPFamily: PCIe7Series, DefaultBAR0SizeKB: 128,
	},
}

// overrides holds boards loaded via LoadOverrides, layered on top of registry.
var overrides []Board

// LoadOverrides reads a YAML file of board descriptors and adds them to (or
// replaces, by name) the built-in registry. This is the extension point for
// UltraScale boards and constraint-source updates without a code change.
func LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read board overrides %q: %w", path, err)
	}

	var parsed struct {
		Boards []Board `yaml:"boards"`
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse board overrides %q: %w", path, err)
	}

	overrides = parsed.Boards
	return nil
}

// Find looks up a board by name (case-insensitive), preferring overrides.
func Find(name string) (*Board, error) {
	lower := strings.ToLower(name)
	for i := range overrides {
		if strings.ToLower(overrides[i].Name) == lower {
			return &overrides[i], nil
		}
	}
	for i := range registry {
		if strings.ToLower(registry[i].Name) == lower {
			return &registry[i], nil
		}
	}
	return nil, fmt.Errorf("unknown board %q, available boards:\n%s", name, formatBoardList())
}

// formatBoardList returns a formatted list of available boards for error messages.
func formatBoardList() string {
	var sb strings.Builder
	for _, b := range All() {
		sb.WriteString(fmt.Sprintf("  %-25s %s (x%d, %s)\n", b.Name, b.FPGAPart, b.PCIeLanes, b.IPFamily))
	}
	return sb.String()
}

// ListNames returns all available board names, including overrides.
func ListNames() []string {
	all := All()
	names := make([]string, len(all))
	for i, b := range all {
		names[i] = b.Name
	}
	return names
}

// All returns all registered boards, overrides layered on top of the
// built-in registry (an override with the same name replaces the built-in).
func All() []Board {
	result := make([]Board, 0, len(registry)+len(overrides))
	seen := make(map[string]bool)
	for _, b := range overrides {
		result = append(result, b)
		seen[strings.ToLower(b.Name)] = true
	}
	for _, b := range registry {
		if !seen[strings.ToLower(b.Name)] {
			result = append(result, b)
		}
	}
	return result
}
