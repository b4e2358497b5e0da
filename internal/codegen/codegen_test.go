package codegen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pcileech-tools/donorgen/internal/pciconfig"
	"github.com/pcileech-tools/donorgen/internal/profile"
	"github.com/pcileech-tools/donorgen/internal/sysfs"
)

func createMockSysfs(t *testing.T) string {
	t.Helper()
	base := t.TempDir()

	devDir := filepath.Join(base, "0000:03:00.0")
	if err := os.MkdirAll(devDir, 0o755); err != nil {
		t.Fatal(err)
	}

	files := map[string]string{
		"vendor":           "0x8086\n",
		"device":           "0x1533\n",
		"class":            "0x020000\n",
		"subsystem_vendor": "0x8086\n",
		"subsystem_device": "0x0001\n",
		"revision":         "0x03\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(devDir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	configData := make([]byte, 256)
	configData[0] = 0x86
	configData[1] = 0x80
	configData[2] = 0x33
	configData[3] = 0x15
	configData[8] = 0x03
	configData[0x0B] = 0x02
	if err := os.WriteFile(filepath.Join(devDir, "config"), configData, 0o644); err != nil {
		t.Fatal(err)
	}

	resourceContent := `0x00000000fe000000 0x00000000fe0fffff 0x00040200
0x0000000000000000 0x0000000000000000 0x00000000
0x0000000000000000 0x0000000000000000 0x00000000
0x0000000000000000 0x0000000000000000 0x00000000
0x0000000000000000 0x0000000000000000 0x00000000
0x0000000000000000 0x0000000000000000 0x00000000
`
	if err := os.WriteFile(filepath.Join(devDir, "resource"), []byte(resourceContent), 0o644); err != nil {
		t.Fatal(err)
	}

	return base
}

func TestBuildProducesExpectedOutputTree(t *testing.T) {
	base := createMockSysfs(t)
	reader := sysfs.NewWithRoot(base)
	outDir := filepath.Join(t.TempDir(), "out")

	req := Request{
		BDF:              pciconfig.BDF{Domain: 0, Bus: 3, Device: 0, Function: 0},
		BoardName:        "PCIeSquirrel",
		OutputDir:        outDir,
		GeneratorVersion: "donorgen-test",
		Jobs:             2,
		Timeout:          60,
	}

	result, err := Build(reader, req)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := os.Stat(filepath.Join(outDir, "donor_info.json")); err != nil {
		t.Errorf("donor_info.json missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "generated", "pcileech_device_config.sv")); err != nil {
		t.Errorf("generated device_config missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "tcl", "master.tcl")); err != nil {
		t.Errorf("master.tcl missing: %v", err)
	}
	if result.Profile.Identity.VendorID != 0x8086 {
		t.Errorf("VendorID = 0x%04x, want 0x8086", result.Profile.Identity.VendorID)
	}
}

func TestBuildIsByteIdenticalAcrossRuns(t *testing.T) {
	base := createMockSysfs(t)
	reader := sysfs.NewWithRoot(base)

	run := func(dir string) []byte {
		req := Request{
			BDF:              pciconfig.BDF{Domain: 0, Bus: 3, Device: 0, Function: 0},
			BoardName:        "PCIeSquirrel",
			OutputDir:        dir,
			GeneratorVersion: "donorgen-test",
		}
		if _, err := Build(reader, req); err != nil {
			t.Fatalf("Build: %v", err)
		}
		data, err := os.ReadFile(filepath.Join(dir, "generated", "pcileech_device_config.sv"))
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	a := run(filepath.Join(t.TempDir(), "out1"))
	b := run(filepath.Join(t.TempDir(), "out2"))
	if string(a) != string(b) {
		t.Error("two builds from the same donor produced different output")
	}
}

func TestBuildFromDonorInfoFileNeedsNoLiveDevice(t *testing.T) {
	base := createMockSysfs(t)
	reader := sysfs.NewWithRoot(base)

	extracted, err := profile.FromExtraction(reader, pciconfig.BDF{Domain: 0, Bus: 3, Device: 0, Function: 0}, "donorgen-test")
	if err != nil {
		t.Fatalf("FromExtraction: %v", err)
	}

	infoPath := filepath.Join(t.TempDir(), "donor.json")
	if err := profile.SaveFile(infoPath, extracted); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	req := Request{
		DonorInfoFile:    infoPath,
		BoardName:        "PCIeSquirrel",
		OutputDir:        filepath.Join(t.TempDir(), "out"),
		GeneratorVersion: "donorgen-test",
	}

	result, err := Build(nil, req)
	if err != nil {
		t.Fatalf("Build from --donor-info-file: %v", err)
	}
	if result.Profile.Identity.VendorID != 0x8086 {
		t.Errorf("VendorID = 0x%04x, want 0x8086", result.Profile.Identity.VendorID)
	}
}

func TestBuildRejectsUnknownBoard(t *testing.T) {
	base := createMockSysfs(t)
	reader := sysfs.NewWithRoot(base)

	req := Request{
		BDF:              pciconfig.BDF{Domain: 0, Bus: 3, Device: 0, Function: 0},
		BoardName:        "NoSuchBoard",
		OutputDir:        filepath.Join(t.TempDir(), "out"),
		GeneratorVersion: "donorgen-test",
	}
	if _, err := Build(reader, req); err == nil {
		t.Fatal("expected error for unknown board")
	}
}
