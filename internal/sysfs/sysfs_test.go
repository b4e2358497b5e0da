package sysfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pcileech-tools/donorgen/internal/pciconfig"
)

func createMockSysfs(t *testing.T) string {
	t.Helper()
	base := t.TempDir()

	devDir := filepath.Join(base, "0000:03:00.0")
	if err := os.MkdirAll(devDir, 0755); err != nil {
		t.Fatal(err)
	}

	writeFile(t, devDir, "vendor", "0x8086\n")
	writeFile(t, devDir, "device", "0x1533\n")
	writeFile(t, devDir, "class", "0x020000\n")
	writeFile(t, devDir, "subsystem_vendor", "0x8086\n")
	writeFile(t, devDir, "subsystem_device", "0x0001\n")
	writeFile(t, devDir, "revision", "0x03\n")

	configData := make([]byte, 256)
	configData[0] = 0x86
	configData[1] = 0x80
	configData[2] = 0x33
	configData[3] = 0x15
	configData[6] = 0x10
	configData[8] = 0x03
	configData[0x0B] = 0x02
	if err := os.WriteFile(filepath.Join(devDir, "config"), configData, 0644); err != nil {
		t.Fatal(err)
	}

	resourceContent := `0x00000000fe000000 0x00000000fe0fffff 0x00040200
0x0000000000001000 0x000000000000103f 0x00040101
0x0000000000000000 0x0000000000000000 0x00000000
0x0000000000000000 0x0000000000000000 0x00000000
0x0000000000000000 0x0000000000000000 0x00000000
0x0000000000000000 0x0000000000000000 0x00000000
`
	writeFile(t, devDir, "resource", resourceContent)

	return base
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestReaderScanDevices(t *testing.T) {
	base := createMockSysfs(t)
	r := NewWithRoot(base)

	devices, err := r.ScanDevices()
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 1 {
		t.Fatalf("ScanDevices() returned %d devices, want 1", len(devices))
	}

	dev := devices[0]
	if dev.VendorID != 0x8086 {
		t.Errorf("VendorID = 0x%04x, want 0x8086", dev.VendorID)
	}
	if dev.ClassCode != 0x020000 {
		t.Errorf("ClassCode = 0x%06x, want 0x020000", dev.ClassCode)
	}
}

func TestReaderReadConfigSpace(t *testing.T) {
	base := createMockSysfs(t)
	r := NewWithRoot(base)

	bdf := pciconfig.BDF{Domain: 0, Bus: 3, Device: 0, Function: 0}
	cs, err := r.ReadConfigSpace(bdf)
	if err != nil {
		t.Fatal(err)
	}
	if cs.VendorID() != 0x8086 {
		t.Errorf("VendorID = 0x%04x, want 0x8086", cs.VendorID())
	}
}

func TestReaderReadResourceFile(t *testing.T) {
	base := createMockSysfs(t)
	r := NewWithRoot(base)

	bdf := pciconfig.BDF{Domain: 0, Bus: 3, Device: 0, Function: 0}
	lines, err := r.ReadResourceFile(bdf)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) < 2 {
		t.Fatalf("ReadResourceFile returned %d lines, want at least 2", len(lines))
	}

	bars := pciconfig.ResolveBARSizes([]pciconfig.BarDescriptor{
		{Index: 0, Present: true, Kind: pciconfig.BarMemory},
	}, lines)
	if bars[0].SizeBytes != 0x100000 {
		t.Errorf("BAR0 size = 0x%x, want 0x100000", bars[0].SizeBytes)
	}
}

func TestReaderDeviceNotFound(t *testing.T) {
	base := createMockSysfs(t)
	r := NewWithRoot(base)

	bdf := pciconfig.BDF{Domain: 0, Bus: 9, Device: 9, Function: 0}
	if _, err := r.ReadDeviceInfo(bdf); err == nil {
		t.Fatal("expected error for missing device")
	}
}
