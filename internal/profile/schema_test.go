package profile

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/pcileech-tools/donorgen/internal/pciconfig"
)

func sampleProfile() *DonorProfile {
	p := &DonorProfile{
		Identity: Identity{
			VendorID: 0x1234, DeviceID: 0xABCD,
			SubsystemVendorID: 0x1234, SubsystemDeviceID: 0x0001,
			ClassCode: 0x020000, RevisionID: 0x01,
		},
		Provenance: Provenance{SourceBDF: "0000:01:00.0", GeneratorVersion: "donorgen-test"},
	}
	p.Bars[0] = pciconfig.BarDescriptor{Index: 0, Present: true, Kind: pciconfig.BarMemory, SizeBytes: 4096, Is64Bit: true}
	p.Bars[1] = pciconfig.BarDescriptor{Index: 1, Present: false}
	return p
}

func TestMarshalSchemaRoundTrip(t *testing.T) {
	p := sampleProfile()
	data, err := MarshalSchema(p)
	if err != nil {
		t.Fatalf("MarshalSchema: %v", err)
	}

	got, err := UnmarshalSchema(data)
	if err != nil {
		t.Fatalf("UnmarshalSchema: %v", err)
	}

	if got.Identity.VendorID != p.Identity.VendorID || got.Identity.DeviceID != p.Identity.DeviceID {
		t.Errorf("identity mismatch after round trip: got %+v, want %+v", got.Identity, p.Identity)
	}
	if !got.Bars[0].Present || got.Bars[0].SizeBytes != 4096 || !got.Bars[0].Is64Bit {
		t.Errorf("bar0 mismatch after round trip: %+v", got.Bars[0])
	}
	if got.Bars[1].Present {
		t.Errorf("bar1 should round-trip as not present, got %+v", got.Bars[1])
	}
}

func TestMarshalSchemaHasRequiredTopLevelKeys(t *testing.T) {
	data, err := MarshalSchema(sampleProfile())
	if err != nil {
		t.Fatalf("MarshalSchema: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"metadata", "device_info"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing required top-level key %q", key)
		}
	}
}

func TestUnmarshalSchemaPreservesUnknownKeys(t *testing.T) {
	doc := `{
		"metadata": {"generator_version": "x", "captured_at": "2026-01-01T00:00:00Z"},
		"device_info": {"identification": {"vendor_id": 1, "device_id": 2, "subsystem_vendor_id": 0, "subsystem_device_id": 0, "class_code": 0, "revision_id": 0}, "bars": {"bar0": null, "bar1": null, "bar2": null, "bar3": null, "bar4": null, "bar5": null, "expansion_rom": null}},
		"future_extension": {"some_field": 42}
	}`
	p, err := UnmarshalSchema([]byte(doc))
	if err != nil {
		t.Fatalf("UnmarshalSchema: %v", err)
	}

	out, err := MarshalSchema(p)
	if err != nil {
		t.Fatalf("MarshalSchema: %v", err)
	}
	if !strings.Contains(string(out), "future_extension") {
		t.Error("unknown top-level key was dropped on round trip")
	}
}

func TestBlankTemplateIsZeroValue(t *testing.T) {
	p := BlankTemplate()
	if p.Identity.VendorID != 0 {
		t.Error("blank template should have zero identity")
	}
}
