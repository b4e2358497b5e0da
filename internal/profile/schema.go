package profile

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pcileech-tools/donorgen/internal/behavior"
	"github.com/pcileech-tools/donorgen/internal/errs"
	"github.com/pcileech-tools/donorgen/internal/pciconfig"
)

// schemaDoc is the canonical on-disk shape: required top-level
// keys metadata/device_info, optional behavioral_profile/
// pcileech_optimizations/advanced_features. Unknown top-level keys are
// preserved on round-trip through DonorProfile.extra and marshalWithExtra;
// the Extra field here is not filled in by either direction.
type schemaDoc struct {
	Metadata             schemaMetadata         `json:"metadata"`
	DeviceInfo           schemaDeviceInfo       `json:"device_info"`
	BehavioralProfile    *behavior.BehaviorProfile `json:"behavioral_profile,omitempty"`
	PCILeechOptimizations json.RawMessage       `json:"pcileech_optimizations,omitempty"`
	AdvancedFeatures      json.RawMessage       `json:"advanced_features,omitempty"`
	Extra                 map[string]json.RawMessage `json:"-"`
}

type schemaMetadata struct {
	SourceBDF        string   `json:"source_bdf,omitempty"`
	CapturedAt       string   `json:"captured_at"`
	GeneratorVersion string   `json:"generator_version"`
	DurationSeconds  *float64 `json:"duration_seconds,omitempty"`
}

type schemaDeviceInfo struct {
	Identification schemaIdentification `json:"identification"`
	Bars           schemaBars           `json:"bars"`
}

type schemaIdentification struct {
	VendorID          uint16 `json:"vendor_id"`
	DeviceID          uint16 `json:"device_id"`
	SubsystemVendorID uint16 `json:"subsystem_vendor_id"`
	SubsystemDeviceID uint16 `json:"subsystem_device_id"`
	ClassCode         uint32 `json:"class_code"`
	RevisionID        uint8  `json:"revision_id"`
}

// schemaBar is nullable: a nil *schemaBar means "unknown — use discovered
// value", distinct from a slot written as enabled:false. MarshalSchema
// writes every non-present BAR as null, so only a hand-edited document
// carries an explicit enabled:false slot.
type schemaBar struct {
	Enabled       bool   `json:"enabled"`
	Size          uint64 `json:"size"`
	Type          string `json:"type"` // "memory" | "io"
	Prefetchable  bool   `json:"prefetchable"`
	Is64Bit       bool   `json:"64bit"`
}

type schemaBars struct {
	Bar0         *schemaBar `json:"bar0"`
	Bar1         *schemaBar `json:"bar1"`
	Bar2         *schemaBar `json:"bar2"`
	Bar3         *schemaBar `json:"bar3"`
	Bar4         *schemaBar `json:"bar4"`
	Bar5         *schemaBar `json:"bar5"`
	ExpansionROM *schemaBar `json:"expansion_rom"`
}

func barToSchema(b pciconfig.BarDescriptor) *schemaBar {
	if !b.Present {
		return nil
	}
	barType := "memory"
	if b.Kind == pciconfig.BarIO {
		barType = "io"
	}
	return &schemaBar{
		Enabled:      true,
		Size:         b.SizeBytes,
		Type:         barType,
		Prefetchable: b.IsPrefetchable,
		Is64Bit:      b.Is64Bit,
	}
}

func schemaToBar(index int, s *schemaBar) pciconfig.BarDescriptor {
	if s == nil {
		return pciconfig.BarDescriptor{Index: index}
	}
	kind := pciconfig.BarMemory
	if s.Type == "io" {
		kind = pciconfig.BarIO
	}
	return pciconfig.BarDescriptor{
		Index:          index,
		Present:        s.Enabled,
		Kind:           kind,
		SizeBytes:      s.Size,
		Is64Bit:        s.Is64Bit,
		IsPrefetchable: s.Prefetchable,
	}
}

// MarshalSchema renders p into the canonical on-disk document.
func MarshalSchema(p *DonorProfile) ([]byte, error) {
	doc := schemaDoc{
		Metadata: schemaMetadata{
			SourceBDF:        p.Provenance.SourceBDF,
			CapturedAt:       p.Provenance.CapturedAt.UTC().Format(time.RFC3339),
			GeneratorVersion: p.Provenance.GeneratorVersion,
			DurationSeconds:  p.Provenance.DurationSeconds,
		},
		DeviceInfo: schemaDeviceInfo{
			Identification: schemaIdentification{
				VendorID:          p.Identity.VendorID,
				DeviceID:          p.Identity.DeviceID,
				SubsystemVendorID: p.Identity.SubsystemVendorID,
				SubsystemDeviceID: p.Identity.SubsystemDeviceID,
				ClassCode:         p.Identity.ClassCode,
				RevisionID:        p.Identity.RevisionID,
			},
			Bars: schemaBars{
				Bar0:         barToSchema(p.Bars[0]),
				Bar1:         barToSchema(p.Bars[1]),
				Bar2:         barToSchema(p.Bars[2]),
				Bar3:         barToSchema(p.Bars[3]),
				Bar4:         barToSchema(p.Bars[4]),
				Bar5:         barToSchema(p.Bars[5]),
				ExpansionROM: func() *schemaBar {
					if p.ExpansionROM == nil {
						return nil
					}
					return barToSchema(*p.ExpansionROM)
				}(),
			},
		},
		BehavioralProfile: p.Behavior,
	}

	out, err := marshalWithExtra(doc, p.extra)
	if err != nil {
		return nil, errs.Wrap(errs.ProfileSchemaError, "marshaling donor profile", err)
	}
	return out, nil
}

// marshalWithExtra merges doc's own fields with any unrecognized top-level
// keys captured on load, so a round-trip never silently drops data a
// previous tool (or a hand-edited donor template) wrote into the file.
func marshalWithExtra(doc schemaDoc, extra map[string]json.RawMessage) ([]byte, error) {
	base, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	return json.MarshalIndent(merged, "", "  ")
}

// UnmarshalSchema parses a donor-profile document into a DonorProfile. Null BAR
// entries become zero-value (not-present) BarDescriptors; callers that need
// to distinguish "unknown" from "absent" should inspect the source JSON
// directly, as LoadOverride does.
func UnmarshalSchema(data []byte) (*DonorProfile, error) {
	var doc schemaDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(errs.ProfileSchemaError, "parsing donor profile document", err)
	}

	var knownKeys = map[string]struct{}{
		"metadata": {}, "device_info": {}, "behavioral_profile": {},
		"pcileech_optimizations": {}, "advanced_features": {},
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.Wrap(errs.ProfileSchemaError, "parsing donor profile document", err)
	}
	extra := map[string]json.RawMessage{}
	for k, v := range raw {
		if _, known := knownKeys[k]; !known {
			extra[k] = v
		}
	}

	capturedAt, _ := time.Parse(time.RFC3339, doc.Metadata.CapturedAt)

	p := &DonorProfile{
		Identity: Identity{
			VendorID:          doc.DeviceInfo.Identification.VendorID,
			DeviceID:          doc.DeviceInfo.Identification.DeviceID,
			SubsystemVendorID: doc.DeviceInfo.Identification.SubsystemVendorID,
			SubsystemDeviceID: doc.DeviceInfo.Identification.SubsystemDeviceID,
			ClassCode:         doc.DeviceInfo.Identification.ClassCode,
			RevisionID:        doc.DeviceInfo.Identification.RevisionID,
		},
		Bars: [6]pciconfig.BarDescriptor{
			schemaToBar(0, doc.DeviceInfo.Bars.Bar0),
			schemaToBar(1, doc.DeviceInfo.Bars.Bar1),
			schemaToBar(2, doc.DeviceInfo.Bars.Bar2),
			schemaToBar(3, doc.DeviceInfo.Bars.Bar3),
			schemaToBar(4, doc.DeviceInfo.Bars.Bar4),
			schemaToBar(5, doc.DeviceInfo.Bars.Bar5),
		},
		Behavior: doc.BehavioralProfile,
		Provenance: Provenance{
			SourceBDF:        doc.Metadata.SourceBDF,
			CapturedAt:       capturedAt,
			GeneratorVersion: doc.Metadata.GeneratorVersion,
			DurationSeconds:  doc.Metadata.DurationSeconds,
		},
		extra: extra,
	}
	if doc.DeviceInfo.Bars.ExpansionROM != nil {
		rom := schemaToBar(-1, doc.DeviceInfo.Bars.ExpansionROM)
		p.ExpansionROM = &rom
	}
	return p, nil
}

// LoadFile reads a donor-template override document from path.
func LoadFile(path string) (*DonorProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.IoError, "reading donor template "+path, err)
	}
	return UnmarshalSchema(data)
}

// LoadOverride reads a donor-template document from path and layers it onto
// base: identification fields always take the override's value (they are
// non-nullable integers in the schema), and each BAR slot takes the
// override's value only when that slot is non-null in the override
// document — a null BAR means "use the discovered value".
func LoadOverride(path string, base *DonorProfile) (*DonorProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.IoError, "reading donor template "+path, err)
	}

	var doc schemaDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(errs.ProfileSchemaError, "parsing donor template "+path, err)
	}

	merged := base.Clone()
	merged.Identity = Identity{
		VendorID:          doc.DeviceInfo.Identification.VendorID,
		DeviceID:          doc.DeviceInfo.Identification.DeviceID,
		SubsystemVendorID: doc.DeviceInfo.Identification.SubsystemVendorID,
		SubsystemDeviceID: doc.DeviceInfo.Identification.SubsystemDeviceID,
		ClassCode:         doc.DeviceInfo.Identification.ClassCode,
		RevisionID:        doc.DeviceInfo.Identification.RevisionID,
	}

	overrides := [6]*schemaBar{
		doc.DeviceInfo.Bars.Bar0, doc.DeviceInfo.Bars.Bar1, doc.DeviceInfo.Bars.Bar2,
		doc.DeviceInfo.Bars.Bar3, doc.DeviceInfo.Bars.Bar4, doc.DeviceInfo.Bars.Bar5,
	}
	for i, ov := range overrides {
		if ov != nil {
			merged.Bars[i] = schemaToBar(i, ov)
		}
	}
	if doc.DeviceInfo.Bars.ExpansionROM != nil {
		rom := schemaToBar(-1, doc.DeviceInfo.Bars.ExpansionROM)
		merged.ExpansionROM = &rom
	}
	return merged, nil
}

// SaveFile writes p to path in the canonical on-disk form.
func SaveFile(path string, p *DonorProfile) error {
	data, err := MarshalSchema(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Wrap(errs.IoError, "writing donor template "+path, err)
	}
	return nil
}

// BlankTemplate returns a DonorProfile with every field at its zero value,
// for `donor-template --blank`: a document a user can fill in by hand
// without having extracted a real donor first.
func BlankTemplate() *DonorProfile {
	return &DonorProfile{}
}

// CompactTemplate returns p stripped of fields that merely restate
// discovered values with no override intent — currently a no-op alias of p
// since every field in the schema is already minimal; kept distinct so
// `--compact`'s semantics can diverge from a plain dump without a call-site
// change if the schema grows optional diagnostic fields later.
func CompactTemplate(p *DonorProfile) *DonorProfile {
	return p
}
