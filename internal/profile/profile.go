// Package profile defines DonorProfile, the immutable in-memory aggregate
// of a donor device's identity, configuration space, BAR layout, MSI-X
// placement, and optional behavioral statistics, along with its canonical
// on-disk JSON schema.
package profile

import (
	"encoding/json"
	"time"

	"github.com/pcileech-tools/donorgen/internal/behavior"
	"github.com/pcileech-tools/donorgen/internal/errs"
	"github.com/pcileech-tools/donorgen/internal/pciconfig"
	"github.com/pcileech-tools/donorgen/internal/sysfs"
)

// Identity is the set of fields that identify a PCIe function to the host.
type Identity struct {
	VendorID          uint16 `json:"vendor_id"`
	DeviceID          uint16 `json:"device_id"`
	SubsystemVendorID uint16 `json:"subsystem_vendor_id"`
	SubsystemDeviceID uint16 `json:"subsystem_device_id"`
	ClassCode         uint32 `json:"class_code"`
	RevisionID        uint8  `json:"revision_id"`
}

// Provenance records how and when a DonorProfile was produced.
type Provenance struct {
	SourceBDF        string   `json:"source_bdf,omitempty"`
	CapturedAt       time.Time `json:"captured_at"`
	GeneratorVersion string   `json:"generator_version"`
	DurationSeconds  *float64 `json:"duration_seconds,omitempty"`
}

// DonorProfile is the canonical description of a physical device to be
// cloned. Once returned to a caller it must be treated as immutable: callers
// that need a modified profile (e.g. a donor-template override) should copy
// and construct a new value rather than mutate fields in place.
type DonorProfile struct {
	Identity        Identity                     `json:"identity"`
	ConfigSpace     *pciconfig.ConfigSpace       `json:"-"`
	Capabilities    []pciconfig.Capability       `json:"capabilities"`
	ExtCapabilities []pciconfig.Capability       `json:"ext_capabilities,omitempty"`
	Bars            [6]pciconfig.BarDescriptor   `json:"bars"`
	ExpansionROM    *pciconfig.BarDescriptor     `json:"expansion_rom,omitempty"`
	Msix            pciconfig.MsixInfo           `json:"msix"`
	Behavior        *behavior.BehaviorProfile    `json:"behavior,omitempty"`
	Writemask       Writemask                    `json:"-"`
	Provenance      Provenance                   `json:"provenance"`

	// extra holds top-level keys from a loaded donor-profile document that this
	// version of the schema does not otherwise model, so a donor-template
	// round trip never silently drops data a newer tool wrote.
	extra map[string]json.RawMessage
}

// FromExtraction reads device identity, config space, BARs, capabilities,
// and MSI-X layout from a live (or fixture) sysfs tree and
// assembles a DonorProfile. It does not populate Behavior; callers that want
// behavioral sampling run a behavior.Sampler separately and attach the result.
func FromExtraction(reader *sysfs.Reader, bdf pciconfig.BDF, generatorVersion string) (*DonorProfile, error) {
	dev, err := reader.ReadDeviceInfo(bdf)
	if err != nil {
		return nil, err
	}

	cs, err := reader.ReadConfigSpace(bdf)
	if err != nil {
		return nil, err
	}
	cs = scrubConfigSpace(cs)

	bars := pciconfig.ParseBARsFromConfigSpace(cs)
	rom := pciconfig.ParseExpansionROMFromConfigSpace(cs)
	if lines, err := reader.ReadResourceFile(bdf); err == nil {
		bars = pciconfig.ResolveBARSizes(bars, lines)
		rom = pciconfig.ResolveExpansionROMSize(rom, lines)
	}
	if err := pciconfig.ValidateBARs(bars); err != nil {
		return nil, err
	}

	caps, err := pciconfig.ParseCapabilities(cs)
	if err != nil {
		return nil, err
	}
	extCaps, err := pciconfig.ParseExtCapabilities(cs)
	if err != nil {
		return nil, err
	}

	msix, err := pciconfig.ResolveMsixInfo(caps, bars)
	if err != nil {
		return nil, err
	}

	p := &DonorProfile{
		Identity: Identity{
			VendorID:          dev.VendorID,
			DeviceID:          dev.DeviceID,
			SubsystemVendorID: dev.SubsysVendorID,
			SubsystemDeviceID: dev.SubsysDeviceID,
			ClassCode:         dev.ClassCode,
			RevisionID:        dev.RevisionID,
		},
		ConfigSpace:     cs,
		Capabilities:    caps,
		ExtCapabilities: extCaps,
		ExpansionROM:    rom,
		Msix:            msix,
		Writemask:       DeriveWritemask(cs),
		Provenance: Provenance{
			SourceBDF:        bdf.String(),
			CapturedAt:       time.Now(),
			GeneratorVersion: generatorVersion,
		},
	}

	for i := 0; i < 6 && i < len(bars); i++ {
		p.Bars[i] = bars[i]
	}

	return p, nil
}

// Validate re-checks the cross-field invariants: BAR consistency and MSI-X
// containment within its declared BAR. The render context builder calls
// this again before building a Context so a hand-edited donor template
// cannot silently smuggle an inconsistent profile through.
func (p *DonorProfile) Validate() error {
	bars := p.Bars[:]
	if err := pciconfig.ValidateBARs(bars); err != nil {
		return err
	}
	if p.Msix.Present {
		if _, err := pciconfig.ResolveMsixInfo(p.Capabilities, bars); err != nil {
			return err
		}
	}
	for i, b := range p.Bars {
		if b.Is64Bit {
			if i+1 >= 6 {
				return errs.Newf(errs.BarInvalid, "BAR%d is 64-bit but has no following slot", i)
			}
			if p.Bars[i+1].Present {
				return errs.Newf(errs.BarInvalid, "BAR%d is the upper half of a 64-bit BAR but is marked present", i+1)
			}
		}
	}
	return nil
}

// Clone returns a deep copy safe for a caller to mutate, used when applying
// a donor-template override on top of an extracted profile.
func (p *DonorProfile) Clone() *DonorProfile {
	c := *p
	if p.ConfigSpace != nil {
		c.ConfigSpace = p.ConfigSpace.Clone()
	}
	c.Capabilities = append([]pciconfig.Capability(nil), p.Capabilities...)
	c.ExtCapabilities = append([]pciconfig.Capability(nil), p.ExtCapabilities...)
	if p.ExpansionROM != nil {
		rom := *p.ExpansionROM
		c.ExpansionROM = &rom
	}
	if p.Behavior != nil {
		b := *p.Behavior
		c.Behavior = &b
	}
	if p.extra != nil {
		c.extra = make(map[string]json.RawMessage, len(p.extra))
		for k, v := range p.extra {
			c.extra[k] = v
		}
	}
	return &c
}
