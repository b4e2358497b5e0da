// Package render builds a RenderContext from a DonorProfile and
// BoardDescriptor, then renders the template families over it: a bounded,
// non-Turing-complete substitution language for hardware-description
// templates, and text/template for the TCL build-script family.
package render

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/pcileech-tools/donorgen/internal/behavior"
	"github.com/pcileech-tools/donorgen/internal/board"
	"github.com/pcileech-tools/donorgen/internal/errs"
	"github.com/pcileech-tools/donorgen/internal/pciconfig"
	"github.com/pcileech-tools/donorgen/internal/profile"
)

// Options mirrors the subset of BuildRequest.options that affects context
// construction.
type Options struct {
	EnableVariance bool
	NumSources     int // active_device_config.num_sources override; 0 = heuristic default
}

// Context is the flat, string-keyed map fed into templates. Every key has a
// documented type; the typed getters return the zero value for a missing
// key, so presence is checked with Get (as validateContext does).
type Context struct {
	values map[string]any
}

func newContext() *Context { return &Context{values: make(map[string]any)} }

func (c *Context) set(key string, v any) { c.values[key] = v }

// Get returns the raw value for key and whether it is present.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// String returns key's value as a string, or "" if absent or not a string.
func (c *Context) String(key string) string {
	if v, ok := c.values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Bool returns key's value as a bool, or false if absent.
func (c *Context) Bool(key string) bool {
	if v, ok := c.values[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// Uint64 returns key's value as a uint64, or 0 if absent.
func (c *Context) Uint64(key string) uint64 {
	if v, ok := c.values[key]; ok {
		switch n := v.(type) {
		case uint64:
			return n
		case uint32:
			return uint64(n)
		case int:
			return uint64(n)
		}
	}
	return 0
}

// Keys returns every key currently set, for diagnostics and cross-checks.
func (c *Context) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	return keys
}

// hexPad formats v as lowercase hex, zero-padded to width hex digits.
func hexPad(v uint64, width int) string {
	return fmt.Sprintf("%0*x", width, v)
}

// BuildContext turns a DonorProfile + Board + options into a Context for
// the renderer. Its only I/O is the read of the host's PCI ID database for
// the header's friendly donor name.
func BuildContext(p *profile.DonorProfile, b *board.Board, opts Options) (*Context, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	ctx := newContext()

	// device.*
	ctx.set("device.vendor_id", hexPad(uint64(p.Identity.VendorID), 4))
	ctx.set("device.device_id", hexPad(uint64(p.Identity.DeviceID), 4))
	ctx.set("device.subsystem_vendor_id", hexPad(uint64(p.Identity.SubsystemVendorID), 4))
	ctx.set("device.subsystem_device_id", hexPad(uint64(p.Identity.SubsystemDeviceID), 4))
	ctx.set("device.class_code", hexPad(uint64(p.Identity.ClassCode), 6))
	ctx.set("device.revision_id", hexPad(uint64(p.Identity.RevisionID), 2))

	// bars[i].*
	for i, bar := range p.Bars {
		prefix := fmt.Sprintf("bars[%d].", i)
		ctx.set(prefix+"present", bar.Present)
		ctx.set(prefix+"size", bar.SizeBytes)
		ctx.set(prefix+"is_memory", bar.Kind == pciconfig.BarMemory)
		ctx.set(prefix+"is_prefetchable", bar.IsPrefetchable)
		ctx.set(prefix+"is_64bit", bar.Is64Bit)
	}

	// device.writemask[i] — one 32-bit mask word per config-space DWORD,
	// derived per-capability so a cloned device never accepts a host write
	// to a register a real donor would treat as read-only or RW1C.
	for i, w := range p.Writemask {
		ctx.set(fmt.Sprintf("writemask[%d].", i)+"value", hexPad(uint64(w), 8))
	}

	// msix.*
	msix := p.Msix
	if !msix.Present {
		msix = pciconfig.MsixInfo{
			Present:     false,
			NumVectors:  1,
			TableBAR:    0,
			TableOffset: 0,
			PBABAR:      0,
			PBAOffset:   2048,
		}
	}
	ctx.set("msix.present", p.Msix.Present)
	ctx.set("msix.num_vectors", uint64(msix.NumVectors))
	ctx.set("msix.table_bar", uint64(msix.TableBAR))
	ctx.set("msix.table_offset", uint64(msix.TableOffset))
	ctx.set("msix.pba_bar", uint64(msix.PBABAR))
	ctx.set("msix.pba_offset", uint64(msix.PBAOffset))
	ctx.set("msix.table_size_minus_one", uint64(msix.NumVectors-1))

	// board.*
	ctx.set("board.name", b.Name)
	ctx.set("board.fpga_part", b.FPGAPart)
	ctx.set("board.pcie_lanes", uint64(b.PCIeLanes))
	ctx.set("board.top_module", b.TopModule)
	ctx.set("pcie.ip_family", string(b.IPFamily))

	// active_device_config.* — board + device class heuristics, overridable.
	numSources := numSourcesForClass(p.Identity.ClassCode)
	if opts.NumSources > 0 {
		numSources = opts.NumSources
	}
	ctx.set("active_device_config.num_sources", uint64(numSources))
	ctx.set("active_device_config.enable_variance", opts.EnableVariance)
	ctx.set("active_device_config.bar0_size_kb", uint64(b.DefaultBAR0SizeKB))

	if opts.EnableVariance {
		class := behavior.DeviceClassForIdentity(p.Identity.ClassCode)
		model := behavior.DefaultVarianceModel(class)
		ctx.set("active_device_config.clock_jitter_percent", model.ClockJitterPercent)
		ctx.set("active_device_config.operating_temp_c", model.OperatingTempC)
		ctx.set("active_device_config.effective_clock_period_ns", model.EffectiveClockPeriodNs)
	}

	// advanced.*.enabled — each HW.advanced.* module is only meaningful (and
	// only rendered) when the donor actually carries the capability or mode
	// it shadows, so a feature-off donor never gets dangling signals.
	ctx.set("advanced.power_mgmt.enabled", hasCapability(p.Capabilities, pciconfig.KindPowerManagement))
	ctx.set("advanced.error.enabled", hasCapability(p.ExtCapabilities, pciconfig.KindAER))
	ctx.set("advanced.perf_counters.enabled", p.Behavior != nil)
	ctx.set("advanced.clock_xing.enabled", opts.EnableVariance)

	// header (provenance banner)
	ctx.set("header.generator_version", p.Provenance.GeneratorVersion)
	ctx.set("header.board_name", b.Name)
	ctx.set("header.source_bdf", p.Provenance.SourceBDF)
	ctx.set("header.donor_identity_hash", donorIdentityHash(p.Identity))
	friendlyName := friendlyDonorName(p.Identity)
	ctx.set("header.donor_friendly_name", friendlyName)
	ctx.set("header.has_friendly_name", friendlyName != "")

	if err := validateContext(ctx, p, msix); err != nil {
		return nil, err
	}
	return ctx, nil
}

// donorIdentityHash derives the short, stable fingerprint a provenance
// header embeds alongside generator_version and board_name: a
// sha256 over the identity fields that define what was cloned, truncated to
// 16 hex characters since it exists to let a human spot a mismatched rebuild,
// not to serve as a cryptographic commitment.
func donorIdentityHash(id profile.Identity) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%04x:%04x:%04x:%04x:%06x:%02x",
		id.VendorID, id.DeviceID, id.SubsystemVendorID, id.SubsystemDeviceID,
		id.ClassCode, id.RevisionID)))
	return hex.EncodeToString(sum[:])[:16]
}

// friendlyDonorName looks id's vendor/device up in the host's PCI ID
// database so the generated header banner can carry a human-readable name
// alongside the raw hex identity, falling back to "" (shown as nothing) when
// the database is unavailable or doesn't recognize the donor.
func friendlyDonorName(id profile.Identity) string {
	db := pciconfig.LoadPCIDB()
	return db.FriendlyIdentity(id.VendorID, id.DeviceID)
}

// hasCapability reports whether caps contains a capability of kind.
func hasCapability(caps []pciconfig.Capability, kind pciconfig.CapKind) bool {
	for _, c := range caps {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

// numSourcesForClass applies the storage-class heuristic: mass
// storage controllers (base class 0x01) default to 8 DMA sources, everything
// else to 1.
func numSourcesForClass(classCode uint32) int {
	baseClass := (classCode >> 16) & 0xFF
	if baseClass == 0x01 {
		return 8
	}
	return 1
}

// validateContext re-checks MSI-X/BAR consistency and reports ContextInvalid
// with the missing or inconsistent keys.
func validateContext(ctx *Context, p *profile.DonorProfile, msix pciconfig.MsixInfo) error {
	var missing []string
	required := []string{
		"device.vendor_id", "device.device_id", "device.class_code",
		"msix.num_vectors", "msix.table_bar", "board.name", "board.fpga_part",
	}
	for _, key := range required {
		if _, ok := ctx.Get(key); !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return errs.WithKey(errs.ContextInvalid, "render context missing required keys", fmt.Sprint(missing))
	}

	if msix.Present {
		tableBar := int(ctx.Uint64(fmt.Sprintf("bars[%d].size", msix.TableBAR)))
		tableEnd := int(msix.TableOffset) + 16*msix.NumVectors
		if tableEnd > tableBar {
			return errs.New(errs.ContextInvalid, "msix table window exceeds its BAR after context assembly")
		}
	}
	return nil
}
