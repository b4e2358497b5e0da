package profile

import "github.com/pcileech-tools/donorgen/internal/pciconfig"

// shadowConfigSpaceWords is the DWORD count of the pcileech shadow config
// space BRAM (4KB), the fixed size every writemask is emitted at regardless
// of how much of the donor's config space was actually captured.
const shadowConfigSpaceWords = 1024

// Writemask derives which bits of the shadow config space a host write may
// actually change, per capability type, so a cloned device doesn't silently
// accept writes to registers a real donor would treat as read-only or
// RW1C. The derivation is kept as a first-class DonorProfile byproduct
// rather than an output-only file, so the device-config template can
// assert it too.
type Writemask [shadowConfigSpaceWords]uint32

// DeriveWritemask computes the per-capability writemask for cs.
func DeriveWritemask(cs *pciconfig.ConfigSpace) Writemask {
	var mask Writemask

	mask[0x04/4] = 0x0000FFFF // Command register, lower 16 bits
	mask[0x0C/4] = 0x0000FF00 // Latency Timer
	mask[0x3C/4] = 0x000000FF // Interrupt Line

	for i := 0; i < 6; i++ {
		barOffset := 0x10 + i*4
		barValue := cs.BAR(i)
		if barValue == 0 {
			continue
		}
		if barValue&0x01 != 0 {
			mask[barOffset/4] = 0xFFFFFFFC // I/O BAR
		} else {
			mask[barOffset/4] = 0xFFFFFFF0 // memory BAR
		}
	}

	mask[0x30/4] = 0xFFFFF801 // Expansion ROM BAR

	if caps, err := pciconfig.ParseCapabilities(cs); err == nil {
		applyStandardWritemasks(cs, caps, &mask)
	}
	if cs.Size >= pciconfig.ConfigSpaceSize {
		if extCaps, err := pciconfig.ParseExtCapabilities(cs); err == nil {
			applyExtendedWritemasks(extCaps, &mask)
		}
	}

	return mask
}

func applyStandardWritemasks(cs *pciconfig.ConfigSpace, caps []pciconfig.Capability, mask *Writemask) {
	for _, cap := range caps {
		switch cap.Kind {
		case pciconfig.KindPowerManagement:
			if cap.Offset+4 < pciconfig.ConfigSpaceLegacySize {
				mask[(cap.Offset+4)/4] = 0x00008103 // PowerState + PME_En + PME_Status
			}
		case pciconfig.KindMSI:
			if cap.Offset < pciconfig.ConfigSpaceLegacySize {
				mask[cap.Offset/4] |= 0x00710000 // Enable + Multi-Message Enable
			}
		case pciconfig.KindMSIX:
			if cap.Offset < pciconfig.ConfigSpaceLegacySize {
				mask[cap.Offset/4] |= 0xC0000000 // Enable + Function Mask
			}
		case pciconfig.KindPCIeCapability:
			if cap.Offset+8 < pciconfig.ConfigSpaceLegacySize {
				mask[(cap.Offset+8)/4] = 0x0000FFFF // Device Control
			}
			if cap.Offset+16 < pciconfig.ConfigSpaceLegacySize {
				mask[(cap.Offset+16)/4] = 0x0000FFFF // Link Control
			}
		}
	}
}

func applyExtendedWritemasks(caps []pciconfig.Capability, mask *Writemask) {
	for _, cap := range caps {
		wordIdx := cap.Offset / 4
		if wordIdx >= len(mask) {
			continue
		}
		switch {
		case cap.Kind == pciconfig.KindAER:
			for _, delta := range []int{1, 2, 3, 4, 5} {
				if wordIdx+delta < len(mask) {
					mask[wordIdx+delta] = 0xFFFFFFFF
				}
			}
		case cap.Kind == pciconfig.KindUnknown && cap.Unknown != nil && cap.Unknown.ID == pciconfig.ExtCapIDLTR:
			if wordIdx+1 < len(mask) {
				mask[wordIdx+1] = 0xFFFFFFFF // Max Snoop/No-Snoop Latency
			}
		}
	}
}
