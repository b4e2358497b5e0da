package profile

import "github.com/pcileech-tools/donorgen/internal/pciconfig"

// scrubConfigSpace clears registers that either reveal "this image was
// captured from another card" residue or that the FPGA cannot faithfully
// implement, before the config-space image reaches donor_info.json or any
// rendered template.
func scrubConfigSpace(cs *pciconfig.ConfigSpace) *pciconfig.ConfigSpace {
	scrubbed := cs.Clone()

	scrubbed.WriteU8(0x0F, 0x00) // BIST — the FPGA cannot run the donor's self-test
	scrubbed.WriteU8(0x3C, 0x00) // Interrupt Line — assigned by the host at runtime
	scrubbed.WriteU8(0x0D, 0x00) // Latency Timer — not meaningful on PCIe
	scrubbed.WriteU8(0x0C, 0x00) // Cache Line Size — set by the OS

	cmd := scrubbed.Command() & 0x0547 // IO/Mem space, Bus Master, Parity Error Response
	scrubbed.WriteU16(0x04, cmd)

	status := scrubbed.Status() & 0x06F0 // keep capability-list + speed bits, clear error bits
	scrubbed.WriteU16(0x06, status)

	caps, err := pciconfig.ParseCapabilities(scrubbed)
	if err == nil {
		scrubStandardCapabilities(scrubbed, caps)
	}

	if scrubbed.Size >= pciconfig.ConfigSpaceSize {
		extCaps, err := pciconfig.ParseExtCapabilities(scrubbed)
		if err == nil {
			scrubExtendedCapabilities(scrubbed, extCaps)
		}
	}

	return scrubbed
}

func scrubStandardCapabilities(cs *pciconfig.ConfigSpace, caps []pciconfig.Capability) {
	for _, cap := range caps {
		switch cap.Kind {
		case pciconfig.KindPCIeCapability:
			if cap.Offset+10 < pciconfig.ConfigSpaceLegacySize {
				cs.WriteU16(cap.Offset+10, 0x0000) // Device Status: clear all RW1C bits
			}
			if cap.Offset+18 < pciconfig.ConfigSpaceLegacySize {
				lstatus := cs.ReadU16(cap.Offset+18) & 0x3FFF // clear the RW1C bandwidth-status bits 14-15
				cs.WriteU16(cap.Offset+18, lstatus)
			}
		case pciconfig.KindPowerManagement:
			if cap.Offset+4 < pciconfig.ConfigSpaceLegacySize {
				pmcsr := cs.ReadU16(cap.Offset + 4)
				pmcsr &= 0xFFFC // PowerState -> D0
				pmcsr &= 0x7FFF // clear PME_Status
				pmcsr |= 0x0008 // NoSoftReset: the FPGA preserves state across D3hot->D0
				cs.WriteU16(cap.Offset+4, pmcsr)
			}
		}
	}
}

func scrubExtendedCapabilities(cs *pciconfig.ConfigSpace, caps []pciconfig.Capability) {
	for _, cap := range caps {
		if cap.Kind != pciconfig.KindAER {
			continue
		}
		if cap.Offset+8 <= pciconfig.ConfigSpaceSize {
			cs.WriteU32(cap.Offset+4, 0) // Uncorrectable Error Status
		}
		if cap.Offset+20 <= pciconfig.ConfigSpaceSize {
			cs.WriteU32(cap.Offset+16, 0) // Correctable Error Status
		}
		if cap.Offset+32 <= pciconfig.ConfigSpaceSize {
			cs.WriteU32(cap.Offset+28, 0) // first Header Log DWORD
		}
	}
}
