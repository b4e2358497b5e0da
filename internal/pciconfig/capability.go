package pciconfig

import (
	"encoding/binary"

	"github.com/pcileech-tools/donorgen/internal/errs"
)

// Standard PCI Capability IDs.
const (
	CapIDPowerManagement   uint8 = 0x01
	CapIDAGP               uint8 = 0x02
	CapIDVPD               uint8 = 0x03
	CapIDSlotID            uint8 = 0x04
	CapIDMSI               uint8 = 0x05
	CapIDCompactPCIHotSwap uint8 = 0x06
	CapIDPCIX              uint8 = 0x07
	CapIDHyperTransport    uint8 = 0x08
	CapIDVendorSpecific    uint8 = 0x09
	CapIDDebugPort         uint8 = 0x0A
	CapIDCompactPCI        uint8 = 0x0B
	CapIDPCIHotPlug        uint8 = 0x0C
	CapIDBridgeSubsysVID   uint8 = 0x0D
	CapIDAGP8x             uint8 = 0x0E
	CapIDSecureDevice      uint8 = 0x0F
	CapIDPCIExpress        uint8 = 0x10
	CapIDMSIX              uint8 = 0x11
	CapIDSATADataIndex     uint8 = 0x12
	CapIDAdvancedFeatures  uint8 = 0x13
	CapIDEnhancedAlloc     uint8 = 0x14
	CapIDFlatteningPortal  uint8 = 0x15
)

// Extended PCI Capability IDs (PCIe extended config space).
const (
	ExtCapIDAER                uint16 = 0x0001
	ExtCapIDVCNoMFVC           uint16 = 0x0002
	ExtCapIDDeviceSerialNumber uint16 = 0x0003
	ExtCapIDPowerBudgeting     uint16 = 0x0004
	ExtCapIDRCLinkDeclaration  uint16 = 0x0005
	ExtCapIDMFVC               uint16 = 0x0008
	ExtCapIDVC                 uint16 = 0x0009
	ExtCapIDVendorSpecific     uint16 = 0x000B
	ExtCapIDACS                uint16 = 0x000D
	ExtCapIDARI                uint16 = 0x000E
	ExtCapIDATS                uint16 = 0x000F
	ExtCapIDSRIOV              uint16 = 0x0010
	ExtCapIDMRIOV              uint16 = 0x0011
	ExtCapIDMulticast          uint16 = 0x0012
	ExtCapIDPageRequest        uint16 = 0x0013
	ExtCapIDResizableBAR       uint16 = 0x0015
	ExtCapIDDPA                uint16 = 0x0016
	ExtCapIDTPHRequester       uint16 = 0x0017
	ExtCapIDLTR                uint16 = 0x0018
	ExtCapIDSecondaryPCIe      uint16 = 0x0019
	ExtCapIDPMUX               uint16 = 0x001A
	ExtCapIDPASID              uint16 = 0x001B
	ExtCapIDDPC                uint16 = 0x001D
	ExtCapIDL1PMSubstates      uint16 = 0x001E
	ExtCapIDPTM                uint16 = 0x001F
)

// maxCapabilityIterations bounds the capability-chain walk so a cyclic or
// adversarial byte sequence cannot hang the parser (spec: ≤ 48 steps).
const maxCapabilityIterations = 48

// CapKind discriminates the decoded payload carried by a Capability.
type CapKind int

const (
	KindPowerManagement CapKind = iota
	KindMSI
	KindMSIX
	KindPCIeCapability
	KindVendorSpecific
	KindAER
	KindUnknown
)

// PowerManagementCap is the decoded Power Management capability payload.
type PowerManagementCap struct {
	PMCSROffset    int
	D1Supported    bool
	D2Supported    bool
	PMESupportMask uint8
}

// MSICap is the decoded MSI capability payload.
type MSICap struct {
	Is64Bit             bool
	MultiMessageCapable uint8
	PerVectorMasking    bool
}

// MSIXCap is the decoded MSI-X capability payload (raw, pre-cross-check).
type MSIXCap struct {
	TableSize    uint16 // num_vectors - 1, 11 bits
	TableBAR     uint8
	TableOffset  uint32 // dword-aligned, 29 bits
	PBABAR       uint8
	PBAOffset    uint32
	FunctionMask bool
	Enable       bool
}

// PCIeCap is the decoded PCI Express capability payload.
type PCIeCap struct {
	MaxPayloadSupported uint8
	LinkWidth           uint8
	LinkSpeed           uint8
	MaxReadRequestSize  uint8
	ASPMSupport         uint8
}

// VendorSpecificCap carries a vendor-defined capability's raw contents.
type VendorSpecificCap struct {
	Length   uint8
	RawBytes []byte
}

// AERCap is the decoded Advanced Error Reporting extended capability.
type AERCap struct {
	UncorrectableErrorStatus uint32
	UncorrectableErrorMask   uint32
	CorrectableErrorStatus   uint32
	CorrectableErrorMask     uint32
}

// UnknownCap preserves the raw bytes of a capability this parser does not
// decode, so round-trip serialization never loses information.
type UnknownCap struct {
	ID       uint16
	RawBytes []byte
}

// Capability is a tagged-union record for one node in the standard or
// extended capability linked list.
type Capability struct {
	Offset   int `json:"offset"`
	Next     int `json:"next"`
	Extended bool `json:"extended"`
	Version  uint8 `json:"version,omitempty"` // extended capabilities only

	Kind CapKind `json:"kind"`

	PowerManagement *PowerManagementCap `json:"power_management,omitempty"`
	MSI             *MSICap             `json:"msi,omitempty"`
	MSIX            *MSIXCap            `json:"msix,omitempty"`
	PCIeCapability  *PCIeCap            `json:"pcie_capability,omitempty"`
	VendorSpecific  *VendorSpecificCap  `json:"vendor_specific,omitempty"`
	AER             *AERCap             `json:"aer,omitempty"`
	Unknown         *UnknownCap         `json:"unknown,omitempty"`

	// Truncated records that this node's declared span exceeded the
	// available configuration-space bytes. When too few bytes remained for
	// the typed decoder, the node is recorded as Unknown instead.
	Truncated bool `json:"truncated,omitempty"`
}

// CapabilityName returns a human-readable name for a standard capability ID.
func CapabilityName(id uint8) string {
	switch id {
	case CapIDPowerManagement:
		return "Power Management"
	case CapIDAGP:
		return "AGP"
	case CapIDVPD:
		return "Vital Product Data"
	case CapIDSlotID:
		return "Slot Identification"
	case CapIDMSI:
		return "MSI"
	case CapIDCompactPCIHotSwap:
		return "CompactPCI HotSwap"
	case CapIDPCIX:
		return "PCI-X"
	case CapIDHyperTransport:
		return "HyperTransport"
	case CapIDVendorSpecific:
		return "Vendor Specific"
	case CapIDDebugPort:
		return "Debug Port"
	case CapIDCompactPCI:
		return "CompactPCI"
	case CapIDPCIHotPlug:
		return "PCI Hot-Plug"
	case CapIDBridgeSubsysVID:
		return "Bridge Subsystem VID"
	case CapIDAGP8x:
		return "AGP 8x"
	case CapIDSecureDevice:
		return "Secure Device"
	case CapIDPCIExpress:
		return "PCI Express"
	case CapIDMSIX:
		return "MSI-X"
	case CapIDSATADataIndex:
		return "SATA Data/Index"
	case CapIDAdvancedFeatures:
		return "Advanced Features"
	case CapIDEnhancedAlloc:
		return "Enhanced Allocation"
	case CapIDFlatteningPortal:
		return "Flattening Portal Bridge"
	default:
		return "Unknown"
	}
}

// ExtCapabilityName returns a human-readable name for an extended capability ID.
func ExtCapabilityName(id uint16) string {
	switch id {
	case ExtCapIDAER:
		return "Advanced Error Reporting"
	case ExtCapIDVCNoMFVC:
		return "Virtual Channel (No MFVC)"
	case ExtCapIDDeviceSerialNumber:
		return "Device Serial Number"
	case ExtCapIDPowerBudgeting:
		return "Power Budgeting"
	case ExtCapIDRCLinkDeclaration:
		return "Root Complex Link Declaration"
	case ExtCapIDVendorSpecific:
		return "Vendor Specific"
	case ExtCapIDACS:
		return "Access Control Services"
	case ExtCapIDARI:
		return "Alternative Routing-ID Interpretation"
	case ExtCapIDATS:
		return "Address Translation Services"
	case ExtCapIDSRIOV:
		return "Single Root I/O Virtualization"
	case ExtCapIDResizableBAR:
		return "Resizable BAR"
	case ExtCapIDLTR:
		return "Latency Tolerance Reporting"
	case ExtCapIDSecondaryPCIe:
		return "Secondary PCI Express"
	case ExtCapIDL1PMSubstates:
		return "L1 PM Substates"
	case ExtCapIDPTM:
		return "Precision Time Measurement"
	case ExtCapIDDPC:
		return "Downstream Port Containment"
	case ExtCapIDPASID:
		return "Process Address Space ID"
	default:
		return "Unknown"
	}
}

// decodeStandardCapability dispatches on id and decodes the node's payload
// from data (which starts at the capability's own ID byte). Each known ID
// checks, via need, that data holds the bytes its decoder reads; if data is
// shorter, Truncated is set and the capability is still recorded as Unknown.
func decodeStandardCapability(id uint8, offset int, data []byte) Capability {
	c := Capability{Offset: offset}

	need := func(n int) bool { return len(data) >= n }

	switch id {
	case CapIDPowerManagement:
		if !need(8) {
			c.Truncated = true
			break
		}
		pmc := binary.LittleEndian.Uint16(data[2:4])
		c.Kind = KindPowerManagement
		c.PowerManagement = &PowerManagementCap{
			PMCSROffset:    offset + 4,
			D1Supported:    pmc&(1<<9) != 0,
			D2Supported:    pmc&(1<<10) != 0,
			PMESupportMask: uint8((pmc >> 11) & 0x1F),
		}
		return c

	case CapIDMSI:
		if !need(4) {
			c.Truncated = true
			break
		}
		ctrl := binary.LittleEndian.Uint16(data[2:4])
		c.Kind = KindMSI
		c.MSI = &MSICap{
			Is64Bit:             ctrl&(1<<7) != 0,
			MultiMessageCapable: uint8((ctrl >> 1) & 0x7),
			PerVectorMasking:    ctrl&(1<<8) != 0,
		}
		return c

	case CapIDMSIX:
		if !need(12) {
			c.Truncated = true
			break
		}
		ctrl := binary.LittleEndian.Uint16(data[2:4])
		tbl := binary.LittleEndian.Uint32(data[4:8])
		pba := binary.LittleEndian.Uint32(data[8:12])
		c.Kind = KindMSIX
		c.MSIX = &MSIXCap{
			TableSize:    ctrl & 0x7FF,
			TableBAR:     uint8(tbl & 0x7),
			TableOffset:  tbl &^ 0x7,
			PBABAR:       uint8(pba & 0x7),
			PBAOffset:    pba &^ 0x7,
			FunctionMask: ctrl&(1<<14) != 0,
			Enable:       ctrl&(1<<15) != 0,
		}
		return c

	case CapIDPCIExpress:
		if !need(16) {
			c.Truncated = true
			break
		}
		linkCap := binary.LittleEndian.Uint32(data[12:16])
		devCap := binary.LittleEndian.Uint32(data[4:8])
		c.Kind = KindPCIeCapability
		c.PCIeCapability = &PCIeCap{
			MaxPayloadSupported: uint8(devCap & 0x7),
			LinkSpeed:           uint8(linkCap & 0xF),
			LinkWidth:           uint8((linkCap >> 4) & 0x3F),
			MaxReadRequestSize:  uint8((devCap >> 12) & 0x7),
			ASPMSupport:         uint8((linkCap >> 10) & 0x3),
		}
		return c

	case CapIDVendorSpecific:
		if !need(3) {
			c.Truncated = true
			break
		}
		length := data[2]
		n := int(length)
		if n > len(data) {
			n = len(data)
		}
		raw := make([]byte, n)
		copy(raw, data[:n])
		c.Kind = KindVendorSpecific
		c.VendorSpecific = &VendorSpecificCap{Length: length, RawBytes: raw}
		return c
	}

	// Unknown or truncated: preserve whatever bytes are available.
	raw := make([]byte, len(data))
	copy(raw, data)
	c.Kind = KindUnknown
	c.Unknown = &UnknownCap{ID: uint16(id), RawBytes: raw}
	return c
}

// decodeExtendedCapability dispatches on id for extended-capability nodes.
func decodeExtendedCapability(id uint16, version uint8, offset int, data []byte) Capability {
	c := Capability{Offset: offset, Extended: true, Version: version}

	if id == ExtCapIDAER && len(data) >= 24 {
		c.Kind = KindAER
		c.AER = &AERCap{
			UncorrectableErrorStatus: binary.LittleEndian.Uint32(data[4:8]),
			UncorrectableErrorMask:   binary.LittleEndian.Uint32(data[8:12]),
			CorrectableErrorStatus:   binary.LittleEndian.Uint32(data[16:20]),
			CorrectableErrorMask:     binary.LittleEndian.Uint32(data[20:24]),
		}
		return c
	}
	if id == ExtCapIDAER {
		c.Truncated = true
	}

	raw := make([]byte, len(data))
	copy(raw, data)
	c.Kind = KindUnknown
	c.Unknown = &UnknownCap{ID: id, RawBytes: raw}
	return c
}

// ParseCapabilities walks the standard PCI capability linked list, starting
// from the Capabilities Pointer (offset 0x34), dword-aligned. It never
// mutates cs and never panics on malformed input: per-node truncation is
// recorded on the Capability, but CapabilityCycle/CapabilityOutOfRange abort
// the whole walk because they indicate the byte stream cannot be trusted.
func ParseCapabilities(cs *ConfigSpace) ([]Capability, error) {
	if !cs.HasCapabilities() {
		return nil, nil
	}

	var caps []Capability
	visited := make(map[int]bool)

	ptr := int(cs.CapabilityPointer()) & 0xFC
	iterations := 0
	for ptr != 0 {
		if iterations >= maxCapabilityIterations {
			return caps, errs.WithOffset(errs.CapabilityCycle,
				"capability chain exceeded maximum iteration bound", ptr)
		}
		iterations++

		if ptr < 0x40 || ptr >= ConfigSpaceLegacySize {
			return caps, errs.WithOffset(errs.CapabilityOutOfRange,
				"capability pointer out of legacy config space range", ptr)
		}
		if visited[ptr] {
			return caps, errs.WithOffset(errs.CapabilityCycle,
				"capability chain revisited an already-seen offset", ptr)
		}
		visited[ptr] = true

		capID := cs.ReadU8(ptr)
		nextPtr := int(cs.ReadU8(ptr+1)) & 0xFC

		capSize := 2
		if nextPtr > ptr {
			capSize = nextPtr - ptr
		} else if nextPtr == 0 {
			capSize = ConfigSpaceLegacySize - ptr
		}
		if ptr+capSize > ConfigSpaceLegacySize {
			capSize = ConfigSpaceLegacySize - ptr
		}

		node := decodeStandardCapability(capID, ptr, cs.Data[ptr:ptr+capSize])
		node.Next = nextPtr
		caps = append(caps, node)

		ptr = nextPtr
	}

	return caps, nil
}

// ParseExtCapabilities walks the PCIe extended capability linked list
// starting at offset 0x100. Same cycle protection as ParseCapabilities.
func ParseExtCapabilities(cs *ConfigSpace) ([]Capability, error) {
	if cs.Size < ConfigSpaceSize {
		return nil, nil
	}

	header := cs.ReadU32(0x100)
	if header == 0 || header == 0xFFFFFFFF {
		return nil, nil
	}

	var caps []Capability
	visited := make(map[int]bool)

	offset := 0x100
	iterations := 0
	for offset != 0 {
		if iterations >= maxCapabilityIterations {
			return caps, errs.WithOffset(errs.CapabilityCycle,
				"extended capability chain exceeded maximum iteration bound", offset)
		}
		iterations++

		if offset < 0x100 || offset >= ConfigSpaceSize {
			return caps, errs.WithOffset(errs.CapabilityOutOfRange,
				"extended capability offset out of range", offset)
		}
		if visited[offset] {
			return caps, errs.WithOffset(errs.CapabilityCycle,
				"extended capability chain revisited an already-seen offset", offset)
		}
		visited[offset] = true

		hdr := cs.ReadU32(offset)
		if hdr == 0 || hdr == 0xFFFFFFFF {
			break
		}

		capID := uint16(hdr & 0xFFFF)
		version := uint8((hdr >> 16) & 0xF)
		nextOffset := int((hdr >> 20) & 0xFFC)

		capSize := 4
		if nextOffset > offset {
			capSize = nextOffset - offset
		} else if nextOffset == 0 {
			capSize = ConfigSpaceSize - offset
		}
		if offset+capSize > ConfigSpaceSize {
			capSize = ConfigSpaceSize - offset
		}

		node := decodeExtendedCapability(capID, version, offset, cs.Data[offset:offset+capSize])
		node.Next = nextOffset
		caps = append(caps, node)

		if nextOffset == 0 {
			break
		}
		offset = nextOffset
	}

	return caps, nil
}
