package pciconfig

import (
	"fmt"

	"github.com/pcileech-tools/donorgen/internal/errs"
)

// BarKind discriminates a BAR's address space.
type BarKind int

const (
	BarNone BarKind = iota
	BarIO
	BarMemory
)

func (k BarKind) String() string {
	switch k {
	case BarIO:
		return "io"
	case BarMemory:
		return "memory"
	default:
		return "none"
	}
}

// BarDescriptor is the decoded, size-resolved view of one Base Address
// Register slot. A 64-bit memory BAR occupies two config-space dwords;
// ConsumesNextIndex marks the low dword so callers know to skip the high one.
type BarDescriptor struct {
	Index             int     `json:"index"`
	Present           bool    `json:"present"`
	Kind              BarKind `json:"kind"`
	Address           uint64  `json:"address"`
	SizeBytes         uint64  `json:"size_bytes"`
	Is64Bit           bool    `json:"is_64bit"`
	IsPrefetchable    bool    `json:"is_prefetchable"`
	ConsumesNextIndex bool    `json:"consumes_next_index"`
}

// SizeHuman renders SizeBytes in the smallest convenient unit.
func (b *BarDescriptor) SizeHuman() string {
	switch {
	case b.SizeBytes == 0:
		return "0"
	case b.SizeBytes >= 1<<30:
		return fmt.Sprintf("%d GB", b.SizeBytes>>30)
	case b.SizeBytes >= 1<<20:
		return fmt.Sprintf("%d MB", b.SizeBytes>>20)
	case b.SizeBytes >= 1<<10:
		return fmt.Sprintf("%d KB", b.SizeBytes>>10)
	default:
		return fmt.Sprintf("%d B", b.SizeBytes)
	}
}

func (b *BarDescriptor) String() string {
	if !b.Present {
		return fmt.Sprintf("BAR%d: [absent]", b.Index)
	}
	pf := ""
	if b.IsPrefetchable {
		pf = " [prefetchable]"
	}
	return fmt.Sprintf("BAR%d: %s at 0x%x, size %s%s",
		b.Index, b.Kind, b.Address, b.SizeHuman(), pf)
}

// nextPowerOfTwo rounds n up to the nearest power of two; n == 0 stays 0.
func nextPowerOfTwo(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// ParseBARsFromConfigSpace classifies BAR identity and type from the raw
// config-space dwords. Sizes are not derivable from config space alone and
// are left at zero; call ResolveBARSizes with sysfs resource lines to fill
// them in.
func ParseBARsFromConfigSpace(cs *ConfigSpace) []BarDescriptor {
	var bars []BarDescriptor

	for i := 0; i < 6; i++ {
		raw := cs.BAR(i)
		bar := BarDescriptor{Index: i}

		if raw == 0 {
			bars = append(bars, bar)
			continue
		}

		bar.Present = true
		if raw&0x01 != 0 {
			bar.Kind = BarIO
			bar.Address = uint64(raw & 0xFFFFFFFC)
		} else {
			bar.Kind = BarMemory
			bar.IsPrefetchable = (raw & 0x08) != 0
			memType := (raw >> 1) & 0x03
			switch memType {
			case 0x00:
				bar.Address = uint64(raw & 0xFFFFFFF0)
			case 0x02:
				bar.Is64Bit = true
				bar.ConsumesNextIndex = true
				bar.Address = uint64(raw&0xFFFFFFF0) | (uint64(cs.BAR(i+1)) << 32)
			default:
				bar.Present = false
				bar.Kind = BarNone
			}
		}

		bars = append(bars, bar)
		if bar.ConsumesNextIndex && i+1 < 6 {
			bars = append(bars, BarDescriptor{Index: i + 1})
			i++
		}
	}

	return bars
}

// ParseExpansionROMFromConfigSpace decodes the Expansion ROM Base Address
// register at config-space offset 0x30: bit 0 is the Expansion ROM Enable
// bit, and bits 31:11 hold the base address (the low 11 bits are reserved,
// so a ROM is always at least 2KiB-aligned). Returns nil when the donor
// carries no expansion ROM at all, rather than a BarDescriptor with
// Present=false, since a missing ROM has no index of its own to round-trip.
func ParseExpansionROMFromConfigSpace(cs *ConfigSpace) *BarDescriptor {
	raw := cs.ExpansionROMBase()
	if raw == 0 {
		return nil
	}
	return &BarDescriptor{
		Index:   -1,
		Present: raw&0x01 != 0,
		Kind:    BarMemory,
		Address: uint64(raw & 0xFFFFF800),
	}
}

// resourceLine is one parsed "start end flags" row from a sysfs resource file.
type resourceLine struct {
	start, end, flags uint64
}

func parseResourceLine(line string) (resourceLine, bool) {
	var r resourceLine
	n, _ := fmt.Sscanf(line, "0x%x 0x%x 0x%x", &r.start, &r.end, &r.flags)
	if n != 3 {
		n, _ = fmt.Sscanf(line, "%x %x %x", &r.start, &r.end, &r.flags)
	}
	return r, n == 3
}

// ResolveBARSizes fills in SizeBytes on bars using the raw "start end flags"
// lines read from a device's sysfs resource file, rounding each size up to
// the nearest power of two as the hardware would present it to a BAR decoder.
func ResolveBARSizes(bars []BarDescriptor, resourceLines []string) []BarDescriptor {
	out := make([]BarDescriptor, len(bars))
	copy(out, bars)

	for i := range out {
		if !out[i].Present || i >= len(resourceLines) {
			continue
		}
		r, ok := parseResourceLine(resourceLines[i])
		if !ok || r.start == 0 && r.end == 0 {
			continue
		}
		size := r.end - r.start + 1
		out[i].SizeBytes = nextPowerOfTwo(size)
	}

	return out
}

// ResolveExpansionROMSize fills in rom's SizeBytes from the seventh line of
// the sysfs resource file, the one line that covers the Expansion ROM rather
// than a numbered BAR, mirroring ResolveBARSizes. A nil rom or a resource
// file with no seventh line is returned unchanged.
func ResolveExpansionROMSize(rom *BarDescriptor, resourceLines []string) *BarDescriptor {
	if rom == nil || len(resourceLines) < 7 {
		return rom
	}
	r, ok := parseResourceLine(resourceLines[6])
	if !ok || r.start == 0 && r.end == 0 {
		return rom
	}
	out := *rom
	out.SizeBytes = nextPowerOfTwo(r.end - r.start + 1)
	return &out
}

// ValidateBARs checks the cross-BAR invariants: at most three
// 64-bit BARs (they consume pairs of the six slots, so four would overflow
// the six-slot array), I/O BARs are never prefetchable, and a 32-bit memory
// BAR's size never exceeds the 4GiB address space it can describe.
func ValidateBARs(bars []BarDescriptor) error {
	sixtyFourBitCount := 0
	for _, b := range bars {
		if !b.Present {
			continue
		}
		if b.Is64Bit {
			sixtyFourBitCount++
		}
		if b.Kind == BarIO && b.IsPrefetchable {
			return errs.Newf(errs.BarInvalid, "BAR%d is I/O but marked prefetchable", b.Index)
		}
		if b.Kind == BarMemory && !b.Is64Bit && b.SizeBytes > 1<<32 {
			return errs.Newf(errs.BarInvalid, "BAR%d is 32-bit memory but size %d exceeds 4GiB", b.Index, b.SizeBytes)
		}
	}
	if sixtyFourBitCount > 3 {
		return errs.Newf(errs.BarInvalid, "device declares %d 64-bit BARs, at most 3 fit in 6 slots", sixtyFourBitCount)
	}
	return nil
}
