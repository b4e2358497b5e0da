package pciconfig

import "testing"

func TestParseBARsFromConfigSpace(t *testing.T) {
	cs := NewConfigSpace()

	// BAR0: 32-bit memory at 0xFE000000
	cs.WriteU32(0x10, 0xFE000000)

	// BAR1: IO BAR at 0x0000E001
	cs.WriteU32(0x14, 0x0000E001)

	// BAR2: 64-bit memory, prefetchable (occupies BAR2 and BAR3)
	cs.WriteU32(0x18, 0x0000000C)
	cs.WriteU32(0x1C, 0x00000001)

	// BAR4: 32-bit memory, present after the 64-bit pair
	cs.WriteU32(0x20, 0xF0000000)

	bars := ParseBARsFromConfigSpace(cs)

	if len(bars) != 6 {
		t.Fatalf("ParseBARsFromConfigSpace() returned %d BARs, want 6", len(bars))
	}

	if bars[0].Kind != BarMemory {
		t.Errorf("BAR0 kind = %v, want BarMemory", bars[0].Kind)
	}
	if bars[0].Address != 0xFE000000 {
		t.Errorf("BAR0 address = 0x%x, want 0xFE000000", bars[0].Address)
	}

	if bars[1].Kind != BarIO {
		t.Errorf("BAR1 kind = %v, want BarIO", bars[1].Kind)
	}
	if bars[1].Address != 0x0000E000 {
		t.Errorf("BAR1 address = 0x%x, want 0xE000", bars[1].Address)
	}

	if !bars[2].Is64Bit {
		t.Error("BAR2 should be 64-bit")
	}
	if !bars[2].IsPrefetchable {
		t.Error("BAR2 should be prefetchable")
	}
	if !bars[2].ConsumesNextIndex {
		t.Error("BAR2 should consume the next index")
	}
	if bars[3].Present {
		t.Error("BAR3 (upper half of BAR2) should not be independently present")
	}
	if bars[4].Kind != BarMemory || bars[4].Address != 0xF0000000 {
		t.Errorf("BAR4 = %+v, want memory BAR at 0xF0000000 (64-bit BAR2 must not shift later slots)", bars[4])
	}
}

func TestParseExpansionROMFromConfigSpace(t *testing.T) {
	cs := NewConfigSpace()
	if rom := ParseExpansionROMFromConfigSpace(cs); rom != nil {
		t.Fatalf("ParseExpansionROMFromConfigSpace() = %+v, want nil for an all-zero register", rom)
	}

	cs.WriteU32(0x30, 0xFE800001)
	rom := ParseExpansionROMFromConfigSpace(cs)
	if rom == nil {
		t.Fatal("ParseExpansionROMFromConfigSpace() = nil, want a populated descriptor")
	}
	if !rom.Present {
		t.Error("expansion ROM enable bit is set, rom.Present should be true")
	}
	if rom.Address != 0xFE800000 {
		t.Errorf("rom.Address = 0x%x, want 0xFE800000", rom.Address)
	}
	if rom.Kind != BarMemory {
		t.Errorf("rom.Kind = %v, want BarMemory", rom.Kind)
	}
}

func TestResolveExpansionROMSize(t *testing.T) {
	rom := &BarDescriptor{Index: -1, Present: true, Kind: BarMemory, Address: 0xFE800000}
	lines := []string{
		"0x00000000fe000000 0x00000000fe0fffff 0x0040200",
		"0x0000000000000000 0x0000000000000000 0x0000000",
		"0x0000000000000000 0x0000000000000000 0x0000000",
		"0x0000000000000000 0x0000000000000000 0x0000000",
		"0x0000000000000000 0x0000000000000000 0x0000000",
		"0x0000000000000000 0x0000000000000000 0x0000000",
		"0x00000000fe800000 0x00000000fe87ffff 0x0040200", // 512KB ROM
	}

	resolved := ResolveExpansionROMSize(rom, lines)
	if resolved.SizeBytes != 0x80000 {
		t.Errorf("rom size = 0x%x, want 0x80000", resolved.SizeBytes)
	}

	if got := ResolveExpansionROMSize(nil, lines); got != nil {
		t.Errorf("ResolveExpansionROMSize(nil, ...) = %+v, want nil", got)
	}
	if got := ResolveExpansionROMSize(rom, lines[:3]); got != rom {
		t.Errorf("ResolveExpansionROMSize with a short resource file should return rom unchanged, got %+v", got)
	}
}

func TestResolveBARSizes(t *testing.T) {
	bars := []BarDescriptor{
		{Index: 0, Present: true, Kind: BarMemory},
		{Index: 1, Present: true, Kind: BarIO},
	}
	lines := []string{
		"0x00000000f7d00000 0x00000000f7dfffff 0x0040200", // 1MB
		"0x0000000000006001 0x000000000000601f 0x0040101", // 31 bytes -> rounds to 32
	}

	resolved := ResolveBARSizes(bars, lines)

	if resolved[0].SizeBytes != 0x100000 {
		t.Errorf("BAR0 size = 0x%x, want 0x100000", resolved[0].SizeBytes)
	}
	if resolved[1].SizeBytes != 32 {
		t.Errorf("BAR1 size = %d, want 32 (rounded up from 31)", resolved[1].SizeBytes)
	}
}

func TestValidateBARsRejectsPrefetchableIO(t *testing.T) {
	bars := []BarDescriptor{
		{Index: 0, Present: true, Kind: BarIO, IsPrefetchable: true},
	}
	if err := ValidateBARs(bars); err == nil {
		t.Fatal("expected BarInvalid error for prefetchable I/O BAR")
	}
}

func TestValidateBARsAcceptsThree64Bit(t *testing.T) {
	bars := []BarDescriptor{
		{Index: 0, Present: true, Kind: BarMemory, Is64Bit: true},
		{Index: 2, Present: true, Kind: BarMemory, Is64Bit: true},
		{Index: 4, Present: true, Kind: BarMemory, Is64Bit: true},
	}
	if err := ValidateBARs(bars); err != nil {
		t.Fatalf("3 64-bit BARs should be valid, got %v", err)
	}
}

func TestBARSizeHuman(t *testing.T) {
	tests := []struct {
		size uint64
		want string
	}{
		{0, "0"},
		{512, "512 B"},
		{1024, "1 KB"},
		{4096, "4 KB"},
		{1048576, "1 MB"},
		{16777216, "16 MB"},
		{1073741824, "1 GB"},
	}

	for _, tt := range tests {
		b := BarDescriptor{SizeBytes: tt.size}
		if got := b.SizeHuman(); got != tt.want {
			t.Errorf("SizeHuman(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}

func TestBARString(t *testing.T) {
	absent := BarDescriptor{Index: 3}
	if absent.String() != "BAR3: [absent]" {
		t.Errorf("absent BAR string = %q", absent.String())
	}

	mem := BarDescriptor{
		Index:          0,
		Present:        true,
		Kind:           BarMemory,
		Address:        0xFE000000,
		SizeBytes:      1048576,
		IsPrefetchable: true,
	}
	s := mem.String()
	if s != "BAR0: memory at 0xfe000000, size 1 MB [prefetchable]" {
		t.Errorf("memory BAR string = %q", s)
	}
}
