package profile

import (
	"testing"

	"github.com/pcileech-tools/donorgen/internal/pciconfig"
)

func TestScrubConfigSpaceClearsVolatileFields(t *testing.T) {
	cs := pciconfig.NewConfigSpace()
	cs.WriteU8(0x0F, 0xFF) // BIST
	cs.WriteU8(0x3C, 0x0B) // Interrupt Line
	cs.WriteU8(0x0D, 0xFF) // Latency Timer
	cs.WriteU16(0x06, 0xFFFF) // Status, including error bits

	scrubbed := scrubConfigSpace(cs)

	if scrubbed.BIST() != 0 {
		t.Errorf("BIST = 0x%02x, want 0", scrubbed.BIST())
	}
	if scrubbed.InterruptLine() != 0 {
		t.Errorf("InterruptLine = 0x%02x, want 0", scrubbed.InterruptLine())
	}
	if scrubbed.LatencyTimer() != 0 {
		t.Errorf("LatencyTimer = 0x%02x, want 0", scrubbed.LatencyTimer())
	}
	if scrubbed.Status()&0xF900 != 0 {
		t.Errorf("Status = 0x%04x, error bits not cleared", scrubbed.Status())
	}
}

func TestScrubConfigSpaceDoesNotMutateInput(t *testing.T) {
	cs := pciconfig.NewConfigSpace()
	cs.WriteU8(0x0F, 0xFF)

	scrubConfigSpace(cs)

	if cs.BIST() != 0xFF {
		t.Error("scrubConfigSpace mutated its input instead of cloning")
	}
}

func TestScrubConfigSpaceClearsPowerManagementPME(t *testing.T) {
	cs := pciconfig.NewConfigSpace()
	cs.WriteU16(0x06, 0x0010)
	cs.WriteU8(0x34, 0x40)
	cs.WriteU8(0x40, pciconfig.CapIDPowerManagement)
	cs.WriteU8(0x41, 0x00)
	cs.WriteU16(0x44, 0x8003) // PME_Status set, PowerState = D3hot

	scrubbed := scrubConfigSpace(cs)

	pmcsr := scrubbed.ReadU16(0x44)
	if pmcsr&0x8000 != 0 {
		t.Errorf("PME_Status not cleared: pmcsr=0x%04x", pmcsr)
	}
	if pmcsr&0x0003 != 0 {
		t.Errorf("PowerState not reset to D0: pmcsr=0x%04x", pmcsr)
	}
}
