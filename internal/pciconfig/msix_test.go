package pciconfig

import (
	"testing"

	"github.com/pcileech-tools/donorgen/internal/errs"
)

func TestResolveMsixInfoTableOutOfBar(t *testing.T) {
	caps := []Capability{
		{Kind: KindMSIX, MSIX: &MSIXCap{
			TableSize: 0, TableBAR: 0, TableOffset: 0,
			PBABAR: 0, PBAOffset: 64,
		}},
	}
	bars := []BarDescriptor{
		{Index: 0, Present: true, Kind: BarMemory, SizeBytes: 8},
	}

	_, err := ResolveMsixInfo(caps, bars)
	if err == nil {
		t.Fatal("expected an error, MSI-X table does not fit in its BAR")
	}
	if !errs.As(err, errs.MsixTableOutOfBar) {
		t.Errorf("error = %v, want kind MsixTableOutOfBar", err)
	}
}

func TestResolveMsixInfoPbaOutOfBar(t *testing.T) {
	caps := []Capability{
		{Kind: KindMSIX, MSIX: &MSIXCap{
			TableSize: 0, TableBAR: 0, TableOffset: 0,
			PBABAR: 0, PBAOffset: 4096,
		}},
	}
	bars := []BarDescriptor{
		{Index: 0, Present: true, Kind: BarMemory, SizeBytes: 4096},
	}

	_, err := ResolveMsixInfo(caps, bars)
	if err == nil {
		t.Fatal("expected an error, MSI-X PBA does not fit in its BAR")
	}
	if !errs.As(err, errs.MsixPbaOutOfBar) {
		t.Errorf("error = %v, want kind MsixPbaOutOfBar (table and PBA lookups must not share an error kind)", err)
	}
}

func TestResolveMsixInfoPbaBarAbsent(t *testing.T) {
	caps := []Capability{
		{Kind: KindMSIX, MSIX: &MSIXCap{
			TableSize: 0, TableBAR: 0, TableOffset: 0,
			PBABAR: 2, PBAOffset: 0,
		}},
	}
	bars := []BarDescriptor{
		{Index: 0, Present: true, Kind: BarMemory, SizeBytes: 4096},
		{Index: 2, Present: false},
	}

	_, err := ResolveMsixInfo(caps, bars)
	if err == nil {
		t.Fatal("expected an error, PBA BAR is absent")
	}
	if !errs.As(err, errs.MsixPbaOutOfBar) {
		t.Errorf("error = %v, want kind MsixPbaOutOfBar even when the BAR itself is absent", err)
	}
}
