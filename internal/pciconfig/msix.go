package pciconfig

import "github.com/pcileech-tools/donorgen/internal/errs"

// msixTableEntrySize is the size in bytes of one MSI-X table entry
// (message address lo/hi, message data, vector control).
const msixTableEntrySize = 16

// MsixInfo is the cross-validated MSI-X capability: table and PBA placement
// resolved against the BAR they live in.
type MsixInfo struct {
	Present      bool   `json:"present"`
	NumVectors   int    `json:"num_vectors"`
	TableBAR     int    `json:"table_bar"`
	TableOffset  uint32 `json:"table_offset"`
	TableSize    uint64 `json:"table_size_bytes"`
	PBABAR       int    `json:"pba_bar"`
	PBAOffset    uint32 `json:"pba_offset"`
	PBASize      uint64 `json:"pba_size_bytes"`
	FunctionMask bool   `json:"function_mask"`
	Enable       bool   `json:"enable"`
}

// ResolveMsixInfo locates the MSI-X capability among caps (if any) and
// cross-validates its table/PBA windows against the device's BARs per the
// spec: both windows must fit entirely within the BAR they claim, and the
// table and PBA windows must not overlap when they share a BAR.
func ResolveMsixInfo(caps []Capability, bars []BarDescriptor) (MsixInfo, error) {
	var msixCap *MSIXCap
	for i := range caps {
		if caps[i].Kind == KindMSIX && caps[i].MSIX != nil {
			msixCap = caps[i].MSIX
			break
		}
	}
	if msixCap == nil {
		return MsixInfo{}, nil
	}

	info := MsixInfo{
		Present:      true,
		NumVectors:   int(msixCap.TableSize) + 1,
		TableBAR:     int(msixCap.TableBAR),
		TableOffset:  msixCap.TableOffset,
		TableSize:    uint64(int(msixCap.TableSize)+1) * msixTableEntrySize,
		PBABAR:       int(msixCap.PBABAR),
		PBAOffset:    msixCap.PBAOffset,
		PBASize:      pbaSizeBytes(int(msixCap.TableSize) + 1),
		FunctionMask: msixCap.FunctionMask,
		Enable:       msixCap.Enable,
	}

	tableBar, err := barByIndex(bars, info.TableBAR, errs.MsixTableOutOfBar)
	if err != nil {
		return info, err
	}
	if uint64(info.TableOffset)+info.TableSize > tableBar.SizeBytes {
		return info, errs.Newf(errs.MsixTableOutOfBar,
			"MSI-X table at offset 0x%x size %d exceeds BAR%d size %d",
			info.TableOffset, info.TableSize, info.TableBAR, tableBar.SizeBytes)
	}

	pbaBar, err := barByIndex(bars, info.PBABAR, errs.MsixPbaOutOfBar)
	if err != nil {
		return info, err
	}
	if uint64(info.PBAOffset)+info.PBASize > pbaBar.SizeBytes {
		return info, errs.Newf(errs.MsixPbaOutOfBar,
			"MSI-X PBA at offset 0x%x size %d exceeds BAR%d size %d",
			info.PBAOffset, info.PBASize, info.PBABAR, pbaBar.SizeBytes)
	}

	if info.TableBAR == info.PBABAR && rangesOverlap(
		uint64(info.TableOffset), info.TableSize,
		uint64(info.PBAOffset), info.PBASize) {
		return info, errs.Newf(errs.MsixOverlap,
			"MSI-X table and PBA windows overlap in BAR%d", info.TableBAR)
	}

	return info, nil
}

func pbaSizeBytes(numVectors int) uint64 {
	return uint64((numVectors + 31) / 32 * 4)
}

// barByIndex looks up the BAR a capability field points at, reporting any
// miss as kind so the table and PBA lookups surface their own distinct
// error kinds instead of both collapsing onto the table's.
func barByIndex(bars []BarDescriptor, index int, kind errs.Kind) (*BarDescriptor, error) {
	for i := range bars {
		if bars[i].Index == index {
			if !bars[i].Present {
				return nil, errs.Newf(kind, "MSI-X references BAR%d which is absent", index)
			}
			return &bars[i], nil
		}
	}
	return nil, errs.Newf(kind, "MSI-X references BAR%d which does not exist", index)
}

func rangesOverlap(startA, sizeA, startB, sizeB uint64) bool {
	endA := startA + sizeA
	endB := startB + sizeB
	return startA < endB && startB < endA
}
