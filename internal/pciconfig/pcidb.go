package pciconfig

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync"
)

// PCIDB holds vendor and device name mappings parsed from a pci.ids-format
// database, so a DonorProfile's raw vendor_id/device_id can be annotated with
// the friendly names vendors actually publish.
type PCIDB struct {
	Vendors map[uint16]string // vendor ID -> name
	Devices map[uint32]string // (vendor<<16 | device) -> name
}

// pciIDPaths lists the locations distributions install the pci.ids database
// under, in the same search order lspci uses.
var pciIDPaths = []string{
	"/usr/share/hwdata/pci.ids",
	"/usr/share/misc/pci.ids",
	"/usr/share/pci.ids",
}

var (
	pcidbOnce   sync.Once
	pcidbCached *PCIDB
)

// LoadPCIDB loads the host's PCI ID database, or an empty (but non-nil) PCIDB
// if none of pciIDPaths is readable. The database is parsed at most once per
// process: both `list-devices` and a build's render-context assembly call
// this, and pci.ids never changes mid-run.
func LoadPCIDB() *PCIDB {
	pcidbOnce.Do(func() {
		pcidbCached = &PCIDB{Vendors: make(map[uint16]string), Devices: make(map[uint32]string)}
		for _, path := range pciIDPaths {
			if db, err := parsePCIIDs(path); err == nil {
				pcidbCached = db
				break
			}
		}
	})
	return pcidbCached
}

// VendorName returns the vendor name, or "" if vendorID is not in the database.
func (db *PCIDB) VendorName(vendorID uint16) string {
	return db.Vendors[vendorID]
}

// DeviceName returns the device name, or "" if the (vendor, device) pair is
// not in the database.
func (db *PCIDB) DeviceName(vendorID, deviceID uint16) string {
	return db.Devices[uint32(vendorID)<<16|uint32(deviceID)]
}

// FriendlyIdentity renders a vendor/device ID pair against db as "Vendor
// Device", falling back to just the vendor name (or "" if even that is
// unknown) when the device itself isn't in the database.
func (db *PCIDB) FriendlyIdentity(vendorID, deviceID uint16) string {
	vendor := db.VendorName(vendorID)
	if vendor == "" {
		return ""
	}
	device := db.DeviceName(vendorID, deviceID)
	if device == "" {
		return vendor
	}
	return vendor + " " + device
}

// parsePCIIDs parses a pci.ids file:
//
//	VVVV  Vendor Name
//	\tDDDD  Device Name
//	\t\tSSSS SSSS  Subsystem Name   (skipped; this package never needs it)
//
// Class definitions (lines starting with "C ") terminate the vendor/device
// section, which is all this database models.
func parsePCIIDs(path string) (*PCIDB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	db := &PCIDB{
		Vendors: make(map[uint16]string),
		Devices: make(map[uint32]string),
	}

	var currentVendor uint16
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := scanner.Text()

		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if line[0] == 'C' && len(line) > 1 && line[1] == ' ' {
			break
		}
		if strings.HasPrefix(line, "\t\t") {
			continue
		}

		if strings.HasPrefix(line, "\t") {
			entry := line[1:]
			if devID, name, ok := splitIDLine(entry); ok {
				db.Devices[uint32(currentVendor)<<16|uint32(devID)] = name
			}
			continue
		}

		if vendorID, name, ok := splitIDLine(line); ok {
			currentVendor = vendorID
			db.Vendors[currentVendor] = name
		}
	}

	return db, scanner.Err()
}

// splitIDLine splits a "XXXX  Name" line into its 4-hex-digit ID and the
// trimmed name, reporting ok=false for anything too short or non-hex to be
// one of these lines.
func splitIDLine(line string) (id uint16, name string, ok bool) {
	if len(line) < 6 {
		return 0, "", false
	}
	n, err := strconv.ParseUint(line[:4], 16, 16)
	if err != nil {
		return 0, "", false
	}
	return uint16(n), strings.TrimSpace(line[4:]), true
}
