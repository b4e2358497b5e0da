// Package sysfs reads PCI device information from Linux sysfs: the device
// tree under /sys/bus/pci/devices, each device's config space, and its BAR
// resource windows. The root can be overridden (PCILEECH_SYSFS_ROOT, or
// NewWithRoot) so the rest of the pipeline can run against a fixture tree
// without touching the real bus.
package sysfs

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/pcileech-tools/donorgen/internal/errs"
	"github.com/pcileech-tools/donorgen/internal/pciconfig"
)

const (
	defaultRoot = "/sys/bus/pci/devices"
	envRootVar  = "PCILEECH_SYSFS_ROOT"
)

// Reader reads PCI device information from a sysfs tree rooted at root.
type Reader struct {
	root string
}

// New creates a Reader rooted at the default sysfs path, or at
// PCILEECH_SYSFS_ROOT if that environment variable is set.
func New() *Reader {
	root := defaultRoot
	if override := os.Getenv(envRootVar); override != "" {
		root = override
	}
	return &Reader{root: root}
}

// NewWithRoot creates a Reader rooted at an explicit path, bypassing the
// environment override. Used by tests and by callers that already resolved
// the root themselves.
func NewWithRoot(root string) *Reader {
	return &Reader{root: root}
}

// ScanDevices enumerates every PCI device visible under the sysfs root.
func (r *Reader) ScanDevices() ([]pciconfig.PCIDevice, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, errs.Wrap(errs.IoError, "failed to read sysfs root", err)
	}

	var devices []pciconfig.PCIDevice
	for _, entry := range entries {
		name := entry.Name()
		fullPath := filepath.Join(r.root, name)

		fi, err := os.Stat(fullPath)
		if err != nil || !fi.IsDir() {
			continue
		}

		bdf, err := pciconfig.ParseBDF(name)
		if err != nil {
			continue
		}

		dev, err := r.ReadDeviceInfo(bdf)
		if err != nil {
			continue
		}
		devices = append(devices, *dev)
	}

	return devices, nil
}

// Watch streams fsnotify events for device arrival/removal under the sysfs
// root until ctx is canceled. It powers `list-devices --watch`; the core
// build pipeline never calls it.
func (r *Reader) Watch(ctx context.Context, onChange func(event fsnotify.Event)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(errs.IoError, "failed to create sysfs watcher", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.root); err != nil {
		return errs.Wrap(errs.IoError, "failed to watch sysfs root", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			onChange(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return errs.Wrap(errs.IoError, "sysfs watcher error", err)
		}
	}
}

func (r *Reader) devicePath(bdf pciconfig.BDF) string {
	return filepath.Join(r.root, bdf.String())
}

// ReadDeviceInfo reads the handful of scalar sysfs attributes that identify
// a device, without touching its config space or resources.
func (r *Reader) ReadDeviceInfo(bdf pciconfig.BDF) (*pciconfig.PCIDevice, error) {
	devPath := r.devicePath(bdf)
	if _, err := os.Stat(devPath); err != nil {
		return nil, errs.Wrap(errs.DeviceNotFound, fmt.Sprintf("device %s not found in sysfs", bdf), err)
	}

	dev := &pciconfig.PCIDevice{BDF: bdf}

	var err error
	dev.VendorID, err = readHex16(devPath, "vendor")
	if err != nil {
		return nil, translateReadErr(err, "vendor ID")
	}
	dev.DeviceID, err = readHex16(devPath, "device")
	if err != nil {
		return nil, translateReadErr(err, "device ID")
	}

	dev.SubsysVendorID, _ = readHex16(devPath, "subsystem_vendor")
	dev.SubsysDeviceID, _ = readHex16(devPath, "subsystem_device")

	if classCode, err := readHex32(devPath, "class"); err == nil {
		dev.ClassCode = classCode & 0xFFFFFF
	}

	rev, _ := readHex8(devPath, "revision")
	dev.RevisionID = rev

	if driverLink, err := os.Readlink(filepath.Join(devPath, "driver")); err == nil {
		dev.Driver = filepath.Base(driverLink)
	}

	if iommuLink, err := os.Readlink(filepath.Join(devPath, "iommu_group")); err == nil {
		if g, err := strconv.Atoi(filepath.Base(iommuLink)); err == nil {
			dev.IOMMUGroup = g
		}
	}

	return dev, nil
}

// ReadConfigSpace reads the full PCI config space from sysfs.
func (r *Reader) ReadConfigSpace(bdf pciconfig.BDF) (*pciconfig.ConfigSpace, error) {
	configPath := filepath.Join(r.devicePath(bdf), "config")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, translateReadErr(err, "config space")
	}

	cs, err := pciconfig.NewConfigSpaceFromBytes(data)
	if err != nil {
		return nil, err
	}
	return cs, nil
}

// ReadResourceFile reads BAR identity/type/size information from the sysfs
// resource file. Config-space BAR classification (I/O vs memory, 64-bit
// pairing) must already have been derived by the caller via
// pciconfig.ParseBARsFromConfigSpace and merged in with ResolveBARSizes.
func (r *Reader) ReadResourceFile(bdf pciconfig.BDF) ([]string, error) {
	resourcePath := filepath.Join(r.devicePath(bdf), "resource")

	f, err := os.Open(resourcePath)
	if err != nil {
		return nil, translateReadErr(err, "resource file")
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, nil
}

// ReadBARContent reads up to maxSize bytes of a BAR's memory-mapped region
// via its resourceN file. The behavior profiler's Sampler reads the first
// DWORD of a BAR this way at each sample tick when --profile-duration is
// nonzero.
func (r *Reader) ReadBARContent(bdf pciconfig.BDF, barIndex int, maxSize int) ([]byte, error) {
	resourcePath := filepath.Join(r.devicePath(bdf), fmt.Sprintf("resource%d", barIndex))

	f, err := os.Open(resourcePath)
	if err != nil {
		return nil, translateReadErr(err, fmt.Sprintf("BAR%d resource file", barIndex))
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, errs.Wrap(errs.IoError, fmt.Sprintf("failed to stat BAR%d resource file", barIndex), err)
	}

	readSize := int(fi.Size())
	if readSize == 0 {
		return nil, errs.Newf(errs.IoError, "BAR%d resource file is empty", barIndex)
	}
	if readSize > maxSize {
		readSize = maxSize
	}

	data := make([]byte, readSize)
	n, err := f.Read(data)
	if err != nil {
		return nil, errs.Wrap(errs.IoError, fmt.Sprintf("failed to read BAR%d content", barIndex), err)
	}
	return data[:n], nil
}

func translateReadErr(err error, what string) error {
	if os.IsPermission(err) {
		return errs.Wrap(errs.PermissionDenied, "permission denied reading "+what, err)
	}
	if os.IsNotExist(err) {
		return errs.Wrap(errs.DeviceNotFound, what+" not found", err)
	}
	return errs.Wrap(errs.IoError, "failed to read "+what, err)
}

func readHex16(devPath, name string) (uint16, error) {
	v, err := readHexFile(devPath, name, 16)
	return uint16(v), err
}

func readHex32(devPath, name string) (uint32, error) {
	v, err := readHexFile(devPath, name, 32)
	return uint32(v), err
}

func readHex8(devPath, name string) (uint8, error) {
	v, err := readHexFile(devPath, name, 8)
	return uint8(v), err
}

func readHexFile(devPath, name string, bits int) (uint64, error) {
	data, err := os.ReadFile(filepath.Join(devPath, name))
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(data)), 0, bits)
}
