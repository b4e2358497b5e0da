package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/pcileech-tools/donorgen/internal/pciconfig"
	"github.com/pcileech-tools/donorgen/internal/sysfs"
)

var listDevicesWatch bool

var listDevicesCmd = &cobra.Command{
	Use:   "list-devices",
	Short: "List PCI devices visible in sysfs",
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := sysfs.New()
		db := pciconfig.LoadPCIDB()

		devices, err := reader.ScanDevices()
		if err != nil {
			return err
		}
		printDeviceList(devices, db)

		if !listDevicesWatch {
			return nil
		}

		fmt.Println("watching for device changes, press Ctrl+C to stop")
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		return reader.Watch(ctx, func(event fsnotify.Event) {
			fmt.Printf("%s: %s\n", event.Op, event.Name)
			if devices, err := reader.ScanDevices(); err == nil {
				printDeviceList(devices, db)
			}
		})
	},
}

func printDeviceList(devices []pciconfig.PCIDevice, db *pciconfig.PCIDB) {
	for _, d := range devices {
		line := d.Summary()
		if name := db.FriendlyIdentity(d.VendorID, d.DeviceID); name != "" {
			line += " " + name
		}
		fmt.Println(line)
	}
}

func init() {
	listDevicesCmd.Flags().BoolVar(&listDevicesWatch, "watch", false, "keep running and report device arrivals/removals")
	rootCmd.AddCommand(listDevicesCmd)
}
