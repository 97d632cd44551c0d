//go:build linux

package main

import (
	"fmt"
	"os"
	"strings"
)

// listDisks prints the block devices under /sys/class/block together with
// their size and removable flag, so the right card is easy to pick out.
func listDisks() {
	blockDevices, err := os.ReadDir("/sys/class/block")
	if err != nil {
		fmt.Printf("Error reading /sys/class/block: %v\n", err)
		return
	}

	excludePrefixes := []string{"loop", "zram", "ram", "dm-"}

	for _, bd := range blockDevices {
		devName := bd.Name()

		excluded := false
		for _, prefix := range excludePrefixes {
			if strings.HasPrefix(devName, prefix) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}

		devPath := "/dev/" + devName

		f, err := os.Open(devPath)
		if err != nil {
			fmt.Printf("%s - %v\n", devPath, err)
			continue
		}
		size, err := deviceSize(f)
		f.Close()
		if err != nil {
			fmt.Printf("%s - error getting size: %v\n", devPath, err)
			continue
		}

		removable := ""
		if data, err := os.ReadFile("/sys/class/block/" + devName + "/removable"); err == nil {
			if strings.TrimSpace(string(data)) == "1" {
				removable = " [removable]"
			}
		}

		fmt.Printf("%s - Total: %s%s\n", devPath, formatBytes(size), removable)
	}
}
