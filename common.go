package main

import (
	"fmt"
	"os"
)

var appversion = "0.3.1"

const (
	kb = 1 << 10
	mb = 1 << 20
	gb = 1 << 30
	tb = 1 << 40
	pb = 1 << 50
)

// dataSizeNumber is a type constraint that allows any signed or unsigned integer type.
type dataSizeNumber interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~uintptr
}

// Unit represents a data size unit with its name and threshold.
type Unit struct {
	Name      string
	Threshold uint64
}

// Predefined units in descending order.
var units = []Unit{
	{"PB", pb},
	{"TB", tb},
	{"GB", gb},
	{"MB", mb},
	{"KB", kb},
	{"bytes", 1},
}

// formatBytes renders a byte count with the largest fitting unit.
func formatBytes[T dataSizeNumber](size T) string {
	v := uint64(size)
	for _, u := range units {
		if v >= u.Threshold {
			if u.Threshold == 1 {
				return fmt.Sprintf("%d %s", v, u.Name)
			}
			return fmt.Sprintf("%.1f %s", float64(v)/float64(u.Threshold), u.Name)
		}
	}
	return "0 bytes"
}

// formatSpeed renders a bytes-per-second rate.
func formatSpeed(bps float64) string {
	return formatBytes(uint64(bps)) + "/sec"
}

func isPrintable(b byte) bool {
	return b >= 32 && b <= 126
}

func hasReadPermission(device string) bool {
	file, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	file.Close()
	return true
}

// Exit if we don't have permission to read the device
func checkForPerms(deviceToRead string) {
	if !hasReadPermission(deviceToRead) {
		fmt.Printf("No permission to read the device: %s, try with elevated priviledges\n", deviceToRead)
		os.Exit(retNoPerms)
	}
}
