package main

import (
	"fmt"
	"io"
	"os"
)

// printDeviceBytes hexdumps count bytes of the device starting at offset.
// Handy for eyeballing the boot sector a scan just wrote.
func printDeviceBytes(devicePath string, count int, offset int64) error {
	file, err := os.Open(devicePath)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err = file.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	buf := make([]byte, count)
	if _, err = io.ReadFull(file, buf); err != nil {
		return err
	}

	for i := 0; i < len(buf); i += 16 {
		hexStr := ""
		charStr := ""
		for j := 0; j < 16 && i+j < len(buf); j++ {
			b := buf[i+j]
			hexStr += fmt.Sprintf("%02X ", b)
			if j == 7 {
				hexStr += " "
			}
			if isPrintable(b) {
				charStr += string(b)
			} else {
				charStr += "."
			}
		}
		fmt.Printf("%08X  %-49s  |%s|\n", offset+int64(i), hexStr, charStr)
	}

	return nil
}
