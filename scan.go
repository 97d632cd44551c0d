package main

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	retDeviceOK     = 0 // test completed, device good
	retBadArgs      = 1 // bad command line
	retNoOpen       = 2 // unable to open the device
	retAborted      = 3 // user aborted the test
	retDeviceFailed = 8 // test completed, device bad
	retNoPerms      = 13
)

// runScan is the whole destructive check of one device: confirm, write the
// pattern, recover from sync failures, read everything back, then fence off
// whatever was bad with a replacement partition table. Returns the process
// exit code.
func runScan(devicePath string, assumeYes, skipMBR bool) int {
	dev := &FileDevice{}
	if err := dev.Open(devicePath); err != nil {
		fmt.Printf("Unable to open device: %v\n", err)
		return retNoOpen
	}
	defer dev.Close()

	ui := NewConsoleUI()
	if !assumeYes {
		fmt.Printf("WARNING: All data on %s will be erased permanently!\n", devicePath)
		if !ui.confirm("Are you sure you wish to continue (y/N)? ") {
			fmt.Println("Aborted.")
			return retAborted
		}
	}

	chk, err := NewCheck(dev, ui)
	if err != nil {
		fmt.Printf("Unable to query device: %v\n", err)
		return retNoOpen
	}
	if chk.NumBlocks() == 0 {
		fmt.Printf("Device %s is smaller than one %d byte block, nothing to check.\n",
			devicePath, dataBlockSize)
		return retBadArgs
	}

	if err := chk.Write(); err != nil {
		if errors.Is(err, ErrUserAbort) {
			fmt.Println("Aborted.")
			return retAborted
		}
		fmt.Printf("Write pass failed: %v\n", err)
		return retDeviceFailed
	}
	fmt.Println()

	region, err := chk.Read()
	aborted := false
	switch {
	case errors.Is(err, ErrVerifyAborted):
		fmt.Println("\nVerification aborted.")
		return retAborted
	case errors.Is(err, ErrReadTimeout):
		fmt.Println("\nRead bad blocks continuously for 15 seconds, aborting.")
		fmt.Println("This can also be caused by a low-quality card reader; try another one.")
		aborted = true
	case err != nil:
		fmt.Printf("Read pass failed: %v\n", err)
		return retDeviceFailed
	}
	fmt.Println()

	reportRegion(region, chk.NumBlocks())

	if !skipMBR && !aborted {
		var bad *BadRegion
		if region != nil {
			bad = &BadRegion{
				First: region.First * dataBlockSize,
				Last:  (region.Last+1)*dataBlockSize - 1,
			}
		}
		size := chk.NumBlocks() * dataBlockSize
		if err := writePartitionTable(dev, bad, size); err != nil {
			fmt.Printf("Unable to write replacement partition table: %v\n", err)
			return retDeviceFailed
		}
		fmt.Println("Replacement partition table written.")
	}
	ui.CheckComplete()

	if region != nil {
		return retDeviceFailed
	}
	return retDeviceOK
}

// reportRegion prints the verdict in blocks, byte offsets and usable space.
func reportRegion(region *BadRegion, numBlocks uint64) {
	if region == nil {
		fmt.Println("No bad blocks detected. This device is 100% functional!")
		return
	}
	fmt.Printf("First bad block was at %d (* %d = byte offset %d)\n",
		region.First, dataBlockSize, region.First*dataBlockSize)
	fmt.Printf("  >> First %s are good\n", formatBytes(region.First*dataBlockSize))
	fmt.Printf("Last bad block was at %d (next good byte offset %d)\n",
		region.Last, (region.Last+1)*dataBlockSize)
	fmt.Printf("  >> Last %s are good\n",
		formatBytes((numBlocks-(region.Last+1))*dataBlockSize))
}
