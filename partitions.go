package main

import (
	"encoding/binary"
	"fmt"
	"os"
)

// partitionTypeName labels the types this tool writes plus a few common
// ones seen on cards fresh from the factory.
func partitionTypeName(t byte) string {
	switch t {
	case mbrTypeGood:
		return "FAT32 LBA (usable)"
	case mbrTypeBad:
		return "bad block region"
	case 0x01:
		return "FAT12"
	case 0x06:
		return "FAT16"
	case 0x07:
		return "exFAT/NTFS"
	case 0x0B:
		return "FAT32 CHS"
	case 0x83:
		return "Linux"
	default:
		return "unknown"
	}
}

// listPartitions parses and prints the MBR partition table of a device,
// the same table the scan command writes.
func listPartitions(devicePath string) error {
	file, err := os.Open(devicePath)
	if err != nil {
		return fmt.Errorf("error opening disk: %w", err)
	}
	defer file.Close()

	mbr := mbrStruct{}
	if err := binary.Read(file, binary.LittleEndian, &mbr); err != nil {
		return fmt.Errorf("error reading MBR: %w", err)
	}
	if mbr.Signature != 0xAA55 {
		return fmt.Errorf("invalid MBR signature 0x%04X", mbr.Signature)
	}

	sectorSize := getSectorSize(file)
	fmt.Println("Partitions:")
	partNum := 0
	for _, part := range mbr.Partitions {
		if part.Sectors == 0 {
			continue
		}
		partNum++
		fmt.Printf("  %d. Type: 0x%02X (%s), FirstSector: %d, Sectors: %d, Total: %s\n",
			partNum, part.Type, partitionTypeName(part.Type),
			part.FirstSector, part.Sectors,
			formatBytes(uint64(part.Sectors)*sectorSize))
	}
	if partNum == 0 {
		fmt.Println("  (none)")
	}
	return nil
}
