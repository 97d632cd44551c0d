package main

import (
	"encoding/binary"
	"fmt"
	"math/rand"
)

const (
	// mbrLen is the length of the master boot record in bytes.
	mbrLen = 512
	// mbrSectorSize is the sector size the MBR addresses.
	mbrSectorSize = 512
	// chsNumSectors and chsNumHeads are the fixed legacy geometry used for
	// the CHS compatibility fields. The LBA fields are authoritative.
	chsNumSectors = 63
	chsNumHeads   = 16
	// mbrMinPartSectors skips partitions smaller than 16 MB, they are not
	// worth carving out.
	mbrMinPartSectors = 16 * mb / mbrSectorSize
	// mbrTypeGood marks usable space (FAT32 LBA).
	mbrTypeGood = 0x0C
	// mbrTypeBad marks unusable space (Xenix bad block table).
	mbrTypeBad = 0xFF

	mbrTableOffset     = 0x1BE
	mbrEntrySize       = 16
	mbrSignatureOffset = 0x1B8
)

// mbrPartition is the on-disk layout of one partition table entry.
type mbrPartition struct {
	Status      uint8
	FirstCHS    [3]byte
	Type        uint8
	LastCHS     [3]byte
	FirstSector uint32
	Sectors     uint32
}

// mbrStruct is the on-disk layout of a whole boot sector.
type mbrStruct struct {
	_          [446]byte
	Partitions [4]mbrPartition
	Signature  uint16
}

// lba2chs encodes an LBA sector number into the packed 3-byte CHS form
// using the fixed 63/16 geometry.
func lba2chs(lba uint64, chs []byte) {
	cyls := lba / (chsNumSectors * chsNumHeads)
	heads := (lba / chsNumSectors) % chsNumHeads
	sectors := lba%chsNumSectors + 1
	chs[0] = byte(heads)
	chs[1] = byte((cyls&0x300)>>2 | sectors)
	chs[2] = byte(cyls & 0xFF)
}

// writeMBREntry fills partition slot index with the sector range
// [start, end) of the given type.
func writeMBREntry(mbr []byte, index int, start, end uint64, ptype byte) {
	part := mbr[mbrTableOffset+index*mbrEntrySize:]
	lba2chs(start, part[0x1:0x4])
	part[0x4] = ptype
	lba2chs(end-1, part[0x5:0x8])
	binary.LittleEndian.PutUint32(part[0x8:], uint32(start))
	binary.LittleEndian.PutUint32(part[0xC:], uint32(end-start))
}

// buildPartitionTable produces a replacement boot sector that fences off
// the bad byte span (nil when the device is clean) of a device of the given
// size. Leading and trailing good spans smaller than 16 MB get no entry; a
// bad span starting in sector 0 is left unpartitioned entirely.
func buildPartitionTable(bad *BadRegion, deviceSize uint64) []byte {
	mbr := make([]byte, mbrLen)

	binary.LittleEndian.PutUint32(mbr[mbrSignatureOffset:], rand.Uint32())

	var start, end uint64
	if bad != nil {
		start = bad.First / mbrSectorSize
		// +1 to cover the sector holding the last bad byte.
		end = (bad.Last + 1) / mbrSectorSize
	}
	num := deviceSize / mbrSectorSize

	index := 0
	if start > mbrMinPartSectors {
		// Usable space before the bad region.
		writeMBREntry(mbr, index, 0, start, mbrTypeGood)
		index++
	}
	if start != 0 && end != 0 {
		// The bad section itself.
		writeMBREntry(mbr, index, start, end, mbrTypeBad)
		index++
	}
	if end == 0 || end+mbrMinPartSectors < num {
		// Usable space after the bad region, or the whole device when it
		// came through clean.
		writeMBREntry(mbr, index, end, num, mbrTypeGood)
	}

	mbr[0x1FE] = 0x55
	mbr[0x1FF] = 0xAA
	return mbr
}

// writePartitionTable writes the replacement boot sector to the device.
// bad holds the bad region in byte offsets, or nil for a clean device.
func writePartitionTable(dev Device, bad *BadRegion, deviceSize uint64) error {
	mbr := buildPartitionTable(bad, deviceSize)
	if err := dev.Seek(0); err != nil {
		return fmt.Errorf("seek boot sector: %w", err)
	}
	if err := dev.Write(mbr); err != nil {
		return fmt.Errorf("write boot sector: %w", err)
	}
	return nil
}
