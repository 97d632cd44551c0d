package main

import "encoding/binary"

// dataBlockSize is the size of each read and write operation. Should match
// the underlying device's erase-block granularity reasonably well.
const dataBlockSize = 4096

// fillPattern fills buf with the verification pattern for the given block.
// The pattern is the block number plus one, repeated as a little-endian
// 64-bit word. The +1 keeps block 0 from being all zeroes, which would be
// indistinguishable from erased flash.
func fillPattern(buf []byte, blockNum uint64) {
	code := blockNum + 1
	for i := 0; i+8 <= len(buf); i += 8 {
		binary.LittleEndian.PutUint64(buf[i:], code)
	}
}

// pattern returns a freshly allocated pattern buffer for the given block.
func pattern(blockNum uint64) []byte {
	buf := make([]byte, dataBlockSize)
	fillPattern(buf, blockNum)
	return buf
}
