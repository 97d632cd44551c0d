//go:build !linux

package main

import (
	"io"
	"os"
)

// deviceSize falls back to seeking on platforms without a size ioctl
// wrapper. Works for image files and for block devices that support
// seeking to the end (macOS /dev/rdiskN does).
func deviceSize(f *os.File) (uint64, error) {
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return uint64(size), nil
}

func deviceSync(f *os.File) error {
	return f.Sync()
}

func getSectorSize(_ *os.File) uint64 {
	return 512
}
