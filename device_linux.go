//go:build linux

package main

import (
	"fmt"
	"io"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// deviceSize returns the size of a block device via BLKGETSIZE64, falling
// back to seeking for regular image files.
func deviceSize(f *os.File) (uint64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if info.Mode()&os.ModeDevice == 0 {
		size, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, err
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return 0, err
		}
		return uint64(size), nil
	}

	var size uint64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&size)))
	if errno != 0 {
		return 0, fmt.Errorf("ioctl BLKGETSIZE64 failed: %v", errno)
	}
	return size, nil
}

// deviceSync flushes file data and, for block devices, asks the kernel to
// drop its buffer cache so the read pass sees the medium, not the cache.
func deviceSync(f *os.File) error {
	if err := f.Sync(); err != nil {
		return err
	}
	if err := unix.Fdatasync(int(f.Fd())); err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeDevice != 0 {
		if err := unix.IoctlSetInt(int(f.Fd()), unix.BLKFLSBUF, 0); err != nil {
			return fmt.Errorf("ioctl BLKFLSBUF failed: %w", err)
		}
	}
	return nil
}

// getSectorSize returns the logical sector size of a block device,
// defaulting to 512 when the ioctl is unavailable.
func getSectorSize(f *os.File) uint64 {
	size, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKSSZGET)
	if err == nil && size > 0 {
		return uint64(size)
	}
	return 512
}
