package main

import (
	"fmt"
	"io"
	"os"
)

// Device is the storage transport the check engine runs against. The real
// implementation is FileDevice; tests substitute an in-memory one.
type Device interface {
	// Open opens the given device path.
	Open(path string) error
	// Close releases the handle. Only Open and Reopen may be called after.
	Close() error
	// Reopen re-opens the path passed to the last Open.
	Reopen() error
	// Size returns the device size in bytes.
	Size() (uint64, error)
	// Seek moves the current position to the given byte offset.
	Seek(offset uint64) error
	// Read fills buf from the current position, advancing it.
	Read(buf []byte) error
	// Write writes buf at the current position, advancing it.
	Write(buf []byte) error
	// Sync flushes all caches so subsequent reads hit the physical medium.
	Sync() error
}

// FileDevice drives a block device (or image file) through an *os.File.
type FileDevice struct {
	f    *os.File
	path string
}

func (d *FileDevice) Open(path string) error {
	d.path = path
	return d.Reopen()
}

func (d *FileDevice) Reopen() error {
	f, err := os.OpenFile(d.path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", d.path, err)
	}
	d.f = f
	return nil
}

func (d *FileDevice) Close() error {
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

func (d *FileDevice) Size() (uint64, error) {
	return deviceSize(d.f)
}

func (d *FileDevice) Seek(offset uint64) error {
	_, err := d.f.Seek(int64(offset), io.SeekStart)
	return err
}

func (d *FileDevice) Read(buf []byte) error {
	_, err := io.ReadFull(d.f, buf)
	return err
}

func (d *FileDevice) Write(buf []byte) error {
	_, err := d.f.Write(buf)
	return err
}

func (d *FileDevice) Sync() error {
	return deviceSync(d.f)
}
