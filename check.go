package main

import (
	"bytes"
	"errors"
	"fmt"
	"math/bits"
	"time"
)

// progressInterval is how often, in blocks, progress callbacks fire during
// the write and read passes.
const progressInterval = 256

// maxReadErrorTime aborts the read pass once I/O errors have been coming in
// continuously for this long.
const maxReadErrorTime = 15 * time.Second

var (
	// ErrUserAbort is returned when the user declines a confirmation prompt.
	ErrUserAbort = errors.New("aborted by user")
	// ErrVerifyAborted is returned when the progress callback stops the
	// read pass.
	ErrVerifyAborted = errors.New("verification operation aborted")
	// ErrReadTimeout is returned when the read pass gives up after
	// continuous I/O errors.
	ErrReadTimeout = errors.New("continuous read errors exceeded time limit")
)

// CheckCallback receives progress events and answers the decision points of
// a check run. Decision methods may block indefinitely on user input.
type CheckCallback interface {
	// ResumeWrite asks whether to resume an interrupted write pass.
	ResumeWrite() bool
	// ResumeProgress reports one probe of the resume locator.
	ResumeProgress(block, step, totalSteps uint64)
	WriteStart(startBlock, numBlocks uint64)
	WriteProgress(block uint64)
	WriteFinish()
	// SyncFailure reports a failed device flush after the write pass.
	// Return true to reattach and retry, false to abort the run.
	SyncFailure(err error) bool
	// ReopenFailure reports a failed reattach. Return true to try again.
	ReopenFailure(err error) bool
	ReadStart(startBlock, numBlocks uint64)
	// ReadProgress reports the current read position. ioFailure is true
	// when the block could not be read at all, false when it was readable
	// (even if corrupt). Return false to abort the read pass.
	ReadProgress(block uint64, ioFailure bool) bool
	ReadFinish()
	// CheckComplete signals the end of the whole run.
	CheckComplete()
}

// BadRegion is the inclusive span from the first to the last block that
// failed verification. Good blocks inside the span are not tracked.
type BadRegion struct {
	First uint64
	Last  uint64
}

func (r *BadRegion) record(block uint64) *BadRegion {
	if r == nil {
		return &BadRegion{First: block, Last: block}
	}
	r.Last = block
	return r
}

// Check runs the write/read verification of a single device. The device is
// owned exclusively by the check for the duration of the run.
type Check struct {
	dev       Device
	cb        CheckCallback
	numBlocks uint64

	// now is the clock used by the continuous-read-error abort. Tests
	// substitute a fake.
	now func() time.Time
}

func NewCheck(dev Device, cb CheckCallback) (*Check, error) {
	size, err := dev.Size()
	if err != nil {
		return nil, fmt.Errorf("query device size: %w", err)
	}
	return &Check{
		dev:       dev,
		cb:        cb,
		numBlocks: size / dataBlockSize,
		now:       time.Now,
	}, nil
}

// NumBlocks returns the device size in data blocks.
func (c *Check) NumBlocks() uint64 {
	return c.numBlocks
}

// resumeSteps is the reported step count of the resume locator,
// ceil(log2(numBlocks)). The locator itself terminates on its remaining
// counter, not on this value.
func resumeSteps(numBlocks uint64) uint64 {
	if numBlocks < 2 {
		return 0
	}
	return uint64(bits.Len64(numBlocks - 1))
}

// locateResume estimates where an interrupted write pass stopped, by
// iterative halving. Each probe revises the position from the current block
// only, so the result can land short of or past the true boundary; that
// imprecision is accepted, the read pass re-verifies everything anyway.
func (c *Check) locateResume() (uint64, error) {
	buf := make([]byte, dataBlockSize)
	expected := make([]byte, dataBlockSize)

	remaining := c.numBlocks / 2
	probe := remaining
	totalSteps := resumeSteps(c.numBlocks)
	step := uint64(0)
	for remaining > 1 {
		c.cb.ResumeProgress(probe, step, totalSteps)
		step++
		if err := c.dev.Seek(probe * dataBlockSize); err != nil {
			return 0, fmt.Errorf("seek block %d: %w", probe, err)
		}
		if err := c.dev.Read(buf); err != nil {
			return 0, fmt.Errorf("read block %d: %w", probe, err)
		}
		fillPattern(expected, probe)
		remaining /= 2
		if bytes.Equal(buf, expected) {
			// Already written, the boundary is further on.
			probe += remaining
		} else {
			// Not written yet (or corrupt), we overshot.
			probe -= remaining
		}
	}
	return probe, nil
}

// Write covers the device with the verification pattern. If block 0 already
// carries its pattern, a previous run may have been interrupted and the
// callback is asked whether to resume partway instead of starting over.
func (c *Check) Write() error {
	startBlock := uint64(0)

	buf := make([]byte, dataBlockSize)
	if err := c.dev.Seek(0); err != nil {
		return fmt.Errorf("seek block 0: %w", err)
	}
	if err := c.dev.Read(buf); err != nil {
		return fmt.Errorf("read block 0: %w", err)
	}
	if bytes.Equal(buf, pattern(0)) && c.cb.ResumeWrite() {
		var err error
		startBlock, err = c.locateResume()
		if err != nil {
			return err
		}
	}

	if err := c.dev.Seek(startBlock * dataBlockSize); err != nil {
		return fmt.Errorf("seek block %d: %w", startBlock, err)
	}
	c.cb.WriteStart(startBlock, c.numBlocks)
	for b := startBlock; b < c.numBlocks; b++ {
		if b%progressInterval == 0 {
			c.cb.WriteProgress(b)
		}
		fillPattern(buf, b)
		if err := c.dev.Write(buf); err != nil {
			return fmt.Errorf("write block %d: %w", b, err)
		}
	}
	c.cb.WriteProgress(c.numBlocks - 1)
	c.cb.WriteFinish()

	if err := c.dev.Sync(); err != nil {
		// Caches may now mask faults from the read pass. Hand the decision
		// to the callback: reattach the device and carry on, or abort.
		c.dev.Close()
		if !c.cb.SyncFailure(err) {
			return ErrUserAbort
		}
		for {
			rerr := c.dev.Reopen()
			if rerr == nil {
				break
			}
			if !c.cb.ReopenFailure(rerr) {
				return ErrUserAbort
			}
		}
	}
	return nil
}

// Read verifies the whole device against the pattern, regardless of where
// the write pass resumed. It returns the observed bad region (nil when the
// device is clean) together with any early-abort error.
func (c *Check) Read() (*BadRegion, error) {
	var region *BadRegion
	buf := make([]byte, dataBlockSize)
	expected := make([]byte, dataBlockSize)

	if err := c.dev.Seek(0); err != nil {
		return nil, fmt.Errorf("seek block 0: %w", err)
	}
	c.cb.ReadStart(0, c.numBlocks)

	var errorRunStart time.Time
	fail := false
	for b := uint64(0); b < c.numBlocks; b++ {
		fillPattern(expected, b)
		err := c.dev.Read(buf)
		if err != nil {
			fail = true
			region = region.record(b)
			// Position is unknown after a failed read; realign.
			if serr := c.dev.Seek((b + 1) * dataBlockSize); serr != nil {
				return region, fmt.Errorf("seek block %d: %w", b+1, serr)
			}
		} else {
			fail = false
			errorRunStart = time.Time{}
			if !bytes.Equal(buf, expected) {
				region = region.record(b)
			}
		}
		if b%progressInterval == 0 || fail {
			if !c.cb.ReadProgress(b, fail) {
				return region, ErrVerifyAborted
			}
		}
		if fail {
			if errorRunStart.IsZero() {
				errorRunStart = c.now()
			} else if c.now().Sub(errorRunStart) > maxReadErrorTime {
				return region, fmt.Errorf("read errors for over %v: %w",
					maxReadErrorTime, ErrReadTimeout)
			}
		}
	}
	if !fail {
		c.cb.ReadProgress(c.numBlocks-1, false)
	}
	c.cb.ReadFinish()
	return region, nil
}
