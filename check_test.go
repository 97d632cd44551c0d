package main

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

// memDevice is a deterministic in-memory Device with fault injection.
type memDevice struct {
	data   []byte
	pos    uint64
	closed bool

	badReads   map[uint64]bool // block index -> reads fail with an I/O error
	syncErrs   int             // this many Sync calls fail
	reopenErrs int             // this many Reopen calls fail
	reads      int

	clock    *fakeClock
	readCost time.Duration // clock advance per read attempt
}

func newMemDevice(numBlocks uint64) *memDevice {
	return &memDevice{
		data:     make([]byte, numBlocks*dataBlockSize),
		badReads: make(map[uint64]bool),
	}
}

// prewrite fills the device with the verification pattern, as a completed
// write pass would.
func (d *memDevice) prewrite() {
	for b := uint64(0); b < uint64(len(d.data))/dataBlockSize; b++ {
		fillPattern(d.data[b*dataBlockSize:(b+1)*dataBlockSize], b)
	}
}

func (d *memDevice) Open(string) error { return d.Reopen() }

func (d *memDevice) Close() error {
	d.closed = true
	return nil
}

func (d *memDevice) Reopen() error {
	if d.reopenErrs > 0 {
		d.reopenErrs--
		return errors.New("device not ready")
	}
	d.closed = false
	return nil
}

func (d *memDevice) Size() (uint64, error) {
	return uint64(len(d.data)), nil
}

func (d *memDevice) Seek(offset uint64) error {
	d.pos = offset
	return nil
}

func (d *memDevice) Read(buf []byte) error {
	d.reads++
	if d.clock != nil {
		d.clock.advance(d.readCost)
	}
	if d.closed {
		return errors.New("device closed")
	}
	if d.badReads[d.pos/dataBlockSize] {
		return fmt.Errorf("I/O error at offset %d", d.pos)
	}
	if d.pos+uint64(len(buf)) > uint64(len(d.data)) {
		return errors.New("read past end of device")
	}
	copy(buf, d.data[d.pos:])
	d.pos += uint64(len(buf))
	return nil
}

func (d *memDevice) Write(buf []byte) error {
	if d.closed {
		return errors.New("device closed")
	}
	if d.pos+uint64(len(buf)) > uint64(len(d.data)) {
		return errors.New("write past end of device")
	}
	copy(d.data[d.pos:], buf)
	d.pos += uint64(len(buf))
	return nil
}

func (d *memDevice) Sync() error {
	if d.syncErrs > 0 {
		d.syncErrs--
		return errors.New("flush failed")
	}
	return nil
}

// testCallback records engine events and answers decisions from fields.
type testCallback struct {
	resume         bool
	resumeAsked    bool
	resumeProbes   []uint64
	resumeSteps    uint64
	writeStart     uint64
	writeNum       uint64
	writeProgress  []uint64
	writeFinished  bool
	syncFailures   int
	syncContinue   bool
	reopenFailures int
	reopenContinue bool
	readNum        uint64
	readProgress   []uint64
	ioFailures     []uint64
	stopAt         int64 // ReadProgress returns false at this block, -1 = never
	readFinished   bool
}

func newTestCallback() *testCallback {
	return &testCallback{stopAt: -1}
}

func (cb *testCallback) ResumeWrite() bool {
	cb.resumeAsked = true
	return cb.resume
}

func (cb *testCallback) ResumeProgress(block, _, totalSteps uint64) {
	cb.resumeProbes = append(cb.resumeProbes, block)
	cb.resumeSteps = totalSteps
}

func (cb *testCallback) WriteStart(startBlock, numBlocks uint64) {
	cb.writeStart = startBlock
	cb.writeNum = numBlocks
}

func (cb *testCallback) WriteProgress(block uint64) {
	cb.writeProgress = append(cb.writeProgress, block)
}

func (cb *testCallback) WriteFinish() {
	cb.writeFinished = true
}

func (cb *testCallback) SyncFailure(error) bool {
	cb.syncFailures++
	return cb.syncContinue
}

func (cb *testCallback) ReopenFailure(error) bool {
	cb.reopenFailures++
	return cb.reopenContinue
}

func (cb *testCallback) ReadStart(_, numBlocks uint64) {
	cb.readNum = numBlocks
}

func (cb *testCallback) ReadProgress(block uint64, ioFailure bool) bool {
	cb.readProgress = append(cb.readProgress, block)
	if ioFailure {
		cb.ioFailures = append(cb.ioFailures, block)
	}
	return cb.stopAt < 0 || block < uint64(cb.stopAt)
}

func (cb *testCallback) ReadFinish() {
	cb.readFinished = true
}

func (cb *testCallback) CheckComplete() {}

func newTestCheck(t *testing.T, dev *memDevice, cb CheckCallback) *Check {
	t.Helper()
	chk, err := NewCheck(dev, cb)
	if err != nil {
		t.Fatalf("NewCheck: %v", err)
	}
	return chk
}

func TestWriteThenReadCleanDevice(t *testing.T) {
	dev := newMemDevice(1024)
	cb := newTestCallback()
	chk := newTestCheck(t, dev, cb)

	if err := chk.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if cb.resumeAsked {
		t.Error("resume prompt shown for a blank device")
	}
	if cb.writeStart != 0 || cb.writeNum != 1024 {
		t.Errorf("WriteStart(%d, %d), want (0, 1024)", cb.writeStart, cb.writeNum)
	}
	if !cb.writeFinished {
		t.Error("WriteFinish not called")
	}
	for _, b := range []uint64{0, 1, 511, 1023} {
		got := dev.data[b*dataBlockSize : (b+1)*dataBlockSize]
		if !bytes.Equal(got, pattern(b)) {
			t.Errorf("block %d does not hold its pattern", b)
		}
	}

	region, err := chk.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if region != nil {
		t.Errorf("bad region %+v on a clean device", region)
	}
	if !cb.readFinished {
		t.Error("ReadFinish not called")
	}
	if last := cb.readProgress[len(cb.readProgress)-1]; last != 1023 {
		t.Errorf("final progress block = %d, want 1023", last)
	}
}

func TestReadDetectsCorruptedBlock(t *testing.T) {
	dev := newMemDevice(1024)
	cb := newTestCallback()
	chk := newTestCheck(t, dev, cb)
	if err := chk.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}

	dev.data[512*dataBlockSize] ^= 0xFF

	region, err := chk.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if region == nil {
		t.Fatal("corruption not detected")
	}
	if region.First != 512 || region.Last != 512 {
		t.Errorf("bad region [%d, %d], want [512, 512]", region.First, region.Last)
	}
	if len(cb.ioFailures) != 0 {
		t.Errorf("corruption reported as I/O failure at blocks %v", cb.ioFailures)
	}
}

func TestReadTracksSpanOfBadBlocks(t *testing.T) {
	dev := newMemDevice(1024)
	cb := newTestCallback()
	chk := newTestCheck(t, dev, cb)
	if err := chk.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}

	dev.data[100*dataBlockSize] ^= 0xFF
	dev.badReads[300] = true
	dev.data[700*dataBlockSize+9] ^= 0x01

	region, err := chk.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if region == nil || region.First != 100 || region.Last != 700 {
		t.Fatalf("bad region %+v, want [100, 700]", region)
	}
	if len(cb.ioFailures) != 1 || cb.ioFailures[0] != 300 {
		t.Errorf("I/O failures reported at %v, want [300]", cb.ioFailures)
	}
}

func TestResumePromptDeclinedStartsAtZero(t *testing.T) {
	dev := newMemDevice(1024)
	fillPattern(dev.data[:dataBlockSize], 0)

	cb := newTestCallback()
	chk := newTestCheck(t, dev, cb)
	if err := chk.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !cb.resumeAsked {
		t.Error("resume prompt not shown although block 0 holds its pattern")
	}
	if cb.writeStart != 0 {
		t.Errorf("write started at block %d after declining resume, want 0", cb.writeStart)
	}
}

func TestResumeLocatorOnFullyWrittenDevice(t *testing.T) {
	dev := newMemDevice(1024)
	dev.prewrite()

	cb := newTestCallback()
	cb.resume = true
	chk := newTestCheck(t, dev, cb)
	if err := chk.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if cb.resumeSteps != 10 {
		t.Errorf("reported %d locator steps, want ceil(log2(1024)) = 10", cb.resumeSteps)
	}
	// remaining starts at 512 and the loop runs until it reaches 1.
	if len(cb.resumeProbes) != 9 {
		t.Errorf("locator probed %d times, want 9", len(cb.resumeProbes))
	}
	// Every probe matches, so the probe keeps moving forward:
	// 512 + 256 + ... + 1 = 1023.
	if cb.writeStart != 1023 {
		t.Errorf("resume start block = %d, want 1023", cb.writeStart)
	}
}

func TestResumeSteps(t *testing.T) {
	for _, tc := range []struct {
		numBlocks uint64
		want      uint64
	}{
		{1, 0},
		{2, 1},
		{1000, 10},
		{1024, 10},
		{1025, 11},
	} {
		if got := resumeSteps(tc.numBlocks); got != tc.want {
			t.Errorf("resumeSteps(%d) = %d, want %d", tc.numBlocks, got, tc.want)
		}
	}
}

func TestReadTimeoutAbortsEarly(t *testing.T) {
	dev := newMemDevice(1024)
	dev.prewrite()
	clock := &fakeClock{t: time.Unix(1000, 0)}
	dev.clock = clock
	dev.readCost = time.Second
	for b := uint64(0); b < 1024; b++ {
		dev.badReads[b] = true
	}

	cb := newTestCallback()
	chk := newTestCheck(t, dev, cb)
	chk.now = clock.Now

	region, err := chk.Read()
	if !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("Read error = %v, want ErrReadTimeout", err)
	}
	if region == nil || region.First != 0 {
		t.Fatalf("bad region %+v, want to start at block 0", region)
	}
	// One failed read per simulated second; the 15 s window expires on the
	// failure at block 16.
	if region.Last != 16 {
		t.Errorf("abort after block %d, want 16", region.Last)
	}
	if uint64(len(cb.ioFailures)) != region.Last+1 {
		t.Errorf("%d failure callbacks for %d attempted blocks", len(cb.ioFailures), region.Last+1)
	}
}

func TestReadGoodBlockResetsErrorTimer(t *testing.T) {
	dev := newMemDevice(1024)
	dev.prewrite()
	clock := &fakeClock{t: time.Unix(1000, 0)}
	dev.clock = clock
	dev.readCost = time.Second
	// Runs of 10 failing blocks with a good block between them: never 15
	// continuous seconds of errors.
	for b := uint64(0); b < 40; b++ {
		if b%11 != 10 {
			dev.badReads[b] = true
		}
	}

	cb := newTestCallback()
	chk := newTestCheck(t, dev, cb)
	chk.now = clock.Now

	region, err := chk.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if region == nil || region.First != 0 || region.Last != 39 {
		t.Errorf("bad region %+v, want [0, 39]", region)
	}
}

func TestReadCallbackStopAborts(t *testing.T) {
	dev := newMemDevice(1024)
	dev.prewrite()

	cb := newTestCallback()
	cb.stopAt = 256
	chk := newTestCheck(t, dev, cb)

	_, err := chk.Read()
	if !errors.Is(err, ErrVerifyAborted) {
		t.Fatalf("Read error = %v, want ErrVerifyAborted", err)
	}
}

func TestSyncFailureContinueReopens(t *testing.T) {
	dev := newMemDevice(64)
	dev.syncErrs = 1
	cb := newTestCallback()
	cb.syncContinue = true
	chk := newTestCheck(t, dev, cb)

	if err := chk.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if cb.syncFailures != 1 {
		t.Errorf("SyncFailure called %d times, want 1", cb.syncFailures)
	}
	if dev.closed {
		t.Error("device not reopened after sync recovery")
	}
}

func TestSyncFailureDeclineAborts(t *testing.T) {
	dev := newMemDevice(64)
	dev.syncErrs = 1
	cb := newTestCallback()
	chk := newTestCheck(t, dev, cb)

	if err := chk.Write(); !errors.Is(err, ErrUserAbort) {
		t.Fatalf("Write error = %v, want ErrUserAbort", err)
	}
}

func TestSyncFailureReopenRetries(t *testing.T) {
	dev := newMemDevice(64)
	dev.syncErrs = 1
	dev.reopenErrs = 2
	cb := newTestCallback()
	cb.syncContinue = true
	cb.reopenContinue = true
	chk := newTestCheck(t, dev, cb)

	if err := chk.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if cb.reopenFailures != 2 {
		t.Errorf("ReopenFailure called %d times, want 2", cb.reopenFailures)
	}
	if dev.closed {
		t.Error("device not reopened after retries")
	}
}

func TestWriteProgressIntervals(t *testing.T) {
	dev := newMemDevice(300)
	cb := newTestCallback()
	chk := newTestCheck(t, dev, cb)
	if err := chk.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	// Start, one interval, and the final 100% signal.
	want := []uint64{0, 256, 299}
	if len(cb.writeProgress) != len(want) {
		t.Fatalf("progress calls %v, want %v", cb.writeProgress, want)
	}
	for i, b := range want {
		if cb.writeProgress[i] != b {
			t.Errorf("progress[%d] = %d, want %d", i, cb.writeProgress[i], b)
		}
	}
}
