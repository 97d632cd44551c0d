package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gosuri/uilive"
)

// ConsoleUI renders check progress on the terminal and answers the
// engine's decision points from stdin.
type ConsoleUI struct {
	writer *uilive.Writer
	in     *bufio.Reader

	startBlock uint64
	numBlocks  uint64
	tmStart    time.Time
	lastLine   time.Time
}

func NewConsoleUI() *ConsoleUI {
	return &ConsoleUI{
		in: bufio.NewReader(os.Stdin),
	}
}

// confirm prints the prompt and reads a y/N answer. Anything but y counts
// as no.
func (ui *ConsoleUI) confirm(prompt string) bool {
	fmt.Print(prompt)
	line, err := ui.in.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func (ui *ConsoleUI) ResumeWrite() bool {
	fmt.Println("\nThis device appears to be in the process of being checked. Possibly a")
	fmt.Println("previous run was aborted early. You can resume this check or start over.")
	return ui.confirm("Resume (y/N)? ")
}

func (ui *ConsoleUI) ResumeProgress(block, step, totalSteps uint64) {
	fmt.Printf("\rScanning block %d (%d/%d)", block, step, totalSteps)
	if step+1 >= totalSteps {
		fmt.Println()
	}
}

func (ui *ConsoleUI) startPass(startBlock, numBlocks uint64) {
	ui.startBlock = startBlock
	ui.numBlocks = numBlocks
	ui.tmStart = time.Now()
	ui.lastLine = time.Time{}
	ui.writer = uilive.New()
	ui.writer.Start()
}

func (ui *ConsoleUI) finishPass() {
	if ui.writer != nil {
		ui.writer.Stop()
		ui.writer = nil
	}
}

// progressLine renders "<verb> block N [P%] ETA hh:mm:ss X kB/sec",
// throttled to one update per second except when forced.
func (ui *ConsoleUI) progressLine(verb string, block uint64, force bool) {
	if ui.writer == nil {
		return
	}
	if !force && time.Since(ui.lastLine) < time.Second {
		return
	}
	ui.lastLine = time.Now()

	pct := uint64(0)
	if ui.numBlocks > 1 {
		pct = block * 100 / (ui.numBlocks - 1)
	}
	line := fmt.Sprintf("%s block %d of %d [%d%%]", verb, block, ui.numBlocks, pct)

	duration := time.Since(ui.tmStart).Seconds()
	done := block - ui.startBlock
	if done > 0 && duration > 0 {
		remaining := time.Duration(duration * float64(ui.numBlocks-1-block) / float64(done) * float64(time.Second))
		rate := float64(done) * dataBlockSize / duration
		line += fmt.Sprintf(" ETA %02d:%02d:%02d %s",
			int(remaining.Hours()),
			int(remaining.Minutes())%60,
			int(remaining.Seconds())%60,
			formatSpeed(rate))
	}
	fmt.Fprintln(ui.writer, line)
	ui.writer.Flush()
}

func (ui *ConsoleUI) WriteStart(startBlock, numBlocks uint64) {
	ui.startPass(startBlock, numBlocks)
	if startBlock > 0 {
		fmt.Printf("Resuming write at block %d\n", startBlock)
	}
}

func (ui *ConsoleUI) WriteProgress(block uint64) {
	ui.progressLine("Writing", block, block+1 == ui.numBlocks)
}

func (ui *ConsoleUI) WriteFinish() {
	ui.finishPass()
}

func (ui *ConsoleUI) SyncFailure(err error) bool {
	ui.finishPass()
	fmt.Printf("\nError flushing device: %v\n", err)
	fmt.Println("You should remove and reattach the storage device before continuing,")
	fmt.Println("to ensure the data that is about to be read is coming from the device")
	fmt.Println("itself and not any system caches. If you continue without reattaching")
	fmt.Println("the device, some faults may not be detected.")
	return ui.confirm("Continue (y/N)? ")
}

func (ui *ConsoleUI) ReopenFailure(err error) bool {
	fmt.Printf("Unable to reopen device: %v\n", err)
	return ui.confirm("Try again (y/N)? ")
}

func (ui *ConsoleUI) ReadStart(startBlock, numBlocks uint64) {
	ui.startPass(startBlock, numBlocks)
}

func (ui *ConsoleUI) ReadProgress(block uint64, ioFailure bool) bool {
	if ioFailure {
		// Failures are reported as they happen, never batched away.
		fmt.Fprintf(ui.writer.Bypass(), "Read error at block %d (byte offset %d)\n",
			block, block*dataBlockSize)
	}
	ui.progressLine("Reading", block, ioFailure || block+1 == ui.numBlocks)
	return true
}

func (ui *ConsoleUI) ReadFinish() {
	ui.finishPass()
}

func (ui *ConsoleUI) CheckComplete() {
	ui.finishPass()
}
