package main

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dsnet/compress/bzip2"
	"github.com/gosuri/uilive"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

type countingWriter struct {
	w     io.Writer
	count int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count += int64(n)
	return n, err
}

// compressionExtension returns the file extension for a given compression algorithm
func compressionExtension(algorithm string) (string, error) {
	switch algorithm {
	case "gzip":
		return ".gz", nil
	case "zlib":
		return ".zlib", nil
	case "bzip2":
		return ".bz2", nil
	case "snappy":
		return ".snappy", nil
	case "s2":
		return ".s2", nil
	case "zstd":
		return ".zst", nil
	case "zip":
		return ".zip", nil
	default:
		return "", fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

// newCompressionWriter creates a compression writer based on the algorithm.
// Returns the writer and a zip writer when that container is in use.
func newCompressionWriter(algorithm string, output io.Writer) (io.Writer, *zip.Writer, error) {
	switch algorithm {
	case "gzip":
		return gzip.NewWriter(output), nil, nil
	case "zlib":
		return zlib.NewWriter(output), nil, nil
	case "bzip2":
		writer, err := bzip2.NewWriter(output, &bzip2.WriterConfig{})
		return writer, nil, err
	case "snappy":
		return snappy.NewBufferedWriter(output), nil, nil
	case "s2":
		return s2.NewWriter(output), nil, nil
	case "zstd":
		writer, err := zstd.NewWriter(output)
		return writer, nil, err
	case "zip":
		zipWriter := zip.NewWriter(output)
		zipFile, err := zipWriter.Create("compressedData")
		if err != nil {
			_ = zipWriter.Close()
			return nil, nil, fmt.Errorf("failed to create zip entry: %w", err)
		}
		return zipFile, zipWriter, nil
	default:
		return nil, nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

// imageDevice backs the device up into a compressed image, so a scan can be
// undone if the medium turns out to be genuine after all.
func imageDevice(devicePath, outputfile, algorithm string) error {
	disk, err := os.Open(devicePath)
	if err != nil {
		return fmt.Errorf("failed to open device %s: %w", devicePath, err)
	}
	defer disk.Close()

	var totalSize int64
	if size, err := deviceSize(disk); err == nil {
		totalSize = int64(size)
	}

	return compressFromReader(disk, outputfile, algorithm, totalSize)
}

// compressFromReader reads from a reader and compresses to a file with
// progress reporting.
func compressFromReader(disk io.Reader, outputfile string, algorithm string, totalSize int64) error {
	extension, err := compressionExtension(algorithm)
	if err != nil {
		return err
	}
	outputfile = outputfile + extension

	output, err := os.Create(outputfile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		_ = output.Close()
	}()

	cw := &countingWriter{w: output}
	compressedWriter, zipWriter, err := newCompressionWriter(algorithm, cw)
	if err != nil {
		return fmt.Errorf("failed to create compression writer: %w", err)
	}

	fmt.Printf("Writing to image: %s\n", outputfile)

	start := time.Now()
	writer := uilive.New()
	writer.Start()
	defer writer.Stop()

	var bytesRead int64
	status := func() {
		elapsed := time.Since(start).Truncate(time.Second)
		elapsedSeconds := time.Since(start).Seconds()
		estimate := "N/A"
		if totalSize > 0 && bytesRead > 0 && elapsedSeconds > 0 {
			rate := float64(bytesRead) / elapsedSeconds
			remaining := time.Duration(float64(totalSize-bytesRead) / rate * float64(time.Second))
			if remaining < 0 {
				remaining = 0
			}
			estimate = remaining.Truncate(time.Second).String()
		}
		_, _ = fmt.Fprintf(writer, "Read: %s (%d bytes), Written: %s (%d bytes)\n",
			formatBytes(bytesRead), bytesRead, formatBytes(cw.count), cw.count)
		_, _ = fmt.Fprintf(writer, "Elapsed: %s  Remaining: %s\n", elapsed, estimate)
		if elapsedSeconds > 0 {
			_, _ = fmt.Fprintf(writer, "Read speed: %s  Write speed: %s\n",
				formatSpeed(float64(bytesRead)/elapsedSeconds),
				formatSpeed(float64(cw.count)/elapsedSeconds))
		}
		_ = writer.Flush()
	}

	buf := make([]byte, 16384)
	lastUpdate := time.Now()
	for {
		n, err := disk.Read(buf)
		if n > 0 {
			if _, wErr := compressedWriter.Write(buf[:n]); wErr != nil {
				_, _ = fmt.Fprintln(writer.Bypass(), "Failed to write compressed stream:", wErr.Error())
				return wErr
			}
			bytesRead += int64(n)
			if time.Since(lastUpdate) >= time.Second {
				status()
				lastUpdate = time.Now()
			}
		}
		if err != nil {
			if err == io.EOF {
				status()
				break
			}
			_, _ = fmt.Fprintln(writer.Bypass(), "Error reading from device:", err.Error())
			return err
		}
	}

	if zipWriter != nil {
		if err := zipWriter.Close(); err != nil {
			return fmt.Errorf("failed to close zip writer: %w", err)
		}
	} else if wc, ok := compressedWriter.(io.WriteCloser); ok {
		_ = wc.Close()
	}

	fmt.Println()
	ratio := "N/A"
	if cw.count > 0 {
		ratio = fmt.Sprintf("%.2f:1", float64(bytesRead)/float64(cw.count))
	}
	fmt.Printf("Written %s (%d bytes), compression ratio %s\n",
		formatBytes(bytesRead), bytesRead, ratio)
	return nil
}
