package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:     "scanflash",
		Short:   "Scan flash media to detect fakes",
		Long:    "Writes a verification pattern across a storage device, reads it back,\nand fences off anything that does not survive the round trip.",
		Version: appversion,
	}

	var (
		assumeYes bool
		skipMBR   bool
	)
	scanCmd := &cobra.Command{
		Use:   "scan DEVICE",
		Short: "Destructively verify a device's real capacity",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			checkForPerms(args[0])
			os.Exit(runScan(args[0], assumeYes, skipMBR))
		},
	}
	scanCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the destructive-operation confirmation")
	scanCmd.Flags().BoolVar(&skipMBR, "no-mbr", false, "verify only, do not write a replacement partition table")

	partCmd := &cobra.Command{
		Use:     "partitions DEVICE",
		Aliases: []string{"p", "part"},
		Short:   "List the MBR partition entries of a device",
		Args:    cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			checkForPerms(args[0])
			if err := listPartitions(args[0]); err != nil {
				fmt.Println(err.Error())
				os.Exit(retNoOpen)
			}
		},
	}

	var (
		gzipOpt, zlibOpt, bzipOpt, snappyOpt, s2Opt, zstdOpt, zipOpt bool
	)
	imageCmd := &cobra.Command{
		Use:   "image DEVICE OUTPUTFILE",
		Short: "Back up a device to a compressed image before scanning",
		Args:  cobra.ExactArgs(2),
		Run: func(_ *cobra.Command, args []string) {
			checkForPerms(args[0])
			methods := map[string]bool{
				"gzip":   gzipOpt,
				"zlib":   zlibOpt,
				"bzip2":  bzipOpt,
				"snappy": snappyOpt,
				"s2":     s2Opt,
				"zstd":   zstdOpt,
				"zip":    zipOpt,
			}
			selected := ""
			for method, on := range methods {
				if !on {
					continue
				}
				if selected != "" {
					fmt.Println("You can only use one compression method")
					os.Exit(retBadArgs)
				}
				selected = method
			}
			if selected == "" {
				selected = "gzip"
			}
			if err := imageDevice(args[0], args[1], selected); err != nil {
				fmt.Printf("Error during imaging: %v\n", err)
				os.Exit(retNoOpen)
			}
		},
	}
	imageCmd.Flags().BoolVar(&gzipOpt, "gzip", false, "gzip (default)")
	imageCmd.Flags().BoolVar(&zlibOpt, "zlib", false, "zlib")
	imageCmd.Flags().BoolVar(&bzipOpt, "bzip2", false, "bzip2")
	imageCmd.Flags().BoolVar(&snappyOpt, "snappy", false, "snappy")
	imageCmd.Flags().BoolVar(&s2Opt, "s2", false, "s2")
	imageCmd.Flags().BoolVar(&zstdOpt, "zstd", false, "zstd")
	imageCmd.Flags().BoolVar(&zipOpt, "zip", false, "zip")

	disksCmd := &cobra.Command{
		Use:     "disks",
		Aliases: []string{"d"},
		Short:   "List candidate block devices",
		Run: func(_ *cobra.Command, _ []string) {
			listDisks()
		},
	}

	var (
		dumpCount  int
		dumpOffset int64
	)
	dumpCmd := &cobra.Command{
		Use:   "dump DEVICE",
		Short: "Hexdump device bytes (e.g. the freshly written boot sector)",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			checkForPerms(args[0])
			if err := printDeviceBytes(args[0], dumpCount, dumpOffset); err != nil {
				fmt.Printf("Error reading %d bytes from offset %d: %v\n", dumpCount, dumpOffset, err)
				os.Exit(retNoOpen)
			}
		},
	}
	dumpCmd.Flags().IntVarP(&dumpCount, "count", "c", mbrLen, "number of bytes to dump")
	dumpCmd.Flags().Int64VarP(&dumpOffset, "offset", "o", 0, "byte offset to start at")

	root.AddCommand(scanCmd, partCmd, imageCmd, disksCmd, dumpCmd)

	if err := root.Execute(); err != nil {
		fmt.Println(err.Error())
		os.Exit(retBadArgs)
	}
}
