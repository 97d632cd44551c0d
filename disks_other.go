//go:build !linux

package main

import "fmt"

func listDisks() {
	fmt.Println("Device enumeration is only available on Linux; pass the device path directly.")
}
