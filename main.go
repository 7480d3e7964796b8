// Package main is the entry point for pcapfix, the capture checksum normalizer.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/pcapfix/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
