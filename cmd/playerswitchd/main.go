// Package main is the entry point for the player switch daemon.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(daemonOptions{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
