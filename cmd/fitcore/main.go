// ABOUTME: Entry point for fitcore CLI.
// ABOUTME: Invokes the root Cobra command and releases the device on every exit path.
package main

import (
	"fmt"
	"os"
)

func main() {
	err := rootCmd.Execute()
	if cerr := closeAll(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
