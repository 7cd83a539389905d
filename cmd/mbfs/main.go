// Command mbfs inspects and builds micro:bit MicroPython firmware images.
package main

import (
	"fmt"
	"os"

	"github.com/moffa90/go-mbfs/cmd/mbfs/cmd"
)

func main() {
	if err := cmd.Run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cmd.ExitCode(err))
	}
}
