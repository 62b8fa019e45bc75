// Command simulate exercises the classa session engine against an
// in-process join server and network server, so its OTAA handshake and
// data framing can be inspected without any physical radio.
package main

import (
	"fmt"
	"os"

	"github.com/tinylora/classa/cmd/simulate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
