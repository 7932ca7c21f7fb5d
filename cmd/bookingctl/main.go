// Command bookingctl runs maintenance and inspection tasks against the
// booking store: schema migration, demo seeding, day evaluation,
// availability lookups and token minting.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
