// Talon is an intercepting HTTP/HTTPS forward-proxy: it authenticates
// clients, forwards and tunnels their traffic, and optionally extracts and
// ships structured documents from intercepted response bodies.
package main

import (
	"flag"
	"fmt"
	"os"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("talon", flag.ContinueOnError)
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := run(fs, os.Args[1:], showVersion); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
