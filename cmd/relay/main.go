// Command relay is the environment-facing CLI for the framework: it runs a
// bundled demo server over stdio or HTTP, inspects a server's registered
// components, and writes a minimal host config stub for third-party MCP
// clients to launch it.
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
