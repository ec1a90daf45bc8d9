// Command mira samples frames from a camera or video file, runs one
// recognition analyzer over them and publishes the results.
//
// Usage:
//
//	mira [flags] <command> [args]
//
// Commands:
//
//	run      - analyze frames until interrupted or the input ends
//	initdb   - create the PostgreSQL schema
//	search   - find stored analyses similar to a query
//	history  - print stored results of a session
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
