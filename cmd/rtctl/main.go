// Command rtctl extracts relative times from the command line and manages
// compiled knowledge base snapshots.
//
// Usage:
//
//	rtctl parse "logs from 5 days ago" [--ref 2024-06-01T00:00:00Z] [--json]
//	rtctl dates "sales between 2014-2015 and last year"
//	rtctl kb compile --seed seed.yaml --out data/kb.rtkb
//	rtctl kb check [--snapshot data/kb.rtkb]
//	rtctl kb stats
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
