// Command csvcheck validates field inventory spreadsheets offline against a
// schema file, using the same rules as the import API.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
