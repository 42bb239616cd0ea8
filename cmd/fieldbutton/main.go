// Package main provides the fieldbutton binary entry point.
// fieldbutton registers the "Archivo electrónico" field type with Bitrix24
// and serves the script the CRM uses to render it.
package main

import (
	"fmt"
	"os"
)

// version is set via ldflags at build time.
var version = "1.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
