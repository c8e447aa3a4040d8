// Command obpel manages compiled process definitions: it imports definition
// documents into a store, lists and prints them and resolves declarations.
package main

import (
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
