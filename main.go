// The main package for the aqfetch executable.
package main

import (
	"github.com/aeropoint/aqfetch/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
