// The main package for the sitelogo executable.
package main

import (
	"os"

	"github.com/belingud/mao-nav/cmd"
)

// main defers all execution to the Cobra CLI and exits with its status.
func main() {
	os.Exit(cmd.Execute())
}
