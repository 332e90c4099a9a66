// The main package for the courtscraper executable.
package main

import (
	"github.com/Fennzo/CourtScrapper/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
