// The main package for the movierank executable.
package main

import (
	"github.com/JakeFAU/movierank/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
