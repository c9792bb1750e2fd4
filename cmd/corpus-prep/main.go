// main package for the corpus-prep command.
package main

import (
	"os"

	"github.com/book-expert/corpus-prep/cmd/corpus-prep/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
