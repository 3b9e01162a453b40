// Command methodgraph manages versioned methodology graphs with change
// control: draft editing, release promotion, and proposal review.
package main

import (
	"os"

	"github.com/crafthaus/methodgraph/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
