// Command acrecall indexes acceptance criteria into an embedding store and
// uses them to search, generate tests, analyze failures, and trace coverage.
// It provides a CLI (via Cobra) and an optional HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/acrecall/cmd/acrecall/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
