// Command talaria is the CLI for the content-addressed, bi-temporal
// sequence database engine.
package main

import (
	"fmt"
	"os"

	"github.com/talaria-db/talaria/cmd/talaria/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "talaria:", err)
		os.Exit(1)
	}
}
