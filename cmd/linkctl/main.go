package main

import (
	"os"

	"github.com/wikilink-dev/wikilinkd/cmd/linkctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
