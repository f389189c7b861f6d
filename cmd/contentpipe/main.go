package main

import (
	"os"

	"github.com/shortforge/contentpipe/cmd/contentpipe/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
