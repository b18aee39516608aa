package main

import (
	"os"

	"github.com/vsariola/stepseq/cmd"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
