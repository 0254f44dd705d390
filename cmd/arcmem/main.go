package main

import (
	"os"

	"github.com/arcmem/arcmem/cmd"
)

func main() {
	if err := cmd.CmdArcmem.Execute(); err != nil {
		os.Exit(1)
	}
}
