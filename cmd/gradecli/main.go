package main

import (
	"os"

	"gradecli/cmd/gradecli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
