package main

import (
	"os"

	"docbench/cmd/docbench/commands"
)

func main() {
	os.Exit(commands.Execute())
}
