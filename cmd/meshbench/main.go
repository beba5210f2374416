package main

import (
	"os"

	"github.com/packagewjx/meshbench/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
