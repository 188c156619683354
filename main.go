package main

import (
	"os"

	"github.com/newhook/plclog/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
