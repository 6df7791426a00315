package main

import (
	"os"

	"github.com/MeKo-Tech/labelscan/cmd/labelscan/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
