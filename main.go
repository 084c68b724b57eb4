package main

import (
	"os"

	"github.com/CWILDMOUNTAIN/ha-wattwise/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
