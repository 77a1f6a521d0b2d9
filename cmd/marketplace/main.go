package main

import (
	"os"

	"github.com/vendorlink/marketplace/cmd/marketplace/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
