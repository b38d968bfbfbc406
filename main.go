package main

import (
	"os"

	"github.com/AmrMurad1/tiny-store/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
