package main

import (
	"fmt"
	"os"

	"Verity/internal/logger"
)

func main() {
	logger.Init()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
