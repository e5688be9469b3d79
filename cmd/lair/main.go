// Package main provides the entry point for the lair CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/lair-ai/lair/cmd/lair/commands"
)

func main() {
	// A missing .env file is fine; environment variables still apply.
	_ = godotenv.Load()

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
