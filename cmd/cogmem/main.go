package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/rcliao/cogmem/internal/cli"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
