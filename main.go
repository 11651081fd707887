package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/keboola/db-extractor-common-sub000/cli"
)

func main() {
	// a .env file is optional, the environment is used as is without it
	_ = godotenv.Load()

	os.Exit(cli.Execute())
}
