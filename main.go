package main

import (
	"os"

	"github.com/divVerent/midicorrect/internal/cli"
)

func main() {
	os.Exit(cli.Main())
}
