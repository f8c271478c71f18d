package main

import (
	"os"

	"github.com/scan-io-git/finding-sync/cmd"
)

func main() {
	code := cmd.Execute()
	os.Exit(code)
}
