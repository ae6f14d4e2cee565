package main

import (
	"os"

	"github.com/alapierre/go-parasut-client/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
