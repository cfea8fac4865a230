package main

import (
	"fmt"
	"os"

	"github.com/YuminosukeSato/mlcompare/config"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
)

func main() {
	config.LoadDotEnv()
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitError)
	}
	os.Exit(ExitSuccess)
}
