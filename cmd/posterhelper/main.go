package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"posterhelper/internal/poster"
)

const (
	exitFailure = 1
	exitConfig  = 2
)

func main() {
	err := newRootCommand().Execute()
	if err != nil {
		os.Exit(reportError(os.Stderr, err))
	}
}

// reportError prints err for the user and returns the process exit code.
// Interrupted runs print nothing; configuration errors get exit code 2 and a
// pointer to the config commands.
func reportError(w io.Writer, err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return exitFailure
	case poster.IsConfiguration(err):
		fmt.Fprintf(w, "configuration error: %v\n", err)
		fmt.Fprintln(w, "Fix the config file, or run `posterhelper config init` to write a sample.")
		return exitConfig
	default:
		fmt.Fprintln(w, err)
		return exitFailure
	}
}
