package main

import (
	"errors"
	"os"

	"github.com/tesseralab/tessera/cmd/tessera/cli"
	"github.com/tesseralab/tessera/internal/task"
)

func main() {
	err := cli.Execute()
	if err == nil {
		return
	}

	// A task child's exit code passes through untouched so tessera run
	// behaves like the command it wraps.
	var exitErr *task.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	os.Exit(1)
}
