package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess   = 0 // Evaluation produced a result
	ExitRowFailed = 1 // One or more batch rows failed to evaluate
	ExitError     = 2 // Configuration or runtime error
)

// RowFailureError indicates the batch ran to completion, but one or
// more rows failed to produce a result.
type RowFailureError struct {
	Message string
}

func (e *RowFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var rowFailureErr *RowFailureError
		if errors.As(err, &rowFailureErr) {
			os.Exit(ExitRowFailed)
		}

		// All other errors are configuration/runtime errors
		os.Exit(ExitError)
	}
}
