package cli

import "fmt"

// ExitError carries the process exit code for command-specific failures,
// e.g. a scan that failed threshold gating.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("exit with code %d", e.Code)
	}
	return e.Message
}
