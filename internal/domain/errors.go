package domain

import "fmt"

// CommandError reports an external process that failed to spawn or exited
// non-zero. ExitCode is -1 when the process never produced a status.
type CommandError struct {
	Command  string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("command %q failed: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
}

func (e *CommandError) Unwrap() error { return e.Err }

// TransferError reports a network-level failure (connection, listing,
// upload or download) against a remote destination.
type TransferError struct {
	Op     string
	Target string
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Target, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
