package orchestrator

import "fmt"

// ToolUnavailableError reports that the model requested a tool that is
// not part of the catalog offered to it.
type ToolUnavailableError struct {
	Tool string
}

func (e *ToolUnavailableError) Error() string {
	return fmt.Sprintf("requested tool %q is not available", e.Tool)
}

// InvalidArgumentsError reports function-call arguments that are not a
// JSON object.
type InvalidArgumentsError struct {
	Reason string
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid function arguments: %s", e.Reason)
}

// RoundLimitError reports a run that kept requesting tools past the
// configured round cap.
type RoundLimitError struct {
	Limit int
}

func (e *RoundLimitError) Error() string {
	return fmt.Sprintf("agent loop exceeded %d rounds", e.Limit)
}
