package mcp

import "fmt"

// BadRequestError reports tool input that failed validation before any
// upstream call was made.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string  { return e.Message }
func (e *BadRequestError) HTTPStatus() int { return 400 }

// CredentialsMissingError reports a plugin registration whose config
// carries no usable credentials.
type CredentialsMissingError struct {
	Plugin string
}

func (e *CredentialsMissingError) Error() string {
	return fmt.Sprintf("no credentials configured for plugin %q", e.Plugin)
}

func (e *CredentialsMissingError) HTTPStatus() int { return 400 }

// ExecutionError wraps an upstream failure. StatusCode is the upstream
// HTTP status when one was received, zero otherwise.
type ExecutionError struct {
	Tool       string
	StatusCode int
	Cause      error
}

func (e *ExecutionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("tool %q failed (status %d): %v", e.Tool, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

func (e *ExecutionError) HTTPStatus() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return 500
}

// NotImplementedError reports a tool name the connector does not
// implement.
type NotImplementedError struct {
	Plugin string
	Tool   string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("plugin %q has no tool %q", e.Plugin, e.Tool)
}

func (e *NotImplementedError) HTTPStatus() int { return 400 }

// UnsupportedPluginError reports a plugin name no connector is
// registered for.
type UnsupportedPluginError struct {
	Plugin string
}

func (e *UnsupportedPluginError) Error() string {
	return fmt.Sprintf("unsupported MCP plugin %q", e.Plugin)
}

func (e *UnsupportedPluginError) HTTPStatus() int { return 400 }
