package latex

import "fmt"

// Error represents a general LaTeX toolchain error
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("latex error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("latex error: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// CompilationError represents a LaTeX compilation failure
type CompilationError struct {
	Message   string
	LogOutput string
	Cause     error
}

func (e *CompilationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("LaTeX compilation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("LaTeX compilation error: %s", e.Message)
}

func (e *CompilationError) Unwrap() error {
	return e.Cause
}

// ToolNotFoundError reports that a required executable is not on PATH.
type ToolNotFoundError struct {
	Tool  string
	Cause error
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("%s not found in PATH", e.Tool)
}

func (e *ToolNotFoundError) Unwrap() error {
	return e.Cause
}
