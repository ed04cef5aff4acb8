// Package latex compiles LaTeX source to PDF and inspects the result.
package latex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	// CompilationTimeout is the maximum time to wait for a single LaTeX compilation
	CompilationTimeout = 30 * time.Second

	// DefaultBinary is the compiler used when Compiler.Binary is empty
	DefaultBinary = "pdflatex"

	jobName = "resume"
)

// Compiler runs a LaTeX engine in a throwaway working directory.
type Compiler struct {
	// Binary is the engine executable, pdflatex by default.
	Binary string
	// Timeout bounds one compilation when ctx carries no earlier deadline.
	Timeout time.Duration
}

// NewCompiler returns a Compiler for binary with the default timeout.
func NewCompiler(binary string) *Compiler {
	return &Compiler{Binary: binary, Timeout: CompilationTimeout}
}

func (c *Compiler) binary() string {
	if c == nil || c.Binary == "" {
		return DefaultBinary
	}
	return c.Binary
}

// Available reports whether the engine binary can be found on PATH.
func (c *Compiler) Available() error {
	bin := c.binary()
	if _, err := exec.LookPath(bin); err != nil {
		return &ToolNotFoundError{Tool: bin, Cause: err}
	}
	return nil
}

// Compile compiles src and returns the PDF bytes. The working directory is
// removed before returning. A PDF produced despite a non-zero exit status is
// returned without error, since pdflatex emits usable output for many
// recoverable errors. When ctx expires the returned error wraps ctx.Err().
func (c *Compiler) Compile(ctx context.Context, src string) ([]byte, error) {
	if err := c.Available(); err != nil {
		return nil, err
	}

	timeout := CompilationTimeout
	if c != nil && c.Timeout > 0 {
		timeout = c.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	workDir, err := os.MkdirTemp("", "latex-compile-*")
	if err != nil {
		return nil, &CompilationError{
			Message: "failed to create temporary working directory",
			Cause:   err,
		}
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	texPath := filepath.Join(workDir, jobName+".tex")
	if err := os.WriteFile(texPath, []byte(src), 0o644); err != nil {
		return nil, &CompilationError{
			Message: fmt.Sprintf("failed to write LaTeX file to working directory: %s", workDir),
			Cause:   err,
		}
	}

	// -interaction=nonstopmode keeps pdflatex from waiting on stdin
	cmd := exec.CommandContext(ctx, c.binary(),
		"-interaction=nonstopmode",
		"-halt-on-error",
		"-output-directory", workDir,
		texPath,
	)
	cmd.Dir = workDir

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	logOutput := stdout.String() + stderr.String()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &CompilationError{
			Message:   "LaTeX compilation did not finish in time",
			LogOutput: logOutput,
			Cause:     ctxErr,
		}
	}

	pdfData, readErr := os.ReadFile(filepath.Join(workDir, jobName+".pdf"))
	if readErr != nil {
		if errors.Is(readErr, os.ErrNotExist) {
			return nil, &CompilationError{
				Message:   "LaTeX compilation failed: PDF was not generated",
				LogOutput: logOutput,
				Cause:     runErr,
			}
		}
		return nil, &CompilationError{
			Message:   "failed to read generated PDF",
			LogOutput: logOutput,
			Cause:     readErr,
		}
	}

	return pdfData, nil
}

// FirstErrorLine extracts the first "!" error line from a pdflatex log, which
// is usually the only line a human needs.
func FirstErrorLine(logOutput string) string {
	for _, line := range strings.Split(logOutput, "\n") {
		if strings.HasPrefix(line, "!") {
			return strings.TrimSpace(line)
		}
	}
	return ""
}
