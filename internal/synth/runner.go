package synth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Cmd is one external process invocation.
type Cmd struct {
	Dir  string
	Argv []string
	// Interactive attaches the process to the terminal instead of capturing
	// its output.
	Interactive bool
}

// Output is what a finished process produced.
type Output struct {
	Command  string `json:"command"`
	Dir      string `json:"dir"`
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output,omitempty"`
}

func (o Output) String() string {
	return o.Output
}

// Runner starts external processes for shell, execute, edit and
// run-script commands.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (Output, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner returns a runner wired to the process's standard streams
// for interactive commands.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

func (r *ExecRunner) Run(ctx context.Context, c Cmd) (Output, error) {
	out := Output{Command: strings.Join(c.Argv, " "), Dir: c.Dir}
	if len(c.Argv) == 0 {
		return out, errors.New("empty command")
	}

	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Dir = c.Dir

	var buf bytes.Buffer
	if c.Interactive {
		cmd.Stdin, cmd.Stdout, cmd.Stderr = r.Stdin, r.Stdout, r.Stderr
	} else {
		cmd.Stdout = &buf
		cmd.Stderr = &buf
	}

	err := cmd.Run()
	out.Output = buf.String()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, fmt.Errorf("%s exited with code %d: %s", out.Command, out.ExitCode, strings.TrimSpace(out.Output))
		}
		if errors.Is(err, exec.ErrNotFound) {
			return out, fmt.Errorf("%w: %s", ErrNoInterpreter, c.Argv[0])
		}
		return out, fmt.Errorf("failed to run %s: %w", out.Command, err)
	}
	return out, nil
}
