package tools

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"
)

const ExitCodeNotFound int32 = 127

// waitDelay bounds how long a cancelled command may hold its output pipes.
const waitDelay = 2 * time.Second

// Invocation describes one external command. Dir is applied to the child
// process only; the caller's working directory is never changed.
type Invocation struct {
	Dir  string
	Name string
	Args []string
	// Env entries are appended to the inherited environment.
	Env []string
	// Stdin is handed to the child as is; nil means no input.
	Stdin io.Reader
	// Stdout and Stderr receive a live copy of the captured streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Result is the outcome of a finished command.
type Result struct {
	ExitCode int32
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

func (r Result) Success() bool {
	return r.ExitCode == 0
}

// CommandRunner abstracts command execution for the launcher.
type CommandRunner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// ExecRunner executes commands on the local host.
type ExecRunner struct {
	// BaseEnv replaces the inherited environment when non-nil.
	BaseEnv []string
}

func (r ExecRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	cmd := exec.CommandContext(ctx, inv.Name, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Stdin = inv.Stdin
	cmd.WaitDelay = waitDelay
	if r.BaseEnv != nil || len(inv.Env) > 0 {
		base := r.BaseEnv
		if base == nil {
			base = cmd.Environ()
		}
		cmd.Env = append(append([]string{}, base...), inv.Env...)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = tee(&stdout, inv.Stdout)
	cmd.Stderr = tee(&stderr, inv.Stderr)

	started := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(started),
	}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = int32(exitErr.ExitCode())
		if res.ExitCode < 0 {
			// killed by signal, usually context cancellation
			res.ExitCode = 1
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		return res, err
	}

	res.ExitCode = 1
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		res.ExitCode = ExitCodeNotFound
	}
	return res, err
}

func tee(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}

// CommandLine renders inv as a single shell-escaped line.
func CommandLine(inv Invocation) string {
	return joinCommand(inv.Name, inv.Args)
}

func joinCommand(cmd string, args []string) string {
	if len(args) == 0 {
		return shellEscape(cmd)
	}

	var builder strings.Builder
	builder.WriteString(shellEscape(cmd))
	for _, arg := range args {
		builder.WriteByte(' ')
		builder.WriteString(shellEscape(arg))
	}

	return builder.String()
}

func shellEscape(value string) string {
	if value == "" {
		return "''"
	}
	if !strings.ContainsAny(value, " \t\n'\"\\$`&|;<>()*?[]{}!#~") {
		return value
	}

	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

// Tail returns at most n trailing bytes of out, trimmed, for error messages.
// The cut never splits a multi-byte rune.
func Tail(out []byte, n int) string {
	s := strings.TrimSpace(string(out))
	if n > 0 && len(s) > n {
		cut := len(s) - n
		for cut < len(s) && !utf8.RuneStart(s[cut]) {
			cut++
		}
		s = "..." + s[cut:]
	}
	return s
}
