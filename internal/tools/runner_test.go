package tools

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/danmuck/genctl/internal/testutil/testlog"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestJoinCommandEscaping(t *testing.T) {
	got := joinCommand("echo", []string{"a b", "quote'v", "plain"})
	want := "echo 'a b' 'quote'\"'\"'v' plain"
	if got != want {
		t.Fatalf("unexpected joined command\nwant: %s\ngot:  %s", want, got)
	}
	if got := shellEscape(""); got != "''" {
		t.Fatalf("unexpected empty escape: %s", got)
	}
}

func TestExecRunnerUsesInvocationDir(t *testing.T) {
	testlog.Start(t)
	requireShell(t)

	dir := t.TempDir()
	var live bytes.Buffer
	res, err := ExecRunner{}.Run(context.Background(), Invocation{
		Dir:    dir,
		Name:   "sh",
		Args:   []string{"-c", "pwd"},
		Stdout: &live,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Success() {
		t.Fatalf("unexpected exit code: %d", res.ExitCode)
	}
	want, _ := filepath.EvalSymlinks(dir)
	got, _ := filepath.EvalSymlinks(strings.TrimSpace(string(res.Stdout)))
	if got != want {
		t.Fatalf("unexpected child dir: %q want %q", got, want)
	}
	if live.String() != string(res.Stdout) {
		t.Fatalf("expected live stdout copy, got %q", live.String())
	}
}

func TestExecRunnerExitCodeAndEnv(t *testing.T) {
	requireShell(t)

	res, err := ExecRunner{}.Run(context.Background(), Invocation{
		Name: "sh",
		Args: []string{"-c", `echo "$GENCTL_STEP" >&2; exit 3`},
		Env:  []string{"GENCTL_STEP=network"},
	})
	if err == nil {
		t.Fatalf("expected exit error")
	}
	if res.ExitCode != 3 {
		t.Fatalf("unexpected exit code: %d", res.ExitCode)
	}
	if strings.TrimSpace(string(res.Stderr)) != "network" {
		t.Fatalf("unexpected stderr: %q", res.Stderr)
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	res, err := ExecRunner{}.Run(context.Background(), Invocation{Name: "genctl-no-such-interpreter"})
	if err == nil {
		t.Fatalf("expected lookup error")
	}
	if res.ExitCode != ExitCodeNotFound {
		t.Fatalf("unexpected exit code: %d", res.ExitCode)
	}
}

func TestExecRunnerContextCancel(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res, err := ExecRunner{}.Run(ctx, Invocation{Name: "sh", Args: []string{"-c", "exec sleep 5"}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if res.Success() {
		t.Fatalf("expected non-zero exit code")
	}
}

func TestTail(t *testing.T) {
	if got := Tail([]byte("  short \n"), 10); got != "short" {
		t.Fatalf("unexpected tail: %q", got)
	}
	if got := Tail([]byte("0123456789"), 4); got != "...6789" {
		t.Fatalf("unexpected tail: %q", got)
	}
}

func TestExecRunnerPassesStdin(t *testing.T) {
	requireShell(t)

	res, err := ExecRunner{}.Run(context.Background(), Invocation{
		Name:  "sh",
		Args:  []string{"-c", `read x; echo "got=$x"`},
		Stdin: strings.NewReader("y\n"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := strings.TrimSpace(string(res.Stdout)); got != "got=y" {
		t.Fatalf("child did not read stdin: %q", got)
	}
}

func TestTailKeepsRuneBoundaries(t *testing.T) {
	// "é" is two bytes; a three byte tail would start inside the first one.
	got := Tail([]byte("error: ééé"), 3)
	if got != "...é" {
		t.Fatalf("unexpected tail: %q", got)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("tail is not valid utf-8: %q", got)
	}
	if got := Tail([]byte("  short \n"), 64); got != "short" {
		t.Fatalf("unexpected short tail: %q", got)
	}
}
