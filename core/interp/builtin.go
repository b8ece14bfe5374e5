package interp

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pborman/getopt/v2"
	"golang.org/x/sys/unix"

	"github.com/ushell/ush/core/parse"
)

// Builtin enumerates the commands implemented inside the interpreter. The
// set is closed; runBuiltin matches it exhaustively.
type Builtin int

const (
	BuiltinCd Builtin = iota
	BuiltinEcho
	BuiltinLogout
	BuiltinNice
	BuiltinPwd
	BuiltinSetenv
	BuiltinUnsetenv
	BuiltinWhere
	BuiltinHistory
)

var builtinsByName = map[string]Builtin{
	"cd":       BuiltinCd,
	"echo":     BuiltinEcho,
	"logout":   BuiltinLogout,
	"nice":     BuiltinNice,
	"pwd":      BuiltinPwd,
	"setenv":   BuiltinSetenv,
	"unsetenv": BuiltinUnsetenv,
	"where":    BuiltinWhere,
	"history":  BuiltinHistory,
}

func lookupBuiltin(name string) (Builtin, bool) {
	b, ok := builtinsByName[name]
	return b, ok
}

// runBuiltin invokes one builtin with its command's full argument list. The
// returned error is only ever ErrLogout; inline callers propagate it while
// pipeline-stage callers treat it as a normal stage exit, matching a child
// process that exits.
func (e *Engine) runBuiltin(b Builtin, c *parse.Command, sio stdio) (int, error) {
	switch b {
	case BuiltinCd:
		return e.cd(c, sio), nil
	case BuiltinEcho:
		return echo(c, sio), nil
	case BuiltinLogout:
		return 0, ErrLogout
	case BuiltinNice:
		return e.nice(c, sio)
	case BuiltinPwd:
		return pwd(c, sio), nil
	case BuiltinSetenv:
		return setenv(c, sio), nil
	case BuiltinUnsetenv:
		return unsetenv(c, sio), nil
	case BuiltinWhere:
		return e.where(c, sio), nil
	case BuiltinHistory:
		return e.history(c, sio), nil
	}
	return 1, nil
}

// cd switches the interpreter's working directory; without an argument it
// goes home. No path expansion is performed.
func (e *Engine) cd(c *parse.Command, sio stdio) int {
	if len(c.Args) == 1 {
		_ = os.Chdir(os.Getenv("HOME"))
		return 0
	}

	dir := c.Args[1]
	err := os.Chdir(dir)
	if err == nil {
		return 0
	}
	switch {
	// ENOTDIR first: it also satisfies fs.ErrNotExist.
	case errors.Is(err, unix.ENOTDIR):
		fmt.Fprintf(sio.out, "%s: Not a directory.\n", dir)
	case errors.Is(err, fs.ErrPermission):
		fmt.Fprintf(sio.out, "%s: Permission denied.\n", dir)
	case errors.Is(err, fs.ErrNotExist):
		fmt.Fprintf(sio.out, "%s: No such file or directory.\n", dir)
	default:
		fmt.Fprintf(sio.out, "%s: %v\n", dir, err)
	}
	return 1
}

// echo writes its arguments separated by single spaces, newline-terminated.
// With no arguments it writes nothing at all.
func echo(c *parse.Command, sio stdio) int {
	if len(c.Args) > 1 {
		fmt.Fprintln(sio.out, strings.Join(c.Args[1:], " "))
	}
	return 0
}

const (
	defaultNice = 4
	minNice     = -19
	maxNice     = 20
)

// nice adjusts the interpreter's scheduling priority and optionally runs a
// trailing command at it. A forked child inherits the priority and it is
// preserved across exec.
func (e *Engine) nice(c *parse.Command, sio stdio) (int, error) {
	prio := defaultNice
	var trailing []string

	if len(c.Args) > 1 {
		if n, err := strconv.Atoi(c.Args[1]); err == nil {
			prio = n
			if prio < minNice {
				prio = minNice
			} else if prio > maxNice {
				prio = maxNice
			}
			trailing = c.Args[2:]
		} else {
			trailing = c.Args[1:]
		}
	}

	// Only the superuser may lower priorities; failure is not reported.
	_ = unix.Setpriority(unix.PRIO_PROCESS, 0, prio)

	if len(trailing) == 0 {
		return 0, nil
	}
	return e.runTrailing(trailing, sio)
}

// runTrailing dispatches nice's trailing words as a fresh command with no
// redirection of its own; it inherits nice's effective streams.
func (e *Engine) runTrailing(args []string, sio stdio) (int, error) {
	if b, ok := lookupBuiltin(args[0]); ok {
		return e.runBuiltin(b, &parse.Command{Args: args}, sio)
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdin = sio.in
	cmd.Stdout = sio.out
	cmd.Stderr = sio.err

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return exitStatus(err), nil
	}
	e.reportExecError(sio.out, err)
	return 255, nil
}

// pwd prints the absolute working directory.
func pwd(c *parse.Command, sio stdio) int {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(sio.out, "pwd: %v\n", err)
		return 1
	}
	fmt.Fprintln(sio.out, wd)
	return 0
}

// setenv prints the environment, or sets a variable to the given word or to
// the empty string.
func setenv(c *parse.Command, sio stdio) int {
	switch len(c.Args) {
	case 1:
		for _, kv := range os.Environ() {
			fmt.Fprintln(sio.out, kv)
		}
	case 2:
		_ = os.Setenv(c.Args[1], "")
	default:
		_ = os.Setenv(c.Args[1], c.Args[2])
	}
	return 0
}

// unsetenv removes the named environment variable.
func unsetenv(c *parse.Command, sio stdio) int {
	if len(c.Args) < 2 {
		fmt.Fprintln(sio.out, "unsetenv: too few arguments")
		return 1
	}
	_ = os.Unsetenv(c.Args[1])
	return 0
}

// where reports every known instance of a command: the builtin if there is
// one, then every executable non-directory file by that name in PATH.
func (e *Engine) where(c *parse.Command, sio stdio) int {
	if len(c.Args) < 2 {
		fmt.Fprintln(sio.out, "where: too few arguments")
		return 1
	}

	name := c.Args[1]
	if _, ok := lookupBuiltin(name); ok {
		fmt.Fprintln(sio.out, name)
	}

	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		if dir == "" {
			dir = "."
		}
		full := filepath.Join(dir, name)
		if isExecutable(e.FS, full) {
			fmt.Fprintln(sio.out, full)
		}
	}
	return 0
}

// history prints or clears the interactive history. Without an interactive
// shell attached it does nothing.
func (e *Engine) history(c *parse.Command, sio stdio) int {
	opts := getopt.New()
	clear := opts.Bool('c', "clear the history by deleting all entries")
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	if err := opts.Getopt(c.Args, nil); err != nil || *helpOpt {
		if err != nil {
			fmt.Fprintln(sio.err, err)
		}
		fmt.Fprintln(sio.err, "usage: history [-c]")
		opts.PrintOptions(sio.err)
		return 1
	}

	if e.Hist == nil {
		return 0
	}
	if *clear {
		e.Hist.Clear()
		return 0
	}
	for i, line := range e.Hist.List() {
		fmt.Fprintf(sio.out, "% 5d  %s\n", i+1, line)
	}
	return 0
}
