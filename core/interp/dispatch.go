package interp

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"

	"github.com/ushell/ush/core/parse"
)

// stdio is the effective standard streams of one stage after redirection.
type stdio struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

// dispatch executes one command in the pipe context prepared by runPipeline.
// It returns a non-nil handle iff the stage must be awaited; builtins run
// inline at the final stage return nil. inlineOK is false for background
// pipelines, which may not borrow the interpreter's own process.
//
// Redirection order is load-bearing: pipe wiring first, file redirection
// second, so a file named on a stream wins over the pipe on that stream.
func (e *Engine) dispatch(c *parse.Command, ps *pipeSet, inlineOK bool) (*stageHandle, error) {
	name := c.Args[0]

	if name == EndSentinel && !e.InStartup {
		return nil, ErrLogout
	}

	if b, ok := lookupBuiltin(name); ok {
		if c.Next == nil && inlineOK {
			return nil, e.runBuiltinInline(b, c, ps)
		}
		return e.startBuiltinStage(b, c, ps)
	}

	return e.startExternal(c, ps)
}

// runBuiltinInline executes a final-stage builtin in the interpreter's own
// process. The interpreter's streams are never rebound; the builtin just
// writes to the computed targets, so nothing needs restoring afterwards.
func (e *Engine) runBuiltinInline(b Builtin, c *parse.Command, ps *pipeSet) error {
	// Upstream already has its own copy of the write end; drop ours so a
	// builtin reading the pipe to exhaustion can see EOF.
	ps.releasePrevWrite()

	sio := stdio{in: e.Stdin, out: e.Stdout, err: e.Stderr}
	if r := ps.prev().r; r != nil {
		sio.in = r
	}

	closers, ok := e.applyFileRedirect(c, &sio)
	defer closeAll(closers)
	if !ok {
		return nil
	}

	_, err := e.runBuiltin(b, c, sio)
	return err
}

// startBuiltinStage runs a builtin as a concurrent pipeline stage. The
// goroutine takes ownership of the interpreter's pipe ends for this stage
// and closes them when the builtin returns, which is what propagates EOF
// downstream.
func (e *Engine) startBuiltinStage(b Builtin, c *parse.Command, ps *pipeSet) (*stageHandle, error) {
	var owned []io.Closer

	sio := stdio{in: e.Stdin, out: e.Stdout, err: e.Stderr}
	if r := ps.prev().r; r != nil {
		if r != ps.shellIn {
			owned = append(owned, r)
			ps.prev().r = nil
		}
		sio.in = r
	}
	if w := ps.cur().w; w != nil {
		if w != ps.shellOut {
			owned = append(owned, w)
			ps.cur().w = nil
		}
		sio.out = w
		if c.Out == parse.OutPipeErr {
			sio.err = w
		}
	}

	closers, ok := e.applyFileRedirect(c, &sio)
	owned = append(owned, closers...)
	if !ok {
		closeAll(owned)
		return failedStage(255), nil
	}

	h := &stageHandle{done: make(chan int, 1)}
	go func() {
		status, _ := e.runBuiltin(b, c, sio)
		closeAll(owned)
		h.done <- status
	}()
	return h, nil
}

// startExternal spawns a child process for an external program, searching
// PATH the way the operating system's loader convention does.
func (e *Engine) startExternal(c *parse.Command, ps *pipeSet) (*stageHandle, error) {
	cmd := exec.Command(c.Args[0], c.Args[1:]...)

	// Pipe redirection.
	cmd.Stdin = e.Stdin
	if r := ps.prev().r; r != nil {
		cmd.Stdin = r
	}
	cmd.Stdout = ps.cur().w
	cmd.Stderr = e.Stderr
	if c.Out == parse.OutPipeErr {
		cmd.Stderr = ps.cur().w
	}

	// File redirection overrides the pipe wiring per stream.
	var parentCopies []io.Closer
	if c.In == parse.InFromFile {
		f, err := os.Open(c.InFile)
		if err != nil {
			fmt.Fprintf(e.Stderr, "%s: No such file or directory.\n", c.InFile)
			closeAll(parentCopies)
			return failedStage(255), nil
		}
		parentCopies = append(parentCopies, f)
		cmd.Stdin = f
	}
	if c.Out.ToFile() {
		f, err := openOutFile(c)
		if err != nil {
			fmt.Fprintf(e.Stderr, "%s: %v\n", c.OutFile, err)
		} else {
			parentCopies = append(parentCopies, f)
			cmd.Stdout = f
			if c.Out.IncludesStderr() {
				cmd.Stderr = f
			}
		}
	}

	if err := cmd.Start(); err != nil {
		// The diagnostic lands on the stage's effective stdout, exactly
		// where the replaced program's output would have gone.
		e.reportExecError(cmd.Stdout, err)
		closeAll(parentCopies)
		return failedStage(255), nil
	}

	// The child has its own copies now.
	closeAll(parentCopies)
	return &stageHandle{cmd: cmd}, nil
}

// applyFileRedirect opens the files a command names and rebinds the stage's
// streams to them. A missing input file fails the stage; an unopenable
// output file is reported and the stream keeps its pipe target.
func (e *Engine) applyFileRedirect(c *parse.Command, sio *stdio) (closers []io.Closer, ok bool) {
	if c.In == parse.InFromFile {
		f, err := os.Open(c.InFile)
		if err != nil {
			fmt.Fprintf(e.Stderr, "%s: No such file or directory.\n", c.InFile)
			return closers, false
		}
		closers = append(closers, f)
		sio.in = f
	}
	if c.Out.ToFile() {
		f, err := openOutFile(c)
		if err != nil {
			fmt.Fprintf(e.Stderr, "%s: %v\n", c.OutFile, err)
			return closers, true
		}
		closers = append(closers, f)
		sio.out = f
		if c.Out.IncludesStderr() {
			sio.err = f
		}
	}
	return closers, true
}

func openOutFile(c *parse.Command) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if c.Out.Appends() {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	return os.OpenFile(c.OutFile, flags, 0644)
}

// reportExecError distinguishes the ways loading a program can fail.
func (e *Engine) reportExecError(w io.Writer, err error) {
	switch {
	case errors.Is(err, exec.ErrNotFound):
		fmt.Fprintln(w, "command not found")
	case errors.Is(err, fs.ErrPermission):
		fmt.Fprintln(w, "permission denied")
	default:
		fmt.Fprintln(w, err)
	}
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
