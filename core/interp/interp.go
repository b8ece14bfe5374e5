// Package interp executes parsed pipelines: it spawns child processes,
// wires pipes and file redirections, dispatches builtins and supervises
// completion.
package interp

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"github.com/ushell/ush/core/config"
	"github.com/ushell/ush/core/parse"
)

// ErrLogout is returned when a command asked the interpreter to exit.
// Callers should treat it as a clean shutdown, not a failure.
var ErrLogout = errors.New("logout")

// EndSentinel terminates startup-file processing and, outside of it, the
// session.
const EndSentinel = "end"

// HistoryHooks back the history builtin. The interactive shell installs
// them; a non-interactive engine leaves them nil and the builtin is a no-op.
type HistoryHooks struct {
	List  func() []string
	Clear func()
}

// Job records one background pipeline.
type Job struct {
	ID   int
	PIDs []int
}

// Engine runs pipeline sequences against the real operating system.
type Engine struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// FS backs executable lookups in the where builtin so tests can
	// substitute a memory filesystem.
	FS afero.Fs

	// AbortMode is config.AbortLegacy or config.AbortStrict and selects
	// the pipeline failure check.
	AbortMode string

	// InStartup marks rc-file processing; the end sentinel terminates the
	// session only outside of it.
	InStartup bool

	// Hist, when set, backs the history builtin.
	Hist *HistoryHooks

	jobs  []Job
	jobID int
}

// New returns an engine bound to the process's own standard streams.
func New(cfg *config.Configuration) *Engine {
	return &Engine{
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		FS:        afero.NewOsFs(),
		AbortMode: cfg.AbortMode,
	}
}

// ExecSequence runs every pipeline of one parsed input line, in order.
// Sibling pipelines run regardless of an earlier pipeline's failure. The
// only error returned is ErrLogout.
func (e *Engine) ExecSequence(seq *parse.Pipeline) error {
	for p := seq; p != nil; p = p.Next {
		switch {
		case p.Kind == parse.SyntaxError:
			fmt.Fprintln(e.Stderr, "ush: syntax error")
		case p.Head == nil:
			// empty pipeline, nothing to do
		case p.Kind == parse.Background:
			if err := e.runPipeline(p, true); err != nil {
				return err
			}
		default:
			if err := e.runPipeline(p, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// Jobs returns the background job records registered so far.
func (e *Engine) Jobs() []Job {
	return e.jobs
}

// pipePair is one unidirectional channel between adjacent stages.
type pipePair struct {
	r, w *os.File
}

// pipeSet holds the two pipe pairs a pipeline execution alternates between,
// plus the parity flag selecting the active one. It is private to a single
// runPipeline call; concurrent pipeline executions never share one.
type pipeSet struct {
	pairs    [2]pipePair
	parity   int
	shellIn  *os.File
	shellOut *os.File
}

func newPipeSet(in, out *os.File) *pipeSet {
	ps := &pipeSet{shellIn: in, shellOut: out}
	// The first stage reads the shell's own stdin.
	ps.pairs[0].r = in
	return ps
}

func (ps *pipeSet) flip() { ps.parity = 1 - ps.parity }

// cur is the pair the current stage writes into.
func (ps *pipeSet) cur() *pipePair { return &ps.pairs[ps.parity] }

// prev is the pair the current stage reads from.
func (ps *pipeSet) prev() *pipePair { return &ps.pairs[1-ps.parity] }

// closePair closes the interpreter's copies of a pair's descriptors. The
// shell's own streams are never closed.
func (ps *pipeSet) closePair(p *pipePair) {
	if p.r != nil && p.r != ps.shellIn {
		p.r.Close()
	}
	if p.w != nil && p.w != ps.shellOut {
		p.w.Close()
	}
	p.r, p.w = nil, nil
}

// closeAll releases every descriptor the interpreter still holds. The
// children got their own copies at start; keeping ours open would hold
// downstream readers from ever seeing EOF.
func (ps *pipeSet) closeAll() {
	ps.closePair(&ps.pairs[0])
	ps.closePair(&ps.pairs[1])
}

// releasePrevWrite closes the interpreter's copy of the upstream pipe's
// write end. It is needed before running an inline builtin that might read
// the pipe to exhaustion.
func (ps *pipeSet) releasePrevWrite() {
	p := ps.prev()
	if p.w != nil && p.w != ps.shellOut {
		p.w.Close()
		p.w = nil
	}
}

// runPipeline dispatches every stage of one pipeline, closes the pipe
// descriptors the interpreter still holds, then waits for as many stages as
// actually spawned. Background pipelines are reaped asynchronously and
// registered as jobs instead.
func (e *Engine) runPipeline(p *parse.Pipeline, background bool) error {
	ps := newPipeSet(e.Stdin, e.Stdout)
	var stages []*stageHandle

	for c := p.Head; c != nil; c = c.Next {
		ps.flip()
		// Descriptors from two stages ago are no longer the shell's business.
		ps.closePair(ps.cur())

		if c.Next != nil {
			r, w, err := os.Pipe()
			if err != nil {
				fmt.Fprintf(e.Stderr, "ush: pipe: %v\n", err)
				break
			}
			ps.cur().r, ps.cur().w = r, w
		} else {
			ps.cur().r, ps.cur().w = nil, e.Stdout
		}

		h, err := e.dispatch(c, ps, !background)
		if err != nil {
			ps.closeAll()
			e.await(stages)
			return err
		}
		if h != nil {
			stages = append(stages, h)
		}
	}

	ps.closeAll()

	if background {
		e.registerJob(stages)
		go e.await(stages)
		return nil
	}

	e.await(stages)
	return nil
}

// await collects one termination per spawned stage. When a stage's status
// counts as a failure, the pipeline's remaining stages are signalled; the
// rest of the sequence is unaffected.
func (e *Engine) await(stages []*stageHandle) {
	aborted := false
	for i, h := range stages {
		status := h.wait()
		if aborted || !e.stageFailed(status) {
			continue
		}
		fmt.Fprintln(e.Stdout, "command failed, aborting entire pipeline")
		for _, rest := range stages[i+1:] {
			rest.signal(unix.SIGQUIT)
		}
		aborted = true
	}
}

// stageFailed decides whether an exit status aborts the pipeline. Legacy
// mode reproduces the historical comparison: statuses are 0..255, so it can
// never match and the abort never fires. Strict mode treats any non-zero
// status as failure.
func (e *Engine) stageFailed(status int) bool {
	if e.AbortMode == config.AbortStrict {
		return status != 0
	}
	return status == -1
}

func (e *Engine) registerJob(stages []*stageHandle) {
	e.jobID++
	job := Job{ID: e.jobID}
	for _, h := range stages {
		if h.cmd != nil && h.cmd.Process != nil {
			job.PIDs = append(job.PIDs, h.cmd.Process.Pid)
		}
	}
	e.jobs = append(e.jobs, job)

	fmt.Fprintf(e.Stdout, "[%d]", job.ID)
	for _, pid := range job.PIDs {
		fmt.Fprintf(e.Stdout, " %d", pid)
	}
	fmt.Fprintln(e.Stdout)
}

// stageHandle tracks one spawned stage: a child process, a builtin running
// in its own goroutine, or a stage that already failed before starting.
type stageHandle struct {
	cmd    *exec.Cmd
	done   chan int
	status int
}

func (h *stageHandle) wait() int {
	switch {
	case h.cmd != nil:
		return exitStatus(h.cmd.Wait())
	case h.done != nil:
		return <-h.done
	default:
		return h.status
	}
}

func (h *stageHandle) signal(sig os.Signal) {
	if h.cmd != nil && h.cmd.Process != nil {
		_ = h.cmd.Process.Signal(sig)
	}
}

func failedStage(status int) *stageHandle {
	return &stageHandle{status: status}
}

// exitStatus maps a Wait error to the 8-bit status a parent observes.
// Signalled children report 128+signal, the usual shell convention.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok {
			if ws.Signaled() {
				return 128 + int(ws.Signal())
			}
			return ws.ExitStatus()
		}
	}
	return 1
}
