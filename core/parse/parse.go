// Package parse turns one line of shell input into a sequence of pipelines.
package parse

// InMode describes a command's input redirection.
type InMode int

const (
	// InNone reads from the pipeline's logical stdin.
	InNone InMode = iota
	// InFromFile reads from a named file.
	InFromFile
)

// OutMode describes a command's output redirection.
type OutMode int

const (
	// OutNone writes to the pipeline's logical stdout.
	OutNone OutMode = iota
	// OutFile truncates and writes a named file.
	OutFile
	// OutAppend appends to a named file.
	OutAppend
	// OutFileErr truncates a named file, binding stdout and stderr.
	OutFileErr
	// OutAppendErr appends to a named file, binding stdout and stderr.
	OutAppendErr
	// OutPipe writes to the next pipeline stage.
	OutPipe
	// OutPipeErr writes stdout and stderr to the next pipeline stage.
	OutPipeErr
)

// IncludesStderr reports whether the mode binds stderr alongside stdout.
func (m OutMode) IncludesStderr() bool {
	return m == OutFileErr || m == OutAppendErr || m == OutPipeErr
}

// Appends reports whether a file-based mode opens for append rather than
// truncate.
func (m OutMode) Appends() bool {
	return m == OutAppend || m == OutAppendErr
}

// ToFile reports whether the mode targets a named file.
func (m OutMode) ToFile() bool {
	switch m {
	case OutFile, OutAppend, OutFileErr, OutAppendErr:
		return true
	}
	return false
}

// PipelineKind tags how a pipeline should be handled by the executor.
type PipelineKind int

const (
	// Run executes the pipeline and waits for it.
	Run PipelineKind = iota
	// Background executes the pipeline without waiting.
	Background
	// SyntaxError marks a line that failed to parse; nothing executes.
	SyntaxError
)

// Command is one stage of a pipeline. Args always has at least one element,
// the program or builtin name.
type Command struct {
	Args    []string
	In      InMode
	InFile  string
	Out     OutMode
	OutFile string
	Next    *Command
}

// Pipeline is a linked list of commands connected by pipes, plus a link to
// the next pipeline parsed from the same line.
type Pipeline struct {
	Head *Command
	Kind PipelineKind
	Next *Pipeline
}

// Parse splits one input line into a sequence of pipelines. A blank line
// yields nil. Any syntax error yields a single SyntaxError pipeline covering
// the whole line.
func Parse(line string) *Pipeline {
	toks, err := scan(line)
	if err != nil {
		return &Pipeline{Kind: SyntaxError}
	}
	if len(toks) == 0 {
		return nil
	}

	p := &parser{toks: toks}
	seq, err := p.sequence()
	if err != nil {
		return &Pipeline{Kind: SyntaxError}
	}
	return seq
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) next() (token, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *parser) sequence() (*Pipeline, error) {
	var head, tail *Pipeline
	for {
		if _, ok := p.peek(); !ok {
			return head, nil
		}

		pl, err := p.pipeline()
		if err != nil {
			return nil, err
		}

		if t, ok := p.peek(); ok {
			switch t.kind {
			case tokSemi:
				p.pos++
			case tokAmp:
				p.pos++
				pl.Kind = Background
			default:
				return nil, errSyntax
			}
		}

		if head == nil {
			head = pl
		} else {
			tail.Next = pl
		}
		tail = pl
	}
}

func (p *parser) pipeline() (*Pipeline, error) {
	pl := &Pipeline{}
	var last *Command
	for {
		c, err := p.command()
		if err != nil {
			return nil, err
		}
		if last == nil {
			pl.Head = c
		} else {
			last.Next = c
		}
		last = c

		t, ok := p.peek()
		if !ok || t.kind == tokSemi || t.kind == tokAmp {
			return pl, nil
		}

		// Pipe operators annotate the left-hand command. The pipe wiring
		// itself is positional (every non-final stage feeds the next), so a
		// file redirection already present keeps precedence over the pipe.
		switch t.kind {
		case tokPipe:
			if c.Out == OutNone {
				c.Out = OutPipe
			}
		case tokPipeErr:
			if c.Out == OutNone {
				c.Out = OutPipeErr
			}
		default:
			return nil, errSyntax
		}
		p.pos++
	}
}

func (p *parser) command() (*Command, error) {
	c := &Command{}
	for {
		t, ok := p.peek()
		if !ok {
			break
		}

		switch t.kind {
		case tokWord:
			c.Args = append(c.Args, t.text)
			p.pos++

		case tokIn:
			p.pos++
			name, err := p.filename()
			if err != nil {
				return nil, err
			}
			c.In = InFromFile
			c.InFile = name

		case tokOut, tokOutApp, tokOutErr, tokOutAppErr:
			p.pos++
			name, err := p.filename()
			if err != nil {
				return nil, err
			}
			switch t.kind {
			case tokOut:
				c.Out = OutFile
			case tokOutApp:
				c.Out = OutAppend
			case tokOutErr:
				c.Out = OutFileErr
			case tokOutAppErr:
				c.Out = OutAppendErr
			}
			c.OutFile = name

		default:
			if len(c.Args) == 0 {
				return nil, errSyntax
			}
			return c, nil
		}
	}

	if len(c.Args) == 0 {
		return nil, errSyntax
	}
	return c, nil
}

func (p *parser) filename() (string, error) {
	t, ok := p.next()
	if !ok || t.kind != tokWord {
		return "", errSyntax
	}
	return t.text, nil
}
