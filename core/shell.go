// Package core ties the interpreter together: startup-file processing, the
// interactive read-execute loop and prompt rendering.
package core

import (
	"bufio"
	"errors"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/abiosoft/readline"
	"github.com/fatih/color"

	"github.com/ushell/ush/core/config"
	"github.com/ushell/ush/core/interp"
	"github.com/ushell/ush/core/parse"
)

var promptColor = color.New(color.FgGreen, color.Bold)

// Shell is one interactive session bound to the process's terminal.
type Shell struct {
	cfg     *config.Configuration
	engine  *interp.Engine
	rl      *readline.Instance
	history []string
}

// NewShell builds a shell around the process's standard streams.
func NewShell(cfg *config.Configuration) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		HistoryLimit: cfg.HistorySize,
	})
	if err != nil {
		return nil, err
	}

	s := &Shell{
		cfg:    cfg,
		engine: interp.New(cfg),
		rl:     rl,
	}
	s.engine.Hist = &interp.HistoryHooks{
		List: func() []string { return s.history },
		Clear: func() {
			s.history = nil
			s.rl.Operation.ResetHistory()
		},
	}
	return s, nil
}

// Prompt renders the configured prompt template; \h expands to the
// hostname.
func (s *Shell) Prompt() string {
	host, err := os.Hostname()
	if err != nil {
		host = "ush"
	}
	return promptColor.Sprint(expandPrompt(s.cfg.Prompt, host))
}

func expandPrompt(template, host string) string {
	return strings.ReplaceAll(template, `\h`, host)
}

// RunStartup processes the startup file in the user's home directory, if
// readable, exactly as if its lines had been typed, stopping at the end
// sentinel. A missing file is not an error.
func (s *Shell) RunStartup() error {
	home := os.Getenv("HOME")
	if home == "" {
		return nil
	}
	fd, err := os.Open(filepath.Join(home, s.cfg.RCFile))
	if err != nil {
		return nil
	}
	defer fd.Close()

	s.engine.InStartup = true
	defer func() { s.engine.InStartup = false }()

	scanner := bufio.NewScanner(fd)
	for scanner.Scan() {
		seq := parse.Parse(scanner.Text())
		if seq == nil {
			continue
		}
		if seq.Head != nil && seq.Head.Args[0] == interp.EndSentinel {
			break
		}
		if err := s.engine.ExecSequence(seq); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Run reads and executes lines until EOF or logout. Keyboard interrupt and
// quit signals are caught and discarded so they reach the foreground
// pipeline's processes, never the interpreter; its children start with
// default dispositions.
func (s *Shell) Run() error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGQUIT)
	defer signal.Stop(sigs)
	go func() {
		for range sigs {
		}
	}()

	for {
		s.rl.SetPrompt(s.Prompt())
		line, err := s.rl.Readline()

		switch {
		case err == io.EOF:
			return nil

		case err == readline.ErrInterrupt:
			continue

		case err != nil:
			return err

		case strings.TrimSpace(line) == "":
			continue
		}

		s.history = append(s.history, line)

		if err := s.ExecLine(line); err != nil {
			if errors.Is(err, interp.ErrLogout) {
				return nil
			}
			return err
		}
	}
}

// ExecLine parses and executes one input line to completion.
func (s *Shell) ExecLine(line string) error {
	seq := parse.Parse(line)
	if seq == nil {
		return nil
	}
	return s.engine.ExecSequence(seq)
}

func (s *Shell) Close() error {
	return s.rl.Close()
}
