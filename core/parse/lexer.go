package parse

import (
	"errors"
	"strings"

	shlex "github.com/anmitsu/go-shlex"
)

var errSyntax = errors.New("syntax error")

type tokenKind int

const (
	tokWord tokenKind = iota
	tokPipe           // |
	tokPipeErr        // |&
	tokSemi           // ;
	tokAmp            // &
	tokIn             // <
	tokOut            // >
	tokOutApp         // >>
	tokOutErr         // >&
	tokOutAppErr      // >>&
)

type token struct {
	kind tokenKind
	text string
}

// scan splits a line into operator and word tokens. Operators are only
// recognized outside quotes; the word segments between them keep their
// quoting intact and are split by shlex so the usual quote and escape rules
// apply.
func scan(line string) ([]token, error) {
	var toks []token
	var segment strings.Builder

	flushWords := func() error {
		text := segment.String()
		segment.Reset()
		if strings.TrimSpace(text) == "" {
			return nil
		}
		words, err := shlex.Split(text, true)
		if err != nil {
			return err
		}
		for _, w := range words {
			toks = append(toks, token{kind: tokWord, text: w})
		}
		return nil
	}

	var quote byte
	escaped := false
	i := 0
	for i < len(line) {
		ch := line[i]

		switch {
		case escaped:
			segment.WriteByte(ch)
			escaped = false
			i++

		case ch == '\\' && quote != '\'':
			segment.WriteByte(ch)
			escaped = true
			i++

		case quote != 0:
			if ch == quote {
				quote = 0
			}
			segment.WriteByte(ch)
			i++

		case ch == '\'' || ch == '"':
			quote = ch
			segment.WriteByte(ch)
			i++

		default:
			kind, width := operatorAt(line, i)
			if width == 0 {
				segment.WriteByte(ch)
				i++
				continue
			}
			if err := flushWords(); err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: kind, text: line[i : i+width]})
			i += width
		}
	}

	if quote != 0 || escaped {
		return nil, errSyntax
	}
	if err := flushWords(); err != nil {
		return nil, err
	}
	return toks, nil
}

// operatorAt reports the operator starting at position i, longest match
// first, or width 0 when the byte starts a plain word.
func operatorAt(line string, i int) (tokenKind, int) {
	rest := line[i:]
	switch {
	case strings.HasPrefix(rest, ">>&"):
		return tokOutAppErr, 3
	case strings.HasPrefix(rest, ">>"):
		return tokOutApp, 2
	case strings.HasPrefix(rest, ">&"):
		return tokOutErr, 2
	case strings.HasPrefix(rest, ">"):
		return tokOut, 1
	case strings.HasPrefix(rest, "<"):
		return tokIn, 1
	case strings.HasPrefix(rest, "|&"):
		return tokPipeErr, 2
	case strings.HasPrefix(rest, "|"):
		return tokPipe, 1
	case strings.HasPrefix(rest, ";"):
		return tokSemi, 1
	case strings.HasPrefix(rest, "&"):
		return tokAmp, 1
	}
	return 0, 0
}
