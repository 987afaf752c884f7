package command

import (
	"errors"
	"strconv"
)

// ErrUnknown is returned for an empty line or a command name not in the table.
var ErrUnknown = errors.New("unknown command")

// UsageError reports a known command with malformed arguments.
type UsageError struct {
	Command string
	Usage   string
}

func (e *UsageError) Error() string { return "usage: " + e.Usage }

// Request is a parsed request line. Arguments are split by kind and kept in
// declaration order within each kind.
type Request struct {
	Name  string
	Ints  []int64
	Words []string
	Rest  string
}

// isSpace matches the ASCII whitespace set.
func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// token returns the next whitespace-delimited token at or after i, with its
// start and end offsets. tok is empty when the line has no more tokens.
func token(line string, i int) (tok string, start, end int) {
	for i < len(line) && isSpace(line[i]) {
		i++
	}
	start = i
	for i < len(line) && !isSpace(line[i]) {
		i++
	}
	return line[start:i], start, i
}

// Parse splits line into a command and its arguments. It returns ErrUnknown
// or a *UsageError when the line cannot be dispatched.
func Parse(line string) (*Request, error) {
	req, _, err := parse(line)
	return req, err
}

func parse(line string) (*Request, *command, error) {
	name, _, pos := token(line, 0)
	c, ok := byName[name]
	if !ok {
		return nil, nil, ErrUnknown
	}

	bad := &UsageError{Command: c.name, Usage: c.usage()}
	req := &Request{Name: name}
	for _, a := range c.args {
		if a.kind == argRest {
			// Exactly one separator follows the previous token; the rest is
			// the body, whitespace included.
			if pos < len(line) {
				pos++
			}
			req.Rest = line[pos:]
			pos = len(line)
			continue
		}

		tok, _, end := token(line, pos)
		if tok == "" {
			return nil, nil, bad
		}
		pos = end

		if a.kind == argInt {
			n, err := strconv.ParseInt(tok, 10, 64)
			if err != nil {
				return nil, nil, bad
			}
			req.Ints = append(req.Ints, n)
			continue
		}
		req.Words = append(req.Words, tok)
	}

	if extra, _, _ := token(line, pos); extra != "" {
		return nil, nil, bad
	}
	return req, c, nil
}

const redacted = "[REDACTED]"

// Redact returns line with secret arguments (passwords) masked, for logging.
// Lines that are not a known command are returned unchanged.
func Redact(line string) string {
	name, _, pos := token(line, 0)
	c, ok := byName[name]
	if !ok {
		return line
	}
	out := line
	shift := 0
	for _, a := range c.args {
		if a.kind == argRest {
			break
		}
		tok, start, end := token(line, pos)
		if tok == "" {
			break
		}
		pos = end
		if a.secret {
			out = out[:start+shift] + redacted + out[end+shift:]
			shift += len(redacted) - len(tok)
		}
	}
	return out
}
