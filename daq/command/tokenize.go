package command

import (
	"bytes"

	"github.com/google/shlex"
)

// Tokenize splits a command line into whitespace-delimited tokens. Trailing
// NUL, CR and LF bytes are ignored; quoted arguments keep their spaces.
func Tokenize(line []byte) ([]string, error) {
	return shlex.Split(string(bytes.TrimRight(line, "\x00\r\n")))
}
