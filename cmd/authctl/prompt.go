package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Test seams for the terminal calls.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// secretReader prompts for passwords. On a terminal input is read without
// echo; otherwise each secret is the next line of input, so scripts can pipe
// them in.
type secretReader struct {
	in    io.Reader
	out   io.Writer
	lines *bufio.Reader
}

func newSecretReader(in io.Reader, out io.Writer) *secretReader {
	return &secretReader{in: in, out: out}
}

// read prints prompt and returns the secret typed after it.
func (r *secretReader) read(prompt string) (string, error) {
	name := strings.TrimSuffix(strings.ToLower(prompt), ": ")
	fmt.Fprint(r.out, prompt)

	var (
		secret string
		err    error
	)
	if f, ok := r.in.(*os.File); ok && isTerminal(int(f.Fd())) {
		var b []byte
		b, err = readPassword(int(f.Fd()))
		fmt.Fprintln(r.out)
		secret = string(b)
	} else {
		secret, err = r.readLine()
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	if secret == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return secret, nil
}

// readLine shares one buffer across prompts so piped input is not lost between them.
func (r *secretReader) readLine() (string, error) {
	if r.lines == nil {
		r.lines = bufio.NewReader(r.in)
	}
	line, err := r.lines.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
