package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// PasswordReader reads a secret without echo. A nil PasswordReader makes the
// App read the password as a plain line of its input.
type PasswordReader func() ([]byte, error)

// TerminalPassword reads from the controlling terminal via x/term.
func TerminalPassword() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

// StdinPassword returns TerminalPassword when stdin is a terminal and nil
// otherwise, so piped input keeps flowing through the line reader.
func StdinPassword() PasswordReader {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return TerminalPassword
	}
	return nil
}

// readLine prints prompt and returns one trimmed line. A final line without
// a newline is accepted.
func readLine(r *bufio.Reader, w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprintf(w, "%s: ", prompt); err != nil {
		return "", err
	}
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func readPassword(read PasswordReader, r *bufio.Reader, w io.Writer) (string, error) {
	if read == nil {
		// Piped input: only the line ending is stripped, spaces are part of the secret.
		if _, err := fmt.Fprint(w, "Password: "); err != nil {
			return "", err
		}
		line, err := r.ReadString('\n')
		if err != nil && (len(line) == 0 || !errors.Is(err, io.EOF)) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	if _, err := fmt.Fprint(w, "Password: "); err != nil {
		return "", err
	}
	pw, err := read()
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
