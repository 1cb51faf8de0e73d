// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// readLine reads one line from r without its line ending. A final line
// without a newline is returned as is.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", oops.Code("INPUT_READ_FAILED").Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// promptUsername returns args[0] or asks for a username on stdin.
func promptUsername(cmd *cobra.Command, in *bufio.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Username: ")
	return readLine(in)
}

// promptPassword reads the password from stdin when fromStdin is set,
// otherwise from the terminal without echo. With confirm the terminal
// prompt asks twice.
func promptPassword(cmd *cobra.Command, in *bufio.Reader, fromStdin, confirm bool) (string, error) {
	if fromStdin {
		return readLine(in)
	}

	fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit in int
	if !isTerminal(fd) {
		return "", oops.Code("INPUT_NOT_TERMINAL").
			Errorf("stdin is not a terminal; use --password-stdin to pipe the password")
	}

	w := cmd.ErrOrStderr()
	fmt.Fprint(w, "Password: ")
	pw, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", oops.Code("INPUT_READ_FAILED").Wrap(err)
	}
	if !confirm {
		return string(pw), nil
	}

	fmt.Fprint(w, "Confirm password: ")
	again, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", oops.Code("INPUT_READ_FAILED").Wrap(err)
	}
	if string(pw) != string(again) {
		return "", oops.Code("INPUT_MISMATCH").Errorf("passwords do not match")
	}
	return string(pw), nil
}
