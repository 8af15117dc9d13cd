// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prompt asks the user for the directory to convert.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// Question is shown before every attempt.
const Question = "Directory to convert:"

// ErrAborted is returned when input ends or the user cancels the form.
var ErrAborted = errors.New("prompt aborted")

// SourceDir reads lines from in until one names an existing directory and
// returns its absolute path. Messages go to out.
func SourceDir(in io.Reader, out io.Writer) (string, error) {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, Question+" ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			if err := sc.Err(); err != nil {
				return "", fmt.Errorf("reading input: %w", err)
			}
			return "", ErrAborted
		}
		dir, err := Validate(sc.Text())
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		return dir, nil
	}
}

// Interactive uses a huh form when in is a terminal and falls back to
// SourceDir otherwise.
func Interactive(in *os.File, out io.Writer) (string, error) {
	if !term.IsTerminal(int(in.Fd())) {
		return SourceDir(in, out)
	}

	var value string
	input := huh.NewInput().
		Title(Question).
		Placeholder("~/Documents").
		Value(&value).
		Validate(func(s string) error {
			_, err := Validate(s)
			return err
		})
	err := huh.NewForm(huh.NewGroup(input)).
		WithInput(in).
		WithOutput(out).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return "", ErrAborted
	}
	if err != nil {
		return "", fmt.Errorf("running prompt: %w", err)
	}
	return Validate(value)
}

// Validate expands a leading ~, makes raw absolute, and checks that it is
// a directory.
func Validate(raw string) (string, error) {
	p := strings.TrimSpace(raw)
	if p == "" {
		return "", errors.New("please enter a directory path")
	}
	p, err := expandHome(p)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", p, err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%s does not exist", abs)
	}
	if !st.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding ~: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
