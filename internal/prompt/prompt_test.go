// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceDir_RepromptsUntilValid(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.pdf")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	in := strings.NewReader("\n" + filepath.Join(dir, "missing") + "\n" + file + "\n" + dir + "\n")
	var out bytes.Buffer

	got, err := SourceDir(in, &out)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.Equal(t, 4, strings.Count(out.String(), Question))
	assert.Contains(t, out.String(), "please enter a directory path")
	assert.Contains(t, out.String(), "does not exist")
	assert.Contains(t, out.String(), "is not a directory")
}

func TestSourceDir_EOF(t *testing.T) {
	var out bytes.Buffer
	_, err := SourceDir(strings.NewReader("   \n"), &out)
	assert.True(t, errors.Is(err, ErrAborted))
}

func TestValidate(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.Mkdir(filepath.Join(home, "docs"), 0o755))

	got, err := Validate("  ~/docs  ")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "docs"), got)

	got, err = Validate("~")
	require.NoError(t, err)
	assert.Equal(t, home, got)

	t.Chdir(home)
	got, err = Validate("docs")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "docs"), got)
}

func TestInteractive_FallsBackWithoutTerminal(t *testing.T) {
	dir := t.TempDir()
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	_, err = f.WriteString(dir + "\n")
	require.NoError(t, err)
	_, err = f.Seek(0, 0)
	require.NoError(t, err)
	defer f.Close()

	var out bytes.Buffer
	got, err := Interactive(f, &out)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}
