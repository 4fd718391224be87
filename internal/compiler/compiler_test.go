package compiler

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biobank-trait-report/internal/domain"
)

// fakeCompiler writes an executable shell script standing in for pdflatex.
func fakeCompiler(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script compiler stub requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fakelatex")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func writeTex(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	tex := filepath.Join(dir, "report.tex")
	require.NoError(t, os.WriteFile(tex, []byte("\\documentclass{article}\n"), 0644))
	return tex, dir
}

func quiet(c *Compiler) *Compiler {
	return c.WithLogger(log.New(io.Discard, "", 0))
}

func TestArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"-interaction=nonstopmode", "-halt-on-error", "-output-directory", "/out", "report.tex"},
		Args("/work/report.tex", "/out"))
}

func TestCompile_Success(t *testing.T) {
	bin := fakeCompiler(t, `base=$(basename "$5" .tex)
echo "$@" > "$4/args.txt"
printf '%%PDF-1.5' > "$4/$base.pdf"
`)
	tex, dir := writeTex(t)

	art, err := quiet(New(bin)).Compile(context.Background(), tex, dir)
	require.NoError(t, err)

	assert.Equal(t, domain.ArtifactDocument, art.Kind)
	assert.Equal(t, "report.pdf", art.Name)
	assert.FileExists(t, art.Path)

	args, err := os.ReadFile(filepath.Join(dir, "args.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(args), "-interaction=nonstopmode -halt-on-error -output-directory")
}

func TestCompile_NonZeroExit(t *testing.T) {
	bin := fakeCompiler(t, `echo "! Undefined control sequence."
exit 1
`)
	tex, dir := writeTex(t)

	_, err := quiet(New(bin)).Compile(context.Background(), tex, dir)

	var cerr *CompileError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 1, cerr.ExitCode)
	assert.Contains(t, cerr.Output, "Undefined control sequence")
	assert.Contains(t, cerr.Error(), "exit status 1")
}

func TestCompile_NoPDFProduced(t *testing.T) {
	bin := fakeCompiler(t, "exit 0\n")
	tex, dir := writeTex(t)

	_, err := quiet(New(bin)).Compile(context.Background(), tex, dir)

	var cerr *CompileError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 0, cerr.ExitCode)
	assert.Contains(t, cerr.Error(), "no PDF produced")
}

func TestCompile_MissingBinary(t *testing.T) {
	tex, dir := writeTex(t)

	_, err := quiet(New(filepath.Join(t.TempDir(), "no-such-latex"))).Compile(context.Background(), tex, dir)

	var cerr *CompileError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, -1, cerr.ExitCode)
	assert.Error(t, errors.Unwrap(cerr))
}

func TestNew_DefaultCompiler(t *testing.T) {
	assert.Equal(t, DefaultCompiler, New("").path)
}
