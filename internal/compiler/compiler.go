// Package compiler turns the rendered LaTeX source into the final PDF by
// running an external compiler.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"biobank-trait-report/internal/domain"
)

// DefaultCompiler is the compiler binary used when none is configured.
const DefaultCompiler = "pdflatex"

// CompileError reports a failed compilation together with the compiler's
// diagnostics.
type CompileError struct {
	Compiler string
	TexPath  string
	ExitCode int    // -1 when the compiler did not run to completion
	Output   string // combined stdout and stderr
	Err      error
}

func (e *CompileError) Error() string {
	msg := fmt.Sprintf("compile %s with %s", e.TexPath, e.Compiler)
	if e.ExitCode > 0 {
		msg += fmt.Sprintf(": exit status %d", e.ExitCode)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if tail := lastLines(e.Output, 10); tail != "" {
		msg += "\n" + tail
	}
	return msg
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// Compiler invokes an external LaTeX compiler. One invocation, no retry.
type Compiler struct {
	path   string
	logger *log.Logger
}

// New creates a compiler for the given binary name or path.
func New(path string) *Compiler {
	if path == "" {
		path = DefaultCompiler
	}
	return &Compiler{
		path:   path,
		logger: log.Default(),
	}
}

// WithLogger sets the logger.
func (c *Compiler) WithLogger(logger *log.Logger) *Compiler {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Args returns the compiler arguments for texPath.
func Args(texPath, outputDir string) []string {
	return []string{
		"-interaction=nonstopmode",
		"-halt-on-error",
		"-output-directory", outputDir,
		filepath.Base(texPath),
	}
}

// Compile runs the compiler on texPath, writing the PDF into outputDir.
// The compiler runs from the directory holding texPath so relative figure
// references resolve. A non-zero exit, a missing binary, or a missing PDF
// afterwards is a CompileError.
func (c *Compiler) Compile(ctx context.Context, texPath, outputDir string) (domain.Artifact, error) {
	absOut, err := filepath.Abs(outputDir)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("resolve output directory: %w", err)
	}

	args := Args(texPath, absOut)
	cmd := exec.CommandContext(ctx, c.path, args...)
	cmd.Dir = filepath.Dir(texPath)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	c.logger.Printf("Running %s %s", c.path, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		cerr := &CompileError{
			Compiler: c.path,
			TexPath:  texPath,
			ExitCode: -1,
			Output:   out.String(),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cerr.ExitCode = exitErr.ExitCode()
		}
		return domain.Artifact{}, cerr
	}

	name := strings.TrimSuffix(filepath.Base(texPath), filepath.Ext(texPath)) + ".pdf"
	pdfPath := filepath.Join(absOut, name)
	if _, err := os.Stat(pdfPath); err != nil {
		return domain.Artifact{}, &CompileError{
			Compiler: c.path,
			TexPath:  texPath,
			ExitCode: 0,
			Output:   out.String(),
			Err:      fmt.Errorf("no PDF produced at %s", pdfPath),
		}
	}

	c.logger.Printf("Compiled %s", pdfPath)
	return domain.Artifact{Kind: domain.ArtifactDocument, Name: name, Path: pdfPath}, nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
