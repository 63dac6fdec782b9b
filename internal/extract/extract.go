// Package extract reads the text out of an uploaded document file.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUnsupported is returned for file types no extractor handles.
	ErrUnsupported = errors.New("unsupported document type")
	// ErrPDFToolNotFound is returned when pdftotext is not installed.
	ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")
)

// Extractor returns the plain text of the document at path.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// CommandRunner runs an external program and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		if name == DefaultPDFToText {
			return nil, ErrPDFToolNotFound
		}
		return nil, err
	}
	var stderr strings.Builder
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

const DefaultPDFToText = "pdftotext"

// Files extracts .pdf through pdftotext and reads .txt and .md directly.
type Files struct {
	runner    CommandRunner
	pdfToText string
}

// New returns a Files extractor. An empty pdfToText uses the binary on PATH.
func New(pdfToText string) *Files {
	return NewWithRunner(execRunner{}, pdfToText)
}

// NewWithRunner lets tests substitute the command runner.
func NewWithRunner(r CommandRunner, pdfToText string) *Files {
	if pdfToText == "" {
		pdfToText = DefaultPDFToText
	}
	return &Files{runner: r, pdfToText: pdfToText}
}

// Supported reports whether path has an extension Files understands.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".md", ".markdown":
		return true
	}
	return false
}

func (f *Files) Extract(ctx context.Context, path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return f.pdf(ctx, path)
	case ".txt", ".md", ".markdown":
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		if !utf8.Valid(b) {
			return "", fmt.Errorf("%s is not valid UTF-8", filepath.Base(path))
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupported, filepath.Ext(path))
	}
}

func (f *Files) pdf(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	// "-" writes to stdout
	out, err := f.runner.Run(ctx, f.pdfToText, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	return string(out), nil
}
