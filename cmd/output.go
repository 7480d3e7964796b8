package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"firestige.xyz/pcapfix/internal/capture"
	"firestige.xyz/pcapfix/internal/core"
)

// outputFile is a capture written to a temporary file next to its destination.
// The destination only changes on Commit, so the output path may name the input.
type outputFile struct {
	*capture.Writer
	tmp  *os.File
	path string
}

func createOutput(path string, opts capture.WriterOptions) (*outputFile, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, fmt.Errorf("create output %s: %w: %w", path, err, core.ErrIOFailure)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("create output %s: %w: %w", path, err, core.ErrIOFailure)
	}
	w, err := capture.NewWriter(tmp, opts)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("%w: %w", err, core.ErrIOFailure)
	}
	return &outputFile{Writer: w, tmp: tmp, path: path}, nil
}

// Commit flushes the capture and moves it to its destination.
func (o *outputFile) Commit() error {
	err := o.Writer.Close()
	if cerr := o.tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(o.tmp.Name(), o.path)
	}
	if err != nil {
		os.Remove(o.tmp.Name())
		return fmt.Errorf("close output: %w: %w", err, core.ErrIOFailure)
	}
	return nil
}

// Abort discards the capture and leaves the destination as it was.
func (o *outputFile) Abort() {
	o.Writer.Close()
	o.tmp.Close()
	os.Remove(o.tmp.Name())
}
