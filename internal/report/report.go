// Package report writes the diagnostics of a normalization run as YAML.
package report

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"firestige.xyz/pcapfix/internal/pipeline"
)

// Report is the document written to report.path.
type Report struct {
	Input       string            `yaml:"input"`
	Output      string            `yaml:"output"`
	Format      string            `yaml:"format"`
	Workers     int               `yaml:"workers"`
	Elapsed     string            `yaml:"elapsed"`
	Error       string            `yaml:"error,omitempty"`
	Stats       pipeline.Stats    `yaml:"stats"`
	ByKind      map[string]uint64 `yaml:"by_kind,omitempty"`
	Diagnostics []Entry           `yaml:"diagnostics"`
}

// Entry is one diagnostic. Span is absent for problems with the whole frame.
type Entry struct {
	Frame  int    `yaml:"frame"`
	Span   *int   `yaml:"span,omitempty"`
	Layer  string `yaml:"layer"`
	Kind   string `yaml:"kind"`
	Detail string `yaml:"detail"`
}

// Run describes the run a report belongs to.
type Run struct {
	Input   string
	Output  string
	Format  string
	Workers int
	Err     error
}

// New builds a report from the result of a run.
func New(run Run, res pipeline.Result) *Report {
	r := &Report{
		Input:       run.Input,
		Output:      run.Output,
		Format:      run.Format,
		Workers:     run.Workers,
		Elapsed:     res.Elapsed.String(),
		Stats:       res.Stats,
		Diagnostics: make([]Entry, 0, len(res.Diagnostics)),
	}
	if run.Err != nil {
		r.Error = run.Err.Error()
	}
	for _, d := range res.Diagnostics {
		e := Entry{Frame: d.Frame, Layer: d.Tag.String(), Kind: string(d.Kind), Detail: d.Detail}
		if d.Span != pipeline.FrameSpan {
			span := d.Span
			e.Span = &span
		}
		r.Diagnostics = append(r.Diagnostics, e)
		if r.ByKind == nil {
			r.ByKind = make(map[string]uint64)
		}
		r.ByKind[e.Kind]++
	}
	return r
}

// Kinds returns the diagnostic kinds present, sorted.
func (r *Report) Kinds() []string {
	kinds := make([]string, 0, len(r.ByKind))
	for k := range r.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Encode writes r as YAML.
func (r *Report) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

// WriteFile writes r to path, replacing any existing file.
func (r *Report) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}
	if err := r.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads a report written by WriteFile.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}
