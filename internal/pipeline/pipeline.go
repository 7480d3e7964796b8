// Package pipeline normalizes the checksums of a stream of captured frames.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/sourcegraph/conc/stream"

	"firestige.xyz/pcapfix/internal/checksum"
	"firestige.xyz/pcapfix/internal/core"
	"firestige.xyz/pcapfix/internal/core/decoder"
	"firestige.xyz/pcapfix/internal/log"
)

// Source yields frames in capture order and io.EOF at the end.
type Source interface {
	Next() (core.Frame, error)
}

// Sink receives frames in capture order.
type Sink interface {
	Write(core.Frame) error
}

// Selector decides whether a frame is normalized. Rejected frames are written unchanged.
type Selector interface {
	Match(frame []byte) bool
}

// Recorder observes every emitted frame, checksum and diagnostic.
type Recorder interface {
	ObserveFrame(outcome string, elapsed time.Duration)
	ObserveChecksum(layer string, fixed bool)
	ObserveDiagnostic(layer, kind string)
}

// Config contains pipeline configuration.
type Config struct {
	Workers  int              // frames processed concurrently; <= 1 is sequential
	Checksum checksum.Options // layers to recompute
	Decoder  decoder.Decoder  // nil = standard decoder
	Selector Selector         // nil = every frame
	LinkType layers.LinkType  // frames of any link type but Ethernet are copied unchanged
	Recorder Recorder         // optional
	Logger   log.Logger       // nil = process-wide logger
}

// DefaultConfig returns a sequential configuration for Ethernet captures.
func DefaultConfig() Config {
	return Config{Workers: 1, LinkType: layers.LinkTypeEthernet}
}

// Result summarizes a run.
type Result struct {
	Stats       Stats
	Diagnostics []Diagnostic // in frame order
	Elapsed     time.Duration
}

// Pipeline runs frames through decode, recompute and rewrite.
type Pipeline struct {
	cfg         Config
	decoder     decoder.Decoder
	logger      log.Logger
	passthrough bool
	metrics     Metrics
}

// New creates a new pipeline.
func New(cfg Config) *Pipeline {
	p := &Pipeline{
		cfg:         cfg,
		decoder:     cfg.Decoder,
		logger:      cfg.Logger,
		passthrough: cfg.LinkType != layers.LinkTypeEthernet,
	}
	if p.decoder == nil {
		// Checksums never cover the packet quoted by an ICMP error.
		p.decoder = decoder.NewStandardDecoder(decoder.Config{Embedded: false})
	}
	if p.logger == nil {
		p.logger = log.GetLogger()
	}
	return p
}

// Normalize copies every frame of src to dst in order, with checksums recomputed.
// Only I/O failures and cancellation of ctx end the run early.
func Normalize(ctx context.Context, src Source, dst Sink, cfg Config) (Result, error) {
	return New(cfg).Run(ctx, src, dst)
}

// Metrics returns the live counters of the current or last run.
func (p *Pipeline) Metrics() *Metrics {
	return &p.metrics
}

// Run processes src into dst. The returned Result is valid even when err is not nil.
func (p *Pipeline) Run(ctx context.Context, src Source, dst Sink) (Result, error) {
	p.metrics.Reset()
	start := time.Now()

	if p.passthrough {
		p.logger.WithField("link_type", p.cfg.LinkType.String()).Warn("link type is not Ethernet, frames are copied unchanged")
	}

	var (
		res Result
		err error
	)
	if p.cfg.Workers <= 1 {
		err = p.runSequential(ctx, src, dst, &res)
	} else {
		err = p.runParallel(ctx, src, dst, &res)
	}

	res.Stats = p.metrics.Snapshot()
	res.Elapsed = time.Since(start)

	fields := log.Fields{
		"frames":      res.Stats.Frames,
		"rewritten":   res.Stats.Rewritten,
		"fixed":       res.Stats.ChecksumsFixed,
		"diagnostics": res.Stats.Diagnostics,
		"elapsed":     res.Elapsed.String(),
	}
	if err != nil {
		p.logger.WithFields(fields).WithError(err).Error("normalization aborted")
		return res, err
	}
	p.logger.WithFields(fields).Info("normalization finished")
	return res, nil
}

func (p *Pipeline) runSequential(ctx context.Context, src Source, dst Sink, res *Result) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return readError(err)
		}
		if err := p.emit(dst, p.process(f), res); err != nil {
			return err
		}
	}
}

// runParallel processes frames on up to Workers goroutines. stream runs the
// callbacks one at a time in submission order, so frames are written in input order.
func (p *Pipeline) runParallel(ctx context.Context, src Source, dst Sink, res *Result) error {
	s := stream.New().WithMaxGoroutines(p.cfg.Workers)

	var (
		failed   atomic.Bool
		writeErr error // only touched by callbacks until Wait returns
		readErr  error
	)
	for !failed.Load() {
		if err := ctx.Err(); err != nil {
			readErr = err
			break
		}
		f, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = readError(err)
			break
		}
		s.Go(func() stream.Callback {
			r := p.process(f)
			return func() {
				if writeErr != nil {
					return
				}
				if err := p.emit(dst, r, res); err != nil {
					writeErr = err
					failed.Store(true)
				}
			}
		})
	}
	s.Wait()

	if writeErr != nil {
		return writeErr
	}
	return readErr
}

// emit writes one processed frame and accounts for it. Calls are serialized.
func (p *Pipeline) emit(dst Sink, r result, res *Result) error {
	if err := dst.Write(r.frame); err != nil {
		return fmt.Errorf("write frame %d: %w: %w", r.frame.Index, core.ErrIOFailure, err)
	}

	p.metrics.record(r)
	res.Diagnostics = append(res.Diagnostics, r.diags...)

	for _, d := range r.diags {
		p.logger.WithFields(log.Fields{
			"frame": d.Frame,
			"span":  d.Span,
			"tag":   d.Tag.String(),
			"kind":  string(d.Kind),
		}).Warn(d.Detail)
	}

	if rec := p.cfg.Recorder; rec != nil {
		rec.ObserveFrame(string(r.outcome), r.elapsed)
		for _, c := range r.checks {
			rec.ObserveChecksum(c.tag.String(), c.fixed)
		}
		for _, d := range r.diags {
			rec.ObserveDiagnostic(d.Tag.String(), string(d.Kind))
		}
	}
	return nil
}

func readError(err error) error {
	return fmt.Errorf("read frame: %w: %w", core.ErrIOFailure, err)
}
