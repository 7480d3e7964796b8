package pipeline

import (
	"github.com/google/gopacket/layers"

	"firestige.xyz/pcapfix/internal/checksum"
	"firestige.xyz/pcapfix/internal/core/decoder"
	"firestige.xyz/pcapfix/internal/log"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using Config directly.
type Builder struct {
	config Config
}

// NewBuilder creates a builder starting from DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithWorkers sets the number of frames processed concurrently. 1 is sequential.
func (b *Builder) WithWorkers(n int) *Builder {
	b.config.Workers = n
	return b
}

// WithChecksum selects the layers to recompute.
func (b *Builder) WithChecksum(opts checksum.Options) *Builder {
	b.config.Checksum = opts
	return b
}

// WithDecoder sets the frame decoder.
func (b *Builder) WithDecoder(d decoder.Decoder) *Builder {
	b.config.Decoder = d
	return b
}

// WithSelector restricts normalization to frames s accepts.
func (b *Builder) WithSelector(s Selector) *Builder {
	b.config.Selector = s
	return b
}

// WithLinkType sets the link type of the input capture.
func (b *Builder) WithLinkType(lt layers.LinkType) *Builder {
	b.config.LinkType = lt
	return b
}

// WithRecorder attaches a metrics recorder.
func (b *Builder) WithRecorder(r Recorder) *Builder {
	b.config.Recorder = r
	return b
}

// WithLogger overrides the process-wide logger.
func (b *Builder) WithLogger(l log.Logger) *Builder {
	b.config.Logger = l
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() *Pipeline {
	return New(b.config)
}
