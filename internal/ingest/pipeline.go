// Package ingest moves lines from the log sources into the engine: each
// line is appended to the store, scheduled for scanning and optionally
// handed to the archive.
package ingest

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/tinytelemetry/apyr/internal/logparse"
	"github.com/tinytelemetry/apyr/internal/model"
)

// LineSink is the part of the engine the pipeline writes to.
type LineSink interface {
	AppendLine(text string) int
	NotifyNewRange(start, end int)
	IsQuitting() bool
}

// RecordSink receives every ingested line with its derived metadata.
type RecordSink interface {
	Add(record model.LineRecord)
}

// PipelineConfig holds tunable parameters for the pipeline.
type PipelineConfig struct {
	// EOFMarker is appended as a final line once every source has ended.
	// Empty selects model.DefaultEOFMarker.
	EOFMarker string

	// Records, when set, receives a LineRecord for each appended line,
	// including the end-of-input marker.
	Records RecordSink
}

// Pipeline drains an envelope stream into a LineSink.
type Pipeline struct {
	sink    LineSink
	lines   <-chan model.IngestEnvelope
	marker  string
	records RecordSink

	ingested atomic.Int64
	now      func() time.Time
}

// NewPipeline creates a pipeline reading lines into sink. A nil lines
// channel means there are no sources; Run then only writes the marker.
func NewPipeline(sink LineSink, lines <-chan model.IngestEnvelope, conf ...PipelineConfig) *Pipeline {
	p := &Pipeline{
		sink:   sink,
		lines:  lines,
		marker: model.DefaultEOFMarker,
		now:    time.Now,
	}
	if len(conf) > 0 {
		if conf[0].EOFMarker != "" {
			p.marker = conf[0].EOFMarker
		}
		p.records = conf[0].Records
	}
	return p
}

// Run appends lines until the stream closes, then appends the
// end-of-input marker. It returns early without the marker when ctx is
// done or the sink reports that it is quitting.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.lines == nil {
		p.finish()
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-p.lines:
			if !ok {
				p.finish()
				return nil
			}
			if p.sink.IsQuitting() {
				return nil
			}
			p.ingest(env.Source, env.Line)
			p.ingested.Add(1)
		}
	}
}

// Ingested returns the number of source lines appended, not counting the
// marker.
func (p *Pipeline) Ingested() int64 { return p.ingested.Load() }

func (p *Pipeline) ingest(source, line string) int {
	idx := p.sink.AppendLine(line)
	p.sink.NotifyNewRange(idx, idx+1)
	if p.records != nil {
		p.records.Add(model.LineRecord{
			Index:      idx,
			Source:     source,
			Severity:   logparse.DetectLevel(line).String(),
			Line:       line,
			IngestedAt: p.now(),
		})
	}
	return idx
}

func (p *Pipeline) finish() {
	if p.sink.IsQuitting() {
		return
	}
	idx := p.ingest("", p.marker)
	log.Printf("ingest: input ended after %d lines, marker at %d", p.ingested.Load(), idx)
}
