// Package logsource provides the inputs that feed lines into the pager:
// stdin, files (optionally followed) and a TCP listener, plus a
// multiplexer that merges them into one stream.
package logsource

import "github.com/tinytelemetry/apyr/internal/model"

// LogSource is a unified interface for all log input sources. Lines is
// closed when the source is exhausted or stopped.
type LogSource interface {
	Lines() <-chan model.IngestEnvelope
	Stop()
	Name() string
}
