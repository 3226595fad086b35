package model

import "time"

// IngestEnvelope carries one raw log line together with the name of the
// source that produced it. Sources emit envelopes; the ingest pipeline
// consumes them and appends Line to the log store.
type IngestEnvelope struct {
	Source string
	Line   string
}

// LineRecord is a stored line together with the metadata derived at
// ingest time. It is what the archive persists.
type LineRecord struct {
	Index      int
	Source     string
	Severity   string
	Line       string
	IngestedAt time.Time
}
