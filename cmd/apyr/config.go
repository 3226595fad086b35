package main

import (
	"time"

	"github.com/tinytelemetry/apyr/internal/archive"
	"github.com/tinytelemetry/apyr/internal/logsource"
	"github.com/tinytelemetry/apyr/internal/model"
	"github.com/tinytelemetry/apyr/internal/search"
)

const (
	defaultWorkers              = model.DefaultWorkers
	defaultChunkSize            = search.DefaultChunkSize
	defaultMinQueryLen          = search.DefaultMinQueryLen
	defaultRefreshInterval      = model.DefaultRefreshInterval
	defaultRefreshRate          = model.DefaultRefreshRate
	defaultEOFMarker            = model.DefaultEOFMarker
	defaultMaxLineSize          = model.DefaultMaxLineSize
	defaultMuxBufferSize        = logsource.DefaultMuxBuffer
	defaultBindHost             = "127.0.0.1"
	defaultTCPPort              = 4000
	defaultAPIPort              = 3000
	defaultQueryTimeout         = archive.DefaultQueryTimeout
	defaultArchiveBatchSize     = archive.DefaultBatchSize
	defaultArchiveFlushInterval = archive.DefaultFlushInterval
	defaultArchiveFlushQueue    = archive.DefaultFlushQueueSize
	defaultArchiveRetention     = archive.DefaultRetentionDays

	maxWorkers = 64
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Workers         int           `mapstructure:"workers" yaml:"workers"`
	ChunkSize       int           `mapstructure:"chunk-size" yaml:"chunk-size"`
	MinQueryLen     int           `mapstructure:"min-query-len" yaml:"min-query-len"`
	RefreshInterval time.Duration `mapstructure:"refresh-interval" yaml:"refresh-interval"`
	RefreshRate     int           `mapstructure:"refresh-rate" yaml:"refresh-rate"`
	EOFMarker       string        `mapstructure:"eof-marker" yaml:"eof-marker"`
	MaxLineSize     int           `mapstructure:"max-line-size" yaml:"max-line-size"`
	MuxBufferSize   int           `mapstructure:"mux-buffer-size" yaml:"mux-buffer-size"`

	File   string `mapstructure:"file" yaml:"file,omitempty"`
	Follow bool   `mapstructure:"follow" yaml:"follow"`

	Host       string `mapstructure:"host" yaml:"host"`
	TCPEnabled bool   `mapstructure:"tcp-enabled" yaml:"tcp-enabled"`
	TCPPort    int    `mapstructure:"tcp-port" yaml:"tcp-port"`
	TCPAddr    string `mapstructure:"tcp-addr" yaml:"tcp-addr"`
	APIEnabled bool   `mapstructure:"api-enabled" yaml:"api-enabled"`
	APIPort    int    `mapstructure:"api-port" yaml:"api-port"`
	APIAddr    string `mapstructure:"api-addr" yaml:"api-addr"`

	ArchiveEnabled       bool          `mapstructure:"archive-enabled" yaml:"archive-enabled"`
	ArchivePath          string        `mapstructure:"archive-path" yaml:"archive-path"`
	ArchiveBatchSize     int           `mapstructure:"archive-batch-size" yaml:"archive-batch-size"`
	ArchiveFlushInterval time.Duration `mapstructure:"archive-flush-interval" yaml:"archive-flush-interval"`
	ArchiveFlushQueue    int           `mapstructure:"archive-flush-queue-size" yaml:"archive-flush-queue-size"`
	ArchiveRetention     int           `mapstructure:"archive-retention" yaml:"archive-retention"` // days, 0 = keep forever
	QueryTimeout         time.Duration `mapstructure:"query-timeout" yaml:"query-timeout"`

	ConfigPath string `mapstructure:"-" yaml:"-"` // not from config file
}
