package main

import (
	"context"
	"fmt"

	"github.com/tinytelemetry/apyr/internal/logsource"
	"github.com/tinytelemetry/apyr/internal/tcpserver"
)

// InputSourcePlugin is a small plugin primitive for wiring log inputs.
type InputSourcePlugin interface {
	Name() string
	Enabled() bool
	// Required plugins abort startup when Build fails; optional ones are
	// logged and skipped.
	Required() bool
	Build(ctx context.Context) (logsource.LogSource, error)
}

// InputPluginConfig defines runtime input selection.
type InputPluginConfig struct {
	File        string
	Follow      bool
	TCPEnabled  bool
	TCPAddr     string
	MaxLineSize int

	// stdinPiped overrides terminal detection in tests.
	stdinPiped func() bool
}

func buildInputPlugins(cfg InputPluginConfig) []InputSourcePlugin {
	piped := cfg.stdinPiped
	if piped == nil {
		piped = logsource.StdinIsPiped
	}
	return []InputSourcePlugin{
		fileInputPlugin{path: cfg.File, follow: cfg.Follow, maxLineSize: cfg.MaxLineSize},
		tcpInputPlugin{addr: cfg.TCPAddr, enabled: cfg.TCPEnabled, maxLineSize: cfg.MaxLineSize},
		stdinInputPlugin{piped: piped, maxLineSize: cfg.MaxLineSize},
	}
}

type fileInputPlugin struct {
	path        string
	follow      bool
	maxLineSize int
}

func (p fileInputPlugin) Name() string   { return "file" }
func (p fileInputPlugin) Enabled() bool  { return p.path != "" }
func (p fileInputPlugin) Required() bool { return true }

func (p fileInputPlugin) Build(ctx context.Context) (logsource.LogSource, error) {
	src, err := logsource.NewFileSource(ctx, p.path, logsource.FileConfig{
		Follow:      p.follow,
		MaxLineSize: p.maxLineSize,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p.path, err)
	}
	return src, nil
}

type tcpInputPlugin struct {
	addr        string
	enabled     bool
	maxLineSize int
}

func (p tcpInputPlugin) Name() string   { return "tcp" }
func (p tcpInputPlugin) Enabled() bool  { return p.enabled }
func (p tcpInputPlugin) Required() bool { return false }

func (p tcpInputPlugin) Build(_ context.Context) (logsource.LogSource, error) {
	server := tcpserver.NewServer(p.addr, tcpserver.ServerConfig{MaxLineSize: p.maxLineSize})
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("start tcp server: %w", err)
	}
	return logsource.NewTCPSource(server), nil
}

type stdinInputPlugin struct {
	piped       func() bool
	maxLineSize int
}

func (p stdinInputPlugin) Name() string   { return "stdin" }
func (p stdinInputPlugin) Enabled() bool  { return p.piped() }
func (p stdinInputPlugin) Required() bool { return false }

func (p stdinInputPlugin) Build(ctx context.Context) (logsource.LogSource, error) {
	return logsource.NewStdinSource(ctx, logsource.StdinConfig{MaxLineSize: p.maxLineSize}), nil
}

// buildSources builds every enabled plugin. A failing required plugin stops
// the sources already built and returns the error.
func buildSources(ctx context.Context, plugins []InputSourcePlugin, logf func(string, ...any)) ([]logsource.LogSource, error) {
	sources := make([]logsource.LogSource, 0, len(plugins))
	for _, plugin := range plugins {
		if !plugin.Enabled() {
			continue
		}
		src, err := plugin.Build(ctx)
		if err != nil {
			if plugin.Required() {
				for _, s := range sources {
					s.Stop()
				}
				return nil, err
			}
			logf("input: plugin %q disabled: %v", plugin.Name(), err)
			continue
		}
		sources = append(sources, src)
	}
	return sources, nil
}
