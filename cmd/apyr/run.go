package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/apyr/internal/archive"
	"github.com/tinytelemetry/apyr/internal/engine"
	"github.com/tinytelemetry/apyr/internal/httpserver"
	"github.com/tinytelemetry/apyr/internal/ingest"
	"github.com/tinytelemetry/apyr/internal/logsource"
	"github.com/tinytelemetry/apyr/internal/tui"
)

// quitSignals stop the pager the same way the q key does.
var quitSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT}

// runPager wires the sources, the engine, the optional archive and HTTP
// API, and runs the UI until the user or a signal quits.
func runPager(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := engine.New(engine.Config{
		Workers:     cfg.Workers,
		ChunkSize:   cfg.ChunkSize,
		MinQueryLen: cfg.MinQueryLen,
	})

	// The archive is optional; records and sqlStore stay nil interfaces
	// when it is off.
	var (
		store    *archive.Store
		records  ingest.RecordSink
		sqlStore httpserver.SQLStore
	)
	if cfg.ArchiveEnabled {
		var err error
		store, err = archive.Open(cfg.ArchivePath, cfg.QueryTimeout)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer store.Close()

		// only a file archive outlives the run
		if cfg.ArchivePath != "" {
			if rc := archive.NewRetentionCleaner(store, archive.RetentionConfig{RetentionDays: cfg.ArchiveRetention}); rc != nil {
				defer rc.Stop()
			}
		}

		buffer := archive.NewInsertBuffer(store, archive.InsertBufferConfig{
			BatchSize:      cfg.ArchiveBatchSize,
			FlushInterval:  cfg.ArchiveFlushInterval,
			FlushQueueSize: cfg.ArchiveFlushQueue,
		})
		defer buffer.Stop()
		records = buffer
		sqlStore = store
	}

	sources, err := buildSources(ctx, buildInputPlugins(InputPluginConfig{
		File:        cfg.File,
		Follow:      cfg.Follow,
		TCPEnabled:  cfg.TCPEnabled,
		TCPAddr:     cfg.TCPAddr,
		MaxLineSize: cfg.MaxLineSize,
	}), log.Printf)
	if err != nil {
		return err
	}
	mux := logsource.NewMultiplexer(ctx, sources, cfg.MuxBufferSize)
	defer mux.Stop()

	pipelineConf := ingest.PipelineConfig{EOFMarker: cfg.EOFMarker, Records: records}
	var pipeline *ingest.Pipeline
	if mux.HasSources() {
		pipeline = ingest.NewPipeline(eng, mux.Lines(), pipelineConf)
	} else {
		log.Printf("input: no sources, showing the end marker only")
		pipeline = ingest.NewPipeline(eng, nil, pipelineConf)
	}

	if store != nil {
		if err := store.BeginSession(mux.Names()); err != nil {
			log.Printf("archive: begin session: %v", err)
		}
	}

	if cfg.APIEnabled {
		api := httpserver.NewServer(cfg.APIAddr, eng, sqlStore)
		if err := api.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer api.Stop()
		log.Printf("httpserver: listening on %s", api.Addr())
	}

	notifier := tui.NewNotifier(cfg.RefreshRate)
	defer notifier.Close()
	eng.OnChange(notifier.Notify)
	defer eng.OnChange(nil)

	app := tui.New(eng, tui.Config{
		RefreshInterval: cfg.RefreshInterval,
		Notifier:        notifier,
	})
	prog := tea.NewProgram(app,
		tea.WithAltScreen(),
		tea.WithOutput(os.Stderr),
		tea.WithoutSignalHandler(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, quitSignals...)
	defer signal.Stop(sigCh)

	mux.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(gctx)
	})
	g.Go(func() error {
		return pipeline.Run(gctx)
	})
	g.Go(func() error {
		select {
		case sig := <-sigCh:
			log.Printf("signal: %s, quitting", sig)
			eng.RequestQuit()
		case <-gctx.Done():
		}
		// the UI notices the quit flag on its next tick; Quit makes it prompt
		prog.Quit()
		return nil
	})
	g.Go(func() error {
		defer cancel()
		_, err := prog.Run()
		eng.RequestQuit()
		if err != nil {
			if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
				return fmt.Errorf("apyr requires a real terminal")
			}
			return fmt.Errorf("error running TUI: %w", err)
		}
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err == nil {
		printSummary(os.Stderr, cfg, eng.Stats(), pipeline.Ingested())
	}
	return err
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "apyr")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "apyr.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		_ = f.Close()
	}
}

// printSummary reports what the session saw once the terminal is back.
func printSummary(w io.Writer, cfg appConfig, st engine.Stats, ingested int64) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	var lines []string
	lines = append(lines, fmt.Sprintf("%s %s", cyan.Bold(true).Render("apyr"), dim.Render("v"+version)))
	lines = append(lines, fmt.Sprintf("  %s  %d lines (%d ingested), %d bytes", dim.Render("log    "), st.Lines, ingested, st.Bytes))
	if st.Query != "" {
		lines = append(lines, fmt.Sprintf("  %s  %q %s, %d matches", dim.Render("query  "), st.Query, st.QueryState, st.Matches))
	}
	if cfg.ArchiveEnabled {
		where := "in-memory"
		if cfg.ArchivePath != "" {
			where = shortenPath(cfg.ArchivePath)
		}
		lines = append(lines, fmt.Sprintf("  %s  %s", dim.Render("archive"), cyan.Render(where)))
	}
	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
