package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/apyr/internal/engine"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

// GetVersionInfo returns the current version and commit information.
func GetVersionInfo() (string, string) {
	return version, commit
}

// cliFlags are the command-line overrides applied on top of the config file.
type cliFlags struct {
	configPath  string
	file        string
	follow      bool
	showVersion bool
	printConfig bool
}

func parseFlags(fs *flag.FlagSet, args []string) (cliFlags, error) {
	var f cliFlags
	fs.StringVar(&f.configPath, "config", "", "config file (default is $HOME/.config/apyr/config.yml)")
	fs.StringVar(&f.file, "f", "", "read lines from `file` instead of stdin")
	fs.BoolVar(&f.follow, "follow", false, "keep reading the -f file as it grows")
	fs.BoolVar(&f.showVersion, "version", false, "print version information")
	fs.BoolVar(&f.printConfig, "print-config", false, "print the effective configuration as YAML and exit")
	err := fs.Parse(args)
	return f, err
}

func main() {
	flags, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if flags.showVersion {
		fmt.Printf("apyr - interactive log pager\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if flags.file != "" {
		cfg.File = flags.file
	}
	if flags.follow {
		cfg.Follow = true
	}

	if flags.printConfig {
		if err := printConfig(os.Stdout, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runPager(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var perr *engine.PanicError
		if errors.As(err, &perr) {
			fmt.Fprintf(os.Stderr, "%s\n", perr.Stack)
		}
		os.Exit(1)
	}
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("APYR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("workers", defaultWorkers)
	v.SetDefault("chunk-size", defaultChunkSize)
	v.SetDefault("min-query-len", defaultMinQueryLen)
	v.SetDefault("refresh-interval", defaultRefreshInterval)
	v.SetDefault("refresh-rate", defaultRefreshRate)
	v.SetDefault("eof-marker", defaultEOFMarker)
	v.SetDefault("max-line-size", defaultMaxLineSize)
	v.SetDefault("mux-buffer-size", defaultMuxBufferSize)
	v.SetDefault("file", "")
	v.SetDefault("follow", false)
	v.SetDefault("host", defaultBindHost)
	v.SetDefault("tcp-enabled", false)
	v.SetDefault("tcp-port", defaultTCPPort)
	v.SetDefault("tcp-addr", "")
	v.SetDefault("api-enabled", false)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("api-addr", "")
	v.SetDefault("archive-enabled", false)
	v.SetDefault("archive-path", "")
	v.SetDefault("archive-batch-size", defaultArchiveBatchSize)
	v.SetDefault("archive-flush-interval", defaultArchiveFlushInterval)
	v.SetDefault("archive-flush-queue-size", defaultArchiveFlushQueue)
	v.SetDefault("archive-retention", defaultArchiveRetention)
	v.SetDefault("query-timeout", defaultQueryTimeout)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		defaultConfigPath := filepath.Join(home, ".config", "apyr", "config.yml")
		v.SetConfigFile(defaultConfigPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	} else {
		cfg.ConfigPath = v.ConfigFileUsed()
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	// Expand ~ in paths
	cfg.ArchivePath = expandHome(home, cfg.ArchivePath)
	cfg.File = expandHome(home, cfg.File)

	if cfg.TCPAddr == "" {
		cfg.TCPAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.TCPPort))
	}
	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.APIPort))
	}

	return cfg, nil
}

func (c appConfig) validate() error {
	switch {
	case c.Workers < 1 || c.Workers > maxWorkers:
		return fmt.Errorf("invalid workers: %d (want 1..%d)", c.Workers, maxWorkers)
	case c.ChunkSize < 1:
		return fmt.Errorf("invalid chunk-size: %d", c.ChunkSize)
	case c.MinQueryLen < 0:
		return fmt.Errorf("invalid min-query-len: %d", c.MinQueryLen)
	case c.RefreshInterval <= 0:
		return fmt.Errorf("invalid refresh-interval: %s", c.RefreshInterval)
	case c.RefreshRate < 0:
		return fmt.Errorf("invalid refresh-rate: %d", c.RefreshRate)
	case c.MaxLineSize < 1:
		return fmt.Errorf("invalid max-line-size: %d", c.MaxLineSize)
	case c.TCPPort <= 0 || c.TCPPort > 65535:
		return fmt.Errorf("invalid tcp-port: %d", c.TCPPort)
	case c.APIPort <= 0 || c.APIPort > 65535:
		return fmt.Errorf("invalid api-port: %d", c.APIPort)
	case c.ArchiveRetention < 0:
		return fmt.Errorf("invalid archive-retention: %d", c.ArchiveRetention)
	case c.QueryTimeout <= 0:
		return fmt.Errorf("invalid query-timeout: %s", c.QueryTimeout)
	}
	return nil
}

func expandHome(home, path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func printConfig(w io.Writer, cfg appConfig) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
