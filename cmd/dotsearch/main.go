// Copyright 2025 The dotsearch Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the dotsearch domain-name search server and CLI.

dotsearch looks for unregistered domain names built from words, prefixes and
postfixes. The CLI keeps one search session open against a search server and
prints the free and reserved names for whatever was typed last; the server
answers those searches from a registry of taken names built from zone files.

# Usage

Build a registry from a zone file:

	dotsearch -filter com.txt.gz

Or fetch the .com zone from CZDS and filter it on the fly:

	ICANN_USERNAME=me ICANN_PASSWORD=secret dotsearch -download

Serve it:

	dotsearch -serve -registry com.txt.gz.filtered.txt.gz -d

Search interactively:

	dotsearch -endpoint http://localhost:9000/api/search

Each CLI line is

	words | prefixes | postfixes | min | max

for example `cat dog | get | hub | 1 | 2`. Only the words part is required.
Typing faster than the server answers is fine: the session keeps at most one
request in flight and always ends on the result for the newest line.

# Configuration

Settings live in a TOML file created with defaults on first run:

	[client]
	endpoint = "http://localhost:9000/api/search"
	codec = "json"
	timeout_ms = 5000

	[server]
	addr = ":9000"
	registry = ""
	proxy_url = ""
	max_tokens = 64
	max_candidates = 100000

	[cli]
	default_min_words = 1
	default_max_words = 2
	show_stats = false

Flags override the file. A server without a registry forwards lookups to the
batch-lookup endpoint named by proxy_url.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bastiangx/dotsearch/internal/cli"
	"github.com/bastiangx/dotsearch/internal/logger"
	"github.com/bastiangx/dotsearch/pkg/config"
	"github.com/bastiangx/dotsearch/pkg/coordinator"
	"github.com/bastiangx/dotsearch/pkg/registry"
	"github.com/bastiangx/dotsearch/pkg/search"
	"github.com/bastiangx/dotsearch/pkg/server"
	"github.com/bastiangx/dotsearch/pkg/transport"
	"github.com/bastiangx/dotsearch/pkg/zone"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

const (
	Version = "0.3.0"
	AppName = "dotsearch"
	gh      = "https://github.com/bastiangx/dotsearch"
)

// main parses flags and hands over to the selected mode.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	showVersion := flag.Bool("version", false, "Show current version")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	configPath := flag.String("config", "", "Path to a custom config.toml")
	endpoint := flag.String("endpoint", "", "Search endpoint URL (default from config)")
	codec := flag.String("codec", "", "Wire encoding: json or msgpack (default from config)")
	serveMode := flag.Bool("serve", false, "Run the search server instead of the CLI")
	addr := flag.String("addr", "", "Server listen address (default from config)")
	registryPath := flag.String("registry", "", "Registry file of taken names, gzip or plain (default from config)")
	proxyURL := flag.String("proxy", "", "Batch-lookup URL to forward to when no registry is loaded")
	filterPath := flag.String("filter", "", "Filter a zone file into a registry file and exit")
	downloadMode := flag.Bool("download", false, "Download a zone file from CZDS, filter it and exit (ICANN_USERNAME/ICANN_PASSWORD)")
	zoneURL := flag.String("zone-url", zone.DefaultZoneURL, "Zone file URL for -download")
	authURL := flag.String("auth-url", zone.DefaultAuthURL, "Token URL for -download")
	outPath := flag.String("out", "", "Output path for -filter and -download (default <zone>.filtered.txt.gz)")
	minWords := flag.Int("min", -1, "Default minimum word count for CLI lines")
	maxWords := flag.Int("max", -1, "Default maximum word count for CLI lines")
	showStats := flag.Bool("stats", false, "Print session stats after each CLI result")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if *debugMode {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	if *filterPath != "" {
		out, n, err := zone.FilterFile(*filterPath, *outPath)
		if err != nil {
			log.Fatalf("Failed to filter zone file: %v", err)
		}
		fmt.Fprintf(os.Stderr, "%d names written to %s\n", n, out)
		return
	}

	if *downloadMode {
		out, n, err := zone.Download(ctx, *authURL, *zoneURL, os.Getenv("ICANN_USERNAME"), os.Getenv("ICANN_PASSWORD"), *outPath)
		if err != nil {
			log.Fatalf("Failed to download zone file: %v", err)
		}
		fmt.Fprintf(os.Stderr, "%d names written to %s\n", n, out)
		return
	}

	cfg, loadedFrom, err := config.LoadConfigWithPriority(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Debugf("Using config file: (%s)", config.GetActiveConfigPath(loadedFrom))

	applyFlags(cfg, *endpoint, *codec, *addr, *registryPath, *proxyURL, *minWords, *maxWords, *showStats)

	if *serveMode {
		if err := runServer(ctx, cfg.Server); err != nil {
			log.Fatalf("Server error: %v", err)
		}
		return
	}

	if err := runCLI(ctx, cfg); err != nil {
		log.Fatalf("CLI error: %v", err)
	}
}

// applyFlags overrides config values with the flags that were set.
func applyFlags(cfg *config.Config, endpoint, codec, addr, registryPath, proxyURL string, minWords, maxWords int, showStats bool) {
	if endpoint != "" {
		cfg.Client.Endpoint = endpoint
	}
	if codec != "" {
		cfg.Client.Codec = codec
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if registryPath != "" {
		cfg.Server.Registry = registryPath
	}
	if proxyURL != "" {
		cfg.Server.ProxyURL = proxyURL
	}
	if minWords >= 0 {
		cfg.CLI.DefaultMinWords = minWords
	}
	if maxWords >= 0 {
		cfg.CLI.DefaultMaxWords = maxWords
	}
	if showStats {
		cfg.CLI.ShowStats = true
	}
}

func runServer(ctx context.Context, cfg config.ServerConfig) error {
	lookup, source, err := newLookup(cfg)
	if err != nil {
		return err
	}
	srv := server.NewServer(lookup, cfg)
	showStartupInfo(cfg.Addr, source)
	return srv.Run(ctx, cfg.Addr)
}

// newLookup picks the lookup backend: a local registry, a proxied server or an empty registry.
func newLookup(cfg config.ServerConfig) (search.Lookuper, string, error) {
	switch {
	case cfg.Registry != "":
		reg, err := registry.Load(cfg.Registry)
		if err != nil {
			return nil, "", err
		}
		return reg, cfg.Registry, nil
	case cfg.ProxyURL != "":
		client, err := transport.NewClient(cfg.ProxyURL,
			transport.WithLookupEndpoint(cfg.ProxyURL),
			transport.WithLogger(logger.New("proxy")))
		if err != nil {
			return nil, "", err
		}
		return client, cfg.ProxyURL, nil
	default:
		log.Warn("No registry or proxy configured, every long enough name is reported free")
		return registry.New(), "empty registry", nil
	}
}

func runCLI(ctx context.Context, cfg *config.Config) error {
	codec, err := transport.ParseCodec(cfg.Client.Codec)
	if err != nil {
		return err
	}
	client, err := transport.NewClient(cfg.Client.Endpoint,
		transport.WithCodec(codec),
		transport.WithTimeout(cfg.Client.Timeout()))
	if err != nil {
		return err
	}

	session, err := coordinator.New(client, coordinator.WithContext(ctx))
	if err != nil {
		return err
	}
	defer session.Close()

	log.Debug("CLI session",
		"endpoint", client.Endpoint(),
		"codec", codec,
		"min", cfg.CLI.DefaultMinWords,
		"max", cfg.CLI.DefaultMaxWords)

	return cli.NewInputHandler(session, os.Stdin, os.Stdout, cfg.CLI).Start(ctx)
}

func printVersion() {
	l := logger.NewWithConfig("", log.InfoLevel, false, false, log.TextFormatter)

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}).
		Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	l.SetStyles(styles)

	l.Print("")
	l.Print("[ dotsearch ] Finds domain names nobody has taken yet")
	l.Print("", "version", Version)
	l.Print("")
	l.Print("use -h or --help to see available options")
	l.Print("Github Repo", "gh", gh)
}

// showStartupInfo displays some basic info about the server.
func showStartupInfo(addr, source string) {
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)

	println("===========")
	println(" dotsearch ")
	println("===========")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", os.Getpid())
	log.Infof("listening: ( %s )", addr)
	log.Infof("lookup: ( %s )", source)
	println("===========")
	println("Press Ctrl+C to exit")

	log.SetLevel(currentLevel)
}
