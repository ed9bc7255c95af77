package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/freelift/internal/client"
	"github.com/claude/freelift/internal/config"
	"github.com/claude/freelift/internal/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", config.DefaultClientConfigPath(), "path to client config (TOML)")
	serverURL := flag.String("server", "", "FreeLift server URL (overrides config)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("freelift-mcp", Version)
		return
	}

	// stdout carries the MCP protocol.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *serverURL != "" {
		cfg.Server.URL = *serverURL
	}

	c := client.New(cfg.Server.URL, cfg.Server.APIKey)
	s := mcp.New(c, Version, log)

	log.Info("freelift-mcp serving on stdio", "server", cfg.Server.URL)
	if err := mcpserver.ServeStdio(s); err != nil {
		log.Error("stdio server stopped", "error", err)
		os.Exit(1)
	}
}
