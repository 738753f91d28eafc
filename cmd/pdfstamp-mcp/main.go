// Command pdfstamp-mcp is an MCP (Model Context Protocol) server that renders
// PDF templates and fills PDF forms for AI assistants.
//
// # Installation
//
//	go install github.com/lvillar/pdfstamp/cmd/pdfstamp-mcp@latest
//
// # Client configuration
//
//	{
//	  "mcpServers": {
//	    "pdfstamp": {
//	      "command": "pdfstamp-mcp",
//	      "args": ["-config", "/etc/pdfstamp.json"]
//	    }
//	  }
//	}
//
// # Available Tools
//
//   - render_template: Render a page template onto its source PDF
//   - fill_form: Fill and flatten an AcroForm PDF
//   - list_form_fields: List form fields with their widgets
//   - pdf_info: Page count, sizes and metadata
//
// # Available Resources
//
//   - pdf://text?path=... : Extract text content
//   - pdf://pages?path=... : Get page information
//   - pdf://form-fields?path=... : List form fields
//
// Logs go to stderr; stdout carries the protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/lvillar/pdfstamp"
	"github.com/lvillar/pdfstamp/config"
	"github.com/lvillar/pdfstamp/mcp"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pdfstamp-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a JSON configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, closeFetcher, err := cfg.Fetcher(ctx, log)
	if err != nil {
		return err
	}
	defer closeFetcher()

	engine := pdfstamp.New(cfg.EngineOptions(log, f)...)
	server := mcp.NewServer(mcp.WithLogger(log), mcp.WithInfo("pdfstamp-mcp", version))
	mcp.RegisterTools(server, engine, f)
	mcp.RegisterResources(server)

	log.Info("mcp server started", zap.String("version", version))
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
