package main

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/fwojciec/partcrawl"
	"github.com/fwojciec/partcrawl/crawl"
)

// Dependencies holds services and writers for command execution.
type Dependencies struct {
	Ctx     context.Context
	Stdout  io.Writer
	Stderr  io.Writer
	Fetcher partcrawl.Fetcher
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Type             string `short:"t" default:"refrigerator" help:"Appliance type to crawl: refrigerator, dishwasher or all"`
	MaxModels        int    `default:"3" help:"Maximum models per appliance type"`
	MaxPartsPerModel int    `default:"10" help:"Maximum parts scheduled per model"`
	Workers          int    `short:"w" default:"1" help:"Concurrent workers"`

	DB           bool   `help:"Write records to the relational catalog"`
	DBURL        string `name:"db-url" env:"DATABASE_URL" default:"partcrawl.db" help:"SQLite file path or postgres:// URL"`
	NoJSON       bool   `name:"no-json" help:"Do not write JSON output files"`
	OutputDir    string `default:"output" help:"Directory for JSON output"`
	OutputPrefix string `help:"File name prefix for JSON output"`

	Fetcher      string        `default:"rod" enum:"rod,http" help:"Page fetcher: rod (headless Chrome) or http"`
	Browsers     int           `help:"Browser pool size (default: min(workers, 4))"`
	FetchTimeout time.Duration `default:"45s" help:"Timeout per fetch attempt"`
	RecycleAfter int64         `default:"75" help:"Pages a browser serves before it is relaunched"`
	BlockLimit   int64         `default:"3" help:"Consecutive access-denied pages that make a browser relaunch (0 disables)"`
	RPS          float64       `name:"rps" default:"0.5" help:"Requests per second per host (0 disables)"`
	Deadline     time.Duration `help:"Stop dispatching new pages after this long (0 means no deadline)"`
	BaseURL      string        `default:"https://www.partselect.com" help:"Catalog base URL"`

	MetricsAddr string `help:"Serve Prometheus metrics on this address (e.g. :9090)"`
	Verbose     bool   `short:"v" help:"Enable debug logging"`
}

// Validate is called by Kong after parsing.
func (c *CLI) Validate() error {
	if _, err := partcrawl.ParseApplianceTypes(c.Type); err != nil {
		return err
	}
	if c.RecycleAfter < 0 || c.BlockLimit < 0 {
		return partcrawl.Errorf(partcrawl.EINVALID, "recycle-after and block-limit must not be negative")
	}
	if c.Browsers < 0 {
		return partcrawl.Errorf(partcrawl.EINVALID, "browsers must not be negative, got %d", c.Browsers)
	}
	if c.RPS < 0 {
		return partcrawl.Errorf(partcrawl.EINVALID, "rps must not be negative, got %v", c.RPS)
	}
	if c.Deadline < 0 {
		return partcrawl.Errorf(partcrawl.EINVALID, "deadline must not be negative, got %v", c.Deadline)
	}
	return c.runConfig("").Validate()
}

func (c *CLI) types() []partcrawl.ApplianceType {
	types, _ := partcrawl.ParseApplianceTypes(c.Type)
	return types
}

func (c *CLI) runConfig(runID string) crawl.RunConfig {
	return crawl.RunConfig{
		Types:            c.types(),
		MaxModels:        c.MaxModels,
		MaxPartsPerModel: c.MaxPartsPerModel,
		Workers:          c.Workers,
		BaseURL:          strings.TrimRight(c.BaseURL, "/"),
		RunID:            runID,
	}
}

// browsers returns the browser pool size.
func (c *CLI) browsers() int {
	if c.Browsers > 0 {
		return c.Browsers
	}
	return min(c.Workers, 4)
}

func (c *CLI) usePostgres() bool {
	return strings.HasPrefix(c.DBURL, "postgres://") || strings.HasPrefix(c.DBURL, "postgresql://")
}
