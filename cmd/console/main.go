// Command console is the operator REPL: stats, sources, changes, api-status,
// force <sourceId>, test-api, help, quit. Grounded on
// regulatory_monitor/complete_regulatory_demo.cpp's interactive_mode loop
// (std::getline command dispatch over "stats"/"sources"/"force sec"/
// "test-api"/"quit"), reimplemented as a bufio.Scanner loop over the same
// in-process components cmd/server wires, since this module merges what the
// original split into a demo binary plus a long-running service.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/regulens/compliance-core/internal/database"
	"github.com/regulens/compliance-core/internal/feedback"
	"github.com/regulens/compliance-core/internal/handlers"
	"github.com/regulens/compliance-core/internal/httpclient"
	"github.com/regulens/compliance-core/internal/monitor"
	"github.com/regulens/compliance-core/internal/pattern"
	"github.com/regulens/compliance-core/internal/registry"
	"github.com/regulens/compliance-core/pkg/auth"
	"github.com/regulens/compliance-core/pkg/config"
	"github.com/regulens/compliance-core/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: "stdout"})

	ctx := context.Background()
	pool, err := database.Open(ctx, database.Config{
		DSN:            cfg.Database.DSN(),
		MaxConnections: cfg.Database.MaxConnections,
		AcquireTimeout: cfg.Database.AcquireTimeout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to postgres: %v\n", err)
		os.Exit(1)
	}

	refreshStore := database.NewRefreshStore(pool)
	tokens, err := auth.NewService(cfg.Auth.JWTSecret, refreshStore, cfg.Auth.AccessTokenTTLHours, cfg.Auth.RefreshTokenTTLDays)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build token service: %v\n", err)
		os.Exit(1)
	}

	patterns := pattern.New(pattern.Config{
		MinOccurrences: cfg.Pattern.MinOccurrences,
		MinConfidence:  cfg.Pattern.MinConfidence,
	}, log, database.NewPatternStore(pool))

	feedbackSys := feedback.New(feedback.Config{MaxPerEntity: cfg.Feedback.MaxPerEntity}, log, database.NewFeedbackStore(pool), patterns)

	httpClient := httpclient.New(time.Duration(cfg.Monitor.ScrapeTimeoutSeconds) * time.Second)
	sources := make([]monitor.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		sources = append(sources, monitor.Source{
			ID: s.ID, Name: s.Name, BaseURL: s.BaseURL, SourceType: s.SourceType,
			CheckIntervalMinutes: s.CheckIntervalMinutes, Active: s.Active,
		})
	}
	mon := monitor.New(monitor.Config{
		ScrapeTimeout:    time.Duration(cfg.Monitor.ScrapeTimeoutSeconds) * time.Second,
		FailureThreshold: cfg.Monitor.FailureThreshold,
		MinBackoff:       time.Duration(cfg.Monitor.MinBackoffMinutes) * time.Minute,
		MaxBackoff:       time.Duration(cfg.Monitor.MaxBackoffHours) * time.Hour,
	}, log, database.NewMonitorStore(pool), httpClient, patterns, sources)

	h := handlers.New(pool, tokens, patterns, feedbackSys, mon, log)
	reg := registry.New(tokens, log)
	if err := reg.RegisterAll(h.Routes()...); err != nil {
		fmt.Fprintf(os.Stderr, "register routes: %v\n", err)
		os.Exit(1)
	}

	apiBaseURL := fmt.Sprintf("http://%s:%d", cfg.Server.DisplayHost, cfg.Server.Port)

	fmt.Println("compliance-core operator console")
	fmt.Println("=================================")
	fmt.Println("Type 'help' for available commands, 'quit' to exit.")
	fmt.Println()

	console := &consoleSession{mon: mon, reg: reg, http: httpClient, apiBaseURL: apiBaseURL, cfg: cfg}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("regulens> ")
		if !scanner.Scan() {
			break
		}
		cmd := strings.TrimSpace(scanner.Text())
		if cmd == "" {
			continue
		}
		if cmd == "quit" || cmd == "exit" {
			break
		}
		console.dispatch(cmd)
		fmt.Println()
	}

	fmt.Println("shutting down")
	os.Exit(0)
}

type consoleSession struct {
	mon        *monitor.Monitor
	reg        *registry.Registry
	http       *httpclient.Client
	apiBaseURL string
	cfg        *config.Config
}

func (c *consoleSession) dispatch(cmd string) {
	switch {
	case cmd == "stats":
		c.displayStats()
	case cmd == "sources":
		c.displaySources()
	case cmd == "changes":
		c.displayChanges()
	case cmd == "api-status":
		c.displayAPIStatus()
	case strings.HasPrefix(cmd, "force "):
		c.forceSource(strings.TrimSpace(strings.TrimPrefix(cmd, "force ")))
	case cmd == "test-api":
		c.testAPI()
	case cmd == "help":
		c.displayHelp()
	default:
		fmt.Println("Unknown command. Type 'help' for available commands.")
	}
}

func (c *consoleSession) displayStats() {
	sources := c.mon.Sources()
	active, quarantined := 0, 0
	for _, s := range sources {
		if s.Active {
			active++
		}
		if s.Quarantined {
			quarantined++
		}
	}
	fmt.Println("Regulatory Monitoring Statistics:")
	fmt.Println("=================================")
	fmt.Printf("Total sources:       %d\n", len(sources))
	fmt.Printf("Active sources:      %d\n", active)
	fmt.Printf("Quarantined sources: %d\n", quarantined)
}

func (c *consoleSession) displaySources() {
	sources := c.mon.Sources()
	fmt.Println("Regulatory Sources:")
	fmt.Println("===================")
	for _, s := range sources {
		fmt.Printf("- %s (%s)\n", s.Name, s.ID)
		fmt.Printf("  URL:    %s\n", s.BaseURL)
		fmt.Printf("  Type:   %s\n", s.SourceType)
		fmt.Printf("  Active: %v\n", s.Active)
		fmt.Printf("  Consecutive failures: %d\n", s.ConsecutiveFailures)
		if s.Quarantined {
			fmt.Printf("  Quarantined until: %s\n", s.BackoffUntil.Format(time.RFC3339))
		}
	}
}

// displayChanges hits the module's own regulatory-changes endpoint through
// the HttpClient rather than reading internal/database directly, mirroring
// complete_regulatory_demo.cpp's choice to drive the console through the
// same REST surface an external operator would use.
func (c *consoleSession) displayChanges() {
	env := c.http.Get(context.Background(), c.apiBaseURL+"/regulatory-changes?limit=10", nil)
	fmt.Println("Recent Regulatory Changes:")
	fmt.Println("==========================")
	if !env.Success {
		fmt.Printf("request failed: %s\n", env.Error)
		return
	}
	fmt.Println(string(env.Body))
}

func (c *consoleSession) displayAPIStatus() {
	fmt.Println("REST API Server Status:")
	fmt.Println("========================")
	fmt.Printf("Port:     %d\n", c.cfg.Server.Port)
	fmt.Printf("Base URL: %s\n", c.apiBaseURL)
	fmt.Println("Registered categories:")
	for category, endpoints := range c.reg.Categories() {
		fmt.Printf("  %s: %d endpoint(s)\n", category, len(endpoints))
		for _, ep := range endpoints {
			fmt.Printf("    %-6s %s\n", ep.Method, ep.PathTemplate)
		}
	}
}

// aliasSourceID maps the spec's literal "force sec"/"force fca" shorthand
// onto the configured source catalogue's actual IDs; any other argument is
// passed through as a source ID directly.
func aliasSourceID(arg string) string {
	switch arg {
	case "sec":
		return "sec_edgar"
	case "fca":
		return "fca_uk"
	default:
		return arg
	}
}

func (c *consoleSession) forceSource(arg string) {
	sourceID := aliasSourceID(arg)
	if sourceID == "" {
		fmt.Println("usage: force sec|fca|<sourceId>")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	result := c.mon.ForceCheck(ctx, sourceID)
	if result.Err != nil {
		fmt.Printf("forced check for %s failed: %v\n", sourceID, result.Err)
		return
	}
	fmt.Printf("forced check for %s: inserted=%d duplicated=%d failed=%d\n", sourceID, result.Inserted, result.Duplicated, result.Failed)
}

func (c *consoleSession) testAPI() {
	fmt.Println("Testing REST API Endpoints:")
	fmt.Println("===========================")
	checks := []struct {
		name, path string
	}{
		{"health", "/api/health"},
		{"regulatory changes", "/regulatory-changes"},
		{"sources", "/sources"},
	}
	for _, chk := range checks {
		env := c.http.Get(context.Background(), c.apiBaseURL+chk.path, nil)
		if env.Success {
			fmt.Printf("PASS %-20s status=%s\n", chk.name, strconv.Itoa(env.Status))
		} else {
			fmt.Printf("FAIL %-20s %s\n", chk.name, env.Error)
		}
	}
}

func (c *consoleSession) displayHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  stats           show monitoring counters")
	fmt.Println("  sources         list configured regulatory sources")
	fmt.Println("  changes         show recent regulatory changes")
	fmt.Println("  api-status      show the registered API surface")
	fmt.Println("  force <id>      force an immediate check of one source")
	fmt.Println("  test-api        smoke-test the REST endpoints")
	fmt.Println("  help            show this message")
	fmt.Println("  quit            exit the console")
}
