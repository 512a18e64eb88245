// Package app wires the analyzer and its collaborators from configuration.
// Both the HTTP server and the command-line tool start from here.
package app

import (
	"fmt"
	"log/slog"

	"github.com/dgallion1/sentree/internal/analyzer"
	"github.com/dgallion1/sentree/internal/cache"
	"github.com/dgallion1/sentree/internal/completion"
	"github.com/dgallion1/sentree/internal/config"
	"github.com/dgallion1/sentree/internal/metrics"
	"github.com/dgallion1/sentree/internal/prompts"
)

// Entries lists and clears cached sentence entries.
type Entries interface {
	List() ([]cache.Metadata, error)
	Clear() error
}

// App holds the long-lived components built at startup.
type App struct {
	Templates *prompts.Store
	Claude    *completion.ClaudeClient
	Analyzer  *analyzer.Analyzer
	Entries   Entries
	Metrics   *metrics.Metrics
}

// Build loads the template set and constructs every component. Templates are
// read once here and never reloaded.
func Build(cfg config.Config, log *slog.Logger) (*App, error) {
	templates, err := prompts.Load(cfg.ResourcesDir, log)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	var store interface {
		analyzer.Cache
		Entries
	} = cache.Nop{}
	if cfg.CacheEnabled {
		fs, err := cache.NewFileStore(cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		store = fs
	}

	m := metrics.New()
	claude := completion.NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL, cfg.AnthropicTimeout, completion.NewLLMStats(cfg.StatsWindow))
	composer := prompts.NewComposer(templates, cfg.AnthropicModel, log)

	return &App{
		Templates: templates,
		Claude:    claude,
		Analyzer:  analyzer.New(templates, composer, claude, store, m, log),
		Entries:   store,
		Metrics:   m,
	}, nil
}

// Close releases idle connections to the completion service.
func (a *App) Close() {
	a.Claude.Close()
}
