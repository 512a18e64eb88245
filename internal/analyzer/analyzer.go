package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/sentree/internal/cache"
	"github.com/dgallion1/sentree/internal/completion"
	"github.com/dgallion1/sentree/internal/metrics"
	"github.com/dgallion1/sentree/internal/prompts"
	"github.com/dgallion1/sentree/internal/syntree"
)

var (
	// ErrUnsupportedConstituent is returned for nodes that have no prompt:
	// terminal units and unrecognized phrase types.
	ErrUnsupportedConstituent = errors.New("unsupported constituent")
	// ErrUnknownPromptType is returned by PromptInfo for an unknown code.
	ErrUnknownPromptType = errors.New("unknown prompt type")
)

// Completer sends a prompt to the completion service and returns the JSON
// value found in its reply.
type Completer interface {
	Complete(ctx context.Context, cfg completion.ModelConfig, prompt string) (json.RawMessage, error)
}

// Cache is the content-addressed result store.
type Cache interface {
	Get(key string, flavor cache.Flavor) ([]syntree.Node, bool, error)
	Put(key string, flavor cache.Flavor, text string, nodes []syntree.Node) error
	Clear() error
}

// Analyzer expands sentences and constituents into child constituents.
// It holds no per-request state; all calls go through the cache first.
type Analyzer struct {
	composer  *prompts.Composer
	templates *prompts.Store
	client    Completer
	cache     Cache
	metrics   *metrics.Metrics
	log       *slog.Logger
}

func New(store *prompts.Store, composer *prompts.Composer, client Completer, c Cache, m *metrics.Metrics, log *slog.Logger) *Analyzer {
	if c == nil {
		c = cache.Nop{}
	}
	return &Analyzer{
		composer:  composer,
		templates: store,
		client:    client,
		cache:     c,
		metrics:   m,
		log:       log,
	}
}

// AnalyzeSentence splits text into its top-level clauses. Ids are assigned
// to the clauses and to any children the completion service already
// returned. A cached result is returned unchanged.
func (a *Analyzer) AnalyzeSentence(ctx context.Context, text string) ([]syntree.Node, error) {
	key := cache.Key(text)
	log := a.log.With("key", key[:12], "kind", syntree.KindClause.String())

	if nodes, ok := a.lookup(log, key, cache.Sentence); ok {
		log.Info("sentence served from cache")
		return nodes, nil
	}

	nodes, err := a.expand(ctx, syntree.KindClause, text)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: no clauses returned", completion.ErrResponseNotParseable)
	}
	AssignIDs(nodes, 0)

	a.save(log, key, cache.Sentence, text, nodes)
	return nodes, nil
}

// AnalyzeNode expands one constituent into its children. The children are
// returned without ids; the caller places them under the parent. The cache
// key is the text alone, so equal text shares one entry whatever its type.
func (a *Analyzer) AnalyzeNode(ctx context.Context, text, constituentType string, unit syntree.Unit) ([]syntree.Node, error) {
	kind := syntree.ResolveKind(unit, constituentType)
	if !kind.Expandable() {
		return nil, fmt.Errorf("%w: unit %q, type %q", ErrUnsupportedConstituent, unit, constituentType)
	}

	key := cache.Key(text)
	log := a.log.With("key", key[:12], "kind", kind.String())

	if nodes, ok := a.lookup(log, key, cache.Component); ok {
		log.Info("component served from cache")
		return nodes, nil
	}

	nodes, err := a.expand(ctx, kind, text)
	if err != nil {
		return nil, err
	}

	a.save(log, key, cache.Component, text, nodes)
	return nodes, nil
}

// expand composes the prompt for kind and decodes the completion into a
// normalized node list.
func (a *Analyzer) expand(ctx context.Context, kind syntree.Kind, text string) ([]syntree.Node, error) {
	comp, err := a.composer.Compose(kind, text)
	if err != nil {
		return nil, err
	}
	cfg := completion.ModelConfig{
		Template:    comp.TemplateUsed,
		Model:       comp.Model,
		MaxTokens:   comp.MaxTokens,
		Temperature: comp.Temperature,
	}

	// Once issued, a completion runs to its end even if the caller goes away.
	start := time.Now()
	raw, err := a.client.Complete(context.WithoutCancel(ctx), cfg, comp.Prompt)
	a.metrics.ObserveCompletion(comp.TemplateUsed, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	var nodes []syntree.Node
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("%w: expected an array of constituents: %v", completion.ErrResponseNotParseable, err)
	}
	if nodes == nil {
		nodes = []syntree.Node{}
	}
	Normalize(nodes)
	return nodes, nil
}

// lookup reads the cache. Read failures count as misses.
func (a *Analyzer) lookup(log *slog.Logger, key string, flavor cache.Flavor) ([]syntree.Node, bool) {
	nodes, ok, err := a.cache.Get(key, flavor)
	if err != nil {
		log.Warn("cache read failed, treating as miss", "flavor", flavor.String(), "error", err)
		a.metrics.CacheFailure("read")
		ok = false
	}
	a.metrics.CacheLookup(flavor.String(), ok)
	return nodes, ok
}

// save writes the cache. Write failures are logged only.
func (a *Analyzer) save(log *slog.Logger, key string, flavor cache.Flavor, text string, nodes []syntree.Node) {
	if err := a.cache.Put(key, flavor, text, nodes); err != nil {
		log.Error("cache write failed", "flavor", flavor.String(), "error", err)
		a.metrics.CacheFailure("write")
	}
}

// PromptInfo describes the prompt that would be sent for a short code
// ("sentence", "verb", ...) and text. It has no side effects.
type PromptInfo struct {
	Type         string  `json:"type"`
	Prompt       string  `json:"prompt"`
	TemplateUsed string  `json:"template_used"`
	Model        string  `json:"model"`
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
}

func (a *Analyzer) PromptInfo(code, text string) (PromptInfo, error) {
	kind, ok := syntree.ParseCode(code)
	if !ok {
		return PromptInfo{}, fmt.Errorf("%w: %q", ErrUnknownPromptType, code)
	}
	comp, err := a.composer.Compose(kind, text)
	if err != nil {
		return PromptInfo{}, err
	}
	return PromptInfo{
		Type:         kind.String(),
		Prompt:       comp.Prompt,
		TemplateUsed: comp.TemplateUsed,
		Model:        comp.Model,
		MaxTokens:    comp.MaxTokens,
		Temperature:  comp.Temperature,
	}, nil
}

// ClearCache removes every cached entry.
func (a *Analyzer) ClearCache() error {
	if err := a.cache.Clear(); err != nil {
		a.metrics.CacheFailure("clear")
		return err
	}
	a.log.Info("cache cleared")
	return nil
}

// APIVersion returns the version of the loaded template set.
func (a *Analyzer) APIVersion() string {
	return a.templates.Version()
}
