package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgallion1/sentree/internal/syntree"
	"gopkg.in/yaml.v3"
)

// Template names with fixed meaning.
const (
	ClauseTemplate       = "analyzeClause"
	PhraseCommonTemplate = "analyzePhraseCommon"
)

// CurrentFile names the document that points at the active template set.
const CurrentFile = "current.json"

// ErrConfigurationMissing is returned when a required template is absent.
var ErrConfigurationMissing = errors.New("configuration missing")

// Message is one entry of a template's message list.
type Message struct {
	Role    string `yaml:"role"`
	Content string `yaml:"content"`
}

// Template is one named prompt document.
type Template struct {
	Name        string    `yaml:"-"`
	Model       string    `yaml:"model"`
	MaxTokens   int       `yaml:"max_tokens"`
	Temperature *float64  `yaml:"temperature"`
	Messages    []Message `yaml:"messages"`

	// Phrase-specific fields merged into the common phrase template.
	PhraseType        Field `yaml:"phrase_type"`
	SpecificRule      Field `yaml:"specific_rule"`
	ValidLabels       Field `yaml:"valid_labels"`
	ExampleLabel      Field `yaml:"example_label"`
	ExampleUnit       Field `yaml:"example_unit"`
	ExampleProperties Field `yaml:"example_properties"`
}

// Content returns the first message's content.
func (t Template) Content() string {
	if len(t.Messages) == 0 {
		return ""
	}
	return t.Messages[0].Content
}

// Clone returns a copy of t that shares no mutable state with it.
func (t Template) Clone() Template {
	c := t
	if t.Messages != nil {
		c.Messages = append([]Message(nil), t.Messages...)
	}
	if t.Temperature != nil {
		v := *t.Temperature
		c.Temperature = &v
	}
	return c
}

// Field is a template value that may be written in YAML as a scalar, a list
// (joined with ", ") or a mapping (kept as YAML text).
type Field string

func (f *Field) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*f = Field(value.Value)
	case yaml.SequenceNode:
		parts := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind == yaml.ScalarNode {
				parts = append(parts, item.Value)
				continue
			}
			out, err := yaml.Marshal(item)
			if err != nil {
				return err
			}
			parts = append(parts, strings.TrimSpace(string(out)))
		}
		*f = Field(strings.Join(parts, ", "))
	default:
		out, err := yaml.Marshal(value)
		if err != nil {
			return err
		}
		*f = Field(strings.TrimSpace(string(out)))
	}
	return nil
}

// SpecificTemplateName returns the optional template name for a phrase kind,
// e.g. "analyzeVerbPhraseSpecific".
func SpecificTemplateName(kind syntree.Kind) string {
	base := strings.TrimSuffix(kind.String(), " Phrase")
	return "analyze" + base + "PhraseSpecific"
}

// Store holds the templates loaded at startup. It is never modified after
// construction and is safe for concurrent use.
type Store struct {
	templates map[string]Template
	version   string
}

// NewStore builds a store from already-parsed templates.
func NewStore(version string, templates ...Template) *Store {
	s := &Store{
		templates: make(map[string]Template, len(templates)),
		version:   version,
	}
	for _, t := range templates {
		s.templates[t.Name] = t.Clone()
	}
	return s
}

// Get returns a copy of the named template.
func (s *Store) Get(name string) (Template, bool) {
	t, ok := s.templates[name]
	if !ok {
		return Template{}, false
	}
	return t.Clone(), true
}

// Version returns the template set version, or "unknown".
func (s *Store) Version() string {
	if s.version == "" {
		return "unknown"
	}
	return s.version
}

// Names returns the loaded template names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type currentConfig struct {
	AnalysisAPIFunctions struct {
		BasePath string `json:"base_path"`
		Version  string `json:"version"`
	} `json:"analysis_api_functions"`
}

// Load reads current.json from dir and every YAML template in the directory
// it names. Unreadable or malformed template files are logged and skipped.
// The clause and common phrase templates are required.
func Load(dir string, log *slog.Logger) (*Store, error) {
	raw, err := os.ReadFile(filepath.Join(dir, CurrentFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", CurrentFile, err)
	}
	var cur currentConfig
	if err := json.Unmarshal(raw, &cur); err != nil {
		return nil, fmt.Errorf("parse %s: %w", CurrentFile, err)
	}

	apiDir := filepath.Join(dir, cur.AnalysisAPIFunctions.BasePath)
	entries, err := os.ReadDir(apiDir)
	if err != nil {
		return nil, fmt.Errorf("read template dir %s: %w", apiDir, err)
	}
	if len(entries) == 0 {
		log.Warn("template directory is empty", "path", apiDir)
	}

	var templates []Template
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yml" && ext != ".yaml") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ext)
		t, err := loadTemplate(filepath.Join(apiDir, e.Name()))
		if err != nil {
			log.Error("skipping template", "file", e.Name(), "error", err)
			continue
		}
		t.Name = name
		if (name == ClauseTemplate || name == PhraseCommonTemplate) && (t.Model == "" || t.Content() == "") {
			log.Error("skipping template: model or messages missing", "file", e.Name())
			continue
		}
		templates = append(templates, t)
	}

	store := NewStore(cur.AnalysisAPIFunctions.Version, templates...)
	log.Info("templates loaded", "path", apiDir, "version", store.Version(), "templates", store.Names())

	var missing []string
	for _, name := range []string{ClauseTemplate, PhraseCommonTemplate} {
		if _, ok := store.Get(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: required templates %s", ErrConfigurationMissing, strings.Join(missing, ", "))
	}

	var optional []string
	for _, k := range syntree.PhraseKinds {
		if _, ok := store.Get(SpecificTemplateName(k)); !ok {
			optional = append(optional, SpecificTemplateName(k))
		}
	}
	if len(optional) > 0 {
		log.Warn("phrase-specific templates missing, common template will be used alone", "templates", optional)
	}
	return store, nil
}

func loadTemplate(path string) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, err
	}
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Template{}, fmt.Errorf("parse yaml: %w", err)
	}
	return t, nil
}
