package prompts

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/sentree/internal/syntree"
)

// ErrUnknownKind is returned when asked to compose a prompt for a kind that
// has no template.
var ErrUnknownKind = errors.New("no prompt for constituent kind")

// Generation defaults used when no template sets a value.
const (
	DefaultMaxTokens   = 4000
	DefaultTemperature = 0.1
)

// Composition is a fully substituted prompt plus the generation parameters
// to send it with.
type Composition struct {
	Kind         syntree.Kind
	Prompt       string
	TemplateUsed string
	Model        string
	MaxTokens    int
	Temperature  float64
}

// Composer builds prompts from a read-only Store.
type Composer struct {
	store        *Store
	defaultModel string
	log          *slog.Logger
}

func NewComposer(store *Store, defaultModel string, log *slog.Logger) *Composer {
	return &Composer{
		store:        store,
		defaultModel: defaultModel,
		log:          log,
	}
}

// Compose returns the prompt for kind with text substituted.
//
// Placeholders are replaced literally. The kind-specific placeholders are
// replaced before {{text}}, so placeholder-like sequences inside text are
// left as written.
func (c *Composer) Compose(kind syntree.Kind, text string) (Composition, error) {
	switch {
	case kind == syntree.KindClause:
		return c.composeClause(text)
	case kind.IsPhrase():
		return c.composePhrase(kind, text)
	default:
		return Composition{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

func (c *Composer) composeClause(text string) (Composition, error) {
	t, ok := c.store.Get(ClauseTemplate)
	if !ok || t.Content() == "" {
		return Composition{}, fmt.Errorf("%w: %s", ErrConfigurationMissing, ClauseTemplate)
	}
	comp := Composition{
		Kind:         syntree.KindClause,
		Prompt:       strings.ReplaceAll(t.Content(), "{{text}}", text),
		TemplateUsed: ClauseTemplate,
	}
	c.resolveParams(&comp, t)
	return comp, nil
}

func (c *Composer) composePhrase(kind syntree.Kind, text string) (Composition, error) {
	common, ok := c.store.Get(PhraseCommonTemplate)
	if !ok || common.Content() == "" {
		return Composition{}, fmt.Errorf("%w: %s", ErrConfigurationMissing, PhraseCommonTemplate)
	}

	name := SpecificTemplateName(kind)
	specific, hasSpecific := c.store.Get(name)
	used := name
	if !hasSpecific {
		c.log.Warn("phrase-specific template missing, using common template only",
			"kind", kind.String(), "template", name)
		used = PhraseCommonTemplate
	}

	merged := Merge(common, specific, hasSpecific, kind)
	comp := Composition{
		Kind:         kind,
		Prompt:       strings.ReplaceAll(merged.Content(), "{{text}}", text),
		TemplateUsed: used,
	}
	if hasSpecific {
		c.resolveParams(&comp, specific, common)
	} else {
		c.resolveParams(&comp, common)
	}
	return comp, nil
}

// Merge returns a new template whose first message is the common template's
// content with the kind-specific placeholders filled from specific. When
// hasSpecific is false every kind-specific placeholder becomes empty. Neither
// input is modified.
func Merge(common, specific Template, hasSpecific bool, kind syntree.Kind) Template {
	merged := common.Clone()
	if len(merged.Messages) == 0 {
		return merged
	}

	var fields [6]string
	if hasSpecific {
		phraseType := string(specific.PhraseType)
		if phraseType == "" {
			phraseType = kind.String()
		}
		fields = [6]string{
			phraseType,
			string(specific.SpecificRule),
			string(specific.ValidLabels),
			string(specific.ExampleLabel),
			string(specific.ExampleUnit),
			string(specific.ExampleProperties),
		}
	}

	content := merged.Messages[0].Content
	for i, placeholder := range specificPlaceholders {
		content = strings.ReplaceAll(content, placeholder, fields[i])
	}
	merged.Messages[0].Content = content
	return merged
}

var specificPlaceholders = [6]string{
	"{{phrase_type}}",
	"{{specific_rule}}",
	"{{valid_labels}}",
	"{{example_label}}",
	"{{example_unit}}",
	"{{example_properties}}",
}

// resolveParams fills generation parameters from the first template in
// chain that sets each one, then the clause template, then defaults.
func (c *Composer) resolveParams(comp *Composition, chain ...Template) {
	if clause, ok := c.store.Get(ClauseTemplate); ok {
		chain = append(chain, clause)
	}
	var temperature *float64
	for _, t := range chain {
		if comp.Model == "" && t.Model != "" {
			comp.Model = t.Model
		}
		if comp.MaxTokens == 0 && t.MaxTokens > 0 {
			comp.MaxTokens = t.MaxTokens
		}
		if temperature == nil && t.Temperature != nil {
			temperature = t.Temperature
		}
	}
	if comp.Model == "" {
		comp.Model = c.defaultModel
	}
	if comp.MaxTokens == 0 {
		comp.MaxTokens = DefaultMaxTokens
	}
	comp.Temperature = DefaultTemperature
	if temperature != nil {
		comp.Temperature = *temperature
	}
}
