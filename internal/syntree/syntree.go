package syntree

import "strings"

// Unit is the coarse grammatical kind reported for a constituent.
type Unit string

const (
	UnitClause Unit = "Clause"
	UnitPhrase Unit = "Phrase"
)

// Node is one constituent of an analyzed sentence.
type Node struct {
	ID              string         `json:"id,omitempty"` // "<depth>-<index>", assigned by the analyzer
	Text            string         `json:"text"`
	Label           string         `json:"label"`
	Unit            Unit           `json:"unit"`
	ConstituentType string         `json:"constituent_type,omitempty"`
	Properties      map[string]any `json:"properties,omitempty"`

	// Expanded reports whether Children reflects an expansion that was
	// actually performed. An unexpanded node and an expanded node with no
	// constituents both carry an empty Children slice.
	Expanded bool   `json:"expanded"`
	Children []Node `json:"children"`
}

// Kind selects the prompt used to expand a constituent.
type Kind int

const (
	KindTerminal Kind = iota // not expandable
	KindClause
	KindVerbPhrase
	KindNounPhrase
	KindPrepositionalPhrase
	KindAdjectivePhrase
	KindAdverbPhrase
	KindInfinitivePhrase
	KindGerundPhrase
	KindParticipialPhrase
)

type kindInfo struct {
	name string // constituent_type as reported by the completion service
	code string // short code used by the UI
}

var kinds = map[Kind]kindInfo{
	KindClause:              {name: "Clause", code: "sentence"},
	KindVerbPhrase:          {name: "Verb Phrase", code: "verb"},
	KindNounPhrase:          {name: "Noun Phrase", code: "noun"},
	KindPrepositionalPhrase: {name: "Prepositional Phrase", code: "prep"},
	KindAdjectivePhrase:     {name: "Adjective Phrase", code: "adj"},
	KindAdverbPhrase:        {name: "Adverb Phrase", code: "adv"},
	KindInfinitivePhrase:    {name: "Infinitive Phrase", code: "inf"},
	KindGerundPhrase:        {name: "Gerund Phrase", code: "ger"},
	KindParticipialPhrase:   {name: "Participial Phrase", code: "part"},
}

// PhraseKinds lists the phrase kinds in a stable order.
var PhraseKinds = []Kind{
	KindVerbPhrase,
	KindNounPhrase,
	KindPrepositionalPhrase,
	KindAdjectivePhrase,
	KindAdverbPhrase,
	KindInfinitivePhrase,
	KindGerundPhrase,
	KindParticipialPhrase,
}

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return "Terminal"
}

// Code returns the short code for k, or "" for KindTerminal.
func (k Kind) Code() string {
	return kinds[k].code
}

// IsPhrase reports whether k is one of the phrase kinds.
func (k Kind) IsPhrase() bool {
	return k >= KindVerbPhrase && k <= KindParticipialPhrase
}

// Expandable reports whether a prompt exists for k.
func (k Kind) Expandable() bool {
	return k == KindClause || k.IsPhrase()
}

// ParseCode maps a short code ("sentence", "verb", ...) to a Kind.
func ParseCode(code string) (Kind, bool) {
	for k, info := range kinds {
		if info.code == code {
			return k, true
		}
	}
	return KindTerminal, false
}

// ResolveKind maps a node's unit and constituent type to the Kind used to
// expand it. Phrase types must match exactly. A clause may carry no subtype
// or a clause subtype ("Main Clause", "Relative Clause"); a clause-unit node
// typed as something else, such as "Subject", is terminal.
func ResolveKind(unit Unit, constituentType string) Kind {
	switch unit {
	case UnitClause:
		t := strings.TrimSpace(constituentType)
		if t == "" || strings.HasSuffix(t, "Clause") {
			return KindClause
		}
	case UnitPhrase:
		for _, k := range PhraseKinds {
			if kinds[k].name == constituentType {
				return k
			}
		}
	}
	return KindTerminal
}
