package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dgallion1/sentree/internal/syntree"
	"github.com/yuin/goldmark"
)

// Markdown renders an analysis tree as a nested bullet outline:
//
//   - **Main Clause** (Clause) `0-0`: The cat sat on the mat.
//     - **Subject** (Phrase, Noun Phrase): The cat
func Markdown(title string, nodes []syntree.Node) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString("# ")
		sb.WriteString(escape(title))
		sb.WriteString("\n\n")
	}
	writeNodes(&sb, nodes, 0)
	return sb.String()
}

func writeNodes(sb *strings.Builder, nodes []syntree.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		sb.WriteString(indent)
		sb.WriteString("- **")
		sb.WriteString(escape(labelOf(n)))
		sb.WriteString("** (")
		sb.WriteString(escape(string(n.Unit)))
		if n.ConstituentType != "" {
			sb.WriteString(", ")
			sb.WriteString(escape(n.ConstituentType))
		}
		sb.WriteString(")")
		if n.ID != "" {
			fmt.Fprintf(sb, " `%s`", n.ID)
		}
		sb.WriteString(": ")
		sb.WriteString(escape(n.Text))
		sb.WriteString("\n")
		writeNodes(sb, n.Children, depth+1)
	}
}

func labelOf(n syntree.Node) string {
	if n.Label != "" {
		return n.Label
	}
	if n.Unit != "" {
		return string(n.Unit)
	}
	return "Constituent"
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	"\n", " ",
)

func escape(s string) string {
	return mdEscaper.Replace(s)
}

var md = goldmark.New()

// HTML renders the Markdown outline of the tree to an HTML fragment.
func HTML(title string, nodes []syntree.Node) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(title, nodes)), &buf); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}
