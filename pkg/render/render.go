// Package render formats run results and validation diagnostics for the
// terminal. Plain output is the default; pretty mode styles diagnostics and
// renders markdown-shaped result values.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/textloom/loom/pkg/schema"
	"github.com/textloom/loom/pkg/scope"
)

var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorDim    = lipgloss.Color("240")

	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	keyStyle   = lipgloss.NewStyle().Foreground(colorDim)
	valueWidth = 100
)

// Value renders a projected run value as indented text. Scopes and ordered
// maps print one key per line in their stored order; long values are
// truncated width-aware.
func Value(v any) string {
	var b strings.Builder
	writeValue(&b, v, 0, false)
	return b.String()
}

// PrettyValue is Value with styling, and markdown rendering for leaf
// strings that look like markdown.
func PrettyValue(v any) string {
	if s, ok := v.(string); ok && looksLikeMarkdown(s) {
		if out, err := renderMarkdown(s); err == nil {
			return out
		}
	}
	var b strings.Builder
	writeValue(&b, v, 0, true)
	return b.String()
}

func writeValue(b *strings.Builder, v any, depth int, pretty bool) {
	indent := strings.Repeat("  ", depth)
	switch t := v.(type) {
	case string:
		b.WriteString(indent + truncate(t) + "\n")
	case *scope.Scope:
		t.Each(func(name, value string) {
			writeEntry(b, indent, name, value, pretty)
		})
	case *orderedmap.OrderedMap[string, any]:
		for pair := t.Oldest(); pair != nil; pair = pair.Next() {
			if nested, ok := pair.Value.(*orderedmap.OrderedMap[string, any]); ok {
				b.WriteString(indent + key(pair.Key, pretty) + ":\n")
				writeValue(b, nested, depth+1, pretty)
				continue
			}
			writeEntry(b, indent, pair.Key, fmt.Sprintf("%v", pair.Value), pretty)
		}
	default:
		b.WriteString(indent + fmt.Sprintf("%v", t) + "\n")
	}
}

func writeEntry(b *strings.Builder, indent, name, value string, pretty bool) {
	b.WriteString(indent + key(name, pretty) + ": " + truncate(value) + "\n")
}

func key(name string, pretty bool) string {
	if pretty {
		return keyStyle.Render(name)
	}
	return name
}

// truncate keeps single-line values within the display width, counting
// terminal cells rather than bytes so wide runes do not overflow.
func truncate(s string) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	if runewidth.StringWidth(s) <= valueWidth {
		return s
	}
	return runewidth.Truncate(s, valueWidth, "…")
}

// Diagnostics renders validation results, one line per finding.
func Diagnostics(errs []*schema.ValidationError, pretty bool) string {
	if len(errs) == 0 {
		if pretty {
			return okStyle.Render("✓ valid") + "\n"
		}
		return "valid\n"
	}
	var b strings.Builder
	for _, e := range errs {
		label := e.Severity
		if pretty {
			switch e.Severity {
			case "error":
				label = errStyle.Render("✗ error")
			case "warning":
				label = warnStyle.Render("! warning")
			}
		}
		fmt.Fprintf(&b, "%s [%s] %s: %s\n", label, e.Phase, e.Path, e.Message)
	}
	return b.String()
}

func looksLikeMarkdown(s string) bool {
	return strings.Contains(s, "\n#") || strings.HasPrefix(s, "#") ||
		strings.Contains(s, "\n- ") || strings.Contains(s, "**")
}

// renderMarkdown converts markdown to styled terminal output.
func renderMarkdown(md string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(valueWidth),
	)
	if err != nil {
		return "", err
	}
	out, err := r.Render(md)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n") + "\n", nil
}
