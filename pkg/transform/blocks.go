// Package transform applies named text-transform pipelines to delimited
// blocks. A span has the shape
//
//	<<<mode1|mode2>>> body <<<end>>>
//
// and the named modes are applied to the body left to right. Spans may nest;
// the scanner rewrites innermost spans first and re-scans until none remain.
// Transformation is pure text work: it knows nothing about scopes.
package transform

import (
	"fmt"
	"html"
	"mime/quotedprintable"
	"strings"
)

const (
	openMark  = "<<<"
	closeMark = ">>>"
	endToken  = "<<<end>>>"
)

// UnknownModeError is returned for a transform mode name with no registered
// pipeline. It is a parse-time authoring error, never recovered from.
type UnknownModeError struct {
	Mode string
}

func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("unknown transform mode %q", e.Mode)
}

// Apply rewrites all transform spans in text. Text without spans is returned
// unchanged.
func Apply(text string) (string, error) {
	for {
		span, ok := findInnermost(text)
		if !ok {
			return text, nil
		}
		body := text[span.bodyStart:span.bodyEnd]
		for _, mode := range span.modes {
			transformed, err := applyMode(mode, body)
			if err != nil {
				return "", err
			}
			body = transformed
		}
		text = text[:span.start] + body + text[span.end:]
	}
}

type span struct {
	start, end         int // full span bounds including markers
	bodyStart, bodyEnd int
	modes              []string
}

// findInnermost locates the innermost span: the last opener before the first
// <<<end>>> terminator.
func findInnermost(text string) (span, bool) {
	endIdx := strings.Index(text, endToken)
	if endIdx < 0 {
		return span{}, false
	}

	// Walk openers left of the terminator; the last one wins.
	openIdx, modesEnd := -1, -1
	search := 0
	for {
		idx := strings.Index(text[search:], openMark)
		if idx < 0 {
			break
		}
		idx += search
		if idx >= endIdx {
			break
		}
		closeIdx := strings.Index(text[idx:], closeMark)
		if closeIdx < 0 {
			break
		}
		closeIdx += idx
		header := text[idx+len(openMark) : closeIdx]
		if header != "end" {
			openIdx = idx
			modesEnd = closeIdx + len(closeMark)
		}
		search = closeIdx + len(closeMark)
	}
	if openIdx < 0 {
		return span{}, false
	}

	header := text[openIdx+len(openMark) : modesEnd-len(closeMark)]
	return span{
		start:     openIdx,
		end:       endIdx + len(endToken),
		bodyStart: modesEnd,
		bodyEnd:   endIdx,
		modes:     strings.Split(header, "|"),
	}, true
}

func applyMode(mode, body string) (string, error) {
	switch strings.TrimSpace(mode) {
	case "text-to-html":
		return textToHTML(body), nil
	case "quoted-printable":
		return toQuotedPrintable(body)
	default:
		return "", &UnknownModeError{Mode: strings.TrimSpace(mode)}
	}
}

// textToHTML escapes markup-significant characters and converts line breaks
// to line-break markup.
func textToHTML(body string) string {
	escaped := html.EscapeString(body)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	return strings.ReplaceAll(escaped, "\n", "<br/>\n")
}

func toQuotedPrintable(body string) (string, error) {
	var b strings.Builder
	w := quotedprintable.NewWriter(&b)
	if _, err := w.Write([]byte(body)); err != nil {
		return "", fmt.Errorf("quoted-printable encode: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("quoted-printable encode: %w", err)
	}
	return b.String(), nil
}
