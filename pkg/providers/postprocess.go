package providers

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Postprocess converts fetched content according to the variable's declared
// mode, then truncates to maxLength runes (0 means unlimited). Modes are
// checked at load time; an unknown mode here is a programming error.
func Postprocess(content, mode string, maxLength int) (string, error) {
	var out string
	switch mode {
	case "":
		out = content
	case "text":
		var err error
		out, err = htmlToText(content)
		if err != nil {
			return "", err
		}
	case "markdown":
		var err error
		out, err = htmlToMarkdown(content)
		if err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unknown postprocess mode %q", mode)
	}

	if maxLength > 0 {
		runes := []rune(out)
		if len(runes) > maxLength {
			out = string(runes[:maxLength])
		}
	}
	return out, nil
}

// blockTags start a new output line when text extraction crosses them.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "section": true, "article": true,
}

// skipTags contribute no prompt-visible text.
var skipTags = map[string]bool{
	"script": true, "style": true, "head": true, "noscript": true,
}

// htmlToText strips markup and returns readable plain text. Non-HTML input
// passes through unchanged.
func htmlToText(content string) (string, error) {
	if !strings.Contains(content, "<") {
		return content, nil
	}
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTags[n.Data] {
			b.WriteString("\n")
		}
	}
	walk(doc)
	return collapseBlankLines(b.String()), nil
}

// htmlToMarkdown converts common structural markup to markdown. Tags it
// does not understand degrade to their text content.
func htmlToMarkdown(content string) (string, error) {
	if !strings.Contains(content, "<") {
		return content, nil
	}
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	renderChildren := func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipTags[n.Data] {
				return
			}
			switch n.Data {
			case "h1", "h2", "h3", "h4", "h5", "h6":
				b.WriteString("\n\n")
				b.WriteString(strings.Repeat("#", int(n.Data[1]-'0')))
				b.WriteString(" ")
				renderChildren(n)
				b.WriteString("\n")
				return
			case "p", "div", "blockquote", "section", "article":
				b.WriteString("\n")
				renderChildren(n)
				b.WriteString("\n")
				return
			case "br":
				b.WriteString("\n")
				return
			case "li":
				b.WriteString("\n- ")
				renderChildren(n)
				return
			case "a":
				href := attrValue(n, "href")
				b.WriteString("[")
				renderChildren(n)
				b.WriteString("](" + href + ")")
				return
			case "strong", "b":
				b.WriteString("**")
				renderChildren(n)
				b.WriteString("**")
				return
			case "em", "i":
				b.WriteString("*")
				renderChildren(n)
				b.WriteString("*")
				return
			case "code":
				b.WriteString("`")
				renderChildren(n)
				b.WriteString("`")
				return
			}
		}
		renderChildren(n)
	}
	walk(doc)
	return collapseBlankLines(b.String()), nil
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// collapseBlankLines trims each line and squeezes runs of blank lines to one.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := true
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
