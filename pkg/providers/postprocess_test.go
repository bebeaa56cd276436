package providers

import (
	"strings"
	"testing"
)

func TestPostprocessPassthrough(t *testing.T) {
	got, err := Postprocess("plain text", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != "plain text" {
		t.Errorf("got %q", got)
	}
}

func TestPostprocessText(t *testing.T) {
	in := `<html><head><title>t</title><style>b{color:red}</style></head>
<body><h1>Heading</h1><p>First <b>bold</b> line.</p><p>Second.</p>
<script>alert(1)</script></body></html>`
	got, err := Postprocess(in, "text", 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Heading", "First bold line.", "Second."} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
	for _, banned := range []string{"<p>", "alert", "color:red"} {
		if strings.Contains(got, banned) {
			t.Errorf("leaked %q into %q", banned, got)
		}
	}
}

func TestPostprocessMarkdown(t *testing.T) {
	in := `<h2>Title</h2><p>See <a href="https://x.test/a">the link</a> and <em>note</em>.</p><ul><li>one</li><li>two</li></ul>`
	got, err := Postprocess(in, "markdown", 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"## Title", "[the link](https://x.test/a)", "*note*", "- one", "- two"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestPostprocessTruncatesRunes(t *testing.T) {
	got, err := Postprocess("héllo wörld", "", 5)
	if err != nil {
		t.Fatal(err)
	}
	if got != "héllo" {
		t.Errorf("got %q, want héllo", got)
	}
}

func TestPostprocessUnknownMode(t *testing.T) {
	if _, err := Postprocess("x", "emoji", 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestPostprocessNonHTMLText(t *testing.T) {
	got, err := Postprocess("no markup here", "text", 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != "no markup here" {
		t.Errorf("got %q", got)
	}
}
