package transform

import (
	"errors"
	"strings"
	"testing"
)

func TestApplyNoSpans(t *testing.T) {
	got, err := Apply("plain text, no markers")
	if err != nil {
		t.Fatal(err)
	}
	if got != "plain text, no markers" {
		t.Errorf("got %q", got)
	}
}

func TestTextToHTML(t *testing.T) {
	got, err := Apply("<<<text-to-html>>>a < b & c\nnext line<<<end>>>")
	if err != nil {
		t.Fatal(err)
	}
	want := "a &lt; b &amp; c<br/>\nnext line"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestQuotedPrintable(t *testing.T) {
	got, err := Apply("<<<quoted-printable>>>héllo=world<<<end>>>")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "=3D") {
		t.Errorf("= not encoded: %q", got)
	}
	if strings.ContainsRune(got, 'é') {
		t.Errorf("non-ASCII byte left unencoded: %q", got)
	}
}

func TestModePipelineOrder(t *testing.T) {
	// text-to-html runs first, so the <br/> it inserts is then QP-encoded
	// as literal text by the second mode.
	got, err := Apply("<<<text-to-html|quoted-printable>>>a\nb<<<end>>>")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "<br/>") {
		t.Errorf("pipeline order wrong: %q", got)
	}
}

func TestNestedSpans(t *testing.T) {
	// Inner span transforms first; the outer span then escapes the markup
	// the inner one produced.
	in := "<<<text-to-html>>>outer <<<text-to-html>>>x<y<<<end>>> tail<<<end>>>"
	got, err := Apply(in)
	if err != nil {
		t.Fatal(err)
	}
	want := "outer x&amp;lt;y tail"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestUnknownModeFatal(t *testing.T) {
	_, err := Apply("<<<rot13>>>secret<<<end>>>")
	var modeErr *UnknownModeError
	if !errors.As(err, &modeErr) {
		t.Fatalf("err = %v, want *UnknownModeError", err)
	}
	if modeErr.Mode != "rot13" {
		t.Errorf("Mode = %q, want rot13", modeErr.Mode)
	}
}

func TestSurroundingTextPreserved(t *testing.T) {
	got, err := Apply("before <<<text-to-html>>>a&b<<<end>>> after")
	if err != nil {
		t.Fatal(err)
	}
	if got != "before a&amp;b after" {
		t.Errorf("got %q", got)
	}
}
