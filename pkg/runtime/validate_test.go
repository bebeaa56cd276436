package runtime

import (
	"testing"

	"github.com/textloom/loom/pkg/schema"
)

func TestOrderValidatorsStablePartition(t *testing.T) {
	in := []schema.Validator{
		{Text: "judged-1"},
		{Text: "pattern-1", Pattern: "a"},
		{Text: "judged-2"},
		{Text: "pattern-2", Pattern: "b"},
	}
	got := orderValidators(in)

	want := []string{"pattern-1", "pattern-2", "judged-1", "judged-2"}
	for i, text := range want {
		if got[i].Text != text {
			t.Errorf("order[%d] = %q, want %q", i, got[i].Text, text)
		}
	}
	// Declaration order is untouched.
	if in[0].Text != "judged-1" {
		t.Error("input slice was reordered")
	}
}

func TestLeafScopeRebindsReferencedNames(t *testing.T) {
	sc := leafScope("${x}-child", "1-child")
	if sc.Value("x") != "1-child" {
		t.Errorf("x = %q", sc.Value("x"))
	}
	if sc.Len() != 1 {
		t.Errorf("len = %d, want 1", sc.Len())
	}

	sc = leafScope("plain", "v")
	if sc.Value("result") != "v" {
		t.Errorf("result = %q", sc.Value("result"))
	}
}
