package resolve

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/textloom/loom/pkg/scope"
)

func newTestResolver() (*Resolver, *observer.ObservedLogs) {
	core, logs := observer.New(zap.WarnLevel)
	r := New(zap.New(core))
	r.Now = func() time.Time {
		return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	}
	return r, logs
}

func TestResolveLiteralFastPath(t *testing.T) {
	r, _ := newTestResolver()
	got, err := r.Resolve("no templates here", scope.New())
	if err != nil {
		t.Fatal(err)
	}
	if got != "no templates here" {
		t.Errorf("got %q", got)
	}
}

func TestResolveScopeLookup(t *testing.T) {
	r, _ := newTestResolver()
	sc := scope.FromPairs("city", "Valparaíso")
	got, err := r.Resolve("Weather in ${city} today", sc)
	if err != nil {
		t.Fatal(err)
	}
	if got != "Weather in Valparaíso today" {
		t.Errorf("got %q", got)
	}
}

func TestResolveMultiPass(t *testing.T) {
	r, _ := newTestResolver()
	sc := scope.FromPairs(
		"greeting", "Hello ${name}",
		"name", "world",
	)
	got, err := r.Resolve("${greeting}!", sc)
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hello world!" {
		t.Errorf("got %q", got)
	}
}

func TestResolveNestedExpression(t *testing.T) {
	r, _ := newTestResolver()
	sc := scope.FromPairs(
		"suffix", "1",
		"var1", "deep value",
	)
	got, err := r.Resolve("${var${suffix}}", sc)
	if err != nil {
		t.Fatal(err)
	}
	if got != "deep value" {
		t.Errorf("got %q", got)
	}
}

func TestResolveIdempotent(t *testing.T) {
	r, _ := newTestResolver()
	sc := scope.FromPairs("a", "1", "b", "2")
	once, err := r.Resolve("x ${a} y ${b} z ${missing}", sc)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := r.Resolve(once, sc)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Errorf("not idempotent: %q != %q", once, twice)
	}
}

func TestUnresolvedPassthrough(t *testing.T) {
	r, logs := newTestResolver()
	got, err := r.Resolve("${missing}", scope.New())
	if err != nil {
		t.Fatal(err)
	}
	if got != "${missing}" {
		t.Errorf("got %q, want literal token", got)
	}
	if n := logs.Len(); n != 1 {
		t.Errorf("emitted %d diagnostics, want exactly 1", n)
	}
}

func TestRandBuiltin(t *testing.T) {
	r, _ := newTestResolver()
	got, err := r.Resolve("${@rand|12}", scope.New())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 12 {
		t.Fatalf("length = %d, want 12", len(got))
	}
	for _, c := range got {
		if !strings.ContainsRune(randAlphabet, c) {
			t.Errorf("character %q outside default charset", c)
		}
	}
}

func TestRandBuiltinCharset(t *testing.T) {
	r, _ := newTestResolver()
	got, err := r.Resolve("${@rand|20|ab}", scope.New())
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range got {
		if c != 'a' && c != 'b' {
			t.Errorf("character %q outside charset ab", c)
		}
	}
}

func TestDateBuiltin(t *testing.T) {
	r, _ := newTestResolver()

	tests := []struct {
		in   string
		want string
	}{
		{"${@date|2006-01-02}", "2024-03-15"},
		{"${@date|2006-01-02|now}", "2024-03-15"},
		{"${@date|2006-01-02|tomorrow}", "2024-03-16"},
		{"${@date|2006-01-02|-24h}", "2024-03-14"},
		{"${@date|2006-01-02|+1w}", "2024-03-22"},
		{"${@date|15:04|+2h}", "12:30"},
	}
	for _, tt := range tests {
		got, err := r.Resolve(tt.in, scope.New())
		if err != nil {
			t.Errorf("%s: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDateBuiltinInvalidRelative(t *testing.T) {
	r, _ := newTestResolver()
	_, err := r.Resolve("${@date|2006-01-02|next-blue-moon}", scope.New())
	if err == nil {
		t.Fatal("expected hard error for invalid relative expression")
	}
}

func TestAutoCamel(t *testing.T) {
	r, _ := newTestResolver()
	sc := scope.FromPairs(
		"plain", "my great article_title",
		"cased", "AlreadyCased value",
	)

	got, err := r.Resolve("${@autocamel|plain}", sc)
	if err != nil {
		t.Fatal(err)
	}
	if got != "MyGreatArticleTitle" {
		t.Errorf("got %q, want MyGreatArticleTitle", got)
	}

	got, err = r.Resolve("${@autocamel|cased}", sc)
	if err != nil {
		t.Fatal(err)
	}
	if got != "AlreadyCased value" {
		t.Errorf("cased value modified: %q", got)
	}
}

func TestTeeWithCapture(t *testing.T) {
	r, _ := newTestResolver()
	sc := scope.New()
	got, err := r.Resolve("${@tee|draft|v2}${>label}", sc)
	if err != nil {
		t.Fatal(err)
	}
	if got != "draft|v2" {
		t.Errorf("emitted %q, want draft|v2", got)
	}
	if v := sc.Value("label"); v != "draft|v2" {
		t.Errorf("captured label = %q, want draft|v2", v)
	}
}

func TestCaptureSuffixBindsForLaterExpressions(t *testing.T) {
	r, _ := newTestResolver()
	sc := scope.FromPairs("color", "green")
	got, err := r.Resolve("${color}${>picked} and again ${picked}", sc)
	if err != nil {
		t.Fatal(err)
	}
	if got != "green and again green" {
		t.Errorf("got %q", got)
	}
}

func TestSelfReferentialTemplateFails(t *testing.T) {
	r, _ := newTestResolver()
	sc := scope.FromPairs("a", "${b}", "b", "${a}")
	_, err := r.Resolve("${a}", sc)
	var loopErr *LoopError
	if !errors.As(err, &loopErr) {
		t.Fatalf("err = %v, want *LoopError", err)
	}
}

func TestUnknownBuiltinIsError(t *testing.T) {
	r, _ := newTestResolver()
	_, err := r.Resolve("${@bogus|1}", scope.New())
	if err == nil {
		t.Fatal("expected error for unknown builtin")
	}
}

func TestReferences(t *testing.T) {
	got := References("${title} by ${author}, ${title} again, ${@rand|4} ${x${y}}")
	want := []string{"title", "author", "y"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("References = %v, want %v", got, want)
	}

	if refs := References("no templates here"); refs != nil {
		t.Errorf("References = %v, want nil", refs)
	}
}
