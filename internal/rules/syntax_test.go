package rules

import (
	"regexp"
	"testing"
)

func regexpFor(t *testing.T, phrase string) *regexp.Regexp {
	t.Helper()
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(phrase))
}

func TestRuleRewrites(t *testing.T) {
	t.Parallel()

	cases := []struct {
		line  string
		input string
		want  string
	}{
		{`s/foo/bar/`, "foo foo", "bar foo"},
		{`s/foo/bar/g`, "foo FOO", "bar bar"},
		{`s/foo/bar/gc`, "foo FOO", "bar FOO"},
		{`s|(\w+)@(\w+)|$2 at $1|`, "me@home and you@work", "home at me and you@work"},
		{`s/^a/b/m`, "a\na", "b\na"},
		{`s/^a/b/mg`, "a\na", "b\nb"},
		{`s#a\#b#x#`, "a#b", "x"},
		{`solid complaint => SOLID-compliant`, "solid complaint plan", "SOLID-compliant plan"},
		{`price => $1`, "price", "$1"},
		{`tesekkur ederim   =>   teşekkür ederim`, "Tesekkur ederim!", "teşekkür ederim!"},
	}
	for _, tc := range cases {
		rule, err := compile(tc.line, DefaultSyntaxes())
		if err != nil {
			t.Fatalf("%s: compile failed: %v", tc.line, err)
		}
		got, changed := rule.Rewrite(tc.input)
		if got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.line, tc.want, got)
		}
		if changed != (got != tc.input) {
			t.Fatalf("%s: changed=%t for %q", tc.line, changed, got)
		}
	}
}

func TestRuleRewriteWithoutMatch(t *testing.T) {
	t.Parallel()

	for _, line := range []string{`s/zzz/y/`, `s/zzz/y/g`, `zzz => y`} {
		rule, err := compile(line, DefaultSyntaxes())
		if err != nil {
			t.Fatalf("%s: compile failed: %v", line, err)
		}
		if got, changed := rule.Rewrite("abc"); changed || got != "abc" {
			t.Fatalf("%s: expected no change, got %q %t", line, got, changed)
		}
	}
}

func TestCompileRejects(t *testing.T) {
	t.Parallel()

	for _, line := range []string{
		`s/foo/bar/x`,
		`s/foo/bar`,
		`s/(unclosed/bar/`,
		` => nothing`,
		`not-a-rule`,
	} {
		if _, err := compile(line, DefaultSyntaxes()); err == nil {
			t.Fatalf("expected %q to be rejected", line)
		}
	}
}

func TestSplitDelimited(t *testing.T) {
	t.Parallel()

	head, rest, err := splitDelimited(`a\/b/c/`, '/')
	if err != nil || head != `a\/b` || rest != "c/" {
		t.Fatalf("unexpected split: %q %q %v", head, rest, err)
	}
	if _, _, err := splitDelimited(`abc\/`, '/'); err == nil {
		t.Fatalf("expected missing delimiter error")
	}
}
