package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// literalRule replaces every case-insensitive occurrence of a phrase.
type literalRule struct {
	from *regexp.Regexp
	to   string
}

func literalSyntax(line string) (Rule, bool, error) {
	from, to, found := strings.Cut(line, "=>")
	if !found {
		return nil, false, nil
	}
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, true, errors.New("literal rule has nothing to replace")
	}
	return literalRule{
		from: regexp.MustCompile("(?i)" + regexp.QuoteMeta(from)),
		to:   strings.TrimSpace(to),
	}, true, nil
}

func (r literalRule) Rewrite(input string) (string, bool) {
	output := r.from.ReplaceAllLiteralString(input, r.to)
	return output, output != input
}

// sedRule is "s<d>pattern<d>replacement<d>flags" for any punctuation
// delimiter <d>. Matching is case-insensitive unless the c flag is given;
// without the g flag only the first match is replaced.
type sedRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func sedSyntax(line string) (Rule, bool, error) {
	if len(line) < 2 || line[0] != 's' || !isDelimiter(rune(line[1])) {
		return nil, false, nil
	}
	rule, err := parseSed(line[2:], line[1])
	return rule, true, err
}

func parseSed(body string, delim byte) (Rule, error) {
	pattern, rest, err := splitDelimited(body, delim)
	if err != nil {
		return nil, fmt.Errorf("pattern: %w", err)
	}
	replacement, rest, err := splitDelimited(rest, delim)
	if err != nil {
		return nil, fmt.Errorf("replacement: %w", err)
	}

	caseSensitive, global := false, false
	var inline strings.Builder
	for _, flag := range strings.TrimSpace(rest) {
		switch flag {
		case 'g':
			global = true
		case 'c':
			caseSensitive = true
		case 'i':
		case 'm', 's':
			inline.WriteRune(flag)
		default:
			return nil, fmt.Errorf("unknown flag %q", flag)
		}
	}
	if !caseSensitive {
		inline.WriteByte('i')
	}
	if inline.Len() > 0 {
		pattern = "(?" + inline.String() + ")" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return sedRule{re: re, replacement: replacement, global: global}, nil
}

func (r sedRule) Rewrite(input string) (string, bool) {
	var output string
	if r.global {
		output = r.re.ReplaceAllString(input, r.replacement)
	} else {
		match := r.re.FindStringSubmatchIndex(input)
		if match == nil {
			return input, false
		}
		expanded := r.re.ExpandString(nil, r.replacement, input, match)
		output = input[:match[0]] + string(expanded) + input[match[1]:]
	}
	return output, output != input
}

// splitDelimited returns s up to the first unescaped delim and the text
// after it. Escapes are kept so the regexp engine still sees them.
func splitDelimited(s string, delim byte) (string, string, error) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case delim:
			return s[:i], s[i+1:], nil
		}
	}
	return "", "", errors.New("missing closing delimiter")
}

func isDelimiter(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}
