// Package rules rewrites recognized utterances before they are translated,
// e.g. to fix names the recognizer keeps mishearing.
package rules

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	// anyLanguage scopes rules that run for every source language.
	anyLanguage = "*"

	defaultIterationLimit = 30
)

// Rule rewrites text, reporting whether anything changed.
type Rule interface {
	Rewrite(input string) (output string, changed bool)
}

// Syntax compiles one rules-file line. ok is false when the line is not
// written in this syntax, letting the next syntax try.
type Syntax func(line string) (rule Rule, ok bool, err error)

// DefaultSyntaxes are tried in order: sed-style "s/re/repl/flags" first,
// then literal "from => to".
func DefaultSyntaxes() []Syntax {
	return []Syntax{sedSyntax, literalSyntax}
}

type scopedRule struct {
	lang string
	rule Rule
}

// Engine applies rules until the text stops changing. A "[tr]" line scopes
// the rules below it to Turkish utterances and "[*]" resets the scope.
type Engine struct {
	rules []scopedRule
	limit int
}

// NewEngine loads rules from path. A blank path or a missing file yields
// an engine that changes nothing.
func NewEngine(path string, iterationLimit int) (*Engine, error) {
	return NewEngineWithSyntaxes(path, iterationLimit, nil)
}

// NewEngineWithSyntaxes is NewEngine with extra rule syntaxes. A nil list
// means DefaultSyntaxes.
func NewEngineWithSyntaxes(path string, iterationLimit int, syntaxes []Syntax) (*Engine, error) {
	engine := &Engine{limit: iterationLimit}
	if engine.limit <= 0 {
		engine.limit = defaultIterationLimit
	}
	if strings.TrimSpace(path) == "" {
		return engine, nil
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return engine, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open rules file %q: %w", path, err)
	}
	defer f.Close()

	if engine.rules, err = load(f, syntaxes); err != nil {
		return nil, fmt.Errorf("rules file %q: %w", path, err)
	}
	return engine, nil
}

// Len is the number of compiled rules across all scopes.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Apply rewrites text with the unscoped rules and those scoped to lang.
// It fails when the rules keep changing the text past the iteration limit.
func (e *Engine) Apply(text string, lang string) (string, error) {
	active := e.forLanguage(strings.ToLower(strings.TrimSpace(lang)))
	if len(active) == 0 {
		return text, nil
	}

	for pass := 0; pass < e.limit; pass++ {
		dirty := false
		for _, rule := range active {
			var changed bool
			if text, changed = rule.Rewrite(text); changed {
				dirty = true
			}
		}
		if !dirty {
			return text, nil
		}
	}
	return text, fmt.Errorf("rules still rewriting after %d passes", e.limit)
}

func (e *Engine) forLanguage(lang string) []Rule {
	var active []Rule
	for _, r := range e.rules {
		if r.lang == anyLanguage || r.lang == lang {
			active = append(active, r.rule)
		}
	}
	return active
}

func load(r io.Reader, syntaxes []Syntax) ([]scopedRule, error) {
	if len(syntaxes) == 0 {
		syntaxes = DefaultSyntaxes()
	}

	var out []scopedRule
	scope := anyLanguage
	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if lang, ok := parseSection(line); ok {
			scope = lang
			continue
		}

		rule, err := compile(line, syntaxes)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, scopedRule{lang: scope, rule: rule})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func compile(line string, syntaxes []Syntax) (Rule, error) {
	for _, syntax := range syntaxes {
		rule, ok, err := syntax(line)
		if ok || err != nil {
			return rule, err
		}
	}
	return nil, fmt.Errorf("unrecognized rule %q", line)
}

// parseSection recognizes "[tr]" style headers.
func parseSection(line string) (string, bool) {
	inner, ok := strings.CutPrefix(line, "[")
	if !ok {
		return "", false
	}
	if inner, ok = strings.CutSuffix(inner, "]"); !ok {
		return "", false
	}
	lang := strings.ToLower(strings.TrimSpace(inner))
	if lang == "" || strings.ContainsAny(lang, " \t[]") {
		return "", false
	}
	return lang, true
}
