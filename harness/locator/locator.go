// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package locator parses the element locator expressions used by scenario steps.
//
// An expression is a list of space-separated tokens. Values may be quoted to
// include spaces or colons:
//
//	role:button name:"INITIATE"
//	text:Damage
//	text:"1x" exact:true
//	css:canvas nth:1
//	canvas
//
// A bare token is a CSS selector.
package locator

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Kind identifies how a locator finds its element.
type Kind string

const (
	KindCSS  Kind = "css"
	KindText Kind = "text"
	KindRole Kind = "role"
)

// Locator identifies one element on the page.
type Locator struct {
	Kind  Kind
	Value string // CSS selector, text, or ARIA role
	Name  string // accessible name, only for KindRole
	Exact bool   // exact match of text/name instead of case-insensitive substring
	Nth   int    // index among the matches
}

// CSS returns a locator for a CSS selector.
func CSS(selector string) Locator {
	return Locator{Kind: KindCSS, Value: selector}
}

// Text returns a locator matching visible text.
func Text(text string) Locator {
	return Locator{Kind: KindText, Value: text}
}

// Role returns a locator matching an ARIA role and accessible name.
func Role(role, name string) Locator {
	return Locator{Kind: KindRole, Value: role, Name: name}
}

// Parse parses a locator expression.
func Parse(input string) (Locator, error) {
	var (
		loc      Locator
		css      []string
		haveKind bool
	)
	setKind := func(k Kind, v string) error {
		if haveKind {
			return fmt.Errorf("locator %q: more than one of css/text/role", input)
		}
		haveKind = true
		loc.Kind = k
		loc.Value = v
		return nil
	}

	for _, token := range tokenize(input) {
		parts := strings.SplitN(token, ":", 2)
		// Selectors like "a:hover" or "input:not(.x)" stay css.
		if len(parts) != 2 || !isKey(parts[0]) || strings.HasPrefix(parts[1], ":") {
			css = append(css, token)
			continue
		}
		key := strings.ToLower(parts[0])
		val := removeQuotes(strings.TrimSpace(parts[1]))
		if val == "" {
			return Locator{}, fmt.Errorf("locator %q: empty value for %s", input, key)
		}

		switch key {
		case "css":
			if err := setKind(KindCSS, val); err != nil {
				return Locator{}, err
			}
		case "text":
			if err := setKind(KindText, val); err != nil {
				return Locator{}, err
			}
		case "role":
			if err := setKind(KindRole, strings.ToLower(val)); err != nil {
				return Locator{}, err
			}
		case "name":
			loc.Name = val
		case "exact":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return Locator{}, fmt.Errorf("locator %q: exact: %w", input, err)
			}
			loc.Exact = b
		case "nth":
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return Locator{}, fmt.Errorf("locator %q: nth must be a non-negative integer", input)
			}
			loc.Nth = n
		default:
			css = append(css, token)
		}
	}

	if len(css) > 0 {
		if err := setKind(KindCSS, strings.Join(css, " ")); err != nil {
			return Locator{}, err
		}
	}
	if !haveKind {
		return Locator{}, fmt.Errorf("locator %q: nothing to match", input)
	}
	if loc.Name != "" && loc.Kind != KindRole {
		return Locator{}, fmt.Errorf("locator %q: name requires role", input)
	}
	return loc, nil
}

// MustParse is like Parse but panics on error. For literals in code and tests.
func MustParse(input string) Locator {
	l, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return l
}

// String renders the locator back into expression form.
func (l Locator) String() string {
	var b strings.Builder
	b.WriteString(string(l.Kind))
	b.WriteString(":")
	b.WriteString(quote(l.Value))
	if l.Name != "" {
		b.WriteString(" name:")
		b.WriteString(quote(l.Name))
	}
	if l.Exact {
		b.WriteString(" exact:true")
	}
	if l.Nth != 0 {
		fmt.Fprintf(&b, " nth:%d", l.Nth)
	}
	return b.String()
}

// Matches reports whether candidate satisfies want under the locator's
// matching rules. Drivers that match text in Go share this; the cdp driver
// applies the same rule in the page.
func (l Locator) Matches(want, candidate string) bool {
	candidate = normalizeSpace(candidate)
	want = normalizeSpace(want)
	if l.Exact {
		return candidate == want
	}
	return strings.Contains(strings.ToLower(candidate), strings.ToLower(want))
}

// MarshalText implements encoding.TextMarshaler.
func (l Locator) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Locator) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func isKey(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func quote(s string) string {
	if strings.ContainsAny(s, ":\"'") || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// tokenize splits the string by spaces, respecting quotes.
func tokenize(input string) []string {
	var tokens []string
	var currentToken strings.Builder
	inQuote := false
	escaped := false
	quoteChar := rune(0)

	for _, r := range input {
		switch {
		case inQuote:
			switch {
			case escaped:
				escaped = false
			case r == '\\' && quoteChar == '"':
				escaped = true
			case r == quoteChar:
				inQuote = false
			}
			currentToken.WriteRune(r)
		case unicode.IsSpace(r):
			if currentToken.Len() > 0 {
				tokens = append(tokens, currentToken.String())
				currentToken.Reset()
			}
		case r == '"' || r == '\'':
			inQuote = true
			quoteChar = r
			currentToken.WriteRune(r)
		default:
			currentToken.WriteRune(r)
		}
	}
	if currentToken.Len() > 0 {
		tokens = append(tokens, currentToken.String())
	}
	return tokens
}

func removeQuotes(s string) string {
	if len(s) >= 2 {
		first := s[0]
		last := s[len(s)-1]
		if first == '"' && last == '"' {
			if u, err := strconv.Unquote(s); err == nil {
				return u
			}
			return s[1 : len(s)-1]
		}
		if first == '\'' && last == '\'' {
			return s[1 : len(s)-1]
		}
	}
	return s
}
