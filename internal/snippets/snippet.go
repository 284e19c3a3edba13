// Package snippets implements the snippet file model: parsing, structural
// validation, normalization, and per-language grouping.
package snippets

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// GlobalScope is the language key of snippets that apply to every file.
const GlobalScope = "*"

// scopeSeparators splits a scope declaration into language tokens.
var scopeSeparators = regexp.MustCompile(`[,\s]+`)

// Snippet is the canonical in-memory form of one snippet entry.
//
// A snippet targeting several languages is stored once and referenced from
// every matching bucket, so all buckets observe the same value.
type Snippet struct {
	// Name is the entry's key in its source file
	Name string `json:"name"`

	// Prefixes are the completion triggers, in declaration order, never empty
	Prefixes []string `json:"prefixes"`

	// BodyLines is the insert text split into lines
	BodyLines []string `json:"body"`

	// Description is the optional human-readable summary
	Description string `json:"description,omitempty"`

	// TargetLanguages are the lower-cased language keys this snippet
	// applies to; GlobalScope when the entry declared none. Never empty.
	TargetLanguages []string `json:"targetLanguages"`

	// Source is the ID of the source the snippet was loaded from
	Source string `json:"source,omitempty"`

	// File is the path of the defining file, relative to the snippets folder
	File string `json:"file,omitempty"`
}

// rawEntry is one entry as found in a snippet file. The prefix and body
// fields accept both the single-string and the list form.
type rawEntry struct {
	Prefix      stringOrList `json:"prefix"`
	Body        bodyValue    `json:"body"`
	Description string       `json:"description,omitempty"`
	Scope       string       `json:"scope,omitempty"`
}

// stringOrList decodes a JSON string into a one-element list, or a JSON
// array of strings as-is.
type stringOrList []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *stringOrList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = []string{single}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected string or array of strings: %w", err)
	}
	*s = list
	return nil
}

// bodyValue decodes a JSON string by splitting it on newline boundaries,
// or a JSON array of strings as already-split lines.
type bodyValue []string

// UnmarshalJSON implements json.Unmarshaler.
func (b *bodyValue) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*b = splitBody(single)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected string or array of strings: %w", err)
	}
	*b = list
	return nil
}

// splitBody splits a single-string body on \n or \r\n boundaries. The
// split is exact: a trailing newline yields a trailing empty line, nothing
// more is trimmed or added.
func splitBody(s string) []string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// splitScope turns a free-text scope declaration into the target language
// list: tokens split on runs of commas and whitespace, trimmed and
// lower-cased. A scope that yields no tokens means the snippet is global.
func splitScope(scope string) []string {
	trimmed := strings.TrimSpace(scope)
	if trimmed == "" {
		return []string{GlobalScope}
	}

	tokens := scopeSeparators.Split(trimmed, -1)
	languages := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		languages = append(languages, strings.ToLower(tok))
	}
	if len(languages) == 0 {
		return []string{GlobalScope}
	}
	return languages
}

// newSnippet builds the normalized snippet for one named raw entry.
func newSnippet(name string, entry rawEntry) *Snippet {
	return &Snippet{
		Name:            name,
		Prefixes:        entry.Prefix,
		BodyLines:       entry.Body,
		Description:     entry.Description,
		TargetLanguages: splitScope(entry.Scope),
	}
}

// IsGlobal reports whether the snippet applies to every language.
func (s *Snippet) IsGlobal() bool {
	for _, lang := range s.TargetLanguages {
		if lang == GlobalScope {
			return true
		}
	}
	return false
}
