package config

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// The Loose* scalar types absorb editor-grade configuration input: a value
// may be absent, null, or of the wrong YAML type. Decoding never fails;
// unusable values are treated as unset so callers apply their defaults
// via Or.

// LooseBool is a boolean setting that treats wrong-typed values as unset.
type LooseBool struct {
	set bool
	val bool
}

// Bool returns a LooseBool holding the given value. Mostly for tests and
// programmatic construction.
func Bool(v bool) LooseBool {
	return LooseBool{set: true, val: v}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *LooseBool) UnmarshalYAML(node *yaml.Node) error {
	// Explicit null decodes into a zero bool without error, catch it first.
	if node.Tag == "!!null" {
		*b = LooseBool{}
		return nil
	}
	var v bool
	if err := node.Decode(&v); err != nil {
		*b = LooseBool{}
		return nil
	}
	*b = LooseBool{set: true, val: v}
	return nil
}

// Or returns the configured value, or def when the value was absent or
// not a boolean.
func (b LooseBool) Or(def bool) bool {
	if !b.set {
		return def
	}
	return b.val
}

// IsSet reports whether a usable value was configured.
func (b LooseBool) IsSet() bool {
	return b.set
}

// LooseString is a string setting that stringifies scalar values of other
// types (numbers, booleans) instead of failing.
type LooseString struct {
	set bool
	val string
}

// String returns a LooseString holding the given value.
func String(v string) LooseString {
	return LooseString{set: true, val: v}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *LooseString) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		*s = LooseString{}
		return nil
	}
	*s = LooseString{set: true, val: node.Value}
	return nil
}

// Or returns the trimmed configured value, or def when the value was
// absent or blank.
func (s LooseString) Or(def string) string {
	v := strings.TrimSpace(s.val)
	if !s.set || v == "" {
		return def
	}
	return v
}

// Value returns the trimmed configured value, empty when unset.
func (s LooseString) Value() string {
	return strings.TrimSpace(s.val)
}

// IsBlank reports whether the value is absent or whitespace-only.
func (s LooseString) IsBlank() bool {
	return !s.set || strings.TrimSpace(s.val) == ""
}

// LooseInt is an integer setting that also accepts numeric strings.
type LooseInt struct {
	set bool
	val int
}

// Int returns a LooseInt holding the given value.
func Int(v int) LooseInt {
	return LooseInt{set: true, val: v}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (i *LooseInt) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*i = LooseInt{}
		return nil
	}
	var v int
	if err := node.Decode(&v); err == nil {
		*i = LooseInt{set: true, val: v}
		return nil
	}
	if node.Kind == yaml.ScalarNode {
		if v, err := strconv.Atoi(strings.TrimSpace(node.Value)); err == nil {
			*i = LooseInt{set: true, val: v}
			return nil
		}
	}
	*i = LooseInt{}
	return nil
}

// Or returns the configured value, or def when the value was absent or
// not numeric.
func (i LooseInt) Or(def int) int {
	if !i.set {
		return def
	}
	return i.val
}
