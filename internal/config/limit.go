package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Limit is a crawl bound that may be unbounded.
type Limit int

// Unbounded disables a limit. Zero is a real bound, never "no limit".
const Unbounded Limit = -1

// IsUnbounded reports whether the limit is disabled.
func (l Limit) IsUnbounded() bool {
	return l == Unbounded
}

// Int returns the limit as an int, -1 when unbounded.
func (l Limit) Int() int {
	return int(l)
}

// String returns the decimal value or "unbounded".
func (l Limit) String() string {
	if l.IsUnbounded() {
		return "unbounded"
	}
	return strconv.Itoa(int(l))
}

// ParseLimit parses an integer or one of "unbounded", "infinity", "inf".
func ParseLimit(s string) (Limit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unbounded", "infinity", "inf", ".inf", "unlimited":
		return Unbounded, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLimit, s)
	}
	if n < 0 {
		return Unbounded, nil
	}
	return Limit(n), nil
}

// UnmarshalYAML accepts an integer, a numeric string, "unbounded" or
// "infinity". Null leaves the limit unchanged.
func (l *Limit) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d", ErrInvalidLimit, node.Line)
	}
	if node.Tag == "!!null" {
		return nil
	}

	v, err := ParseLimit(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*l = v
	return nil
}

// MarshalYAML writes unbounded limits as "unbounded".
func (l Limit) MarshalYAML() (any, error) {
	if l.IsUnbounded() {
		return "unbounded", nil
	}
	return int(l), nil
}

// Set implements pflag.Value so limits can be given on the command line.
func (l *Limit) Set(s string) error {
	v, err := ParseLimit(s)
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Type implements pflag.Value.
func (l *Limit) Type() string {
	return "limit"
}
