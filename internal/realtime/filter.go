package realtime

import (
	"fmt"
	"strings"
)

// Filter is a parsed row predicate of the form "column=op.value".
// Supported ops: eq, neq, in (comma list in parentheses).
type Filter struct {
	Column string
	Op     string
	Values []string
}

// ParseFilter parses a predicate string. An empty string yields nil (match all).
func ParseFilter(s string) (*Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	col, rest, ok := strings.Cut(s, "=")
	if !ok || col == "" {
		return nil, fmt.Errorf("invalid filter %q", s)
	}
	op, val, ok := strings.Cut(rest, ".")
	if !ok {
		return nil, fmt.Errorf("invalid filter %q: missing operator", s)
	}
	f := &Filter{Column: strings.TrimSpace(col), Op: op}
	switch op {
	case "eq", "neq":
		f.Values = []string{val}
	case "in":
		val = strings.TrimSuffix(strings.TrimPrefix(val, "("), ")")
		for _, v := range strings.Split(val, ",") {
			f.Values = append(f.Values, strings.TrimSpace(v))
		}
	default:
		return nil, fmt.Errorf("invalid filter %q: unsupported operator %s", s, op)
	}
	return f, nil
}

// Match evaluates the predicate against a row.
func (f *Filter) Match(row map[string]any) bool {
	if f == nil {
		return true
	}
	v, ok := row[f.Column]
	got := ""
	if ok && v != nil {
		got = fmt.Sprint(v)
	}
	switch f.Op {
	case "eq":
		return ok && got == f.Values[0]
	case "neq":
		return !ok || got != f.Values[0]
	case "in":
		for _, want := range f.Values {
			if ok && got == want {
				return true
			}
		}
	}
	return false
}
