package models

import "strings"

// Overrides is the nested override store. Keys are path segments; a path like
// "theme/color" or "theme.color" addresses overrides["theme"]["color"].
type Overrides map[string]interface{}

// SplitPath splits a dotted or slashed override path into segments.
// Empty segments are dropped so "theme//color" and "/theme/color" both
// resolve to ["theme", "color"].
func SplitPath(path string) []string {
	raw := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '.'
	})
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// Set writes value at the given path, creating intermediate maps as needed.
// An intermediate segment that currently holds a scalar is replaced by a map.
func (o Overrides) Set(path string, value interface{}) {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return
	}

	node := map[string]interface{}(o)
	for _, seg := range segments[:len(segments)-1] {
		child, ok := node[seg].(map[string]interface{})
		if !ok {
			child = make(map[string]interface{})
			node[seg] = child
		}
		node = child
	}
	node[segments[len(segments)-1]] = value
}

// Get reads the value at the given path. The second return is false when any
// segment is missing.
func (o Overrides) Get(path string) (interface{}, bool) {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return nil, false
	}

	var current interface{} = map[string]interface{}(o)
	for _, seg := range segments {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = node[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Clone returns a deep copy of the override store
func (o Overrides) Clone() Overrides {
	return Overrides(cloneMap(o))
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}
