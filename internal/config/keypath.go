package config

import "strings"

// KeyPath addresses a value in the raw config tree, e.g. "twilio.fromNumber".
type KeyPath []string

// ParseKeyPath splits a dotted key. Segments may hold letters, digits,
// '_' and '-'.
func ParseKeyPath(raw string) (KeyPath, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &ConfigError{Message: "empty config key"}
	}
	parts := strings.Split(raw, ".")
	for _, seg := range parts {
		if seg == "" {
			return nil, &ConfigError{Message: "config key " + raw + " has an empty segment"}
		}
		if !validSegment(seg) {
			return nil, &ConfigError{Message: "config key segment " + seg + " has invalid characters"}
		}
	}
	return KeyPath(parts), nil
}

func validSegment(seg string) bool {
	for _, r := range seg {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

func (k KeyPath) String() string { return strings.Join(k, ".") }

// parent walks to the map holding the last segment. With create set,
// missing or non-map intermediates are replaced by empty maps.
func (k KeyPath) parent(root map[string]any, create bool) (map[string]any, bool) {
	cur := root
	for _, seg := range k[:len(k)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			if !create {
				return nil, false
			}
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	return cur, true
}

// Get returns the value stored at k.
func (k KeyPath) Get(root map[string]any) (any, bool) {
	if len(k) == 0 {
		return root, true
	}
	m, ok := k.parent(root, false)
	if !ok {
		return nil, false
	}
	v, ok := m[k[len(k)-1]]
	return v, ok
}

// Set stores v at k.
func (k KeyPath) Set(root map[string]any, v any) {
	if len(k) == 0 {
		return
	}
	m, _ := k.parent(root, true)
	m[k[len(k)-1]] = v
}

// Unset deletes the value at k and reports whether one was there.
func (k KeyPath) Unset(root map[string]any) bool {
	if len(k) == 0 {
		return false
	}
	m, ok := k.parent(root, false)
	if !ok {
		return false
	}
	last := k[len(k)-1]
	if _, ok := m[last]; !ok {
		return false
	}
	delete(m, last)
	return true
}
