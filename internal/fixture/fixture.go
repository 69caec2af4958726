// Package fixture holds the image paths requested by load scenarios,
// grouped by size class, and samples them for each attempt.
package fixture

import (
	"errors"
	"fmt"
	"strings"
)

// Class is an image size bucket used to select fixtures.
type Class string

const (
	Small  Class = "small"
	Medium Class = "medium"
	Large  Class = "large"
)

// Classes lists every size class from largest to smallest.
var Classes = []Class{Large, Medium, Small}

// ErrEmptyFixtureSet is returned when a class with no entries is sampled.
var ErrEmptyFixtureSet = errors.New("empty fixture set")

// ParseClass converts a class name such as "Medium" into a Class.
func ParseClass(value string) (Class, error) {
	switch Class(strings.ToLower(strings.TrimSpace(value))) {
	case Small:
		return Small, nil
	case Medium:
		return Medium, nil
	case Large:
		return Large, nil
	default:
		return "", fmt.Errorf("unknown size class %q", value)
	}
}

// Set is an immutable collection of request paths per size class.
// It is built once during setup and shared read-only afterwards.
type Set struct {
	paths map[Class][]string
}

// New copies entries into a Set. Blank paths are dropped and a leading
// slash is added where missing.
func New(entries map[Class][]string) *Set {
	s := &Set{paths: make(map[Class][]string, len(Classes))}
	for class, list := range entries {
		clean := make([]string, 0, len(list))
		for _, p := range list {
			if p = normalizePath(p); p != "" {
				clean = append(clean, p)
			}
		}
		s.paths[class] = clean
	}
	return s
}

// Len returns the number of paths stored for class.
func (s *Set) Len(class Class) int {
	if s == nil {
		return 0
	}
	return len(s.paths[class])
}

// Counts returns the number of paths per class.
func (s *Set) Counts() map[Class]int {
	out := make(map[Class]int, len(Classes))
	for _, c := range Classes {
		out[c] = s.Len(c)
	}
	return out
}

// Paths returns a copy of the paths stored for class.
func (s *Set) Paths(class Class) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.paths[class]...)
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
